package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/api"
	cmodels "github.com/dmitrijs2005/neurostore/internal/client/models"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dustin/go-humanize"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 1, 3, ' ', 0)
}

func visibility(f api.FileInfo) string {
	if f.IsPublic {
		return "public"
	}
	return "private"
}

func printFiles(w io.Writer, files []api.FileInfo) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tVERSION\tACCESS\tUPDATED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", f.ID, f.FullName(), humanize.Bytes(uint64(f.Size)),
			f.CurrentVersion, visibility(f), humanize.Time(f.UpdatedAt))
	}
	return tw.Flush()
}

func printVersions(w io.Writer, versions []models.VersionRef) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "VERSION\tSIZE\tCREATED")
	for _, v := range versions {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", v.Number, humanize.Bytes(uint64(v.Size)), v.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printTracked(w io.Writer, tracked []*cmodels.TrackedFile) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "PATH\tID\tVERSION\tSIZE\tUPLOADED")
	for _, t := range tracked {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.Path, t.FileID, t.Version, humanize.Bytes(uint64(t.Size)), humanize.Time(t.UpdatedAt))
	}
	return tw.Flush()
}

func printInfo(w io.Writer, f *api.FileInfo) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", f.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", f.FullName())
	fmt.Fprintf(tw, "Owner:\t%s\n", f.OwnerID)
	fmt.Fprintf(tw, "Size:\t%s\n", humanize.Bytes(uint64(f.Size)))
	if f.MimeType != "" {
		fmt.Fprintf(tw, "Type:\t%s\n", f.MimeType)
	}
	fmt.Fprintf(tw, "Access:\t%s\n", visibility(*f))
	for _, e := range f.AccessList {
		fmt.Fprintf(tw, "\t%s %s=%s\n", e.Level, e.Kind, e.Value)
	}
	fmt.Fprintf(tw, "Versions:\t%d\n", len(f.Versions))
	fmt.Fprintf(tw, "Updated:\t%s\n", f.UpdatedAt.Format(time.RFC3339))
	return tw.Flush()
}
