// Package diff computes which chunks of a new upload are not covered by the
// previous version of the same file.
package diff

import "github.com/dmitrijs2005/neurostore/internal/server/models"

// Diff returns every descriptor of next whose hash does not occur in prev,
// in the order they appear in next. Position is irrelevant: a chunk that
// moved but kept its bytes is not uploaded again.
func Diff(next, prev models.Descriptors) models.Descriptors {
	if len(prev) == 0 {
		out := make(models.Descriptors, len(next))
		copy(out, next)
		return out
	}

	seen := make(map[string]struct{}, len(prev))
	for _, d := range prev {
		seen[d.Hash] = struct{}{}
	}

	out := make(models.Descriptors, 0)
	for _, d := range next {
		if _, ok := seen[d.Hash]; !ok {
			out = append(out, d)
		}
	}
	return out
}

// Hashes returns the distinct hashes of list in first-seen order.
func Hashes(list models.Descriptors) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, d := range list {
		if _, ok := seen[d.Hash]; ok {
			continue
		}
		seen[d.Hash] = struct{}{}
		out = append(out, d.Hash)
	}
	return out
}

// Stats summarizes an upload set against the full list.
type Stats struct {
	Total    int
	New      int
	Reused   int
	NewBytes uint64
}

func Summarize(full, upload models.Descriptors) Stats {
	s := Stats{Total: len(full), New: len(upload)}
	s.Reused = s.Total - s.New
	for _, d := range upload {
		s.NewBytes += d.Size()
	}
	return s
}
