package gateway

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/neurostore/internal/api"
	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/server/auth"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dmitrijs2005/neurostore/internal/server/services"
	"github.com/gin-gonic/gin"
)

// versionParam reads ?version=; absent or 0 means latest.
func versionParam(c *gin.Context) (int64, error) {
	raw := c.Query("version")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad version %q", common.ErrInvalidArgument, raw)
	}
	return n, nil
}

func (g *Gateway) plan(c *gin.Context) {
	var req api.PlanUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err))
		return
	}
	if id := c.Param("id"); id != "" {
		req.FileID = id
	}

	ctx := c.Request.Context()
	plan, err := g.files.PlanUpload(ctx, auth.IdentityFrom(ctx), services.PlanRequest(req))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.PlanUploadResponse{
		FileID:      plan.FileID,
		BaseVersion: plan.BaseVersion,
		Upload:      plan.Upload,
		Total:       plan.Stats.Total,
		New:         plan.Stats.New,
		Reused:      plan.Stats.Reused,
		NewBytes:    plan.Stats.NewBytes,
	})
}

func (g *Gateway) descriptors(c *gin.Context) {
	version, err := versionParam(c)
	if err != nil {
		g.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	v, err := g.files.Descriptors(ctx, auth.IdentityFrom(ctx), c.Param("id"), version)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.DescriptorsResponse{
		FileID:          v.FileID,
		Version:         v.Number,
		Size:            v.Size,
		Chunks:          v.Chunks,
		CompressionHint: v.CompressionHint,
		EncryptionHint:  v.EncryptionHint,
		CreatedAt:       v.CreatedAt,
	})
}

func (g *Gateway) versions(c *gin.Context) {
	ctx := c.Request.Context()
	refs, err := g.files.Versions(ctx, auth.IdentityFrom(ctx), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	if refs == nil {
		refs = []models.VersionRef{}
	}
	c.JSON(http.StatusOK, api.VersionsResponse{Versions: refs})
}

func (g *Gateway) getFile(c *gin.Context) {
	ctx := c.Request.Context()
	f, err := g.files.GetFile(ctx, auth.IdentityFrom(ctx), c.Param("id"))
	g.fileResponse(c, f, err)
}

func (g *Gateway) rename(c *gin.Context) {
	var req api.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err))
		return
	}
	ctx := c.Request.Context()
	f, err := g.files.Rename(ctx, auth.IdentityFrom(ctx), c.Param("id"), req.Name)
	g.fileResponse(c, f, err)
}

func (g *Gateway) deleteFile(c *gin.Context) {
	ctx := c.Request.Context()
	if err := g.files.Delete(ctx, auth.IdentityFrom(ctx), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) updateAccess(c *gin.Context) {
	var req api.UpdateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err))
		return
	}
	ctx := c.Request.Context()
	f, err := g.files.UpdateAccess(ctx, auth.IdentityFrom(ctx), c.Param("id"), req.IsPublic, req.Entries)
	g.fileResponse(c, f, err)
}

func (g *Gateway) listOwned(c *gin.Context) {
	ctx := c.Request.Context()
	files, err := g.files.ListOwned(ctx, auth.IdentityFrom(ctx))
	g.listResponse(c, files, err)
}

func (g *Gateway) sharedWithMe(c *gin.Context) {
	ctx := c.Request.Context()
	files, err := g.files.ListSharedWith(ctx, auth.IdentityFrom(ctx))
	g.listResponse(c, files, err)
}

func (g *Gateway) search(c *gin.Context) {
	ctx := c.Request.Context()
	files, err := g.files.Search(ctx, auth.IdentityFrom(ctx), c.Query("q"))
	g.listResponse(c, files, err)
}

func (g *Gateway) fileResponse(c *gin.Context, f *models.File, err error) {
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FileInfoFrom(f))
}

func (g *Gateway) listResponse(c *gin.Context, files []*models.File, err error) {
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ListFilesResponse{Files: api.FileInfosFrom(files)})
}
