package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	service "github.com/okian/resumerank/internal/app"
	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/domain/ranking"
	"github.com/okian/resumerank/pkg/logger"
)

// ResumeDependencies defines what the resume handlers need.
type ResumeDependencies interface {
	Resumes(ctx context.Context, ownerID string, f ranking.Filter) ([]ranking.Candidate, error)
	Resume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error)
	DeleteResume(ctx context.Context, ownerID, id string) error
	DownloadURL(ctx context.Context, ownerID, id string) (string, error)
	OpenFile(ctx context.Context, ownerID, id string) (model.File, error)
}

// ResumesHandler serves the ranked candidate list and single records.
type ResumesHandler struct {
	deps   ResumeDependencies
	logger logger.Logger
}

// NewResumesHandler creates a new resumes handler.
func NewResumesHandler(deps ResumeDependencies, l logger.Logger) *ResumesHandler {
	return &ResumesHandler{deps: deps, logger: l}
}

type listResponse struct {
	Candidates []ranking.Candidate `json:"candidates"`
	Count      int                 `json:"count"`
}

type downloadResponse struct {
	URL string `json:"url"`
}

// HandleList handles GET /api/resumes?band=&q=&status=.
func (h *ResumesHandler) HandleList(c *gin.Context) {
	const op = "api.list_resumes"
	ctx, owner := ownerContext(c)

	band, err := ranking.ParseBand(c.Query("band"))
	if err != nil {
		badRequest(c, ctx, h.logger, op, msgUnknownBand, err)
		return
	}
	status := model.ResumeStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	switch status {
	case "", model.ResumeProcessing, model.ResumeAnalyzed, model.ResumeError:
	default:
		badRequest(c, ctx, h.logger, op, msgUnknownStatus, fmt.Errorf("status %q", status))
		return
	}

	list, err := h.deps.Resumes(ctx, owner, ranking.Filter{Band: band, Query: c.Query("q"), Status: status})
	if err != nil {
		h.fail(c, ctx, "failed to list resumes", err)
		return
	}
	writeJSON(c, http.StatusOK, listResponse{Candidates: list, Count: len(list)})
}

// HandleGet handles GET /api/resumes/:id.
func (h *ResumesHandler) HandleGet(c *gin.Context) {
	ctx, owner := ownerContext(c)
	rec, err := h.deps.Resume(ctx, owner, c.Param("id"))
	if err != nil {
		h.fail(c, ctx, "failed to get resume", err)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

// HandleDelete handles DELETE /api/resumes/:id.
func (h *ResumesHandler) HandleDelete(c *gin.Context) {
	ctx, owner := ownerContext(c)
	if err := h.deps.DeleteResume(ctx, owner, c.Param("id")); err != nil {
		h.fail(c, ctx, "failed to delete resume", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDownload handles GET /api/resumes/:id/download. With ?redirect=true the client
// is sent straight to the signed URL.
func (h *ResumesHandler) HandleDownload(c *gin.Context) {
	ctx, owner := ownerContext(c)
	url, err := h.deps.DownloadURL(ctx, owner, c.Param("id"))
	if err != nil {
		h.fail(c, ctx, "failed to sign download url", err)
		return
	}
	if c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, url)
		return
	}
	writeJSON(c, http.StatusOK, downloadResponse{URL: url})
}

// HandleFile handles GET /api/resumes/:id/file by streaming the stored bytes.
func (h *ResumesHandler) HandleFile(c *gin.Context) {
	ctx, owner := ownerContext(c)
	f, err := h.deps.OpenFile(ctx, owner, c.Param("id"))
	if err != nil {
		h.fail(c, ctx, "failed to open resume file", err)
		return
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	c.Data(http.StatusOK, ct, f.Data)
}

func (h *ResumesHandler) fail(c *gin.Context, ctx context.Context, msg string, err error) {
	if !errors.Is(err, service.ErrResumeNotFound) {
		h.logger.Error(ctx, msg, logger.Error(err))
	}
	writeServiceError(c, err)
}
