package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/pipeline"
	"github.com/okian/resumerank/pkg/logger"
)

// BatchDependencies defines what the batch handlers need.
type BatchDependencies interface {
	SubmitBatch(ctx context.Context, sub pipeline.Submission, idempotencyKey string) (model.BatchView, error)
	Batch(ctx context.Context, ownerID, batchID string) (model.BatchView, error)
	CancelBatch(ctx context.Context, ownerID, batchID string) (model.BatchView, error)
}

const idempotencyHeader = "Idempotency-Key"

// BatchesHandler handles batch submission and polling.
type BatchesHandler struct {
	deps      BatchDependencies
	maxUpload int64
	logger    logger.Logger
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(deps BatchDependencies, maxUpload int64, l logger.Logger) *BatchesHandler {
	return &BatchesHandler{deps: deps, maxUpload: maxUpload, logger: l}
}

type submitResponse struct {
	BatchID string            `json:"batch_id"`
	Status  model.BatchStatus `json:"status"`
}

// HandleSubmit handles POST /api/batches. The form carries repeated "files" parts
// plus job_title and job_description.
func (h *BatchesHandler) HandleSubmit(c *gin.Context) {
	const op = "api.submit_batch"
	ctx, owner := ownerContext(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Errorf("upload exceeds %d bytes", h.maxUpload))
			return
		}
		badRequest(c, ctx, h.logger, op, msgUnreadableUpload, err)
		return
	}

	files, err := readFiles(form.File["files"])
	if err != nil {
		badRequest(c, ctx, h.logger, op, msgUnreadableUpload, err)
		return
	}

	sub := pipeline.Submission{
		OwnerID:        owner,
		JobTitle:       firstValue(form.Value, "job_title"),
		JobDescription: firstValue(form.Value, "job_description"),
		Files:          files,
	}
	view, err := h.deps.SubmitBatch(ctx, sub, c.GetHeader(idempotencyHeader))
	if err != nil {
		if !errors.Is(err, pipeline.ErrPrecondition) {
			h.logger.Warn(ctx, "batch submission failed", logger.Error(err))
		}
		writeServiceError(c, err)
		return
	}

	c.Header("Location", "/api/batches/"+view.ID)
	writeJSON(c, http.StatusAccepted, submitResponse{BatchID: view.ID, Status: view.Status})
}

// HandleGet handles GET /api/batches/:id.
func (h *BatchesHandler) HandleGet(c *gin.Context) {
	ctx, owner := ownerContext(c)
	view, err := h.deps.Batch(ctx, owner, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

// HandleCancel handles POST /api/batches/:id/cancel.
func (h *BatchesHandler) HandleCancel(c *gin.Context) {
	ctx, owner := ownerContext(c)
	view, err := h.deps.CancelBatch(ctx, owner, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, view)
}

func readFiles(headers []*multipart.FileHeader) ([]model.File, error) {
	files := make([]model.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		files = append(files, model.File{Name: fh.Filename, ContentType: ct, Data: data})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func firstValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
