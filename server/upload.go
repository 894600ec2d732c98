package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/storefront-sync/admin"
	"github.com/aluiziolira/storefront-sync/convert"
	"github.com/aluiziolira/storefront-sync/history"
	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/parser"
	"github.com/aluiziolira/storefront-sync/uploader"
	"github.com/go-chi/chi/v5"
)

type uploadRequest struct {
	Products            []*models.ScrapedProduct `json:"products"`
	BatchSize           *int                     `json:"batchSize"`
	DelayBetweenBatches *int                     `json:"delayBetweenBatches"`
}

func (s *Server) uploadOptions(req uploadRequest) uploader.Options {
	opts := uploader.OptionsFromConfig(s.cfg)
	if req.BatchSize != nil && *req.BatchSize > 0 {
		opts.BatchSize = *req.BatchSize
	}
	if req.DelayBetweenBatches != nil && *req.DelayBetweenBatches >= 0 {
		opts.DelayBetweenBatches = time.Duration(*req.DelayBetweenBatches) * time.Millisecond
	}
	return opts
}

func writeValidationFailure(w http.ResponseWriter, res parser.ValidationResult) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   "Validation failed",
		"details": res.Messages(),
		"issues":  res.Issues,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	started := time.Now()
	progress, err := s.uploader.Upload(r.Context(), req.Products, s.uploadOptions(req))
	var verr *uploader.ValidationError
	if errors.As(err, &verr) {
		writeValidationFailure(w, verr.Result)
		return
	}
	s.recordUpload(started, progress, err)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
			"result":  progress,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": progress})
}

func (s *Server) handleUploadStream(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if res := parser.ValidateUpload(req.Products); !res.IsValid() {
		writeValidationFailure(w, res)
		return
	}
	stream, ok := openEventStream(w)
	if !ok {
		writeFailure(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	opts := s.uploadOptions(req)
	opts.OnProgress = func(p models.UploadProgress, last string) {
		stream.send(models.ProgressEvent{
			Type:    models.EventProgress,
			Message: last,
			Total:   p.Total,
			Upload:  &p,
		})
	}

	started := time.Now()
	progress, err := s.uploader.Upload(r.Context(), req.Products, opts)
	s.recordUpload(started, progress, err)
	if err != nil {
		stream.send(models.ProgressEvent{
			Type:    models.EventError,
			Message: err.Error(),
			Upload:  &progress,
		})
		return
	}
	stream.send(models.ProgressEvent{
		Type:   models.EventDone,
		Total:  progress.Total,
		Upload: &progress,
	})
}

type deleteRequest struct {
	ProductIDs []string `json:"productIds"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.ProductIDs) == 0 {
		writeFailure(w, http.StatusBadRequest, "productIds is required")
		return
	}

	result, err := s.uploader.Delete(r.Context(), req.ProductIDs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
			"result":  result,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.catalog.ListProducts(r.Context(), queryInt(r, "first", 50), q.Get("after"), q.Get("query"))
	if err != nil {
		slog.Warn("list products", slog.Any("error", err))
		writeFailure(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"products": page.Products,
		"pageInfo": page.PageInfo,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := s.catalog.GetProduct(r.Context(), id)
	if errors.Is(err, admin.ErrNotFound) {
		writeFailure(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Warn("get product", slog.String("id", id), slog.Any("error", err))
		writeFailure(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"product": product,
		"scraped": convert.FromAdminProduct(*product),
	})
}

func (s *Server) recordUpload(started time.Time, progress models.UploadProgress, err error) {
	if s.history == nil {
		return
	}
	ctx, cancel := detached()
	defer cancel()

	run := history.NewUploadRun(s.cfg.ShopDomain, started, progress, err)
	if recErr := s.history.RecordUpload(ctx, run); recErr != nil {
		slog.Warn("record upload run", slog.Any("error", recErr))
	}
}
