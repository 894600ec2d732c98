package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/pipeline"
)

type exportRequest struct {
	Products []*models.ScrapedProduct `json:"products"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = pipeline.FormatJSONL
	}
	switch format {
	case pipeline.FormatJSON, pipeline.FormatJSONL, pipeline.FormatCSV:
	default:
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q (use json, jsonl, or csv)", format))
		return
	}

	var req exportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Products) == 0 {
		writeFailure(w, http.StatusBadRequest, "no products to export")
		return
	}

	filename := fmt.Sprintf("products-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", pipeline.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer, err := pipeline.NewWriter(format, w)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	p := pipeline.NewPipeline(r.Context(), writer, s.cfg)
	p.Start(1)
	if err := p.Process(req.Products...); err != nil {
		slog.Warn("export enqueue", slog.Any("error", err))
	}
	if err := p.Close(); err != nil {
		slog.Warn("export pipeline", slog.Any("error", err))
	}
	if err := writer.Close(); err != nil {
		slog.Warn("export writer", slog.Any("error", err))
	}

	metrics := p.GetMetrics()
	slog.Info("export finished",
		slog.String("format", format),
		slog.Int("requested", len(req.Products)),
		slog.Any("processed", metrics["processed_products"]),
		slog.Any("validation_errors", metrics["validation_errors"]),
	)
}
