package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/export"
	"github.com/ca-srg/leakscope/internal/logger"
	"github.com/ca-srg/leakscope/internal/metrics"
	"github.com/ca-srg/leakscope/internal/record"
)

const (
	maxSearchBody = 64 << 10
	maxExportBody = 32 << 20

	healthCheckTimeout = 5 * time.Second
)

// searchRequest is the body of POST /api/search.
type searchRequest struct {
	Query      string   `json:"query" validate:"required"`
	Correlate  bool     `json:"correlate"`
	Sources    []string `json:"sources" validate:"omitempty,dive,required"`
	DeadlineMs int      `json:"deadline_ms" validate:"gte=0,lte=300000"`
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status  string            `json:"status"`
	Sources map[string]string `json:"sources"`
}

// handleSearch runs a search. With ?format=csv the result set is exported
// directly instead of returned as JSON.
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metrics.RecordInvocation(ctx, metrics.ModeHTTP)

	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return
	}

	log := logger.FromContext(ctx).With(logger.Query(req.Query))
	ctx = logger.WithContext(ctx, log)

	rs, err := h.searcher.SearchText(ctx, req.Query, record.Options{
		Correlate:    req.Correlate,
		SourceFilter: req.Sources,
		DeadlineMs:   req.DeadlineMs,
	})
	if err != nil {
		log.Warn("search failed", zap.Error(err))
		writeSearchError(w, err)
		return
	}
	metrics.RecordSearch(ctx, rs)
	for _, st := range rs.Sources {
		searchSourceStates.WithLabelValues(st.Name, string(st.State)).Inc()
	}

	if r.URL.Query().Get("format") == "csv" {
		metrics.RecordInvocation(ctx, metrics.ModeExport)
		h.writeCSV(w, rs)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// handleExport converts a previously returned result set into CSV.
func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.RecordInvocation(r.Context(), metrics.ModeExport)

	rs, err := export.Decode(http.MaxBytesReader(w, r.Body, maxExportBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	h.writeCSV(w, rs)
}

// writeCSV renders into a buffer first so a failure can still produce a JSON error.
func (h *handler) writeCSV(w http.ResponseWriter, rs *record.ResultSet) {
	var buf bytes.Buffer
	if err := export.Write(&buf, rs); err != nil {
		h.logger.Error("export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeExportFailed, "export failed")
		return
	}

	name := "leakscope-export.csv"
	if rs.ID != "" {
		name = fmt.Sprintf("leakscope-%s.csv", rs.ID)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *handler) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": h.searcher.Sources()})
}

// handleHealth reports "ok" when every source answers, "degraded" when some
// do, and "down" with 503 when none do.
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sources: map[string]string{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	log := logger.FromContext(r.Context())
	results := h.health.Check(ctx)
	resp := healthResponse{Status: "ok", Sources: make(map[string]string, len(results))}
	failed := 0
	for name, err := range results {
		if err != nil {
			failed++
			// The endpoint is unauthenticated; backend details stay in the log.
			resp.Sources[name] = "down"
			log.Warn("source health check failed", zap.String("source", name), zap.Error(err))
			continue
		}
		resp.Sources[name] = "ok"
	}

	status := http.StatusOK
	switch {
	case failed > 0 && failed == len(results):
		resp.Status = "down"
		status = http.StatusServiceUnavailable
	case failed > 0:
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag())
}
