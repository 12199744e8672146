// Package server exposes the resolution pipeline over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/alvarorichard/Gostream/internal/util"
	"github.com/alvarorichard/Gostream/pkg/gostream"
	"github.com/alvarorichard/Gostream/pkg/gostream/types"
)

const maxRequestBody = 1 << 20

type resolveService interface {
	ResolveDetailed(ctx context.Context, handle types.MediaHandle, servers []types.Server, pref types.Preference) (gostream.Report, error)
	Sources() []types.Source
}

var _ resolveService = (*gostream.Client)(nil)

type resolveRequest struct {
	Handle     types.MediaHandle `json:"handle"`
	Servers    []types.Server    `json:"servers"`
	Preference types.Preference  `json:"preference"`
}

type failureResponse struct {
	Server string `json:"server"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

type resolveResponse struct {
	RunID    string            `json:"runId"`
	Variants []types.Variant   `json:"variants"`
	Failures []failureResponse `json:"failures,omitempty"`
}

// Handler serves the resolution API on top of a resolve service
type Handler struct {
	Service resolveService
}

// NewHandler creates a handler backed by service, usually a *gostream.Client
func NewHandler(service resolveService) *Handler {
	return &Handler{Service: service}
}

// Router registers the API routes
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/resolve", h.Resolve).Methods(http.MethodPost)
	api.HandleFunc("/sources", h.Sources).Methods(http.MethodGet)
	return r
}

// Health answers GET /healthz with a plain "ok"
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// Sources answers GET /api/v1/sources with the configured hoster families
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": h.Service.Sources()})
}

// Resolve answers POST /api/v1/resolve. It responds 200 with the ranked
// variants, 404 when no server produced any and 400 on a malformed body.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Handle.ID == "" {
		writeJSONError(w, "handle.id is required", http.StatusBadRequest)
		return
	}

	report, err := h.Service.ResolveDetailed(r.Context(), req.Handle, req.Servers, req.Preference)
	resp := resolveResponse{
		RunID:    report.RunID,
		Variants: report.Variants,
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, failureResponse{
			Server: f.Server,
			Stage:  string(f.Stage),
			Error:  f.Err.Error(),
		})
	}

	switch {
	case errors.Is(err, gostream.ErrNoPlayableSources):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    err.Error(),
			"runId":    resp.RunID,
			"failures": resp.Failures,
		})
	case err != nil:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Debug("write response failed", "error", err)
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		util.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
