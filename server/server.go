// Package server exposes a Viewport over HTTP so detection and scanning
// can run on a different machine than the browser. Endpoints mirror the
// Viewport interface one to one.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/tilescan/viewport"
)

// Server wraps a Viewport with a chi control API.
type Server struct {
	view   viewport.Viewport
	logger *slog.Logger
}

// New creates a control server around the given viewport.
func New(view viewport.Viewport, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{view: view, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/capture", s.handleCapture)
	r.Get("/page-source", s.handlePageSource)
	r.Get("/descriptors", s.handleDescriptors)
	r.Post("/background", s.handleBackground)
	r.Post("/scroll", s.handleScroll)
	r.Post("/fetch-image", s.handleFetchImage)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	img, err := s.view.CaptureView(r.Context())
	if err != nil {
		s.fail(w, "capture", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.logger.Warn("server: encode capture", "error", err)
	}
}

func (s *Server) handlePageSource(w http.ResponseWriter, r *http.Request) {
	src, err := sourcer(s.view)
	if err != nil {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	data, err := src.PageSource(r.Context())
	if err != nil {
		s.fail(w, "page source", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleDescriptors(w http.ResponseWriter, r *http.Request) {
	descs, err := s.view.ListDescriptors(r.Context())
	if err != nil {
		s.fail(w, "descriptors", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"count":       len(descs),
		"descriptors": descs,
	})
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Color == "" {
		writeError(w, http.StatusBadRequest, "color required")
		return
	}
	if err := s.view.SetBackground(r.Context(), req.Color); err != nil {
		s.fail(w, "background", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeltaY *int `json:"delta_y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeltaY == nil {
		writeError(w, http.StatusBadRequest, "delta_y required")
		return
	}
	if err := s.view.Scroll(r.Context(), *req.DeltaY); err != nil {
		s.fail(w, "scroll", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFetchImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	data, err := s.view.FetchBytes(r.Context(), req.URL)
	if err != nil {
		s.fail(w, "fetch image", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"size":   len(data),
		"data":   base64.StdEncoding.EncodeToString(data),
	})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Warn("server: "+op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "error": msg})
}

var errNoPageSource = errors.New("server: viewport cannot serialise page source")

func sourcer(v viewport.Viewport) (viewport.Sourcer, error) {
	if s, ok := v.(viewport.Sourcer); ok {
		return s, nil
	}
	return nil, errNoPageSource
}
