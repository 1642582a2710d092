// Package daemon exposes a DownloadManager across separate wnacg-dl
// invocations. The CLI's own process model runs one cobra PersistentPreRunE
// per invocation, so a manager built for a single "submit" call would never
// survive to hear a later "pause" from a new process; "wnacg-dl serve" holds
// the one long-lived manager this package's handlers act on, and the
// submit/pause/resume/cancel/status subcommands become thin clients of it.
//
// The control surface is five small loopback-only routes with no content
// negotiation, auth or middleware chain to justify pulling in a third-party
// router: net/http's method-and-path ServeMux (Go 1.22+) covers it, so this
// package stays on the standard library rather than reaching for the gin/
// echo stacks the rest of the pack demonstrates for public-facing REST APIs
// (see DESIGN.md).
package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/engine"
	"wnacg-downloader/internal/models"
)

// Server adapts a DownloadManager's operations to HTTP handlers.
type Server struct {
	mgr *engine.DownloadManager
}

// NewServer wraps mgr for serving.
func NewServer(mgr *engine.DownloadManager) *Server {
	return &Server{mgr: mgr}
}

// Handler returns the routed control-plane mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", s.handleSubmit)
	mux.HandleFunc("GET /tasks", s.handleList)
	mux.HandleFunc("POST /tasks/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /tasks/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancel)
	return mux
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var comic models.Comic
	if err := json.NewDecoder(r.Body).Decode(&comic); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mgr.Submit(comic)
	writeJSON(w, http.StatusOK, comic)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.List())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.mgr.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.mgr.Resume)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.mgr.Cancel)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, action func(int64) error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := action(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ComicID int64 `json:"comicId"`
	}{ComicID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
