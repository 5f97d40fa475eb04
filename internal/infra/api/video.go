package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"filmstream/internal/domain"
	"filmstream/internal/infra/metrics"
)

type refreshRequest struct {
	TokenID string `json:"tokenId"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	tok, err := s.deps.Video.Issue(r.Context(), callerFrom(r), chi.URLParam(r, "filmId"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleIssueAdminToken(w http.ResponseWriter, r *http.Request) {
	tok, err := s.deps.Video.IssueAdmin(r.Context(), callerFrom(r), chi.URLParam(r, "filmId"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.deps.Video.Refresh(r.Context(), callerFrom(r), chi.URLParam(r, "filmId"), req.TokenID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefreshAdminToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.deps.Video.RefreshAdmin(r.Context(), callerFrom(r), chi.URLParam(r, "filmId"), req.TokenID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStream serves the film file with Range support once the token and,
// for paid films, the entitlement check out.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r) {
		s.streamError(w, r, domain.ErrOriginNotAllowed)
		return
	}

	grant, err := s.deps.Video.AuthorizeStream(r.Context(), chi.URLParam(r, "filmId"), r.URL.Query().Get("token"))
	if err != nil {
		s.streamError(w, r, err)
		return
	}

	path, err := s.videoPath(grant.Film.FilmURL)
	if err != nil {
		s.streamError(w, r, err)
		return
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.streamError(w, r, fmt.Errorf("%w: video file missing", domain.ErrNotFound))
		return
	}
	if err != nil {
		s.streamError(w, r, err)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		s.streamError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "no-cache")
	ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
	// ServeContent answers Range requests with 206 and bad ranges with 416.
	http.ServeContent(ww, r, st.Name(), st.ModTime(), f)
	metrics.IncVideoStream(strconv.Itoa(ww.status))
}

func (s *Server) streamError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)
	metrics.IncVideoStream(strconv.Itoa(status))
	writeError(w, r, s.log, err)
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		return false
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// videoPath maps a stored film URL onto the uploads directory.
func (s *Server) videoPath(filmURL string) (string, error) {
	rel := strings.TrimPrefix(filmURL, "/uploads/")
	rel = strings.TrimPrefix(rel, "/")
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: video path outside uploads", domain.ErrNotFound)
	}
	return filepath.Join(s.opts.UploadsDir, rel), nil
}
