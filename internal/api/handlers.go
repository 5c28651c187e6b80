package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/FocuswithJustin/versewatch/core/detect"
	"github.com/FocuswithJustin/versewatch/core/engine"
	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/internal/logging"
	"github.com/FocuswithJustin/versewatch/internal/validation"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	Uptime       string   `json:"uptime"`
	Sessions     int      `json:"sessions"`
	Translations []string `json:"translations"` // loaded
}

// TranslationInfo describes a translation the server can serve.
type TranslationInfo struct {
	ID     string `json:"id"`
	Loaded bool   `json:"loaded"`
}

// SessionRequest is the body of POST /sessions.
type SessionRequest struct {
	TranslationID string `json:"translation,omitempty"`
}

// FragmentRequest is the body of POST /sessions/{id}/fragments.
type FragmentRequest struct {
	Text string `json:"text"`
}

// DetectRequest is the body of POST /detect. The caller carries the
// context between requests.
type DetectRequest struct {
	engine.Request
	Context detect.Context `json:"context"`
}

// DetectResponse is the result of POST /detect.
type DetectResponse struct {
	engine.Result
	Context detect.Context `json:"context"`
}

var errBodyTooLarge = errors.New("request body too large")

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"name":    "VerseWatch API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /translations",
			"GET /lookup?translation=&ref=",
			"POST /detect",
			"GET /sessions",
			"POST /sessions",
			"GET /sessions/{id}",
			"DELETE /sessions/{id}",
			"POST /sessions/{id}/fragments",
			"POST /sessions/{id}/reset",
			"GET /sessions/{id}/report?segment=",
			"GET /sessions/{id}/export",
			"WS /ws?session=",
			"GET /metrics",
		},
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, HealthInfo{
		Status:       "ok",
		Version:      s.cfg.Version,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Sessions:     s.sessions.Len(),
		Translations: s.engine.Store().Cached(),
	})
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()
	ids, err := store.Available(r.Context())
	if err != nil {
		// The cached identifiers are still returned with the error.
		logging.WarnContext(r.Context(), "listing translations", "error", err)
	}

	loaded := make(map[string]bool)
	for _, id := range store.Cached() {
		loaded[id] = true
	}
	infos := make([]TranslationInfo, len(ids))
	for i, id := range ids {
		infos[i] = TranslationInfo{ID: id, Loaded: loaded[id]}
	}
	respondList(w, infos, len(infos))
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("ref")
	if ref == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "ref parameter is required")
		return
	}
	id := q.Get("translation")
	if id != "" {
		if err := validation.ValidateID(id); err != nil {
			respondErr(w, errors.NewValidation("translation", err.Error()))
			return
		}
	}

	out, err := s.engine.Lookup(r.Context(), id, ref)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := s.decode(w, r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if err := s.validateText(req.Text); err != nil {
		respondErr(w, err)
		return
	}

	res, next, err := s.engine.Process(r.Context(), req.Request, req.Context)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, DetectResponse{Result: res, Context: next})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.sessions.List()
	respondList(w, infos, len(infos))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := s.decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondErr(w, err)
		return
	}
	info, err := s.sessions.Open(req.TranslationID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Close(id); err != nil {
		respondErr(w, err)
		return
	}
	s.hub.Publish(id, ServerMessage{Type: MessageClosed, SessionID: id})
	respond(w, http.StatusOK, map[string]any{"id": id, "closed": true})
}

func (s *Server) handleFragment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req FragmentRequest
	if err := s.decode(w, r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if err := s.validateText(req.Text); err != nil {
		respondErr(w, err)
		return
	}

	res, err := s.sessions.Process(r.Context(), id, req.Text)
	if err != nil {
		respondErr(w, err)
		return
	}
	s.hub.Publish(id, ServerMessage{Type: MessageResult, SessionID: id, Result: &res})
	respond(w, http.StatusOK, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Reset(id); err != nil {
		respondErr(w, err)
		return
	}
	info, err := s.sessions.Get(id)
	if err != nil {
		respondErr(w, err)
		return
	}
	s.hub.Publish(id, ServerMessage{Type: MessageReset, SessionID: id})
	respond(w, http.StatusOK, info)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	segment := q.Get("segment")
	if segment == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "segment parameter is required")
		return
	}
	p, err := s.sessions.Report(r.PathValue("id"), segment, q.Get("interim"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	tr, err := s.sessions.Export(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, tr)
}

// decode reads a JSON body of at most the fragment limit plus room for
// the envelope. An empty body yields io.EOF.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxFragmentBytes)+4096)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return err
		}
		return errors.NewValidation("body", err.Error())
	}
	return nil
}

func (s *Server) validateText(text string) error {
	if len(text) > s.cfg.MaxFragmentBytes {
		return errBodyTooLarge
	}
	if err := validation.ValidateFragment(text); err != nil {
		return errors.NewValidation("text", err.Error())
	}
	return nil
}

// errorStatus maps the error taxonomy onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, io.EOF):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.IsNotFound(err):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrMalformed):
		return http.StatusUnprocessableEntity, "MALFORMED_TRANSLATION"
	case errors.Is(err, errors.ErrSourceUnavailable):
		return http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondErr(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if errors.Is(err, io.EOF) {
		msg = "request body is required"
	}
	if status == http.StatusInternalServerError {
		logging.Error("request failed", "error", err)
		msg = "internal error"
	}
	respondError(w, status, code, msg)
}

func respond(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	write(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Debug("writing response", "error", err)
	}
}
