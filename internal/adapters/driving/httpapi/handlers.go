package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/logger"
)

// genericQueryError is returned to clients instead of the real cause.
const genericQueryError = "Error processing query"

// maxBodyBytes caps the query request body.
const maxBodyBytes = 1 << 20

// queryRequest is the body of POST /api/query.
type queryRequest struct {
	Query  string `json:"query"`
	Stream bool   `json:"stream"`
}

// streamEvent is one line of a streamed answer.
type streamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// sourcesEvent always carries the sources key, even when empty.
type sourcesEvent struct {
	Type    string          `json:"type"`
	Sources []domain.Source `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// withRequestID tags the request and response with an X-Request-ID.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logger.Debug("http: %s %s [%s]", r.Method, r.URL.Path, id)
		next(w, r)
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.opts.AssistantDisabled {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Assistant is disabled"})
		return
	}

	if s.limiter != nil && !s.limiter.Allow(clientKey(r)) {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Rate limit exceeded"})
		return
	}

	req, err := decodeQuery(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request data"})
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Query is required"})
		return
	}

	if req.Stream {
		s.streamQuery(w, r, req.Query)
		return
	}

	answer, err := s.ports.Query.Ask(r.Context(), req.Query, s.opts.TopK)
	if err != nil {
		s.queryFailed(w, err)
		return
	}
	if answer.Sources == nil {
		answer.Sources = []domain.Source{}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) streamQuery(w http.ResponseWriter, r *http.Request, query string) {
	fragments, sources, err := s.ports.Query.AskStream(r.Context(), query, s.opts.TopK)
	if err != nil {
		s.queryFailed(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	send := func(ev any) bool {
		if err := enc.Encode(ev); err != nil {
			logger.Debug("http: client went away: %v", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	if !send(streamEvent{Type: "start"}) {
		return
	}
	for f := range fragments {
		if f.Err != nil {
			logger.Error("streaming answer: %v", f.Err)
			send(streamEvent{Type: "error", Error: genericQueryError})
			return
		}
		if f.Text != "" && !send(streamEvent{Type: "chunk", Content: f.Text}) {
			return
		}
	}
	if sources == nil {
		sources = []domain.Source{}
	}
	if !send(sourcesEvent{Type: "sources", Sources: sources}) {
		return
	}
	send(streamEvent{Type: "end"})
}

// queryFailed maps a pipeline error to a status. Details stay in the log.
func (s *Server) queryFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Query is required"})
		return
	}
	logger.Error("query failed: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: genericQueryError})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.ports.Health.Check(r.Context())
	status := http.StatusOK
	if !h.OK() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

// decodeQuery accepts a JSON body or form fields.
func decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, error) {
	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return req, err
		}
		req.Query = r.PostForm.Get("query")
		if v := r.PostForm.Get("stream"); v != "" {
			stream, err := strconv.ParseBool(v)
			if err != nil {
				return req, err
			}
			req.Stream = stream
		}
		return req, nil
	}

	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("http: writing response: %v", err)
	}
}
