package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
	obsctx "github.com/fairyhunter13/career-agent-api/internal/observability"
	"github.com/fairyhunter13/career-agent-api/internal/usecase"
)

// ServiceName is reported by the health check.
const ServiceName = "career-agent-api"

// Asker runs the ask pipeline.
type Asker interface {
	Ask(ctx context.Context, req usecase.AskRequest) (domain.AnswerResult, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Asker        Asker
	MaxBodyBytes int64
}

// NewServer constructs the HTTP handlers.
func NewServer(asker Asker, maxBodyBytes int64) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 << 10
	}
	return &Server{Asker: asker, MaxBodyBytes: maxBodyBytes}
}

// HealthHandler answers GET /.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
	}
}

// AskHandler answers POST /.
func (s *Server) AskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isJSON(r.Header.Get("Content-Type")) {
			writeMessage(w, http.StatusBadRequest, msgContentType)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.MaxBodyBytes)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeMessage(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
				return
			}
			writeMessage(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		raw, ok := body["question"]
		if !ok {
			writeMessage(w, http.StatusBadRequest, msgMissingQuestion)
			return
		}

		clientID := ClientIDFromContext(r.Context())
		if clientID == "" {
			clientID = remoteHost(r.RemoteAddr)
		}
		res, err := s.Asker.Ask(r.Context(), usecase.AskRequest{
			ClientID:    clientID,
			Fingerprint: obsctx.ClientFingerprintFromContext(r.Context()),
			Question:    raw,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// NotFoundHandler answers unknown paths.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowedHandler answers known paths with the wrong method.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

// isJSON accepts application/json and application/*+json, with parameters.
func isJSON(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

// RateLimitedHandler answers requests rejected by the flood guard.
func RateLimitedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusTooManyRequests, msgRateLimited)
	}
}
