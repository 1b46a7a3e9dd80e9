package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
	obsctx "github.com/fairyhunter13/career-agent-api/internal/observability"
	"github.com/fairyhunter13/career-agent-api/internal/service/question"
	"github.com/fairyhunter13/career-agent-api/internal/service/ratelimiter"
)

// Client-facing messages. Internal detail is logged, never returned.
const (
	msgContentType      = "Content-Type must be application/json"
	msgInvalidJSON      = "Invalid JSON body"
	msgBodyTooLarge     = "Request body too large"
	msgMissingQuestion  = `Missing "question" field in request body`
	msgRateLimited      = "Rate limit exceeded. Please try again later."
	msgGenerateFailed   = "Failed to generate answer. Please try again."
	msgInvalidAnswer    = "Failed to generate valid answer"
	msgInternal         = "Internal server error"
	msgNotFound         = "Endpoint not found"
	msgMethodNotAllowed = "Method not allowed"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps a pipeline error to its status and fixed message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *question.ValidationError
	var le *ratelimiter.LimitError
	switch {
	case errors.As(err, &ve):
		writeMessage(w, http.StatusBadRequest, ve.Message)
	case errors.As(err, &le):
		w.Header().Set("Retry-After", strconv.Itoa(le.RetryAfterSeconds()))
		writeMessage(w, http.StatusTooManyRequests, msgRateLimited)
	case errors.Is(err, domain.ErrRateLimited):
		writeMessage(w, http.StatusTooManyRequests, msgRateLimited)
	case errors.Is(err, domain.ErrInvalidArgument):
		writeMessage(w, http.StatusBadRequest, msgInvalidJSON)
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrUpstreamTimeout):
		writeMessage(w, http.StatusInternalServerError, msgGenerateFailed)
	case errors.Is(err, domain.ErrSchemaInvalid):
		writeMessage(w, http.StatusInternalServerError, msgInvalidAnswer)
	default:
		obsctx.LoggerFromContext(r.Context()).Error("unexpected error", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}
