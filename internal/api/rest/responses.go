package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fairdial/leadline-backend/internal/domain/errors"
)

// ResponseEnvelope wraps every API response.
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Meta    ResponseMeta   `json:"meta"`
}

// ResponseMeta carries per-request bookkeeping.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, r, status, ResponseEnvelope{
		Success: status < http.StatusBadRequest,
		Data:    data,
	})
}

// respondError maps the error taxonomy onto HTTP. Transient conflicts that
// survived the retry budget surface as 503 with a retry hint so webhook
// senders redeliver.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorResponse(err)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	if errors.IsRetryable(err) && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", "1")
	}

	writeEnvelope(w, r, status, ResponseEnvelope{Success: false, Error: resp})
}

func errorResponse(err error) (int, *ErrorResponse) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode, &ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, &ErrorResponse{
			Code:    "REQUEST_TIMEOUT",
			Message: "request timed out",
		}
	}
	if stderrors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout, &ErrorResponse{
			Code:    "REQUEST_CANCELED",
			Message: "request was canceled",
		}
	}

	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "INVALID_JSON",
			Message: "request body is not valid JSON",
		}
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "TYPE_MISMATCH",
			Message: "invalid type for field " + typeErr.Field,
		}
	}

	return http.StatusInternalServerError, &ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env ResponseEnvelope) {
	env.Meta = ResponseMeta{
		RequestID: requestIDFrom(r.Context()),
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.ErrorContext(r.Context(), "encode response", "error", err)
	}
}

const maxBodySize = 1 << 20 // 1MB

// decodeJSON reads and unmarshals the request body with a size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(dst)
}
