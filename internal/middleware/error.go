package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const (
	CodeValidationFailed     = "validation_failed"
	CodeInvalidRequest       = "invalid_request"
	CodeInternalError        = "internal_error"
	CodeRateLimited          = "rate_limited"
	CodeUnsupportedMediaType = "unsupported_media_type"
)

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Data  any    `json:"data,omitempty"`
}

// RespondWithError sends a failure envelope carrying code and optional data.
func RespondWithError(w http.ResponseWriter, statusCode int, code string, data any) {
	RespondWithJSON(w, statusCode, ErrorResponse{OK: false, Error: code, Data: data})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	RespondWithError(w, http.StatusBadRequest, CodeValidationFailed, errors)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, CodeInternalError, nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
