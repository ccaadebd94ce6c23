package transport

import (
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"catalog-service/internal/domain"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
)

// listResponse is the envelope of every list endpoint.
type listResponse struct {
	OK            bool              `json:"ok"`
	Page          repository.Page   `json:"page"`
	Data          any               `json:"data"`
	CategoryPaths map[string]string `json:"categoryPaths,omitempty"`
}

// respondWithEntity wraps view as {ok: true, <name>: view}.
func respondWithEntity(w http.ResponseWriter, statusCode int, name string, view any) {
	middleware.RespondWithJSON(w, statusCode, map[string]any{"ok": true, name: view})
}

func respondOK(w http.ResponseWriter) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// statusForKind maps a catalog error to the HTTP status it is reported with.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindCategoryNotFound, domain.KindProductNotFound:
		return http.StatusNotFound
	case domain.KindDuplicateKey, domain.KindCategoryNotEmpty:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// respondWithServiceError reports a catalog error with its kind and data.
// Anything else is logged and hidden behind internal_error.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, msg string) {
	var e *domain.Error
	if errors.As(err, &e) {
		logger.Debug(msg, zap.String("kind", string(e.Kind)), zap.Any("data", e.Data))
		middleware.RespondWithError(w, statusForKind(e.Kind), string(e.Kind), e.Data)
		return
	}

	logger.Error(msg, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, middleware.CodeInternalError, nil)
}

// decodeRequest decodes and validates the body into v, answering the request
// itself when that fails.
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	err := middleware.DecodeAndValidate(r, v)
	if err == nil {
		return true
	}

	logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}
	middleware.RespondWithError(w, http.StatusBadRequest, middleware.CodeInvalidRequest, "invalid request body")
	return false
}

// queryList reads a multi-valued parameter given either repeated or comma
// separated.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// queryBool reads a boolean flag; absent or unparseable values are false.
func queryBool(r *http.Request, key string) bool {
	b, err := cast.ToBoolE(r.URL.Query().Get(key))
	return err == nil && b
}

// queryOptionalBool is queryBool that keeps "not supplied" apart from false.
func queryOptionalBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// queryPage reads limit and skip. Values are normalized by the services.
func queryPage(r *http.Request) (repository.Page, error) {
	var page repository.Page
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := cast.ToIntE(raw)
		if err != nil {
			return page, err
		}
		page.Limit = limit
	}
	if raw := q.Get("skip"); raw != "" {
		skip, err := cast.ToIntE(raw)
		if err != nil {
			return page, err
		}
		page.Skip = skip
	}
	return page, nil
}
