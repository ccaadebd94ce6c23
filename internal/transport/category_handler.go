package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"catalog-service/internal/domain"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/service"
)

// CategoryHandler handles HTTP requests for the category tree
type CategoryHandler struct {
	categoryService service.CategoryService
	logger          *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService service.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		logger:          logger,
	}
}

// RegisterRoutes registers all category routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Remove)
		r.Get("/{id}/children", h.Children)
	})
}

// Create handles category creation
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryInput
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	category, err := h.categoryService.Create(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Category not created")
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID), zap.String("path", category.Path))
	respondWithEntity(w, http.StatusCreated, "category", category.ToClient())
}

// Get returns one category. withChildren adds its children tree, one level
// deep unless recursive is set.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	category, err := h.categoryService.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Category lookup failed")
		return
	}

	view := category.ToClient()
	if queryBool(r, "withChildren") {
		children, err := h.categoryService.Children(r.Context(), id, queryBool(r, "recursive"))
		if err != nil {
			respondWithServiceError(w, h.logger, err, "Category children lookup failed")
			return
		}
		view.Children = children
	}

	respondWithEntity(w, http.StatusOK, "category", view)
}

// Children returns the children tree of a category.
func (h *CategoryHandler) Children(w http.ResponseWriter, r *http.Request) {
	children, err := h.categoryService.Children(r.Context(), chi.URLParam(r, "id"), queryBool(r, "recursive"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Category children lookup failed")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "children": children})
}

// List handles category listing with filters
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, middleware.CodeInvalidRequest, "invalid paging parameters")
		return
	}

	filter := repository.CategoryFilter{
		IDs:         queryList(r, "id"),
		Parents:     queryList(r, "parent"),
		Slugs:       queryList(r, "slug"),
		Title:       r.URL.Query().Get("title"),
		Description: r.URL.Query().Get("description"),
		Path:        r.URL.Query().Get("path"),
		Page:        page.Normalize(),
	}

	categories, err := h.categoryService.List(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Category listing failed")
		return
	}

	views := make([]*domain.CategoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, c.ToClient())
	}
	middleware.RespondWithJSON(w, http.StatusOK, listResponse{OK: true, Page: filter.Page, Data: views})
}

// Update handles category updates
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryPatch
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	category, err := h.categoryService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Category not updated")
		return
	}

	h.logger.Info("Category updated", zap.String("category_id", category.ID))
	respondWithEntity(w, http.StatusOK, "category", category.ToClient())
}

// Remove handles category removal
func (h *CategoryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.categoryService.Remove(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err, "Category not removed")
		return
	}

	h.logger.Info("Category removed", zap.String("category_id", id))
	respondOK(w)
}
