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

// ProductHandler handles HTTP requests for product operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Remove)
	})
}

// missingCreateFields reports the fields a create cannot do without.
func missingCreateFields(in *service.ProductInput) []middleware.ValidationError {
	var errs []middleware.ValidationError
	if in.SKU == nil || *in.SKU == "" {
		errs = append(errs, middleware.ValidationError{Field: "sku", Message: "This field is required"})
	}
	if in.Title == nil || *in.Title == "" {
		errs = append(errs, middleware.ValidationError{Field: "title", Message: "This field is required"})
	}
	return errs
}

// Create handles product creation
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	if missing := missingCreateFields(&req); len(missing) > 0 {
		middleware.RespondWithValidationErrors(w, missing)
		return
	}

	product, err := h.productService.Create(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Product not created")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("type", string(product.Type)))
	respondWithEntity(w, http.StatusCreated, "product", product.ToClient())
}

// Get returns one product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Product lookup failed")
		return
	}
	respondWithEntity(w, http.StatusOK, "product", product.ToClient())
}

// List handles product listing. categoryPaths=true adds the path of every
// category referenced on the page.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, middleware.CodeInvalidRequest, "invalid paging parameters")
		return
	}
	isNetPrice, err := queryOptionalBool(r, "isNetPrice")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, middleware.CodeInvalidRequest, "invalid isNetPrice")
		return
	}

	q := r.URL.Query()
	filter := repository.ProductFilter{
		IDs:           queryList(r, "id"),
		SKUs:          queryList(r, "sku"),
		Statuses:      queryList(r, "status"),
		Types:         queryList(r, "type"),
		TaxCodes:      queryList(r, "taxCode"),
		StockStatuses: queryList(r, "stockStatus"),
		Bases:         queryList(r, "base"),
		Categories:    queryList(r, "categories"),
		Title:         q.Get("title"),
		Description:   q.Get("description"),
		Brand:         q.Get("brand"),
		IsNetPrice:    isNetPrice,
		Page:          page,
	}

	result, err := h.productService.List(r.Context(), filter, queryBool(r, "categoryPaths"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Product listing failed")
		return
	}

	views := make([]*domain.ProductView, 0, len(result.Products))
	for _, p := range result.Products {
		views = append(views, p.ToClient())
	}
	middleware.RespondWithJSON(w, http.StatusOK, listResponse{
		OK:            true,
		Page:          result.Page,
		Data:          views,
		CategoryPaths: result.CategoryPaths,
	})
}

// Update handles product updates. Only allow-listed fields are applied.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	product, err := h.productService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Product not updated")
		return
	}

	h.logger.Info("Product updated", zap.String("product_id", product.ID))
	respondWithEntity(w, http.StatusOK, "product", product.ToClient())
}

// Remove handles product removal
func (h *ProductHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.productService.Remove(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err, "Product not removed")
		return
	}

	h.logger.Info("Product removed", zap.String("product_id", id))
	respondOK(w)
}
