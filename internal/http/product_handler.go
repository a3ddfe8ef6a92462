package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iCADcl/IDEFWeb/internal/catalog"
)

type ProductHandler struct {
	catalog *catalog.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewProductHandler(catalog *catalog.Client, timeout time.Duration, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
		log:     log,
	}
}

func (h *ProductHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.GetProducts(ctx)
	if err != nil {
		h.log.Error("failed to load products", zap.Error(err))
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "could not load products")
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	slug := chi.URLParam(r, "slug")
	if slug == "" {
		respondError(w, http.StatusBadRequest, "invalid_slug", "slug is required")
		return
	}

	product, err := h.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		h.log.Error("failed to load product", zap.String("slug", slug), zap.Error(err))
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "could not load product")
		return
	}

	respondJSON(w, http.StatusOK, product)
}
