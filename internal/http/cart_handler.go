package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iCADcl/IDEFWeb/internal/cart"
	"github.com/iCADcl/IDEFWeb/internal/catalog"
	"github.com/iCADcl/IDEFWeb/internal/domain"
)

type CartHandler struct {
	sessions *cart.Sessions
	catalog  *catalog.Client
	timeout  time.Duration
	log      *zap.Logger
}

func NewCartHandler(sessions *cart.Sessions, catalog *catalog.Client, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequestDTO struct {
	Slug     string `json:"slug"`
	Quantity int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartLineDTO struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
	ImageURL  string  `json:"image_url,omitempty"`
	Duration  string  `json:"duration,omitempty"`
}

type CartDTO struct {
	Items     []CartLineDTO `json:"items"`
	Total     float64       `json:"total"`
	ItemCount int           `json:"item_count"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := h.store(ctx, w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, cartDTO(store))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := h.store(ctx, w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Slug == "" {
		respondError(w, http.StatusBadRequest, "missing_slug", "slug is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	// Price and name are snapshotted into the cart line here, not re-fetched
	// at checkout.
	product, err := h.catalog.GetProductBySlug(ctx, req.Slug)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		h.log.Error("catalog lookup failed", zap.String("slug", req.Slug), zap.Error(err))
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "could not load product")
		return
	}
	if !product.IsActive {
		respondError(w, http.StatusBadRequest, "product_unavailable", "product is not available")
		return
	}

	if err := store.AddItem(ctx, *product, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
			return
		}
		h.log.Error("add item failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not update cart")
		return
	}

	respondJSON(w, http.StatusCreated, cartDTO(store))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := h.store(ctx, w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Zero or negative quantity removes the line.
	if err := store.UpdateQuantity(ctx, productID, req.Quantity); err != nil {
		h.log.Error("update quantity failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not update cart")
		return
	}

	respondJSON(w, http.StatusOK, cartDTO(store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := h.store(ctx, w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := store.RemoveItem(ctx, productID); err != nil {
		h.log.Error("remove item failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not update cart")
		return
	}

	respondJSON(w, http.StatusOK, cartDTO(store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := h.store(ctx, w, r)
	if !ok {
		return
	}

	if err := store.Clear(ctx); err != nil {
		h.log.Error("clear cart failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not clear cart")
		return
	}

	respondJSON(w, http.StatusOK, cartDTO(store))
}

func (h *CartHandler) store(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no cart session")
		return nil, false
	}

	store, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		h.log.Error("failed to open cart session",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return nil, false
	}
	return store, true
}

// cartDTO rounds money to two digits at this presentation edge only; the
// store keeps full precision.
func cartDTO(store *cart.Store) CartDTO {
	lines := store.Lines()
	dto := CartDTO{
		Items:     make([]CartLineDTO, 0, len(lines)),
		Total:     store.Total().Round(2).InexactFloat64(),
		ItemCount: store.ItemCount(),
	}
	for _, line := range lines {
		dto.Items = append(dto.Items, lineDTO(line))
	}
	return dto
}

func lineDTO(line domain.CartLine) CartLineDTO {
	return CartLineDTO{
		ProductID: line.ProductID,
		Name:      line.Name,
		UnitPrice: line.UnitPrice.Round(2).InexactFloat64(),
		Quantity:  line.Quantity,
		Subtotal:  line.Subtotal().Round(2).InexactFloat64(),
		ImageURL:  line.ImageURL,
		Duration:  line.Duration,
	}
}
