package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storefront/internal/model"
)

// CartStore is the cart the endpoints mutate.
type CartStore interface {
	AddItem(product model.Product, quantity int) ([]model.CartLine, error)
	RemoveItem(productID string)
	UpdateQuantity(productID string, quantity int) bool
	Clear()
	View() ([]model.CartLine, model.Totals)
}

// CartHandler handles cart-related HTTP requests.
type CartHandler struct {
	cart   CartStore
	logger zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(cart CartStore, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		cart:   cart,
		logger: logger.With().Str("handler", "cart").Logger(),
	}
}

type addItemRequest struct {
	Product  model.Product `json:"product"`
	Quantity *int          `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newCartResponse(h.cart.View()))
}

// AddItem handles POST /api/cart/items. Quantity defaults to one.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if _, err := h.cart.AddItem(req.Product, quantity); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, newCartResponse(h.cart.View()))
}

// UpdateQuantity handles PUT /api/cart/items/{id}. Zero or less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, model.NewValidationError(map[string]string{"quantity": "Quantity is required"}), h.logger)
		return
	}

	if !h.cart.UpdateQuantity(chi.URLParam(r, "id"), *req.Quantity) {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{
			Error:   "NOT_FOUND",
			Message: "item is not in the cart",
		})
		return
	}

	writeJSON(w, http.StatusOK, newCartResponse(h.cart.View()))
}

// RemoveItem handles DELETE /api/cart/items/{id}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.cart.RemoveItem(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, newCartResponse(h.cart.View()))
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	writeJSON(w, http.StatusOK, newCartResponse(h.cart.View()))
}
