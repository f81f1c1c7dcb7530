package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"storefront/internal/orders"
)

// OrderHistory loads the order list of the current identity.
type OrderHistory interface {
	Refresh(ctx context.Context) orders.HistoryView
}

// ConfirmationReader resolves the order shown after checkout.
type ConfirmationReader interface {
	View(ctx context.Context, number string) orders.ConfirmationView
}

// OrderHandler handles order history and order details requests.
type OrderHandler struct {
	history       OrderHistory
	confirmations ConfirmationReader
	session       SessionInvalidator
	logger        zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(history OrderHistory, confirmations ConfirmationReader, session SessionInvalidator, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		history:       history,
		confirmations: confirmations,
		session:       session,
		logger:        logger.With().Str("handler", "order").Logger(),
	}
}

type historyResponse struct {
	State     string           `json:"state"`
	Orders    []*orderResponse `json:"orders"`
	Message   string           `json:"message,omitempty"`
	LoginPath string           `json:"loginPath,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}

type confirmationResponse struct {
	State     string         `json:"state"`
	Order     *orderResponse `json:"order,omitempty"`
	Message   string         `json:"message,omitempty"`
	LoginPath string         `json:"loginPath,omitempty"`
}

// List handles GET /api/orders. Every call refetches.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	view := h.history.Refresh(r.Context())
	if view.State == orders.StateAuthRequired {
		h.session.Invalidate()
	}

	resp := historyResponse{
		State:     view.State.String(),
		Orders:    make([]*orderResponse, 0, len(view.Orders)),
		Message:   view.Message,
		LoginPath: view.LoginPath,
		Retryable: view.Retryable,
	}
	for i := range view.Orders {
		resp.Orders = append(resp.Orders, newOrderResponse(&view.Orders[i]))
	}

	h.logger.Debug().Str("state", resp.State).Int("orders", len(resp.Orders)).Msg("order history served")
	writeJSON(w, viewStatus(view.State), resp)
}

// Details handles GET /api/order-details?order={number}. Without a number
// the most recent confirmation is returned.
func (h *OrderHandler) Details(w http.ResponseWriter, r *http.Request) {
	view := h.confirmations.View(r.Context(), r.URL.Query().Get("order"))
	if view.State == orders.StateAuthRequired {
		h.session.Invalidate()
	}

	writeJSON(w, viewStatus(view.State), confirmationResponse{
		State:     view.State.String(),
		Order:     newOrderResponse(view.Order),
		Message:   view.Message,
		LoginPath: view.LoginPath,
	})
}

func viewStatus(state orders.ViewState) int {
	switch state {
	case orders.StateAuthRequired:
		return http.StatusUnauthorized
	case orders.StateFailed:
		return http.StatusBadGateway
	case orders.StateNotFound:
		return http.StatusNotFound
	case orders.StateLoading, orders.StateEmpty, orders.StateLoaded:
		return http.StatusOK
	default:
		return http.StatusOK
	}
}
