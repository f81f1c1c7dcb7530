// Package orders renders the buyer's order history and order confirmations.
package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/model"
)

// ViewState distinguishes the outcomes a list or detail view can show.
type ViewState int

const (
	StateLoading ViewState = iota + 1
	StateAuthRequired
	StateEmpty
	StateFailed
	StateLoaded
	StateNotFound
)

func (s ViewState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthRequired:
		return "auth_required"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	case StateLoaded:
		return "loaded"
	case StateNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// API lists a user's orders.
type API interface {
	ListOrders(ctx context.Context, userID string) ([]model.Order, error)
}

// Identities returns the current identity.
type Identities interface {
	Current() *model.Identity
}

// HistoryView is what the order history shows.
type HistoryView struct {
	State   ViewState
	Orders  []model.Order
	Message string
	// LoginPath is set with StateAuthRequired.
	LoginPath string
	Retryable bool
}

// History fetches and caches the order list of the current identity.
type History struct {
	api        API
	identities Identities
	logger     zerolog.Logger

	mu    sync.Mutex
	gen   uint64
	owner string
	view  HistoryView
}

// NewHistory creates an order history.
func NewHistory(api API, identities Identities, logger zerolog.Logger) *History {
	return &History{
		api:        api,
		identities: identities,
		logger:     logger.With().Str("component", "order_history").Logger(),
		view:       HistoryView{State: StateLoading},
	}
}

// View returns the last applied result for the current identity.
func (h *History) View() HistoryView {
	identity := h.identities.Current()
	if identity == nil {
		return authRequired()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owner != identity.ID {
		return HistoryView{State: StateLoading}
	}
	return h.view
}

// Refresh fetches the list. A response that arrives after a newer refresh
// started is dropped and the newer view is returned instead.
func (h *History) Refresh(ctx context.Context) HistoryView {
	identity := h.identities.Current()
	if identity == nil {
		return authRequired()
	}

	h.mu.Lock()
	h.gen++
	gen := h.gen
	if h.owner != identity.ID {
		h.owner = identity.ID
		h.view = HistoryView{State: StateLoading}
	}
	h.mu.Unlock()

	list, err := h.api.ListOrders(ctx, identity.ID)
	view := h.toView(list, err)

	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.gen || h.owner != identity.ID {
		h.logger.Debug().Uint64("generation", gen).Uint64("latest", h.gen).Msg("Dropping stale order list")
		if h.owner != identity.ID {
			return HistoryView{State: StateLoading}
		}
		return h.view
	}

	h.view = view
	return view
}

func (h *History) toView(list []model.Order, err error) HistoryView {
	switch {
	case err == nil && len(list) == 0:
		return HistoryView{State: StateEmpty, Message: "You have not placed any orders yet."}
	case err == nil:
		sorted := make([]model.Order, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
		return HistoryView{State: StateLoaded, Orders: sorted}
	case model.IsAuth(err):
		return authRequired()
	default:
		h.logger.Warn().Err(err).Str("code", model.CodeOf(err)).Msg("Failed to load orders")
		msg := err.Error()
		if model.CodeOf(err) == model.ErrCodeInternalError {
			msg = "Could not load your orders."
		}
		return HistoryView{State: StateFailed, Message: msg, Retryable: true}
	}
}

func authRequired() HistoryView {
	return HistoryView{
		State:     StateAuthRequired,
		Message:   "Please log in to see your orders.",
		LoginPath: access.WithReturn(access.PathBuyerLogin, access.PathOrders),
	}
}
