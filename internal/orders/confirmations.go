package orders

import (
	"context"
	"sync"

	"storefront/internal/model"
)

const maxConfirmations = 20

// ConfirmationView is what the order details page shows. Amounts are the
// server's, never recomputed.
type ConfirmationView struct {
	State     ViewState
	Order     *model.Order
	Message   string
	LoginPath string
}

// Confirmations remembers the orders the server accepted in this process,
// per identity. Only the current identity's orders are ever returned.
type Confirmations struct {
	identities Identities
	history    *History

	mu     sync.RWMutex
	orders map[string][]model.Order
}

// NewConfirmations creates the store. history is consulted for orders not
// placed in this process and may be nil.
func NewConfirmations(identities Identities, history *History) *Confirmations {
	return &Confirmations{
		identities: identities,
		history:    history,
		orders:     make(map[string][]model.Order),
	}
}

// Record keeps an order accepted for ownerID, newest last.
func (c *Confirmations) Record(ownerID string, order model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := append(c.orders[ownerID], order)
	if len(list) > maxConfirmations {
		list = list[len(list)-maxConfirmations:]
	}
	c.orders[ownerID] = list
}

// Get returns ownerID's order with the given number; an empty number means
// their most recent one.
func (c *Confirmations) Get(ownerID, number string) (model.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := c.orders[ownerID]
	if len(list) == 0 {
		return model.Order{}, false
	}
	if number == "" {
		return list[len(list)-1], true
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].OrderNumber == number {
			return list[i], true
		}
	}
	return model.Order{}, false
}

// View resolves the order to show to the current identity, falling back to
// the server's history.
func (c *Confirmations) View(ctx context.Context, number string) ConfirmationView {
	identity := c.identities.Current()
	if identity == nil {
		hv := authRequired()
		return ConfirmationView{State: StateAuthRequired, Message: hv.Message, LoginPath: hv.LoginPath}
	}

	if order, ok := c.Get(identity.ID, number); ok {
		return ConfirmationView{State: StateLoaded, Order: &order}
	}
	if c.history == nil || number == "" {
		return notFound()
	}

	hv := c.history.Refresh(ctx)
	switch hv.State {
	case StateAuthRequired:
		return ConfirmationView{State: StateAuthRequired, Message: hv.Message, LoginPath: hv.LoginPath}
	case StateFailed:
		return ConfirmationView{State: StateFailed, Message: hv.Message}
	case StateLoaded:
		for i := range hv.Orders {
			if hv.Orders[i].OrderNumber == number {
				order := hv.Orders[i]
				return ConfirmationView{State: StateLoaded, Order: &order}
			}
		}
	case StateLoading, StateEmpty, StateNotFound:
	}
	return notFound()
}

func notFound() ConfirmationView {
	return ConfirmationView{State: StateNotFound, Message: "We could not find that order."}
}
