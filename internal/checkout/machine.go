// Package checkout implements the two-step checkout wizard as a state machine.
package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/apiclient"
	"storefront/internal/model"
)

// State is a checkout step.
type State int

const (
	StateShippingInfo State = iota + 1
	StatePaymentInfo
	StateSubmitting
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateShippingInfo:
		return "shipping_info"
	case StatePaymentInfo:
		return "payment_info"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Draft is the unsaved form state collected across both steps.
type Draft struct {
	Shipping model.ShippingInfo   `json:"shipping"`
	Method   model.PaymentMethod  `json:"paymentMethod"`
	Payment  model.PaymentDetails `json:"payment"`
}

// OutcomeKind says what the caller should do after an action.
type OutcomeKind int

const (
	// OutcomeStay keeps the user on the current view.
	OutcomeStay OutcomeKind = iota
	// OutcomeNavigate moves on after Delay.
	OutcomeNavigate
	// OutcomeRedirect moves on immediately.
	OutcomeRedirect
)

// Outcome is the navigation side effect of a checkout action.
type Outcome struct {
	Kind  OutcomeKind
	Path  string
	Delay time.Duration
	Order *model.Order
}

// Snapshot is a consistent read of the machine for rendering.
type Snapshot struct {
	State       State
	Draft       Draft
	Error       string
	FieldErrors map[string]string
	Lines       []model.CartLine
	Totals      model.Totals
	Order       *model.Order
}

// Machine is one checkout attempt. All methods are safe for concurrent use.
type Machine struct {
	svc     *Service
	ownerID string
	logger  zerolog.Logger

	mu          sync.Mutex
	state       State
	draft       Draft
	errMsg      string
	fieldErrors map[string]string
	order       *model.Order

	// key is reused only for an identical resubmission after an outcome the
	// server may not have seen.
	key         string
	lastRequest *apiclient.OrderRequest
	replayable  bool
}

// State returns the current step.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IdempotencyKey is the key the next submission will carry unless the
// payload changes or the last attempt was definitively rejected.
func (m *Machine) IdempotencyKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// Snapshot returns the draft, errors and the cart estimate, or the server's
// order once confirmed.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:       m.state,
		Draft:       m.draft,
		Error:       m.errMsg,
		FieldErrors: copyFields(m.fieldErrors),
		Order:       m.order,
	}
	if m.order != nil {
		snap.Totals = m.order.Totals
	} else {
		snap.Lines, snap.Totals = m.svc.cart.View()
	}
	return snap
}

// UpdateShipping replaces the shipping fields. Only allowed on the shipping step.
func (m *Machine) UpdateShipping(info model.ShippingInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateShippingInfo {
		return model.ErrInvalidTransition
	}
	m.draft.Shipping = info
	return nil
}

// Continue advances to the payment step when every shipping field is valid.
func (m *Machine) Continue() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateShippingInfo {
		return model.ErrInvalidTransition
	}

	if fields := m.svc.validator.Shipping(m.draft.Shipping); len(fields) > 0 {
		m.fieldErrors = fields
		return model.NewValidationError(fields)
	}

	m.draft.Shipping = trimShipping(m.draft.Shipping)
	m.fieldErrors = nil
	m.transition(StatePaymentInfo)
	return nil
}

// Back returns to the shipping step keeping every entered value.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaymentInfo && m.state != StateFailed {
		return model.ErrInvalidTransition
	}
	m.errMsg = ""
	m.fieldErrors = nil
	m.transition(StateShippingInfo)
	return nil
}

// SelectPaymentMethod switches the payment method. Fields entered for other
// methods are kept but never submitted.
func (m *Machine) SelectPaymentMethod(method model.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.paymentEditable() {
		return model.ErrInvalidTransition
	}
	m.draft.Method = method
	m.fieldErrors = nil
	m.resumeFromFailure()
	return nil
}

// UpdatePayment replaces the payment fields.
func (m *Machine) UpdatePayment(details model.PaymentDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.paymentEditable() {
		return model.ErrInvalidTransition
	}
	m.draft.Payment = details
	m.resumeFromFailure()
	return nil
}

// PlaceOrder submits the draft. The lock is released during the network call;
// a second call while submitting is rejected.
func (m *Machine) PlaceOrder(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	switch m.state {
	case StateSubmitting:
		m.mu.Unlock()
		return Outcome{}, model.ErrSubmissionInProgress
	case StatePaymentInfo, StateFailed:
	default:
		m.mu.Unlock()
		return Outcome{}, model.ErrInvalidTransition
	}

	if fields := m.svc.validator.Payment(m.draft.Method, m.draft.Payment, m.draft.Shipping); len(fields) > 0 {
		m.fieldErrors = fields
		m.mu.Unlock()
		return Outcome{}, model.NewValidationError(fields)
	}

	lines, totals := m.svc.cart.View()
	if len(lines) == 0 {
		m.mu.Unlock()
		return Outcome{Kind: OutcomeRedirect, Path: access.PathCart}, model.ErrEmptyCart
	}

	req := BuildOrderRequest(lines, totals, m.draft)
	if m.lastRequest != nil && (!m.replayable || !reflect.DeepEqual(*m.lastRequest, req)) {
		m.key = uuid.NewString()
	}
	m.lastRequest = &req
	key := m.key
	method := m.draft.Method
	m.errMsg = ""
	m.fieldErrors = nil
	m.transition(StateSubmitting)
	m.mu.Unlock()

	m.logger.Info().
		Str("idempotency_key", key).
		Str("payment_method", string(method)).
		Int("lines", len(lines)).
		Str("total", totals.Total.StringFixed(2)).
		Msg("Submitting order")

	order, err := m.svc.api.CreateOrder(ctx, req, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.replayable = outcomeUnknown(err)
		m.errMsg = failureMessage(err)
		m.transition(StateFailed)
		m.logger.Warn().Err(err).Str("code", model.CodeOf(err)).Msg("Order submission failed")

		if model.IsAuth(err) {
			return Outcome{
				Kind: OutcomeRedirect,
				Path: access.WithReturn(access.PathBuyerLogin, access.PathCheckout),
			}, err
		}
		return Outcome{Kind: OutcomeStay}, err
	}

	// The order exists on the server, so the cart is cleared even if this
	// machine was abandoned while the request was in flight.
	m.svc.cart.Clear()
	m.order = order
	m.transition(StateConfirmed)
	m.svc.confirmed(m.ownerID, order)

	m.logger.Info().Str("order_number", order.OrderNumber).Msg("Order confirmed")

	return Outcome{
		Kind:  OutcomeNavigate,
		Path:  access.PathOrderDetails + "?order=" + url.QueryEscape(order.OrderNumber),
		Delay: m.svc.confirmDelay,
		Order: order,
	}, nil
}

func (m *Machine) paymentEditable() bool {
	return m.state == StatePaymentInfo || m.state == StateFailed
}

func (m *Machine) resumeFromFailure() {
	if m.state == StateFailed {
		m.errMsg = ""
		m.transition(StatePaymentInfo)
	}
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	m.svc.metrics.RecordCheckoutTransition(from.String(), to.String())
	m.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("Checkout transition")
}

// outcomeUnknown reports whether the server may have created the order
// despite the error: the request or its response was lost on the way.
func outcomeUnknown(err error) bool {
	if model.IsNetwork(err) {
		return true
	}
	var de *model.DomainError
	if errors.As(err, &de) {
		switch de.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

func failureMessage(err error) string {
	if model.CodeOf(err) == model.ErrCodeInternalError {
		return "Failed to place order. Please try again."
	}
	return err.Error()
}

func copyFields(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
