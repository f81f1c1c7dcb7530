package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"storefront/internal/checkout"
	"storefront/internal/model"
	"storefront/internal/requestid"
)

// CheckoutService opens and tracks the checkout wizard.
type CheckoutService interface {
	Enter() (*checkout.Machine, checkout.Outcome, error)
	Current() *checkout.Machine
	Leave()
}

// SessionInvalidator drops the identity after the server rejected it.
type SessionInvalidator interface {
	Invalidate()
}

// CheckoutHandler drives the two-step checkout.
type CheckoutHandler struct {
	service CheckoutService
	session SessionInvalidator
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service CheckoutService, session SessionInvalidator, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		session: session,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

type paymentMethodRequest struct {
	Method string `json:"paymentMethod"`
}

type paymentRequest struct {
	CardNumber      string `json:"cardNumber"`
	CardName        string `json:"cardName"`
	Expiry          string `json:"expiry"`
	CVV             string `json:"cvv"`
	PhoneNumber     string `json:"phoneNumber"`
	PaypillEmail    string `json:"paypillEmail"`
	PaypillPassword string `json:"paypillPassword"`
}

func (p paymentRequest) details() model.PaymentDetails {
	return model.PaymentDetails{
		CardNumber:      p.CardNumber,
		CardName:        p.CardName,
		Expiry:          p.Expiry,
		CVV:             p.CVV,
		PhoneNumber:     p.PhoneNumber,
		PaypillEmail:    p.PaypillEmail,
		PaypillPassword: p.PaypillPassword,
	}
}

// Enter handles POST /api/checkout. An unfinished draft is resumed.
func (h *CheckoutHandler) Enter(w http.ResponseWriter, r *http.Request) {
	m, outcome, err := h.service.Enter()
	if err != nil {
		h.fail(w, r, err, outcome)
		return
	}
	h.snapshot(w, http.StatusOK, m, nil)
}

// Get handles GET /api/checkout.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	h.snapshot(w, http.StatusOK, m, nil)
}

// Leave handles DELETE /api/checkout.
func (h *CheckoutHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.service.Leave()
	w.WriteHeader(http.StatusNoContent)
}

// UpdateShipping handles PUT /api/checkout/shipping.
func (h *CheckoutHandler) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var info model.ShippingInfo
	if err := decodeJSON(r, &info); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.apply(w, r, m, m.UpdateShipping(info))
}

// Continue handles POST /api/checkout/continue.
func (h *CheckoutHandler) Continue(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	h.apply(w, r, m, m.Continue())
}

// Back handles POST /api/checkout/back.
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	h.apply(w, r, m, m.Back())
}

// SelectPaymentMethod handles PUT /api/checkout/payment-method.
func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req paymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		writeError(w, r, model.NewValidationError(map[string]string{
			"paymentMethod": "Please choose a payment method",
		}), h.logger)
		return
	}

	h.apply(w, r, m, m.SelectPaymentMethod(method))
}

// UpdatePayment handles PUT /api/checkout/payment.
func (h *CheckoutHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.apply(w, r, m, m.UpdatePayment(req.details()))
}

// PlaceOrder handles POST /api/checkout/place-order. The response carries
// the navigation the renderer should perform next.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	outcome, err := m.PlaceOrder(r.Context())
	if err != nil {
		if model.IsAuth(err) {
			h.session.Invalidate()
		}
		h.fail(w, r, err, outcome)
		return
	}

	h.snapshot(w, http.StatusCreated, m, &outcome)
}

func (h *CheckoutHandler) machine(w http.ResponseWriter, r *http.Request) (*checkout.Machine, bool) {
	m := h.service.Current()
	if m == nil {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{
			Error:         "NOT_FOUND",
			Message:       "No checkout in progress",
			CorrelationID: requestid.From(r.Context()),
		})
		return nil, false
	}
	return m, true
}

func (h *CheckoutHandler) apply(w http.ResponseWriter, r *http.Request, m *checkout.Machine, err error) {
	if err != nil {
		h.fail(w, r, err, checkout.Outcome{})
		return
	}
	h.snapshot(w, http.StatusOK, m, nil)
}

func (h *CheckoutHandler) snapshot(w http.ResponseWriter, status int, m *checkout.Machine, outcome *checkout.Outcome) {
	resp := newCheckoutResponse(m.Snapshot())
	if outcome != nil {
		o := newOutcomeResponse(*outcome)
		resp.Outcome = &o
	}
	writeJSON(w, status, resp)
}

// fail writes err and, for redirects, where the renderer should go.
func (h *CheckoutHandler) fail(w http.ResponseWriter, r *http.Request, err error, outcome checkout.Outcome) {
	var de *model.DomainError
	if outcome.Kind != checkout.OutcomeRedirect || !errors.As(err, &de) {
		writeError(w, r, err, h.logger)
		return
	}

	h.logger.Info().
		Str("code", de.Code).
		Str("location", outcome.Path).
		Str("request_id", requestid.From(r.Context())).
		Msg("checkout redirected")

	writeJSON(w, statusFor(de.Code), model.ErrorResponse{
		Error:         de.Code,
		Message:       de.Message,
		Fields:        de.Fields,
		Location:      outcome.Path,
		CorrelationID: requestid.From(r.Context()),
	})
}
