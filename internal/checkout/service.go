package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/apiclient"
	"storefront/internal/metrics"
	"storefront/internal/model"
)

// DefaultCountry pre-fills the shipping country.
const DefaultCountry = "Kenya"

// OrderAPI creates orders on the server.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req apiclient.OrderRequest, idempotencyKey string) (*model.Order, error)
}

// Cart is the part of the cart store checkout reads and clears.
type Cart interface {
	View() ([]model.CartLine, model.Totals)
	Clear()
}

// Identities returns the current identity.
type Identities interface {
	Current() *model.Identity
}

// ConfirmationSink receives every order the server accepted, with the id of
// the identity that placed it.
type ConfirmationSink interface {
	Record(ownerID string, order model.Order)
}

// Options tunes a Service.
type Options struct {
	ConfirmationDelay time.Duration
	Metrics           metrics.Recorder
	Confirmations     ConfirmationSink
}

// Service is the checkout entry point. It keeps at most one machine alive so
// that a draft survives a detour through the login page.
type Service struct {
	api          OrderAPI
	cart         Cart
	identities   Identities
	sink         ConfirmationSink
	validator    *Validator
	metrics      metrics.Recorder
	confirmDelay time.Duration
	logger       zerolog.Logger

	mu      sync.Mutex
	machine *Machine
}

// NewService creates a checkout service.
func NewService(api OrderAPI, cart Cart, identities Identities, opts Options, logger zerolog.Logger) *Service {
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		api:          api,
		cart:         cart,
		identities:   identities,
		sink:         opts.Confirmations,
		validator:    NewValidator(),
		metrics:      rec,
		confirmDelay: opts.ConfirmationDelay,
		logger:       logger.With().Str("service", "checkout").Logger(),
	}
}

// Enter opens the wizard. Logged-out users are sent to the buyer login with a
// return path, an empty cart yields ErrEmptyCart. An unfinished draft of the
// same user is resumed.
func (s *Service) Enter() (*Machine, Outcome, error) {
	identity := s.identities.Current()
	if identity == nil {
		return nil, Outcome{
			Kind: OutcomeRedirect,
			Path: access.WithReturn(access.PathBuyerLogin, access.PathCheckout),
		}, model.ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.machine; m != nil && m.ownerID == identity.ID {
		switch m.State() {
		case StateShippingInfo, StatePaymentInfo, StateSubmitting, StateFailed:
			return m, Outcome{Kind: OutcomeStay}, nil
		case StateConfirmed:
		}
	}
	s.machine = nil

	lines, _ := s.cart.View()
	if len(lines) == 0 {
		return nil, Outcome{Kind: OutcomeStay}, model.ErrEmptyCart
	}

	s.machine = s.newMachine(identity)
	s.logger.Info().Str("user_id", identity.ID).Int("lines", len(lines)).Msg("Checkout started")
	return s.machine, Outcome{Kind: OutcomeStay}, nil
}

// Current returns the live machine of the current identity, or nil.
func (s *Service) Current() *Machine {
	identity := s.identities.Current()
	if identity == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil || s.machine.ownerID != identity.ID {
		return nil
	}
	return s.machine
}

// Leave discards the draft.
func (s *Service) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = nil
}

func (s *Service) newMachine(identity *model.Identity) *Machine {
	first, last := identity.NameParts()
	return &Machine{
		svc:     s,
		ownerID: identity.ID,
		key:     uuid.NewString(),
		logger:  s.logger.With().Str("user_id", identity.ID).Logger(),
		state:   StateShippingInfo,
		draft: Draft{
			Shipping: model.ShippingInfo{
				FirstName: first,
				LastName:  last,
				Email:     identity.Email,
				Country:   DefaultCountry,
			},
			Method: model.PaymentCard,
		},
	}
}

func (s *Service) confirmed(ownerID string, order *model.Order) {
	if s.sink != nil {
		s.sink.Record(ownerID, *order)
	}
}
