// Package session owns the single process-wide identity.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"storefront/internal/apiclient"
	"storefront/internal/model"
)

// API is the part of the shop API the provider needs.
type API interface {
	CurrentUser(ctx context.Context) (*model.Identity, error)
	Login(ctx context.Context, email, password string, role model.Role) (*apiclient.LoginResult, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*model.Identity, string, error)
	Logout(ctx context.Context) error
}

// Result is the outcome of a login or registration. Failures carry a
// human-readable Message and never an error.
type Result struct {
	OK       bool
	Identity *model.Identity
	Redirect string
	Code     string
	Message  string
	Fields   map[string]string
}

// Provider holds the current identity. Consumers read it through Current on
// every use and never keep their own copy.
type Provider struct {
	api    API
	logger zerolog.Logger

	mu       sync.RWMutex
	identity *model.Identity
}

// NewProvider creates a provider with no identity.
func NewProvider(api API, logger zerolog.Logger) *Provider {
	return &Provider{
		api:    api,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Current returns the identity, or nil when nobody is logged in.
func (p *Provider) Current() *model.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

// IsAuthenticated reports whether an identity is set.
func (p *Provider) IsAuthenticated() bool {
	return p.Current() != nil
}

// RestoreSession asks the server who owns the session cookie. Any failure
// means nobody is logged in.
func (p *Provider) RestoreSession(ctx context.Context) *model.Identity {
	identity, err := p.api.CurrentUser(ctx)
	if err != nil {
		if !model.IsAuth(err) {
			p.logger.Warn().Err(err).Str("code", model.CodeOf(err)).Msg("Session restore failed")
		}
		p.set(nil)
		return nil
	}

	p.set(identity)
	p.logger.Info().Str("user_id", identity.ID).Stringer("role", identity.Role).Msg("Session restored")
	return identity
}

// Login authenticates against the role's own endpoint when expected is
// non-nil. A server answer for a different role counts as a failure.
func (p *Provider) Login(ctx context.Context, email, password string, expected *model.Role) Result {
	email = strings.TrimSpace(email)
	if res, ok := validateCredentials(email, password); !ok {
		return res
	}

	var role model.Role
	if expected != nil {
		role = *expected
	}

	out, err := p.api.Login(ctx, email, password, role)
	if err != nil {
		p.logger.Info().Str("code", model.CodeOf(err)).Stringer("role", role).Msg("Login failed")
		return failure(err)
	}

	if expected != nil && out.Identity.Role != *expected {
		p.logger.Info().
			Stringer("expected", *expected).
			Stringer("actual", out.Identity.Role).
			Msg("Login rejected for wrong role")
		if lerr := p.api.Logout(ctx); lerr != nil {
			p.logger.Warn().Err(lerr).Msg("Failed to end wrong-role session")
		}
		p.set(nil)
		return Result{
			Code:    model.ErrCodeForbidden,
			Message: "This account is not a " + expected.String() + " account",
		}
	}

	p.set(out.Identity)
	p.logger.Info().Str("user_id", out.Identity.ID).Stringer("role", out.Identity.Role).Msg("Logged in")
	return Result{OK: true, Identity: out.Identity, Redirect: out.Redirect}
}

// Register creates a buyer account and logs it in.
func (p *Provider) Register(ctx context.Context, name, email, password string) Result {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return Result{
			Code:    model.ErrCodeValidation,
			Message: "Name is required",
			Fields:  map[string]string{"name": "Name is required"},
		}
	}
	if res, ok := validateCredentials(email, password); !ok {
		return res
	}

	identity, redirect, err := p.api.Register(ctx, apiclient.RegisterRequest{
		FullName: name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		p.logger.Info().Str("code", model.CodeOf(err)).Msg("Registration failed")
		return failure(err)
	}

	if identity == nil {
		// The server answered with a redirect only.
		buyer := model.RoleBuyer
		return p.Login(ctx, email, password, &buyer)
	}

	p.set(identity)
	p.logger.Info().Str("user_id", identity.ID).Msg("Registered")
	return Result{OK: true, Identity: identity, Redirect: redirect}
}

// Logout ends the server session and always clears the local identity.
func (p *Provider) Logout(ctx context.Context) {
	if err := p.api.Logout(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Server logout failed, clearing local session anyway")
	}
	p.set(nil)
}

// Invalidate drops the local identity after the server rejected the session.
func (p *Provider) Invalidate() {
	if p.Current() != nil {
		p.logger.Info().Msg("Session expired")
	}
	p.set(nil)
}

func (p *Provider) set(identity *model.Identity) {
	p.mu.Lock()
	p.identity = identity
	p.mu.Unlock()
}

func validateCredentials(email, password string) (Result, bool) {
	fields := make(map[string]string)
	if email == "" {
		fields["email"] = "Email is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) == 0 {
		return Result{}, true
	}
	return Result{
		Code:    model.ErrCodeValidation,
		Message: "Email and password are required",
		Fields:  fields,
	}, false
}

func failure(err error) Result {
	code := model.CodeOf(err)
	msg := err.Error()
	if code == model.ErrCodeInternalError {
		msg = "Something went wrong. Please try again."
	}
	return Result{Code: code, Message: msg}
}
