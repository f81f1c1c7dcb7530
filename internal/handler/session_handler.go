package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/model"
	"storefront/internal/requestid"
	"storefront/internal/session"
)

// SessionProvider is the identity source the session endpoints drive.
type SessionProvider interface {
	Current() *model.Identity
	Login(ctx context.Context, email, password string, expected *model.Role) session.Result
	Register(ctx context.Context, name, email, password string) session.Result
	Logout(ctx context.Context)
}

// SessionHandler handles login, registration and logout.
type SessionHandler struct {
	provider SessionProvider
	logger   zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(provider SessionProvider, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		provider: provider,
		logger:   logger.With().Str("handler", "session").Logger(),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ReturnTo string `json:"returnTo"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *identityResponse `json:"user,omitempty"`
	Location      string            `json:"location,omitempty"`
}

// Me handles GET /api/session.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := h.provider.Current()
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: identity != nil,
		User:          newIdentityResponse(identity),
	})
}

// Login handles POST /api/session/login and POST /api/session/login/{role}.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var expected *model.Role
	if name := chi.URLParam(r, "role"); name != "" {
		role, err := model.ParseRole(name)
		if err != nil {
			writeError(w, r, model.NewDomainError(model.ErrCodeValidation, "unknown account type"), h.logger)
			return
		}
		expected = &role
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	res := h.provider.Login(r.Context(), req.Email, req.Password, expected)
	h.respond(w, r, res, req.ReturnTo)
}

// Register handles POST /api/session/register.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	res := h.provider.Register(r.Context(), req.Name, req.Email, req.Password)
	h.respond(w, r, res, "")
}

// Logout handles POST /api/session/logout.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.provider.Logout(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{Location: access.PathHome})
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, res session.Result, returnTo string) {
	if !res.OK {
		status := statusFor(res.Code)
		h.logger.Info().
			Str("code", res.Code).
			Int("status", status).
			Str("request_id", requestid.From(r.Context())).
			Msg("authentication failed")
		writeJSON(w, status, model.ErrorResponse{
			Error:         res.Code,
			Message:       res.Message,
			Fields:        res.Fields,
			CorrelationID: requestid.From(r.Context()),
		})
		return
	}

	location := access.HomePath(res.Identity.Role)
	if target, ok := access.SafeReturn(returnTo); ok {
		location = target
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		User:          newIdentityResponse(res.Identity),
		Location:      location,
	})
}
