package handler

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/middleware"
	"storefront/internal/model"
)

// Identities returns the identity views are rendered for.
type Identities interface {
	Current() *model.Identity
}

// ViewHandler describes the page behind an allowed navigation. Renderers
// fetch the page's data from Resource.
type ViewHandler struct {
	identities Identities
	logger     zerolog.Logger
}

// NewViewHandler creates a new view handler.
func NewViewHandler(identities Identities, logger zerolog.Logger) *ViewHandler {
	return &ViewHandler{
		identities: identities,
		logger:     logger.With().Str("handler", "view").Logger(),
	}
}

type pageResponse struct {
	Path        string            `json:"path"`
	Title       string            `json:"title"`
	Surface     string            `json:"surface"`
	Placeholder bool              `json:"placeholder,omitempty"`
	Resource    string            `json:"resource,omitempty"`
	ReturnTo    string            `json:"returnTo,omitempty"`
	User        *identityResponse `json:"user,omitempty"`
}

var resources = map[string]string{
	access.PathRegister:    "/api/session/register",
	access.PathBuyerLogin:  "/api/session/login/buyer",
	access.PathSellerLogin: "/api/session/login/seller",
	access.PathAdminLogin:  "/api/session/login/admin",
	access.PathCart:        "/api/cart",
	access.PathCheckout:    "/api/checkout",
	access.PathOrders:      "/api/orders",
}

// Page handles GET /views/*. It must run behind middleware.ViewGate.
func (h *ViewHandler) Page(w http.ResponseWriter, r *http.Request) {
	d, ok := middleware.DecisionFrom(r.Context())
	if !ok {
		h.logger.Error().Str("path", r.URL.Path).Msg("view served without a route decision")
		writeError(w, r, model.NewDomainError(model.ErrCodeInternalError, "internal server error"), h.logger)
		return
	}

	query := r.URL.Query()
	resp := pageResponse{
		Path:        d.Route.Path,
		Title:       d.Route.Title,
		Surface:     d.Route.Surface.String(),
		Placeholder: d.Route.Placeholder,
		Resource:    resources[d.Route.Path],
		User:        newIdentityResponse(h.identities.Current()),
	}

	switch d.Route.Path {
	case access.PathOrderDetails:
		resp.Resource = "/api/order-details"
		if number := query.Get("order"); number != "" {
			resp.Resource += "?order=" + url.QueryEscape(number)
		}
	case access.PathBuyerLogin, access.PathSellerLogin, access.PathAdminLogin:
		if target, ok := access.SafeReturn(query.Get(access.ReturnParam)); ok {
			resp.ReturnTo = target
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
