package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/model"
)

// Identities returns the identity a request is evaluated against.
type Identities interface {
	Current() *model.Identity
}

// Navigation is the body written when a view request is not allowed.
type Navigation struct {
	Decision string `json:"decision"`
	Location string `json:"location"`
}

type decisionKey struct{}

// DecisionFrom returns the allowed decision stored by ViewGate.
func DecisionFrom(ctx context.Context) (access.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(access.Decision)
	return d, ok
}

// ViewGate evaluates every request below prefix as a navigation to the app
// path that follows it. Allowed requests continue with the decision in their
// context. Redirects answer 303 with the app path in Location; Deny answers
// 403 and unknown paths 404, both naming where to go instead.
func ViewGate(guard *access.Guard, identities Identities, prefix string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := strings.TrimPrefix(r.URL.Path, prefix)
			if target == "" {
				target = access.PathHome
			}
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}

			d := guard.Decide(identities.Current(), target)
			if d.Kind == access.Allow {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey{}, d)))
				return
			}

			logger.Debug().
				Str("path", target).
				Stringer("decision", d.Kind).
				Str("location", d.Location).
				Msg("navigation redirected")

			status := http.StatusSeeOther
			switch d.Kind {
			case access.Deny:
				status = http.StatusForbidden
			case access.NotFound:
				status = http.StatusNotFound
			case access.RedirectLogin, access.RedirectHome:
				w.Header().Set("Location", prefix+d.Location)
			case access.Allow:
			}
			writeJSON(w, status, Navigation{Decision: d.Kind.String(), Location: d.Location})
		})
	}
}

// RequireView lets a request through only when the current identity may open
// view. Action endpoints use it so they share the gating of the page they
// belong to.
func RequireView(guard *access.Guard, identities Identities, view string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := guard.Decide(identities.Current(), view)
			switch d.Kind {
			case access.Allow:
				next.ServeHTTP(w, r)
			case access.RedirectLogin:
				writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{
					Error:    model.ErrCodeUnauthorised,
					Message:  model.ErrNotAuthenticated.Message,
					Location: d.Location,
				})
			case access.RedirectHome, access.Deny, access.NotFound:
				writeJSON(w, http.StatusForbidden, model.ErrorResponse{
					Error:    model.ErrCodeForbidden,
					Message:  "You do not have access to this page",
					Location: d.Location,
				})
			}
		})
	}
}
