package access

import (
	"path"
	"strings"

	"storefront/internal/model"
)

// Kind is the verdict of a route decision.
type Kind int

const (
	Allow Kind = iota + 1
	RedirectLogin
	RedirectHome
	Deny
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case Deny:
		return "deny"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Decision tells the caller what to do with a navigation.
type Decision struct {
	Kind Kind
	// Location is where to go instead; empty for Allow.
	Location string
	Route    Route
}

// Guard evaluates navigations against the view table.
type Guard struct {
	byPath  map[string]Route
	indexes map[string]Surface
}

// NewGuard builds a guard over the static view table.
func NewGuard() *Guard {
	g := &Guard{
		byPath: make(map[string]Route, len(routes)),
		indexes: map[string]Surface{
			buyerRoot:  SurfaceBuyer,
			sellerRoot: SurfaceSeller,
			adminRoot:  SurfaceAdmin,
		},
	}
	for _, r := range routes {
		g.byPath[r.Path] = r
	}
	return g
}

// Decide returns the verdict for identity (nil when logged out) navigating to p.
// Paths match case-insensitively.
func (g *Guard) Decide(identity *model.Identity, p string) Decision {
	clean := normalize(p)

	if surface, ok := g.indexes[clean]; ok {
		d := g.decideSurface(identity, surface, p)
		if d.Kind == Allow {
			return Decision{Kind: RedirectHome, Location: HomePath(roleFor(surface))}
		}
		return d
	}

	route, ok := g.byPath[clean]
	if !ok {
		return Decision{Kind: NotFound, Location: PathHome}
	}

	d := g.decideSurface(identity, route.Surface, p)
	d.Route = route
	return d
}

// Lookup returns the route registered for p.
func (g *Guard) Lookup(p string) (Route, bool) {
	r, ok := g.byPath[normalize(p)]
	return r, ok
}

func (g *Guard) decideSurface(identity *model.Identity, surface Surface, requested string) Decision {
	if surface == SurfacePublic {
		return Decision{Kind: Allow}
	}

	required := roleFor(surface)
	if identity == nil {
		return Decision{Kind: RedirectLogin, Location: WithReturn(LoginPath(required), requested)}
	}

	switch identity.Role {
	case model.RoleAdmin:
		if required != model.RoleAdmin {
			return Decision{Kind: RedirectHome, Location: HomePath(identity.Role)}
		}
		if !identity.IsAdmin() {
			return Decision{Kind: Deny, Location: WithReturn(PathAdminLogin, requested)}
		}
		return Decision{Kind: Allow}
	case model.RoleBuyer, model.RoleSeller:
		if identity.Role != required {
			return Decision{Kind: RedirectHome, Location: HomePath(identity.Role)}
		}
		return Decision{Kind: Allow}
	default:
		// An identity without a known role reaches nothing protected.
		return Decision{Kind: Deny, Location: WithReturn(LoginPath(required), requested)}
	}
}

func normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return PathHome
	}
	return strings.ToLower(path.Clean("/" + p))
}
