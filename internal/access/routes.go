// Package access decides which views an identity may reach.
package access

import (
	"net/url"
	"strings"

	"storefront/internal/model"
)

// Surface groups routes by who may see them.
type Surface int

const (
	SurfacePublic Surface = iota + 1
	SurfaceBuyer
	SurfaceSeller
	SurfaceAdmin
)

func (s Surface) String() string {
	switch s {
	case SurfacePublic:
		return "public"
	case SurfaceBuyer:
		return "buyer"
	case SurfaceSeller:
		return "seller"
	case SurfaceAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Well-known paths.
const (
	PathHome         = "/"
	PathRegister     = "/register"
	PathBuyerLogin   = "/buyer-login"
	PathSellerLogin  = "/seller-login"
	PathAdminLogin   = "/admin"
	PathCart         = "/buyers/cart"
	PathCheckout     = "/buyers/checkout"
	PathOrderDetails = "/buyers/order-details"
	PathOrders       = "/buyers/orders"

	// ReturnParam carries the path to come back to after logging in.
	ReturnParam = "return_to"
)

const (
	buyerRoot  = "/buyers"
	sellerRoot = "/seller"
	adminRoot  = "/admin/dashboard"
	homeLeaf   = "/dashboard-home"
)

// Route is one entry of the view table.
type Route struct {
	Path    string
	Surface Surface
	Title   string
	// Placeholder routes exist for role gating only and render no content.
	Placeholder bool
}

var routes = []Route{
	{Path: PathHome, Surface: SurfacePublic, Title: "Home"},
	{Path: "/about", Surface: SurfacePublic, Title: "About", Placeholder: true},
	{Path: "/categories", Surface: SurfacePublic, Title: "Categories", Placeholder: true},
	{Path: "/deals", Surface: SurfacePublic, Title: "Deals", Placeholder: true},
	{Path: "/contact", Surface: SurfacePublic, Title: "Contact", Placeholder: true},
	{Path: PathRegister, Surface: SurfacePublic, Title: "Register"},
	{Path: PathBuyerLogin, Surface: SurfacePublic, Title: "Buyer login"},
	{Path: PathSellerLogin, Surface: SurfacePublic, Title: "Seller login"},
	{Path: PathAdminLogin, Surface: SurfacePublic, Title: "Admin login"},

	{Path: buyerRoot + homeLeaf, Surface: SurfaceBuyer, Title: "Dashboard"},
	{Path: buyerRoot + "/clothes", Surface: SurfaceBuyer, Title: "Clothes", Placeholder: true},
	{Path: buyerRoot + "/cosmetics", Surface: SurfaceBuyer, Title: "Cosmetics", Placeholder: true},
	{Path: buyerRoot + "/electronics", Surface: SurfaceBuyer, Title: "Electronics", Placeholder: true},
	{Path: buyerRoot + "/sports", Surface: SurfaceBuyer, Title: "Sports", Placeholder: true},
	{Path: buyerRoot + "/profile", Surface: SurfaceBuyer, Title: "Profile", Placeholder: true},
	{Path: buyerRoot + "/notifications", Surface: SurfaceBuyer, Title: "Notifications", Placeholder: true},
	{Path: PathCart, Surface: SurfaceBuyer, Title: "Cart"},
	{Path: PathCheckout, Surface: SurfaceBuyer, Title: "Checkout"},
	{Path: PathOrderDetails, Surface: SurfaceBuyer, Title: "Order details"},
	{Path: PathOrders, Surface: SurfaceBuyer, Title: "My orders"},

	{Path: sellerRoot + homeLeaf, Surface: SurfaceSeller, Title: "Dashboard", Placeholder: true},
	{Path: sellerRoot + "/clothes", Surface: SurfaceSeller, Title: "Clothes", Placeholder: true},
	{Path: sellerRoot + "/cosmetics", Surface: SurfaceSeller, Title: "Cosmetics", Placeholder: true},
	{Path: sellerRoot + "/electronics", Surface: SurfaceSeller, Title: "Electronics", Placeholder: true},
	{Path: sellerRoot + "/sports", Surface: SurfaceSeller, Title: "Sports", Placeholder: true},
	{Path: sellerRoot + "/orders", Surface: SurfaceSeller, Title: "Orders", Placeholder: true},
	{Path: sellerRoot + "/analytics", Surface: SurfaceSeller, Title: "Analytics", Placeholder: true},
	{Path: sellerRoot + "/earnings", Surface: SurfaceSeller, Title: "Earnings", Placeholder: true},
	{Path: sellerRoot + "/notifications", Surface: SurfaceSeller, Title: "Notifications", Placeholder: true},
	{Path: sellerRoot + "/profile-settings", Surface: SurfaceSeller, Title: "Profile settings", Placeholder: true},

	{Path: adminRoot + homeLeaf, Surface: SurfaceAdmin, Title: "Dashboard", Placeholder: true},
	{Path: adminRoot + "/sellers", Surface: SurfaceAdmin, Title: "Sellers", Placeholder: true},
	{Path: adminRoot + "/buyers", Surface: SurfaceAdmin, Title: "Buyers", Placeholder: true},
	{Path: adminRoot + "/orders", Surface: SurfaceAdmin, Title: "Orders", Placeholder: true},
	{Path: adminRoot + "/analytics", Surface: SurfaceAdmin, Title: "Analytics", Placeholder: true},
	{Path: adminRoot + "/earnings", Surface: SurfaceAdmin, Title: "Earnings", Placeholder: true},
	{Path: adminRoot + "/notification-management", Surface: SurfaceAdmin, Title: "Notifications", Placeholder: true},
}

// Routes returns a copy of the view table.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// HomePath is the dashboard home of role.
func HomePath(role model.Role) string {
	switch role {
	case model.RoleBuyer:
		return buyerRoot + homeLeaf
	case model.RoleSeller:
		return sellerRoot + homeLeaf
	case model.RoleAdmin:
		return adminRoot + homeLeaf
	default:
		return PathHome
	}
}

// LoginPath is the login surface of role.
func LoginPath(role model.Role) string {
	switch role {
	case model.RoleBuyer:
		return PathBuyerLogin
	case model.RoleSeller:
		return PathSellerLogin
	case model.RoleAdmin:
		return PathAdminLogin
	default:
		return PathBuyerLogin
	}
}

// WithReturn appends the return path to target.
func WithReturn(target, returnTo string) string {
	if returnTo == "" {
		return target
	}
	return target + "?" + ReturnParam + "=" + url.QueryEscape(returnTo)
}

// SafeReturn accepts only local absolute paths as return targets.
func SafeReturn(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return raw, true
}

func roleFor(s Surface) model.Role {
	switch s {
	case SurfaceBuyer:
		return model.RoleBuyer
	case SurfaceSeller:
		return model.RoleSeller
	case SurfaceAdmin:
		return model.RoleAdmin
	default:
		return 0
	}
}
