package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/checkout"
	"storefront/internal/model"
)

// Amounts leave the view server as strings with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type identityResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
}

func newIdentityResponse(i *model.Identity) *identityResponse {
	if i == nil {
		return nil
	}
	return &identityResponse{
		ID:          i.ID,
		Email:       i.Email,
		Role:        i.Role.String(),
		DisplayName: i.DisplayName,
		IsAdmin:     i.IsAdmin(),
	}
}

type totalsResponse struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

func newTotalsResponse(t model.Totals) totalsResponse {
	return totalsResponse{
		Subtotal: money(t.Subtotal),
		Tax:      money(t.Tax),
		Shipping: money(t.Shipping),
		Total:    money(t.Total),
	}
}

type lineResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl,omitempty"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

type cartResponse struct {
	Lines     []lineResponse `json:"lines"`
	ItemCount int            `json:"itemCount"`
	Totals    totalsResponse `json:"totals"`
}

func newCartResponse(lines []model.CartLine, totals model.Totals) cartResponse {
	resp := cartResponse{
		Lines:  make([]lineResponse, 0, len(lines)),
		Totals: newTotalsResponse(totals),
	}
	for _, l := range lines {
		resp.ItemCount += l.Quantity
		resp.Lines = append(resp.Lines, lineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			ImageURL:  l.ImageURL,
			UnitPrice: money(l.UnitPrice),
			Quantity:  l.Quantity,
			LineTotal: money(l.LineTotal()),
			Size:      l.Size,
			Color:     l.Color,
		})
	}
	return resp
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

type orderResponse struct {
	OrderNumber   string              `json:"orderNumber"`
	Status        string              `json:"status"`
	Items         []orderItemResponse `json:"items"`
	Totals        totalsResponse      `json:"totals"`
	PaymentMethod string              `json:"paymentMethod"`
	ShippingInfo  model.ShippingInfo  `json:"shippingInfo"`
	CreatedAt     *time.Time          `json:"createdAt,omitempty"`
}

func newOrderResponse(o *model.Order) *orderResponse {
	if o == nil {
		return nil
	}
	resp := &orderResponse{
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		Items:         make([]orderItemResponse, 0, len(o.Items)),
		Totals:        newTotalsResponse(o.Totals),
		PaymentMethod: string(o.PaymentMethod),
		ShippingInfo:  o.ShippingInfo,
	}
	if !o.CreatedAt.IsZero() {
		created := o.CreatedAt
		resp.CreatedAt = &created
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.UnitPrice),
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}
	return resp
}

// outcomeResponse tells the renderer where to go after an action.
type outcomeResponse struct {
	Action  string `json:"action"`
	Path    string `json:"path,omitempty"`
	DelayMS int64  `json:"delayMs,omitempty"`
}

func newOutcomeResponse(o checkout.Outcome) outcomeResponse {
	switch o.Kind {
	case checkout.OutcomeNavigate:
		return outcomeResponse{Action: "navigate", Path: o.Path, DelayMS: o.Delay.Milliseconds()}
	case checkout.OutcomeRedirect:
		return outcomeResponse{Action: "redirect", Path: o.Path}
	case checkout.OutcomeStay:
	}
	return outcomeResponse{Action: "stay"}
}

type checkoutResponse struct {
	State       string             `json:"state"`
	Shipping    model.ShippingInfo `json:"shipping"`
	Method      string             `json:"paymentMethod"`
	Payment     paymentResponse    `json:"payment"`
	Error       string             `json:"error,omitempty"`
	FieldErrors map[string]string  `json:"fieldErrors,omitempty"`
	Cart        *cartResponse      `json:"cart,omitempty"`
	Order       *orderResponse     `json:"order,omitempty"`
	Outcome     *outcomeResponse   `json:"outcome,omitempty"`
}

// paymentResponse never echoes secrets back.
type paymentResponse struct {
	CardNumber   string `json:"cardNumber,omitempty"`
	CardName     string `json:"cardName,omitempty"`
	Expiry       string `json:"expiry,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	PaypillEmail string `json:"paypillEmail,omitempty"`
}

func newCheckoutResponse(s checkout.Snapshot) checkoutResponse {
	resp := checkoutResponse{
		State:    s.State.String(),
		Shipping: s.Draft.Shipping,
		Method:   string(s.Draft.Method),
		Payment: paymentResponse{
			CardNumber:   maskCard(s.Draft.Payment.CardNumber),
			CardName:     s.Draft.Payment.CardName,
			Expiry:       s.Draft.Payment.Expiry,
			PhoneNumber:  s.Draft.Payment.PhoneNumber,
			PaypillEmail: s.Draft.Payment.PaypillEmail,
		},
		Error:       s.Error,
		FieldErrors: s.FieldErrors,
		Order:       newOrderResponse(s.Order),
	}
	if s.Order == nil {
		cart := newCartResponse(s.Lines, s.Totals)
		resp.Cart = &cart
	}
	return resp
}

func maskCard(number string) string {
	digits := make([]rune, 0, len(number))
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	masked := make([]rune, len(digits))
	for i := range digits {
		if i < len(digits)-4 {
			masked[i] = '*'
		} else {
			masked[i] = digits[i]
		}
	}
	return string(masked)
}
