package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FullName    string `json:"fullname"`
	FirstName   string `json:"firstname"`
	SecondName  string `json:"secondname"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"accountType"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type authResponse struct {
	User     *wireUser `json:"user"`
	Redirect string    `json:"redirect"`
}

type currentUserResponse struct {
	User          *wireUser `json:"user"`
	Authenticated *bool     `json:"authenticated"`
}

// flexString accepts a JSON string or number. The server emits numeric user ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type wireUser struct {
	ID          flexString `json:"id"`
	Email       string     `json:"email"`
	AccountType string     `json:"account_type"`
	Role        string     `json:"role"`
	FirstName   string     `json:"firstname"`
	SecondName  string     `json:"secondname"`
	FullName    string     `json:"fullname"`
	IsAdmin     bool       `json:"is_admin"`
}

// identity converts the server user. Unknown account types are rejected.
func (u *wireUser) identity() (*model.Identity, error) {
	accountType := u.AccountType
	if accountType == "" {
		accountType = u.Role
	}
	role, err := model.ParseRole(accountType)
	if err != nil {
		return nil, malformed(err)
	}
	if u.ID == "" {
		return nil, malformed(errors.New("user without id"))
	}

	name := strings.TrimSpace(u.FullName)
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.SecondName)
	}

	return &model.Identity{
		ID:          string(u.ID),
		Email:       u.Email,
		Role:        role,
		DisplayName: name,
		IsAdminFlag: u.IsAdmin,
	}, nil
}

// OrderRequest is the body of POST /checkout. Only the selected payment
// method's fields are set; the others are omitted from the wire.
type OrderRequest struct {
	Items         []OrderItemPayload `json:"items"`
	Subtotal      json.Number        `json:"subtotal"`
	Tax           json.Number        `json:"tax"`
	Shipping      json.Number        `json:"shipping"`
	Total         json.Number        `json:"total"`
	PaymentMethod string             `json:"payment_method"`
	ShippingInfo  model.ShippingInfo `json:"shipping_info"`

	CardNumber      string `json:"card_number,omitempty"`
	CardName        string `json:"card_name,omitempty"`
	Expiry          string `json:"expiry,omitempty"`
	CVV             string `json:"cvv,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	PaypillEmail    string `json:"paypill_email,omitempty"`
	PaypillPassword string `json:"paypill_password,omitempty"`
}

// OrderItemPayload is one submitted cart line.
type OrderItemPayload struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
	ImageURL string      `json:"image_url,omitempty"`
	Size     string      `json:"size,omitempty"`
	Color    string      `json:"color,omitempty"`
}

// Amount renders a money value with two decimals as a JSON number.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// Price renders a unit price exactly as a JSON number.
func Price(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type createOrderResponse struct {
	Order *wireOrder `json:"order"`
}

type listOrdersResponse struct {
	Orders []wireOrder `json:"orders"`
}

// wireOrder accepts both the persisted order shape and the session-cached shape.
type wireOrder struct {
	ID               flexString      `json:"id"`
	OrderNumber      string          `json:"order_number"`
	Status           string          `json:"status"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Shipping         decimal.Decimal `json:"shipping"`
	Total            decimal.Decimal `json:"total"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentMethodAlt string          `json:"paymentMethod"`
	CreatedAt        string          `json:"created_at"`
	Date             string          `json:"date"`
	Items            []wireOrderItem `json:"items"`
	ShippingInfo     *wireShipping   `json:"shipping_info"`
	ShippingAddress  *wireShipping   `json:"shipping_address"`
	ShippingInfoAlt  *wireShipping   `json:"shippingInfo"`
}

type wireOrderItem struct {
	ID          flexString      `json:"id"`
	ProductID   flexString      `json:"product_id"`
	Name        string          `json:"name"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
}

type wireShipping struct {
	FirstName    string `json:"first_name"`
	FirstNameAlt string `json:"firstName"`
	LastName     string `json:"last_name"`
	LastNameAlt  string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
}

func (o *wireOrder) order() (*model.Order, error) {
	number := firstNonEmpty(o.OrderNumber, string(o.ID))
	if number == "" {
		return nil, errors.New("order without number")
	}

	created, err := parseTimestamp(firstNonEmpty(o.CreatedAt, o.Date))
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", number, err)
	}

	items := make([]model.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, model.OrderItem{
			ProductID: firstNonEmpty(string(it.ProductID), string(it.ID)),
			Name:      firstNonEmpty(it.ProductName, it.Name),
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}

	order := &model.Order{
		OrderNumber:   number,
		Status:        model.OrderStatus(o.Status),
		Items:         items,
		PaymentMethod: model.PaymentMethod(firstNonEmpty(o.PaymentMethod, o.PaymentMethodAlt)),
		CreatedAt:     created,
		Totals: model.Totals{
			Subtotal: o.Subtotal,
			Tax:      o.Tax,
			Shipping: o.Shipping,
			Total:    o.Total,
		},
	}

	for _, s := range []*wireShipping{o.ShippingInfo, o.ShippingAddress, o.ShippingInfoAlt} {
		if s != nil {
			order.ShippingInfo = s.shippingInfo()
			break
		}
	}

	return order, nil
}

func (s *wireShipping) shippingInfo() model.ShippingInfo {
	return model.ShippingInfo{
		FirstName: firstNonEmpty(s.FirstName, s.FirstNameAlt),
		LastName:  firstNonEmpty(s.LastName, s.LastNameAlt),
		Email:     s.Email,
		Phone:     s.Phone,
		Address:   s.Address,
		City:      s.City,
		State:     s.State,
		Zip:       firstNonEmpty(s.ZipCode, s.Zip),
		Country:   s.Country,
	}
}

// Timestamps come without a zone and are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123,
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
