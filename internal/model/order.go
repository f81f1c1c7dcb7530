package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the server-defined lifecycle state of an order.
// Values the client does not know are carried verbatim.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// PaymentMethod selects which payment fields a checkout submits.
type PaymentMethod string

const (
	PaymentCard    PaymentMethod = "card"
	PaymentMpesa   PaymentMethod = "mpesa"
	PaymentEVC     PaymentMethod = "evc"
	PaymentPaypill PaymentMethod = "paypill"
)

// ParsePaymentMethod validates a payment method name.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentCard, PaymentMpesa, PaymentEVC, PaymentPaypill:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// IsMobileMoney reports whether the method is paid from a phone wallet.
func (m PaymentMethod) IsMobileMoney() bool {
	return m == PaymentMpesa || m == PaymentEVC
}

// ShippingInfo is the first checkout step.
type ShippingInfo struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	Zip       string `json:"zip" validate:"required"`
	Country   string `json:"country" validate:"required"`
}

// PaymentDetails holds the fields of every payment method. Only the fields of
// the selected method are validated and submitted.
type PaymentDetails struct {
	CardNumber      string `json:"cardNumber,omitempty"`
	CardName        string `json:"cardName,omitempty"`
	Expiry          string `json:"expiry,omitempty"`
	CVV             string `json:"cvv,omitempty"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	PaypillEmail    string `json:"paypillEmail,omitempty"`
	PaypillPassword string `json:"-"`
}

// OrderItem is the purchase-time snapshot of a cart line.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

// Order is the client's read-only projection of a server-persisted order.
type Order struct {
	OrderNumber   string        `json:"orderNumber"`
	Status        OrderStatus   `json:"status"`
	Items         []OrderItem   `json:"items"`
	Totals        Totals        `json:"totals"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	ShippingInfo  ShippingInfo  `json:"shippingInfo"`
	CreatedAt     time.Time     `json:"createdAt"`
}
