package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/internal/model"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,18}[0-9]$`)

var fieldLabels = map[string]string{
	"firstName":       "First name",
	"lastName":        "Last name",
	"email":           "Email",
	"phone":           "Phone",
	"address":         "Address",
	"city":            "City",
	"state":           "State",
	"zip":             "ZIP code",
	"country":         "Country",
	"cardNumber":      "Card number",
	"cardName":        "Name on card",
	"expiry":          "Expiry date",
	"cvv":             "CVV",
	"phoneNumber":     "Mobile number",
	"paypillEmail":    "Paypill email",
	"paypillPassword": "Paypill password",
	"paymentMethod":   "Payment method",
}

type cardFields struct {
	CardNumber string `json:"cardNumber" validate:"required"`
	CardName   string `json:"cardName" validate:"required"`
	Expiry     string `json:"expiry" validate:"required"`
	CVV        string `json:"cvv" validate:"required"`
}

type mobileFields struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
}

type paypillFields struct {
	PaypillEmail    string `json:"paypillEmail" validate:"required,email"`
	PaypillPassword string `json:"paypillPassword" validate:"required"`
}

// Validator checks checkout drafts. Field errors are keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the checkout rules.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// The tag is static and the function valid, so registration cannot fail.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Shipping returns the problems with info, or nil.
func (c *Validator) Shipping(info model.ShippingInfo) map[string]string {
	return c.fieldErrors(trimShipping(info))
}

// Payment returns the problems with the fields the selected method needs.
// Fields of other methods are not looked at.
func (c *Validator) Payment(method model.PaymentMethod, details model.PaymentDetails, shipping model.ShippingInfo) map[string]string {
	details = trimPayment(details)

	switch method {
	case model.PaymentCard:
		return c.fieldErrors(cardFields{
			CardNumber: details.CardNumber,
			CardName:   details.CardName,
			Expiry:     details.Expiry,
			CVV:        details.CVV,
		})
	case model.PaymentMpesa, model.PaymentEVC:
		return c.fieldErrors(mobileFields{PhoneNumber: mobileNumber(details, shipping)})
	case model.PaymentPaypill:
		return c.fieldErrors(paypillFields{
			PaypillEmail:    details.PaypillEmail,
			PaypillPassword: details.PaypillPassword,
		})
	default:
		return map[string]string{"paymentMethod": "Select a payment method"}
	}
}

func (c *Validator) fieldErrors(s any) map[string]string {
	err := c.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Enter a valid email address"
	case "phone":
		return "Enter a valid phone number"
	default:
		return label + " is invalid"
	}
}

// mobileNumber falls back to the shipping phone when no wallet number was entered.
func mobileNumber(details model.PaymentDetails, shipping model.ShippingInfo) string {
	if details.PhoneNumber != "" {
		return details.PhoneNumber
	}
	return strings.TrimSpace(shipping.Phone)
}

func trimShipping(s model.ShippingInfo) model.ShippingInfo {
	return model.ShippingInfo{
		FirstName: strings.TrimSpace(s.FirstName),
		LastName:  strings.TrimSpace(s.LastName),
		Email:     strings.TrimSpace(s.Email),
		Phone:     strings.TrimSpace(s.Phone),
		Address:   strings.TrimSpace(s.Address),
		City:      strings.TrimSpace(s.City),
		State:     strings.TrimSpace(s.State),
		Zip:       strings.TrimSpace(s.Zip),
		Country:   strings.TrimSpace(s.Country),
	}
}

func trimPayment(p model.PaymentDetails) model.PaymentDetails {
	return model.PaymentDetails{
		CardNumber:      strings.TrimSpace(p.CardNumber),
		CardName:        strings.TrimSpace(p.CardName),
		Expiry:          strings.TrimSpace(p.Expiry),
		CVV:             strings.TrimSpace(p.CVV),
		PhoneNumber:     strings.TrimSpace(p.PhoneNumber),
		PaypillEmail:    strings.TrimSpace(p.PaypillEmail),
		PaypillPassword: p.PaypillPassword,
	}
}
