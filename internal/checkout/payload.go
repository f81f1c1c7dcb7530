package checkout

import (
	"storefront/internal/apiclient"
	"storefront/internal/model"
)

// BuildOrderRequest assembles the order submission from a cart snapshot and
// a valid draft. Only the selected method's payment fields are copied.
func BuildOrderRequest(lines []model.CartLine, totals model.Totals, draft Draft) apiclient.OrderRequest {
	items := make([]apiclient.OrderItemPayload, 0, len(lines))
	for _, l := range lines {
		items = append(items, apiclient.OrderItemPayload{
			ID:       l.ProductID,
			Name:     l.Name,
			Price:    apiclient.Price(l.UnitPrice),
			Quantity: l.Quantity,
			ImageURL: l.ImageURL,
			Size:     l.Size,
			Color:    l.Color,
		})
	}

	shipping := trimShipping(draft.Shipping)
	payment := trimPayment(draft.Payment)

	req := apiclient.OrderRequest{
		Items:         items,
		Subtotal:      apiclient.Amount(totals.Subtotal),
		Tax:           apiclient.Amount(totals.Tax),
		Shipping:      apiclient.Amount(totals.Shipping),
		Total:         apiclient.Amount(totals.Total),
		PaymentMethod: string(draft.Method),
		ShippingInfo:  shipping,
	}

	switch draft.Method {
	case model.PaymentCard:
		req.CardNumber = payment.CardNumber
		req.CardName = payment.CardName
		req.Expiry = payment.Expiry
		req.CVV = payment.CVV
	case model.PaymentMpesa, model.PaymentEVC:
		req.PhoneNumber = mobileNumber(payment, shipping)
	case model.PaymentPaypill:
		req.PaypillEmail = payment.PaypillEmail
		req.PaypillPassword = payment.PaypillPassword
	}

	return req
}
