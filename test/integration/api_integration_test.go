package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyerAccount  = ShopUser{ID: 7, Email: "ada@shop.test", Password: "secret-pass", AccountType: "buyer", FullName: "Ada Lovelace"}
	otherBuyer    = ShopUser{ID: 8, Email: "bob@shop.test", Password: "bob-pass", AccountType: "buyer", FullName: "Bob Marley"}
	sellerAccount = ShopUser{ID: 9, Email: "grace@shop.test", Password: "seller-pass", AccountType: "seller", FullName: "Grace Hopper"}
)

const shippingBody = `{"firstName":"Ada","lastName":"Lovelace","email":"ada@shop.test","phone":"+254 712 345678",
	"address":"1 Moi Avenue","city":"Nairobi","state":"Nairobi County","zip":"00100","country":"Kenya"}`

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestBuyerJourney(t *testing.T) {
	shop := NewFakeShop(t, buyerAccount, sellerAccount)
	stack := NewStack(t, shop, nil)
	h := stack.Handler

	// Logged out, the cart page sends the visitor to the buyer login.
	w := call(t, h, http.MethodGet, "/views/buyers/cart", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/views/buyer-login?return_to=%2Fbuyers%2Fcart", w.Header().Get("Location"))

	w = call(t, h, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The cart works without a session.
	w = call(t, h, http.MethodPost, "/api/cart/items", `{"product":{"id":"1","name":"Lamp","price":"40"},"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, h, http.MethodPost, "/api/cart/items", `{"product":{"id":"2","name":"Mug","price":"12.5"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode(t, w)
	assert.EqualValues(t, 3, cart["itemCount"])
	totals := cart["totals"].(map[string]any)
	assert.Equal(t, "92.50", totals["subtotal"])
	assert.Equal(t, "7.40", totals["tax"])
	assert.Equal(t, "15.00", totals["shipping"])
	assert.Equal(t, "114.90", totals["total"])

	// Login lands on the page the visitor was sent away from.
	w = call(t, h, http.MethodPost, "/api/session/login/buyer",
		`{"email":"ada@shop.test","password":"secret-pass","returnTo":"/buyers/cart"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode(t, w)
	assert.Equal(t, true, session["authenticated"])
	assert.Equal(t, "/buyers/cart", session["location"])

	w = call(t, h, http.MethodGet, "/views/buyers/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/cart", decode(t, w)["resource"])

	// Checkout steps.
	w = call(t, h, http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "shipping_info", decode(t, w)["state"])

	w = call(t, h, http.MethodPut, "/api/checkout/shipping", shippingBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, h, http.MethodPost, "/api/checkout/continue", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "payment_info", decode(t, w)["state"])

	w = call(t, h, http.MethodPut, "/api/checkout/payment-method", `{"paymentMethod":"mpesa"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, h, http.MethodPut, "/api/checkout/payment", `{"phoneNumber":"0712345678"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, h, http.MethodPost, "/api/checkout/place-order", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := decode(t, w)
	assert.Equal(t, "confirmed", placed["state"])
	order := placed["order"].(map[string]any)
	number := order["orderNumber"].(string)
	assert.Equal(t, "ORD-1001", number)
	outcome := placed["outcome"].(map[string]any)
	assert.Equal(t, "navigate", outcome["action"])
	assert.Equal(t, "/buyers/order-details?order=ORD-1001", outcome["path"])

	// The server got the priced snapshot and the selected method only.
	submissions := shop.Submitted()
	require.Len(t, submissions, 1)
	submitted := submissions[0]
	assert.Equal(t, "mpesa", submitted["payment_method"])
	assert.Equal(t, "0712345678", submitted["phone_number"])
	assert.NotContains(t, submitted, "card_number")
	assert.EqualValues(t, 114.9, submitted["total"])

	// The cart was cleared on success.
	w = call(t, h, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["itemCount"])

	// Confirmation and history both show the placed order.
	w = call(t, h, http.MethodGet, "/api/order-details?order="+number, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	details := decode(t, w)
	assert.Equal(t, "loaded", details["state"])
	assert.Equal(t, number, details["order"].(map[string]any)["orderNumber"])

	w = call(t, h, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	history := decode(t, w)
	assert.Equal(t, "loaded", history["state"])
	orders := history["orders"].([]any)
	require.Len(t, orders, 1)
	listed := orders[0].(map[string]any)
	assert.Equal(t, "114.90", listed["totals"].(map[string]any)["total"])
	assert.Equal(t, "Nairobi", listed["shippingInfo"].(map[string]any)["city"])

	// Logout closes the buyer surface again.
	w = call(t, h, http.MethodPost, "/api/session/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, h, http.MethodGet, "/views/buyers/orders", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestLoginWithWrongRole(t *testing.T) {
	shop := NewFakeShop(t, buyerAccount, sellerAccount)
	stack := NewStack(t, shop, nil)

	w := call(t, stack.Handler, http.MethodPost, "/api/session/login/buyer",
		`{"email":"grace@shop.test","password":"seller-pass"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w)["error"])
	assert.Nil(t, stack.Provider.Current())

	w = call(t, stack.Handler, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["authenticated"])
}

func TestLoginWithBadPassword(t *testing.T) {
	shop := NewFakeShop(t, buyerAccount)
	stack := NewStack(t, shop, nil)

	w := call(t, stack.Handler, http.MethodPost, "/api/session/login/buyer",
		`{"email":"ada@shop.test","password":"wrong-pass"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode(t, w)["message"])
}

func TestSellerKeptOffBuyerSurface(t *testing.T) {
	shop := NewFakeShop(t, sellerAccount)
	stack := NewStack(t, shop, nil)

	w := call(t, stack.Handler, http.MethodPost, "/api/session/login/seller",
		`{"email":"grace@shop.test","password":"seller-pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/seller/dashboard-home", decode(t, w)["location"])

	// A seller reaching the buyer surface is sent to their own home.
	w = call(t, stack.Handler, http.MethodGet, "/views/buyers/cart", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/views/seller/dashboard-home", w.Header().Get("Location"))
}

func TestSessionExpiresDuringSubmit(t *testing.T) {
	shop := NewFakeShop(t, buyerAccount)
	stack := NewStack(t, shop, nil)
	h := stack.Handler

	w := call(t, h, http.MethodPost, "/api/session/login/buyer", `{"email":"ada@shop.test","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, h, http.MethodPost, "/api/cart/items", `{"product":{"id":"1","name":"Lamp","price":"40"},"quantity":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	for _, step := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/checkout", ""},
		{http.MethodPut, "/api/checkout/shipping", shippingBody},
		{http.MethodPost, "/api/checkout/continue", ""},
		{http.MethodPut, "/api/checkout/payment-method", `{"paymentMethod":"card"}`},
		{http.MethodPut, "/api/checkout/payment", `{"cardNumber":"4242424242424242","cardName":"Ada Lovelace","expiry":"12/30","cvv":"123"}`},
	} {
		w = call(t, h, step.method, step.path, step.body)
		require.Equal(t, http.StatusOK, w.Code, "%s %s: %s", step.method, step.path, w.Body.String())
	}

	shop.ExpireSessions()

	w = call(t, h, http.MethodPost, "/api/checkout/place-order", "")
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "UNAUTHORIZED", body["error"])
	assert.Equal(t, "/buyer-login?return_to=%2Fbuyers%2Fcheckout", body["location"])
	assert.Nil(t, stack.Provider.Current())
	assert.False(t, stack.Cart.IsEmpty())

	// After logging back in the draft is resumed and the retry goes through.
	w = call(t, h, http.MethodPost, "/api/session/login/buyer", `{"email":"ada@shop.test","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, h, http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "failed", decode(t, w)["state"])

	w = call(t, h, http.MethodPost, "/api/checkout/place-order", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, stack.Cart.IsEmpty())

	// The rejected attempt never reached checkout on the server.
	assert.Len(t, shop.Submitted(), 1)
}

func TestServerRejectsOrder(t *testing.T) {
	shop := NewFakeShop(t, buyerAccount)
	stack := NewStack(t, shop, nil)
	h := stack.Handler

	call(t, h, http.MethodPost, "/api/session/login/buyer", `{"email":"ada@shop.test","password":"secret-pass"}`)
	call(t, h, http.MethodPost, "/api/cart/items", `{"product":{"id":"1","name":"Lamp","price":"40"}}`)
	call(t, h, http.MethodPost, "/api/checkout", "")
	call(t, h, http.MethodPut, "/api/checkout/shipping", shippingBody)
	call(t, h, http.MethodPost, "/api/checkout/continue", "")
	call(t, h, http.MethodPut, "/api/checkout/payment-method", `{"paymentMethod":"paypill"}`)
	w := call(t, h, http.MethodPut, "/api/checkout/payment", `{"paypillEmail":"ada@pay.test","paypillPassword":"pp-secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "pp-secret")

	shop.FailNextCheckout(http.StatusInternalServerError)

	w = call(t, h, http.MethodPost, "/api/checkout/place-order", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Checkout failed", decode(t, w)["message"])
	assert.False(t, stack.Cart.IsEmpty())
	assert.NotNil(t, stack.Provider.Current())
}

func TestRetryAfterLostResponse(t *testing.T) {
	shop := NewFakeShop(t, buyerAccount)
	stack := NewStack(t, shop, nil)
	h := stack.Handler

	call(t, h, http.MethodPost, "/api/session/login/buyer", `{"email":"ada@shop.test","password":"secret-pass"}`)
	call(t, h, http.MethodPost, "/api/cart/items", `{"product":{"id":"1","name":"Lamp","price":"40"}}`)
	call(t, h, http.MethodPost, "/api/checkout", "")
	call(t, h, http.MethodPut, "/api/checkout/shipping", shippingBody)
	call(t, h, http.MethodPost, "/api/checkout/continue", "")
	call(t, h, http.MethodPut, "/api/checkout/payment-method", `{"paymentMethod":"mpesa"}`)
	w := call(t, h, http.MethodPut, "/api/checkout/payment", `{"phoneNumber":"0712345678"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	shop.LoseNextResponse()

	w = call(t, h, http.MethodPost, "/api/checkout/place-order", "")
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	assert.False(t, stack.Cart.IsEmpty())

	w = call(t, h, http.MethodPost, "/api/checkout/place-order", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "ORD-1001", decode(t, w)["order"].(map[string]any)["orderNumber"])

	// Both attempts carried the same idempotency key, so one order exists.
	require.Len(t, shop.Submitted(), 2)
	w = call(t, h, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 1)
}

func TestConfirmationNotSharedAcrossBuyers(t *testing.T) {
	shop := NewFakeShop(t, buyerAccount, otherBuyer)
	stack := NewStack(t, shop, nil)
	h := stack.Handler

	call(t, h, http.MethodPost, "/api/session/login/buyer", `{"email":"ada@shop.test","password":"secret-pass"}`)
	call(t, h, http.MethodPost, "/api/cart/items", `{"product":{"id":"1","name":"Lamp","price":"40"}}`)
	call(t, h, http.MethodPost, "/api/checkout", "")
	call(t, h, http.MethodPut, "/api/checkout/shipping", shippingBody)
	call(t, h, http.MethodPost, "/api/checkout/continue", "")
	call(t, h, http.MethodPut, "/api/checkout/payment-method", `{"paymentMethod":"mpesa"}`)
	call(t, h, http.MethodPut, "/api/checkout/payment", `{"phoneNumber":"0712345678"}`)
	w := call(t, h, http.MethodPost, "/api/checkout/place-order", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, h, http.MethodPost, "/api/session/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, h, http.MethodPost, "/api/session/login/buyer", `{"email":"bob@shop.test","password":"bob-pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, path := range []string{"/api/order-details", "/api/order-details?order=ORD-1001"} {
		w = call(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.NotContains(t, w.Body.String(), "Moi Avenue", path)
		assert.NotContains(t, w.Body.String(), "ORD-1001", path)
	}
}
