package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
	"storefront/internal/orders"
)

// MockOrderHistory is a mock implementation of OrderHistory.
type MockOrderHistory struct {
	mock.Mock
}

func (m *MockOrderHistory) Refresh(ctx context.Context) orders.HistoryView {
	args := m.Called(ctx)
	return args.Get(0).(orders.HistoryView)
}

// MockConfirmationReader is a mock implementation of ConfirmationReader.
type MockConfirmationReader struct {
	mock.Mock
}

func (m *MockConfirmationReader) View(ctx context.Context, number string) orders.ConfirmationView {
	args := m.Called(ctx, number)
	return args.Get(0).(orders.ConfirmationView)
}

func sampleOrder(number string) model.Order {
	return model.Order{
		OrderNumber: number,
		Status:      model.OrderStatus("on_hold"),
		Items: []model.OrderItem{
			{ProductID: "1", Name: "Lamp", UnitPrice: decimal.RequireFromString("40"), Quantity: 2},
		},
		Totals: model.Totals{
			Subtotal: decimal.RequireFromString("80"),
			Tax:      decimal.RequireFromString("6.4"),
			Shipping: decimal.RequireFromString("15"),
			Total:    decimal.RequireFromString("101.4"),
		},
		PaymentMethod: model.PaymentMpesa,
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestOrderHandler_List(t *testing.T) {
	tests := []struct {
		name           string
		view           orders.HistoryView
		expectedStatus int
		expectedState  string
		invalidated    bool
	}{
		{
			name:           "Loaded",
			view:           orders.HistoryView{State: orders.StateLoaded, Orders: []model.Order{sampleOrder("ORD-2"), sampleOrder("ORD-1")}},
			expectedStatus: http.StatusOK,
			expectedState:  "loaded",
		},
		{
			name:           "Empty",
			view:           orders.HistoryView{State: orders.StateEmpty, Message: "You have not placed any orders yet."},
			expectedStatus: http.StatusOK,
			expectedState:  "empty",
		},
		{
			name: "Auth required",
			view: orders.HistoryView{
				State:     orders.StateAuthRequired,
				Message:   "Please log in to see your orders.",
				LoginPath: "/buyer-login?return_to=%2Fbuyers%2Forders",
			},
			expectedStatus: http.StatusUnauthorized,
			expectedState:  "auth_required",
			invalidated:    true,
		},
		{
			name:           "Failed",
			view:           orders.HistoryView{State: orders.StateFailed, Message: "Network error", Retryable: true},
			expectedStatus: http.StatusBadGateway,
			expectedState:  "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := new(MockOrderHistory)
			history.On("Refresh", mock.Anything).Return(tt.view)
			ids := &staticIdentities{identity: buyer}

			h := NewOrderHandler(history, new(MockConfirmationReader), ids, zerolog.Nop())
			w := httptest.NewRecorder()
			h.List(w, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body historyResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedState, body.State)
			assert.Equal(t, tt.view.Message, body.Message)
			assert.Equal(t, tt.view.LoginPath, body.LoginPath)
			assert.Equal(t, tt.view.Retryable, body.Retryable)
			assert.Len(t, body.Orders, len(tt.view.Orders))
			assert.Equal(t, tt.invalidated, ids.Current() == nil)
			history.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_ListRendersServerValues(t *testing.T) {
	history := new(MockOrderHistory)
	history.On("Refresh", mock.Anything).Return(orders.HistoryView{
		State:  orders.StateLoaded,
		Orders: []model.Order{sampleOrder("ORD-1")},
	})

	h := NewOrderHandler(history, new(MockConfirmationReader), &staticIdentities{identity: buyer}, zerolog.Nop())
	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	var body historyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Orders, 1)
	got := body.Orders[0]
	assert.Equal(t, "on_hold", got.Status)
	assert.Equal(t, "mpesa", got.PaymentMethod)
	assert.Equal(t, totalsResponse{Subtotal: "80.00", Tax: "6.40", Shipping: "15.00", Total: "101.40"}, got.Totals)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "40.00", got.Items[0].Price)
	require.NotNil(t, got.CreatedAt)
	assert.True(t, got.CreatedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestOrderHandler_Details(t *testing.T) {
	placed := sampleOrder("ORD-7")

	tests := []struct {
		name           string
		query          string
		number         string
		view           orders.ConfirmationView
		expectedStatus int
		expectOrder    bool
	}{
		{
			name:           "Specific order",
			query:          "?order=ORD-7",
			number:         "ORD-7",
			view:           orders.ConfirmationView{State: orders.StateLoaded, Order: &placed},
			expectedStatus: http.StatusOK,
			expectOrder:    true,
		},
		{
			name:           "Latest confirmation",
			number:         "",
			view:           orders.ConfirmationView{State: orders.StateLoaded, Order: &placed},
			expectedStatus: http.StatusOK,
			expectOrder:    true,
		},
		{
			name:           "Not found",
			query:          "?order=ORD-404",
			number:         "ORD-404",
			view:           orders.ConfirmationView{State: orders.StateNotFound, Message: "We could not find that order."},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockConfirmationReader)
			reader.On("View", mock.Anything, tt.number).Return(tt.view)

			h := NewOrderHandler(new(MockOrderHistory), reader, &staticIdentities{identity: buyer}, zerolog.Nop())
			w := httptest.NewRecorder()
			h.Details(w, httptest.NewRequest(http.MethodGet, "/api/order-details"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body confirmationResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.expectOrder {
				require.NotNil(t, body.Order)
				assert.Equal(t, "ORD-7", body.Order.OrderNumber)
			} else {
				assert.Nil(t, body.Order)
				assert.NotEmpty(t, body.Message)
			}
			reader.AssertExpectations(t)
		})
	}
}
