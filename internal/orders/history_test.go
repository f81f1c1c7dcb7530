package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
)

// MockAPI is a mock implementation of API.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

type identities struct {
	mu       sync.Mutex
	identity *model.Identity
}

func (i *identities) Current() *model.Identity {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.identity
}

func (i *identities) set(id *model.Identity) {
	i.mu.Lock()
	i.identity = id
	i.mu.Unlock()
}

var buyer = &model.Identity{ID: "7", Role: model.RoleBuyer}

func order(number string, created time.Time, total string) model.Order {
	return model.Order{
		OrderNumber: number,
		Status:      model.OrderProcessing,
		CreatedAt:   created,
		Totals:      model.Totals{Total: decimal.RequireFromString(total)},
	}
}

func TestHistory_Refresh(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		identity  *model.Identity
		list      []model.Order
		err       error
		wantState ViewState
		wantFirst string
	}{
		{name: "Logged out", wantState: StateAuthRequired},
		{name: "No orders yet", identity: buyer, list: []model.Order{}, wantState: StateEmpty},
		{
			name:      "Newest first",
			identity:  buyer,
			list:      []model.Order{order("ORD-1", jan, "10"), order("ORD-2", feb, "20")},
			wantState: StateLoaded,
			wantFirst: "ORD-2",
		},
		{
			name:      "Unauthorised",
			identity:  buyer,
			err:       &model.DomainError{Code: model.ErrCodeUnauthorised, Message: "Unauthorized"},
			wantState: StateAuthRequired,
		},
		{
			name:      "Network failure",
			identity:  buyer,
			err:       &model.DomainError{Code: model.ErrCodeNetwork, Message: "offline"},
			wantState: StateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(MockAPI)
			if tt.identity != nil {
				api.On("ListOrders", mock.Anything, tt.identity.ID).Return(tt.list, tt.err)
			}

			h := NewHistory(api, &identities{identity: tt.identity}, zerolog.Nop())
			view := h.Refresh(context.Background())

			assert.Equal(t, tt.wantState, view.State)
			if tt.wantFirst != "" {
				require.NotEmpty(t, view.Orders)
				assert.Equal(t, tt.wantFirst, view.Orders[0].OrderNumber)
			}
			assert.Equal(t, view, h.View())
			api.AssertExpectations(t)
		})
	}
}

func TestHistory_DistinctEmptyStates(t *testing.T) {
	auth := authRequired()
	assert.Equal(t, "/buyer-login?return_to=%2Fbuyers%2Forders", auth.LoginPath)
	assert.False(t, auth.Retryable)

	api := new(MockAPI)
	api.On("ListOrders", mock.Anything, "7").Return(nil, &model.DomainError{Code: model.ErrCodeServer, Message: "boom"})
	failed := NewHistory(api, &identities{identity: buyer}, zerolog.Nop()).Refresh(context.Background())
	assert.Equal(t, StateFailed, failed.State)
	assert.True(t, failed.Retryable)
	assert.Empty(t, failed.LoginPath)
}

func TestHistory_DropsStaleResponse(t *testing.T) {
	api := new(MockAPI)
	release := make(chan struct{})
	started := make(chan struct{})

	api.On("ListOrders", mock.Anything, "7").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]model.Order{order("OLD", time.Time{}, "1")}, nil).Once()
	api.On("ListOrders", mock.Anything, "7").
		Return([]model.Order{order("NEW", time.Time{}, "2")}, nil).Once()

	h := NewHistory(api, &identities{identity: buyer}, zerolog.Nop())

	staleResult := make(chan HistoryView, 1)
	go func() {
		staleResult <- h.Refresh(context.Background())
	}()
	<-started

	fresh := h.Refresh(context.Background())
	require.Equal(t, StateLoaded, fresh.State)
	assert.Equal(t, "NEW", fresh.Orders[0].OrderNumber)

	close(release)
	stale := <-staleResult
	assert.Equal(t, "NEW", stale.Orders[0].OrderNumber, "the older response must not win")
	assert.Equal(t, "NEW", h.View().Orders[0].OrderNumber)
}

func TestHistory_DoesNotLeakAcrossUsers(t *testing.T) {
	api := new(MockAPI)
	api.On("ListOrders", mock.Anything, "7").Return([]model.Order{order("ORD-7", time.Time{}, "1")}, nil)

	ids := &identities{identity: buyer}
	h := NewHistory(api, ids, zerolog.Nop())
	require.Equal(t, StateLoaded, h.Refresh(context.Background()).State)

	ids.set(&model.Identity{ID: "8", Role: model.RoleBuyer})
	assert.Equal(t, StateLoading, h.View().State)

	ids.set(nil)
	assert.Equal(t, StateAuthRequired, h.View().State)
}
