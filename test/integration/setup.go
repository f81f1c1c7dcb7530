package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"storefront/internal/access"
	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/orders"
	"storefront/internal/pricing"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/session"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// SetupTestDB creates a PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	// Create connection pool
	dbConfig := config.DatabaseConfig{
		Enabled:         true,
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  4,
		MinConnections:  1,
		MaxConnLifetime: 300,
	}

	pool, err := database.NewPool(ctx, dbConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
	}
}

// ShopUser is an account known to the fake shop.
type ShopUser struct {
	ID          int
	Email       string
	Password    string
	AccountType string
	IsAdmin     bool
	FullName    string
}

// FakeShop is an in-memory stand-in for the remote shop API with cookie sessions.
type FakeShop struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     []ShopUser
	sessions  map[string]int
	orders    map[int][]map[string]any
	keys      map[string]map[string]any
	submitted []map[string]any
	nextOrder int

	// failCheckout answers the next checkout with this status when non-zero.
	failCheckout int
	// loseResponse stores the next order but answers 502, as a dropped
	// gateway response would.
	loseResponse bool
}

const sessionCookie = "session"

// NewFakeShop starts the fake shop with the given accounts.
func NewFakeShop(t *testing.T, users ...ShopUser) *FakeShop {
	t.Helper()

	f := &FakeShop{
		users:     users,
		sessions:  make(map[string]int),
		orders:    make(map[int][]map[string]any),
		keys:      make(map[string]map[string]any),
		nextOrder: 1000,
	}

	r := chi.NewRouter()
	r.Post("/login", f.login)
	r.Post("/login/{role}", f.login)
	r.Post("/logout", f.logout)
	r.Get("/get_current_user", f.currentUser)
	r.Post("/checkout", f.checkout)
	r.Get("/orders/{id}", f.listOrders)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// ExpireSessions forgets every session, as a server restart would.
func (f *FakeShop) ExpireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = make(map[string]int)
}

// FailNextCheckout answers the next checkout with status.
func (f *FakeShop) FailNextCheckout(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCheckout = status
}

// LoseNextResponse stores the next order but loses the reply.
func (f *FakeShop) LoseNextResponse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loseResponse = true
}

// Submitted returns every checkout payload received so far.
func (f *FakeShop) Submitted() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.submitted...)
}

func (f *FakeShop) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shopJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, body.Email) && u.Password == body.Password {
			token := uuid.NewString()
			f.sessions[token] = u.ID
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
			shopJSON(w, http.StatusOK, map[string]any{"user": userJSON(u), "redirect": "/dashboard"})
			return
		}
	}
	shopJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid email or password"})
}

func (f *FakeShop) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		f.mu.Lock()
		delete(f.sessions, c.Value)
		f.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	shopJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (f *FakeShop) currentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := f.sessionUser(r)
	if !ok {
		shopJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}
	shopJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": userJSON(u)})
}

func (f *FakeShop) checkout(w http.ResponseWriter, r *http.Request) {
	u, ok := f.sessionUser(r)
	if !ok {
		shopJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shopJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, payload)
	if f.failCheckout != 0 {
		status := f.failCheckout
		f.failCheckout = 0
		shopJSON(w, status, map[string]any{"error": "Checkout failed"})
		return
	}

	key := r.Header.Get(apiclient.IdempotencyHeader)
	if prev, ok := f.keys[key]; ok && key != "" {
		shopJSON(w, http.StatusCreated, map[string]any{"order": prev})
		return
	}

	f.nextOrder++
	items := make([]map[string]any, 0)
	if raw, ok := payload["items"].([]any); ok {
		for _, it := range raw {
			m, _ := it.(map[string]any)
			items = append(items, map[string]any{
				"product_id":   m["id"],
				"product_name": m["name"],
				"price":        m["price"],
				"quantity":     m["quantity"],
			})
		}
	}
	order := map[string]any{
		"id":               f.nextOrder,
		"order_number":     fmt.Sprintf("ORD-%d", f.nextOrder),
		"status":           "pending",
		"items":            items,
		"subtotal":         payload["subtotal"],
		"tax":              payload["tax"],
		"shipping":         payload["shipping"],
		"total":            payload["total"],
		"payment_method":   payload["payment_method"],
		"shipping_address": payload["shipping_info"],
		"created_at":       time.Date(2026, 5, 1, 9, 0, f.nextOrder%60, 0, time.UTC).Format("2006-01-02T15:04:05"),
	}
	f.orders[u.ID] = append(f.orders[u.ID], order)
	if key != "" {
		f.keys[key] = order
	}
	if f.loseResponse {
		f.loseResponse = false
		shopJSON(w, http.StatusBadGateway, map[string]any{"error": "Bad gateway"})
		return
	}
	shopJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (f *FakeShop) listOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := f.sessionUser(r)
	if !ok || fmt.Sprint(u.ID) != chi.URLParam(r, "id") {
		shopJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.orders[u.ID]
	if list == nil {
		list = []map[string]any{}
	}
	shopJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (f *FakeShop) sessionUser(r *http.Request) (ShopUser, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ShopUser{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.sessions[c.Value]
	if !ok {
		return ShopUser{}, false
	}
	for _, u := range f.users {
		if u.ID == id {
			return u, true
		}
	}
	return ShopUser{}, false
}

func userJSON(u ShopUser) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"email":        u.Email,
		"account_type": u.AccountType,
		"is_admin":     u.IsAdmin,
		"fullname":     u.FullName,
	}
}

func shopJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Stack is a fully wired storefront talking to a FakeShop.
type Stack struct {
	Handler  http.Handler
	Provider *session.Provider
	Cart     *cart.Store
}

// NewStack wires the storefront the same way cmd/storefront does. persister
// may be nil for an in-memory cart.
func NewStack(t *testing.T, shop *FakeShop, persister cart.Persister) *Stack {
	t.Helper()

	logger := zerolog.Nop()

	api, err := apiclient.New(apiclient.Options{BaseURL: shop.Server.URL, Timeout: 5 * time.Second}, logger)
	if err != nil {
		t.Fatalf("failed to create API client: %v", err)
	}

	provider := session.NewProvider(api, logger)

	var opts []cart.Option
	if persister != nil {
		opts = append(opts, cart.WithPersister(persister))
	}
	store := cart.NewStore(pricing.DefaultRules(), logger, opts...)
	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("failed to restore cart: %v", err)
	}
	provider.RestoreSession(context.Background())

	history := orders.NewHistory(api, provider, logger)
	confirmations := orders.NewConfirmations(provider, history)
	svc := checkout.NewService(api, store, provider, checkout.Options{
		ConfirmationDelay: 2 * time.Second,
		Confirmations:     confirmations,
	}, logger)

	mux := router.New(router.Deps{
		Guard:      access.NewGuard(),
		Identities: provider,
		Session:    handler.NewSessionHandler(provider, logger),
		Cart:       handler.NewCartHandler(store, logger),
		Checkout:   handler.NewCheckoutHandler(svc, provider, logger),
		Orders:     handler.NewOrderHandler(history, confirmations, provider, logger),
		Views:      handler.NewViewHandler(provider, logger),
	}, logger)

	return &Stack{Handler: mux, Provider: provider, Cart: store}
}

// CartRepository returns a snapshot store for cartID with its schema in place.
func (db *TestDB) CartRepository(t *testing.T, cartID string) repository.CartRepository {
	t.Helper()
	repo := repository.NewCartRepository(db.Pool, cartID, zerolog.Nop())
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to create cart schema: %v", err)
	}
	return repo
}
