// Package apiclient talks to the remote shop API.
// The server keeps the session in a cookie, so one Client holds one session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/requestid"
)

const (
	maxResponseBytes = 1 << 20

	// IdempotencyHeader lets the server de-duplicate retried order submissions.
	IdempotencyHeader = "Idempotency-Key"

	msgNetwork  = "Could not reach the shop. Check your connection and try again."
	msgServer   = "The shop could not complete the request. Please try again."
	msgAuth     = "Authentication required. Please log in again."
	msgForbid   = "You do not have access to this action."
	msgMalform  = "The shop sent a response we could not understand."
	msgTooBig   = "The shop sent a response that was too large to read."
	outcomeOK   = "ok"
	outcomeAuth = "unauthorized"
)

// ErrResponseTooLarge is wrapped by the error returned when a successful
// response body is larger than the client will buffer.
var ErrResponseTooLarge = errors.New("response body too large")

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables pacing
	RateBurst int
	Metrics   metrics.Recorder
	// Transport overrides the HTTP transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is the shop API client. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	jar     *sessionJar
	limiter *rate.Limiter
	metrics metrics.Recorder
	logger  zerolog.Logger
}

// New creates a Client with its own cookie jar.
func New(opts Options, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	return &Client{
		base: base,
		jar:  jar,
		http: &http.Client{
			Jar:       jar,
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		limiter: limiter,
		metrics: rec,
		logger:  logger.With().Str("component", "apiclient").Logger(),
	}, nil
}

// CurrentUser asks the server who owns the session cookie.
// A session without a user yields ErrNotAuthenticated.
func (c *Client) CurrentUser(ctx context.Context) (*model.Identity, error) {
	var resp currentUserResponse
	if err := c.do(ctx, "current_user", http.MethodGet, "/get_current_user", nil, nil, &resp); err != nil {
		return nil, err
	}
	if (resp.Authenticated != nil && !*resp.Authenticated) || resp.User == nil {
		return nil, model.ErrNotAuthenticated
	}
	return resp.User.identity()
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	Identity *model.Identity
	Redirect string
}

// Login posts credentials. A non-zero role selects the role-specific endpoint.
func (c *Client) Login(ctx context.Context, email, password string, role model.Role) (*LoginResult, error) {
	path := "/login"
	if role.Valid() {
		path = "/login/" + role.String()
	}

	var resp authResponse
	body := loginRequest{Email: email, Password: password}
	if err := c.do(ctx, "login", http.MethodPost, path, body, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, malformed(errors.New("login response carries no user"))
	}

	identity, err := resp.User.identity()
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: identity, Redirect: resp.Redirect}, nil
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	FullName string
	Email    string
	Password string
}

// Register creates a buyer account. The identity is nil when the server
// answers with a redirect only.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.Identity, string, error) {
	first, last := splitName(req.FullName)
	body := registerRequest{
		FullName:    req.FullName,
		FirstName:   first,
		SecondName:  last,
		Email:       req.Email,
		Password:    req.Password,
		AccountType: model.RoleBuyer.String(),
	}

	var resp authResponse
	if err := c.do(ctx, "register", http.MethodPost, "/register", body, nil, &resp); err != nil {
		return nil, "", err
	}
	if resp.User == nil {
		return nil, resp.Redirect, nil
	}

	identity, err := resp.User.identity()
	if err != nil {
		return nil, "", err
	}
	return identity, resp.Redirect, nil
}

// Logout ends the server session and forgets the local cookies for it.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, "logout", http.MethodPost, "/logout", nil, nil, nil)
	c.forgetCookies()
	return err
}

// CreateOrder submits a checkout. The key must stay the same across retries of one draft.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest, idempotencyKey string) (*model.Order, error) {
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{IdempotencyHeader: []string{idempotencyKey}}
	}

	var resp createOrderResponse
	if err := c.do(ctx, "checkout", http.MethodPost, "/checkout", req, headers, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, malformed(errors.New("checkout response carries no order"))
	}

	order, err := resp.Order.order()
	if err != nil {
		return nil, malformed(err)
	}
	return order, nil
}

// ListOrders returns the order history of userID.
func (c *Client) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	var resp listOrdersResponse
	path := "/orders/" + url.PathEscape(userID)
	if err := c.do(ctx, "orders", http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}

	orders := make([]model.Order, 0, len(resp.Orders))
	for i := range resp.Orders {
		order, err := resp.Orders[i].order()
		if err != nil {
			return nil, malformed(err)
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (c *Client) forgetCookies() {
	if err := c.jar.reset(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to reset session cookies")
	}
}

// sessionJar is a cookie jar that can be emptied while requests are in flight.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	j := &sessionJar{}
	if err := j.reset(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *sessionJar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// do performs one API call and classifies every failure into a *model.DomainError.
func (c *Client) do(ctx context.Context, endpoint, method, path string, in any, headers http.Header, out any) (err error) {
	start := time.Now()
	outcome := outcomeOK
	defer func() {
		if err != nil {
			outcome = outcomeFor(err)
		}
		c.metrics.ObserveAPICall(endpoint, outcome, time.Since(start))
	}()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return networkError(werr)
		}
	}

	var body io.Reader
	if in != nil {
		payload, merr := json.Marshal(in)
		if merr != nil {
			return fmt.Errorf("failed to encode %s request: %w", endpoint, merr)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestid.From(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("API call failed")
		return networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to read API response")
		return networkError(err)
	}
	oversized := len(raw) > maxResponseBytes
	if oversized {
		raw = raw[:maxResponseBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		derr := statusError(resp.StatusCode, raw)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("code", derr.Code).
			Msg("API call rejected")
		return derr
	}

	if oversized {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("limit_bytes", maxResponseBytes).
			Msg("API response exceeded size limit")
		return tooLarge(endpoint)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API call completed")

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return malformed(fmt.Errorf("empty %s response", endpoint))
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(err)
	}
	return nil
}

func statusError(status int, raw []byte) *model.DomainError {
	msg := serverMessage(raw)

	var de *model.DomainError
	switch status {
	case http.StatusUnauthorized:
		de = model.NewDomainError(model.ErrCodeUnauthorised, msgAuth)
	case http.StatusForbidden:
		de = model.NewDomainError(model.ErrCodeForbidden, msgForbid)
	default:
		de = model.NewDomainError(model.ErrCodeServer, msgServer)
	}
	if msg != "" {
		de.Message = msg
	}
	de.Status = status
	return de
}

// serverMessage extracts a human readable message from an error body.
func serverMessage(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		return body.Message
	}
	return ""
}

func networkError(err error) *model.DomainError {
	return &model.DomainError{Code: model.ErrCodeNetwork, Message: msgNetwork, Err: err}
}

func malformed(err error) *model.DomainError {
	return &model.DomainError{Code: model.ErrCodeNetwork, Message: msgMalform, Err: err}
}

func tooLarge(endpoint string) *model.DomainError {
	return &model.DomainError{
		Code:    model.ErrCodeNetwork,
		Message: msgTooBig,
		Err:     fmt.Errorf("%s response exceeds %d bytes: %w", endpoint, maxResponseBytes, ErrResponseTooLarge),
	}
}

func outcomeFor(err error) string {
	switch model.CodeOf(err) {
	case model.ErrCodeUnauthorised:
		return outcomeAuth
	case model.ErrCodeForbidden:
		return "forbidden"
	case model.ErrCodeNetwork:
		return "network_error"
	case model.ErrCodeServer:
		return "server_error"
	default:
		return "error"
	}
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
