package api

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
	"strconv"
	"strings"
	"sync"
	"time"

	"fixora/internal/config"
	"fixora/internal/domain"
	"fixora/internal/metrics"
	"fixora/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxErrorBody = 64 << 10

// Client talks to the Fixora REST API. Session cookies set by the server
// are kept in a jar and sent back on every request; a bearer token is
// added when configured.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rateLimiter
	providers  domain.ProviderCache
	logger     *zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient builds a client from the api config section.
func NewClient(cfg config.APIConfig, logger *zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}, nil
}

// UseProviderCache configures optional caching of provider profiles.
func (c *Client) UseProviderCache(cache domain.ProviderCache) {
	c.providers = cache
}

// SetToken replaces the bearer token, e.g. after login. It is safe to call
// while requests are in flight.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ListMyBookings fetches one page of the customer's own bookings.
func (c *Client) ListMyBookings(ctx context.Context, req models.ListRequest) (*models.ListResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(req.Page, 1)))
	q.Set("perPage", strconv.Itoa(req.PageSize))
	q.Set("status", string(filterOrAll(req.Status)))
	if req.Query != "" {
		q.Set("q", req.Query)
	}

	var env myBookingsEnvelope
	if err := c.doJSON(ctx, "list_my_bookings", http.MethodGet, "/bookings/me", q, nil, &env); err != nil {
		return nil, err
	}

	pages := env.Meta.TotalPages
	if pages < 1 {
		pages = 1
	}
	return &models.ListResponse{
		Items:     nonNil(env.Data),
		Total:     env.Meta.Total,
		PageCount: pages,
		Counts:    env.Meta.Counts,
	}, nil
}

// ListProviderBookings returns every booking assigned to the session's
// provider. The endpoint is not paginated.
func (c *Client) ListProviderBookings(ctx context.Context) ([]*models.Booking, error) {
	var env bookingsEnvelope
	if err := c.doJSON(ctx, "list_provider_bookings", http.MethodGet, "/bookings/provider", nil, nil, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Data), nil
}

// ListAdminBookings fetches one page of all bookings.
func (c *Client) ListAdminBookings(ctx context.Context, req models.ListRequest) (*models.ListResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(req.Page, 1)))
	q.Set("limit", strconv.Itoa(req.PageSize))
	q.Set("search", req.Query)
	if f := filterOrAll(req.Status); f != models.FilterAll {
		q.Set("status", string(f))
	}

	var env adminBookingsEnvelope
	if err := c.doJSON(ctx, "list_admin_bookings", http.MethodGet, "/admin/bookings", q, nil, &env); err != nil {
		return nil, err
	}

	pages := env.Pagination.Pages
	if pages < 1 {
		pages = 1
	}
	return &models.ListResponse{
		Items:     nonNil(env.Data),
		Total:     env.Pagination.Total,
		PageCount: pages,
	}, nil
}

// CreateBooking validates and submits a new booking request.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(time.Now()); err != nil {
		return nil, err
	}

	var env bookingEnvelope
	if err := c.doJSON(ctx, "create_booking", http.MethodPost, "/bookings", nil, req, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &TransportError{Op: "create_booking", Message: "response carried no booking"}
	}
	return env.Data, nil
}

// UpdateStatus issues a status transition and returns the server record.
func (c *Client) UpdateStatus(ctx context.Context, id string, update models.StatusUpdate) (*models.Booking, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "booking id is required"}
	}

	var env bookingEnvelope
	path := "/bookings/" + url.PathEscape(id) + "/status"
	if err := c.doJSON(ctx, "update_status", http.MethodPatch, path, nil, update, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &TransportError{Op: "update_status", Message: "response carried no booking"}
	}
	return env.Data, nil
}

// RemoveFromMyList detaches a booking from the customer's own list.
func (c *Client) RemoveFromMyList(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Message: "booking id is required"}
	}
	return c.doJSON(ctx, "remove_my_booking", http.MethodDelete, "/bookings/me/"+url.PathEscape(id), nil, nil, nil)
}

// GetProvider fetches a provider profile, going through the cache when one
// is configured. Cache failures never fail the call.
func (c *Client) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	if c.providers != nil {
		cached, err := c.providers.GetProvider(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Str("provider_id", id).Msg("provider cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	var env providerEnvelope
	if err := c.doJSON(ctx, "get_provider", http.MethodGet, "/providers/"+url.PathEscape(id), nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("get_provider: %w", ErrNotFound)
	}

	if c.providers != nil {
		if err := c.providers.SetProvider(ctx, env.Data); err != nil {
			c.logger.Warn().Err(err).Str("provider_id", id).Msg("provider cache write failed")
		}
	}
	return env.Data, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.wait(ctx, op); err != nil {
		return err
	}

	endpoint := c.baseURL.JoinPath(path)
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			metrics.IncAPIRequest(op, "canceled")
			return ctx.Err()
		}
		metrics.IncAPIRequest(op, "transport_error")
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	log := c.logger.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Msg("api request failed")
		metrics.IncAPIRequest(op, strconv.Itoa(resp.StatusCode))
		return errorFromStatus(op, resp.StatusCode, data)
	}
	log.Msg("api request")
	metrics.IncAPIRequest(op, "ok")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &TransportError{Op: op, Message: "empty response body"}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func filterOrAll(f models.Filter) models.Filter {
	if f == "" {
		return models.FilterAll
	}
	return f
}

func nonNil(items []*models.Booking) []*models.Booking {
	out := make([]*models.Booking, 0, len(items))
	for _, b := range items {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}
