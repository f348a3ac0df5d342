package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fixora/internal/config"
	"fixora/internal/models"
	"fixora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := NewClient(config.APIConfig{
		BaseURL: ts.URL + "/api",
		Timeout: 5 * time.Second,
		Token:   "test-token",
	}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListMyBookings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/me", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "9", r.URL.Query().Get("perPage"))
		assert.Equal(t, "upcoming", r.URL.Query().Get("status"))
		assert.Equal(t, "plumb", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"_id": "b1", "status": "pending", "serviceTitle": "Plumbing service", "scheduledAt": "2026-11-01T10:00:00Z"},
				{"_id": "b2", "status": "accepted"},
			},
			"meta": map[string]any{
				"total":      11,
				"totalPages": 2,
				"counts":     map[string]int{"all": 11, "upcoming": 4},
			},
		})
	})

	resp, err := c.ListMyBookings(context.Background(), models.ListRequest{
		Page: 2, PageSize: 9, Status: models.FilterUpcoming, Query: "plumb",
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "b1", resp.Items[0].ID)
	assert.Equal(t, 11, resp.Total)
	assert.Equal(t, 2, resp.PageCount)
	assert.Equal(t, 4, resp.Counts[models.FilterUpcoming])
}

func TestListMyBookingsWithoutCounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("q"))
		assert.Equal(t, "all", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})

	resp, err := c.ListMyBookings(context.Background(), models.ListRequest{Page: 1, PageSize: 9})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Nil(t, resp.Counts)
	assert.Equal(t, 1, resp.PageCount)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{"_id": "b1", "status": "on_hold"}},
		})
	})

	_, err := c.ListProviderBookings(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, models.ErrUnknownStatus)
}

func TestListAdminBookings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/bookings", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "asha", r.URL.Query().Get("search"))
		assert.Empty(t, r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data":       []map[string]any{{"_id": "b9", "status": "completed", "price": 800}},
			"pagination": map[string]int{"page": 3, "pages": 5, "total": 93},
		})
	})

	resp, err := c.ListAdminBookings(context.Background(), models.ListRequest{Page: 3, PageSize: 20, Query: "asha"})
	require.NoError(t, err)
	assert.Equal(t, 93, resp.Total)
	assert.Equal(t, 5, resp.PageCount)
	require.Len(t, resp.Items, 1)
	require.NotNil(t, resp.Items[0].Price)
	assert.Equal(t, 800.0, *resp.Items[0].Price)
}

func TestUpdateStatusSendsPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/bookings/b7/status", r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"completed","price":1200}`, string(raw))

		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"_id": "b7", "status": "completed", "price": 1200},
		})
	})

	price := 1200.0
	b, err := c.UpdateStatus(context.Background(), "b7", models.StatusUpdate{Status: models.StatusCompleted, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, b.Status)
}

func TestUpdateStatusOmitsPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"status":"accepted"}`, string(raw))
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"_id": "b1", "status": "accepted"}})
	})

	_, err := c.UpdateStatus(context.Background(), "b1", models.StatusUpdate{Status: models.StatusAccepted})
	require.NoError(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"conflict", http.StatusConflict, `{"error":"Booking already accepted"}`, func(t *testing.T, err error) {
			var cerr *ConflictError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "Booking already accepted", UserMessage(err, "fallback"))
			assert.True(t, IsConflict(err))
		}},
		{"validation", http.StatusBadRequest, `{"error":"price required"}`, func(t *testing.T, err error) {
			assert.True(t, IsValidation(err))
			assert.Equal(t, "price required", UserMessage(err, "fallback"))
		}},
		{"unauthenticated", http.StatusUnauthorized, `{"error":"login required"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUnauthenticated)
			var aerr *AuthError
			require.ErrorAs(t, err, &aerr)
			assert.False(t, aerr.Forbidden())
		}},
		{"forbidden", http.StatusForbidden, `{"message":"not your booking"}`, func(t *testing.T, err error) {
			var aerr *AuthError
			require.ErrorAs(t, err, &aerr)
			assert.True(t, aerr.Forbidden())
			assert.Equal(t, "not your booking", UserMessage(err, "fallback"))
		}},
		{"not found", http.StatusNotFound, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotFound)
		}},
		{"server error without message", http.StatusBadGateway, `<html>bad gateway</html>`, func(t *testing.T, err error) {
			var terr *TransportError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, "Failed to update booking status", UserMessage(err, "Failed to update booking status"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.UpdateStatus(context.Background(), "b1", models.StatusUpdate{Status: models.StatusAccepted})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestTransportErrorOnNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := NewClient(config.APIConfig{BaseURL: url, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.ListProviderBookings(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "Could not load bookings", UserMessage(err, "Could not load bookings"))
}

func TestCanceledContextIsNotTransportError(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListProviderBookings(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	var terr *TransportError
	assert.False(t, errors.As(err, &terr))
}

func TestRemoveFromMyList(t *testing.T) {
	var called atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/bookings/me/b3", r.URL.Path)
		called.Store(true)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	require.NoError(t, c.RemoveFromMyList(context.Background(), "b3"))
	assert.True(t, called.Load())

	assert.True(t, IsValidation(c.RemoveFromMyList(context.Background(), "")))
}

func TestCreateBooking(t *testing.T) {
	future := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	t.Run("ValidatesLocally", func(t *testing.T) {
		var hits atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

		_, err := c.CreateBooking(context.Background(), CreateBookingRequest{
			ProviderID: "p1", ServiceTitle: "Cleaning service", ScheduledAt: future, DurationHours: 6, Address: "x",
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "durationHours", verr.Field)
		assert.Zero(t, hits.Load())
	})

	t.Run("ProviderUnavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Provider not available at the selected time."})
		})
		_, err := c.CreateBooking(context.Background(), CreateBookingRequest{
			ProviderID: "p1", ServiceTitle: "Cleaning service", ScheduledAt: future, DurationHours: 2, Address: "12 MG Road",
		})
		assert.True(t, IsConflict(err))
	})

	t.Run("Created", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body CreateBookingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "p1", body.ProviderID)
			assert.True(t, future.Equal(body.ScheduledAt))
			writeJSON(w, http.StatusCreated, map[string]any{
				"data": map[string]any{"_id": "new", "status": "pending", "provider": "p1"},
			})
		})
		b, err := c.CreateBooking(context.Background(), CreateBookingRequest{
			ProviderID: "p1", ServiceTitle: "Cleaning service", ScheduledAt: future, DurationHours: 2, Address: "12 MG Road",
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, b.Status)
		assert.Equal(t, "p1", b.Provider.ID)
	})
}

func TestCreateBookingRequestValidate(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	valid := CreateBookingRequest{
		ProviderID: "p1", ServiceTitle: "Plumbing service", ScheduledAt: now.Add(time.Hour), DurationHours: 1, Address: "a",
	}
	require.NoError(t, valid.Validate(now))

	past := valid
	past.ScheduledAt = now.Add(-time.Minute)
	assert.True(t, IsValidation(past.Validate(now)))

	noAddress := valid
	noAddress.Address = "  "
	assert.True(t, IsValidation(noAddress.Validate(now)))

	assert.Equal(t, "Plumbing service", ServiceTitleFor(&models.Provider{Categories: []string{"Plumbing"}}))
	assert.Equal(t, "Service", ServiceTitleFor(&models.Provider{}))
}

func TestGetProviderUsesCache(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/providers/p1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"_id": "p1", "name": "Ravi", "categories": []string{"Electrician"}},
		})
	})
	c.UseProviderCache(repository.NewMemoryProviderCache(time.Minute))

	for i := 0; i < 3; i++ {
		p, err := c.GetProvider(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "Ravi", p.Name)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestCreateBookingMessage(t *testing.T) {
	assert.Equal(t, "You must be logged in to book this provider.",
		CreateBookingMessage(&AuthError{StatusCode: http.StatusUnauthorized, Message: "jwt expired"}))
	assert.Equal(t, "Provider not available at the selected time.", CreateBookingMessage(&ConflictError{}))
	assert.Equal(t, "Slot taken", CreateBookingMessage(&ConflictError{Message: "Slot taken"}))
	assert.Equal(t, "Invalid booking data.", CreateBookingMessage(&ValidationError{}))
	assert.Equal(t, "Failed to create booking. Try again.",
		CreateBookingMessage(&TransportError{Op: "create_booking", Err: errors.New("dial tcp: refused")}))
}
