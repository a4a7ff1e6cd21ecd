package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
	"github.com/couchcryptid/mute-zones-service/internal/observability"
	"github.com/couchcryptid/mute-zones-service/internal/ringer"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil))), srv
}

func TestSetRingerMode(t *testing.T) {
	var got map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ringer-mode", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, mux)

	require.NoError(t, c.SetRingerMode(context.Background(), domain.RingerSilent))
	assert.Equal(t, map[string]string{"mode": "silent"}, got)
}

func TestInterruptionFilter_RoundTrip(t *testing.T) {
	current := "all"
	mux := http.NewServeMux()
	mux.HandleFunc("GET /interruption-filter", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"filter":"`+current+`"}`)
	})
	mux.HandleFunc("POST /interruption-filter", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		current = body["filter"]
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	f, err := c.InterruptionFilter(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FilterAll, f)

	require.NoError(t, c.SetInterruptionFilter(ctx, domain.FilterNone))
	f, err = c.InterruptionFilter(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FilterNone, f)
}

func TestInterruptionFilter_BadBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"filter":"priority"}`)
	}))

	_, err := c.InterruptionFilter(context.Background())
	require.ErrorIs(t, err, domain.ErrDeviceAPI)
}

func TestPermissions(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/permissions", r.URL.Path)
		_, _ = io.WriteString(w, `{"write_settings":true,"notification_policy":false,"post_notifications":"not_required","listener_active":true}`)
	}))

	state, err := c.Permissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionState{
		WriteSettings:     true,
		PostNotifications: domain.GrantNotRequired,
		ListenerActive:    true,
	}, state)
}

func TestRequestPermission(t *testing.T) {
	var path string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		path = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))

	require.NoError(t, c.RequestPermission(context.Background(), domain.PermissionNotificationPolicy))
	assert.Equal(t, "/permissions/notification_policy/request", path)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"forbidden", http.StatusForbidden, domain.ErrPermissionDenied},
		{"not found", http.StatusNotFound, domain.ErrDeviceAPI},
		{"server error", http.StatusInternalServerError, domain.ErrDeviceAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			err := c.SetRingerMode(context.Background(), domain.RingerNormal)
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestTransportError(t *testing.T) {
	c, srv := newTestClient(t, http.NotFoundHandler())
	srv.Close()

	err := c.SetRingerMode(context.Background(), domain.RingerNormal)
	require.ErrorIs(t, err, domain.ErrDeviceAPI)
	assert.NotErrorIs(t, err, domain.ErrCircuitOpen)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	ctx := context.Background()

	for range breakerThreshold {
		err := c.SetRingerMode(ctx, domain.RingerSilent)
		require.ErrorIs(t, err, domain.ErrDeviceAPI)
		require.NotErrorIs(t, err, domain.ErrCircuitOpen)
	}

	err := c.SetRingerMode(ctx, domain.RingerSilent)
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	require.ErrorIs(t, err, domain.ErrDeviceAPI)
	assert.Equal(t, int32(breakerThreshold), hits.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	for range breakerThreshold + 2 {
		err := c.SetRingerMode(context.Background(), domain.RingerSilent)
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	}
	assert.Equal(t, int32(breakerThreshold+2), hits.Load())
}

func TestForbiddenWriteIsDeniedByController(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ringer-mode", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c, _ := newTestClient(t, mux)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := ringer.NewController(c, ringer.NewProbe(c, logger), clockwork.NewFakeClock(), time.Second, logger, observability.NewMetricsForTesting())

	zone := domain.Zone{Name: "office", RadiusMeters: 50}
	out := ctrl.Reconcile(context.Background(), &zone, domain.PermissionState{WriteSettings: true})

	assert.Equal(t, domain.OutcomeDenied, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrPermissionDenied)
	assert.NotErrorIs(t, out.Err, domain.ErrDeviceAPI)
	assert.Equal(t, domain.RingerUnknown, ctrl.Applied())
}
