// Package bridge drives a real handset through the HTTP agent running on it.
//
// The agent exposes:
//
//	POST /ringer-mode                       {"mode":"silent"|"normal"}
//	GET  /interruption-filter               {"filter":"none"|"all"}
//	POST /interruption-filter               {"filter":"none"|"all"}
//	GET  /permissions                       domain.PermissionState
//	POST /permissions/{permission}/request
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

const (
	breakerName      = "device-bridge"
	breakerThreshold = 5
	breakerCooldown  = 10 * time.Second
)

type ringerRequest struct {
	Mode domain.RingerMode `json:"mode"`
}

type filterBody struct {
	Filter domain.InterruptionFilter `json:"filter"`
}

// Client implements domain.Device against the on-device agent. Transport
// errors and 5xx responses count toward the circuit breaker; while it is
// open calls fail fast with domain.ErrCircuitOpen.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a client for the agent at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				logger.Warn("circuit breaker opened", "breaker", name, "from", from.String())
			case gobreaker.StateHalfOpen:
				logger.Info("circuit breaker half-open", "breaker", name)
			case gobreaker.StateClosed:
				logger.Info("circuit breaker closed", "breaker", name)
			}
		},
	}

	return &Client{
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// SetRingerMode asks the agent to switch the ringer.
func (c *Client) SetRingerMode(ctx context.Context, mode domain.RingerMode) error {
	_, err := c.do(ctx, http.MethodPost, "/ringer-mode", ringerRequest{Mode: mode})
	return err
}

// InterruptionFilter reads the current DND filter.
func (c *Client) InterruptionFilter(ctx context.Context) (domain.InterruptionFilter, error) {
	body, err := c.do(ctx, http.MethodGet, "/interruption-filter", nil)
	if err != nil {
		return domain.FilterUnknown, err
	}
	var resp filterBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.FilterUnknown, fmt.Errorf("%w: decode interruption filter: %v", domain.ErrDeviceAPI, err)
	}
	return resp.Filter, nil
}

// SetInterruptionFilter writes the DND filter.
func (c *Client) SetInterruptionFilter(ctx context.Context, f domain.InterruptionFilter) error {
	_, err := c.do(ctx, http.MethodPost, "/interruption-filter", filterBody{Filter: f})
	return err
}

// Permissions reads the device's permission surface.
func (c *Client) Permissions(ctx context.Context) (domain.PermissionState, error) {
	body, err := c.do(ctx, http.MethodGet, "/permissions", nil)
	if err != nil {
		return domain.PermissionState{}, err
	}
	var state domain.PermissionState
	if err := json.Unmarshal(body, &state); err != nil {
		return domain.PermissionState{}, fmt.Errorf("%w: decode permissions: %v", domain.ErrDeviceAPI, err)
	}
	return state, nil
}

// RequestPermission asks the agent to open the settings screen for p.
func (c *Client) RequestPermission(ctx context.Context, p domain.Permission) error {
	_, err := c.do(ctx, http.MethodPost, "/permissions/"+string(p)+"/request", nil)
	return err
}

// statusError is a non-2xx agent response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("agent returned %d", e.status)
	}
	return fmt.Sprintf("agent returned %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		req := c.http.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, err
		}

		status := resp.StatusCode()
		if status >= http.StatusInternalServerError {
			return nil, &statusError{status: status, body: strings.TrimSpace(resp.String())}
		}
		if status >= http.StatusBadRequest {
			// The agent is healthy and said no; this must not trip the breaker.
			return &statusError{status: status, body: strings.TrimSpace(resp.String())}, nil
		}
		return resp.Body(), nil
	})

	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", domain.ErrDeviceAPI, domain.ErrCircuitOpen)
		}
		c.logger.Warn("device agent call failed", "method", method, "path", path, "error", err, "latency", latency)
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrDeviceAPI, method, path, err)
	}

	if se, ok := result.(*statusError); ok {
		if se.status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrPermissionDenied, method, path, se)
		}
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrDeviceAPI, method, path, se)
	}

	c.logger.Debug("device agent call", "method", method, "path", path, "latency", latency)
	data, _ := result.([]byte)
	return data, nil
}
