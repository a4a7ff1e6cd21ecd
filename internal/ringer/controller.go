// Package ringer decides the device audio state for a zone match and drives
// the device toward it through whichever permission pathway is usable.
//
// The Controller is not safe for concurrent use. Callers serialize
// invocations; see pipeline.Serial.
package ringer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
	"github.com/couchcryptid/mute-zones-service/internal/observability"
)

// DefaultTimeout bounds a single device call when none is configured.
const DefaultTimeout = 2 * time.Second

const (
	reasonNoPathway     = "no permission pathway available"
	reasonDeviceRefused = "device refused: permission denied"
)

// Controls is the part of the device the controller writes to.
type Controls interface {
	domain.AudioControl
	domain.InterruptionControl
}

// Controller reconciles the device ringer with the desired mode. It
// remembers the last mode it applied successfully and skips writes that
// would not change it.
type Controller struct {
	device  Controls
	probe   *Probe
	clock   clockwork.Clock
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	// applied is RingerUnknown until the first successful write. It only
	// changes after a write has completed successfully.
	applied domain.RingerMode
	// filterEngaged is set while a silent mode applied through the
	// interruption-filter pathway is in force. Restoring normal through a
	// ringer pathway must lift the filter as well.
	filterEngaged bool
}

// NewController creates a Controller. A non-positive timeout selects DefaultTimeout.
func NewController(device Controls, probe *Probe, clock clockwork.Clock, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		device:  device,
		probe:   probe,
		clock:   clock,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Applied returns the last successfully applied ringer mode.
func (c *Controller) Applied() domain.RingerMode {
	return c.applied
}

// Probe returns the controller's capability probe.
func (c *Controller) Probe() *Probe {
	return c.probe
}

// Reconcile drives the ringer toward silent when zone is non-nil and normal
// otherwise. perms must be a snapshot taken just before the call.
//
// Denied and Failed outcomes leave the applied mode untouched, so the next
// fix retries from scratch.
func (c *Controller) Reconcile(ctx context.Context, zone *domain.Zone, perms domain.PermissionState) domain.Outcome {
	target := domain.RingerNormal
	name := ""
	if zone != nil {
		target = domain.RingerSilent
		name = zone.Name
	}
	out := c.apply(ctx, target, perms)
	out.Zone = name
	c.record("reconcile", out)
	return out
}

// ApplyExplicitOverride forces the ringer silent (enable) or normal outside
// zone evaluation. It shares the applied mode with Reconcile, so whichever
// ran last wins.
func (c *Controller) ApplyExplicitOverride(ctx context.Context, enable bool) domain.Outcome {
	perms := c.probe.Probe(ctx)
	out := c.apply(ctx, domain.RingerModeFor(enable), perms)
	c.record("override", out)
	return out
}

// SetDoNotDisturb turns the interruption filter on (enable) or off. It needs
// notification policy access and skips the write when the device already
// has the requested filter.
func (c *Controller) SetDoNotDisturb(ctx context.Context, enable bool) domain.Outcome {
	perms := c.probe.Probe(ctx)
	target := domain.InterruptionFilterForDND(enable)
	c.logger.Debug("do not disturb requested", "enable", enable, "listener_active", perms.ListenerActive)

	out := domain.Outcome{Filter: target, At: c.clock.Now()}
	defer func() { c.record("dnd", out) }()

	if !perms.NotificationPolicy {
		out.Kind = domain.OutcomeDenied
		out.Reason = "notification policy access not granted"
		out.Err = domain.ErrPermissionDenied
		return out
	}
	out.Pathway = domain.PathwayDirectPolicyAccess

	current, err := timed(c, "get_interruption_filter", func() (domain.InterruptionFilter, error) {
		return bounded(ctx, c.timeout, c.device.InterruptionFilter)
	})
	if err != nil {
		deviceError(&out, err)
		return out
	}
	if current == target {
		out.Kind = domain.OutcomeUnchanged
		return out
	}

	if err := c.writeFilter(ctx, target); err != nil {
		deviceError(&out, err)
		return out
	}
	if target == domain.FilterAll {
		c.filterEngaged = false
	}
	out.Kind = domain.OutcomeApplied
	return out
}

func (c *Controller) apply(ctx context.Context, target domain.RingerMode, perms domain.PermissionState) domain.Outcome {
	out := domain.Outcome{Mode: target, At: c.clock.Now()}

	if target == c.applied {
		out.Kind = domain.OutcomeUnchanged
		return out
	}

	pathway, ok := domain.SelectPathway(perms)
	if !ok {
		out.Kind = domain.OutcomeDenied
		out.Reason = reasonNoPathway
		out.Err = domain.ErrPermissionDenied
		return out
	}
	out.Pathway = pathway

	switch pathway {
	case domain.PathwayInterruptionFilterFallback:
		out.Filter = domain.InterruptionFilterFor(target)
		if err := c.writeFilter(ctx, out.Filter); err != nil {
			deviceError(&out, err)
			return out
		}
		c.filterEngaged = out.Filter == domain.FilterNone
	default:
		if err := c.writeRinger(ctx, target); err != nil {
			deviceError(&out, err)
			return out
		}
		if target == domain.RingerNormal && c.filterEngaged {
			out.Filter = domain.FilterAll
			if err := c.writeFilter(ctx, domain.FilterAll); err != nil {
				deviceError(&out, err)
				return out
			}
			c.filterEngaged = false
		}
	}

	c.applied = target
	out.Kind = domain.OutcomeApplied
	return out
}

// deviceError classifies a failed device call. A permission refusal from
// the device is Denied rather than Failed.
func deviceError(out *domain.Outcome, err error) {
	out.Err = err
	if errors.Is(err, domain.ErrPermissionDenied) {
		out.Kind = domain.OutcomeDenied
		out.Reason = reasonDeviceRefused
		return
	}
	out.Kind = domain.OutcomeFailed
}

func (c *Controller) writeRinger(ctx context.Context, mode domain.RingerMode) error {
	_, err := timed(c, "set_ringer_mode", func() (struct{}, error) {
		return bounded(ctx, c.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.device.SetRingerMode(ctx, mode)
		})
	})
	return err
}

func (c *Controller) writeFilter(ctx context.Context, filter domain.InterruptionFilter) error {
	_, err := timed(c, "set_interruption_filter", func() (struct{}, error) {
		return bounded(ctx, c.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.device.SetInterruptionFilter(ctx, filter)
		})
	})
	return err
}

func timed[T any](c *Controller, operation string, fn func() (T, error)) (T, error) {
	start := c.clock.Now()
	v, err := fn()
	c.metrics.DeviceCallDuration.WithLabelValues(operation).Observe(c.clock.Since(start).Seconds())
	return v, err
}

// record logs and counts an outcome.
func (c *Controller) record(action string, out domain.Outcome) {
	c.metrics.Outcomes.WithLabelValues(action, out.Kind.String(), out.Pathway.String()).Inc()
	switch c.applied {
	case domain.RingerSilent:
		c.metrics.RingerSilenced.Set(1)
	default:
		c.metrics.RingerSilenced.Set(0)
	}

	attrs := []any{
		"action", action,
		"outcome", out.Kind.String(),
		"ringer_mode", out.Mode.String(),
		"pathway", out.Pathway.String(),
	}
	if out.Zone != "" {
		attrs = append(attrs, "zone", out.Zone)
	}
	if out.Filter != domain.FilterUnknown {
		attrs = append(attrs, "interruption_filter", out.Filter.String())
	}

	switch out.Kind {
	case domain.OutcomeApplied:
		c.logger.Info("device state applied", attrs...)
	case domain.OutcomeDenied:
		c.logger.Warn("device state change denied", append(attrs, "reason", out.Reason)...)
	case domain.OutcomeFailed:
		c.logger.Error("device state change failed", append(attrs, "error", out.Err)...)
	default:
		c.logger.Debug("device state unchanged", attrs...)
	}
}
