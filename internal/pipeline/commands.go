package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
	"github.com/couchcryptid/mute-zones-service/internal/ringer"
)

// Commands is the synchronous command surface offered to the UI layer.
// Ringer and Do Not Disturb commands share the tracker's Serial so they
// never race a fix being evaluated.
type Commands struct {
	controller *ringer.Controller
	serial     *Serial
	zones      ZoneSource
	sink       DecisionSink
	logger     *slog.Logger
}

// NewCommands creates the command surface.
func NewCommands(controller *ringer.Controller, serial *Serial, zones ZoneSource, sink DecisionSink, logger *slog.Logger) *Commands {
	return &Commands{
		controller: controller,
		serial:     serial,
		zones:      zones,
		sink:       sink,
		logger:     logger,
	}
}

// SetRingerMode mutes (or unmutes) the ringer regardless of zones. The next
// fix may change it again.
func (c *Commands) SetRingerMode(ctx context.Context, mute bool) (domain.Outcome, error) {
	out, err := c.serial.Do(ctx, func(ctx context.Context) domain.Outcome {
		return c.controller.ApplyExplicitOverride(ctx, mute)
	})
	if err != nil {
		return out, err
	}
	c.publish(ctx, domain.NewDecision(domain.SourceOverride, "", nil, out))
	return out, nil
}

// SetDoNotDisturbMode turns Do Not Disturb on or off.
func (c *Commands) SetDoNotDisturbMode(ctx context.Context, enable bool) (domain.Outcome, error) {
	out, err := c.serial.Do(ctx, func(ctx context.Context) domain.Outcome {
		return c.controller.SetDoNotDisturb(ctx, enable)
	})
	if err != nil {
		return out, err
	}
	c.publish(ctx, domain.NewDecision(domain.SourceDND, "", nil, out))
	return out, nil
}

// Permissions returns a fresh permission snapshot and the pathway it selects.
func (c *Commands) Permissions(ctx context.Context) (domain.PermissionState, domain.Pathway) {
	state := c.controller.Probe().Probe(ctx)
	pathway, _ := domain.SelectPathway(state)
	return state, pathway
}

// RequestPermission asks the device to open the settings screen for p.
func (c *Commands) RequestPermission(ctx context.Context, p domain.Permission) error {
	return c.controller.Probe().Request(ctx, p)
}

// Zones returns the current zone set.
func (c *Commands) Zones(ctx context.Context) ([]domain.Zone, error) {
	return c.zones.Zones(ctx)
}

// Match reports which zone, if any, contains p. It has no side effects.
func (c *Commands) Match(ctx context.Context, p domain.Position) (domain.Zone, bool, error) {
	zones, err := c.zones.Zones(ctx)
	if err != nil {
		return domain.Zone{}, false, err
	}
	return domain.Match(p, zones)
}

// publish records a command decision. The device state already changed, so
// the caller hanging up must not drop the record.
func (c *Commands) publish(ctx context.Context, d domain.Decision) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Publish(context.WithoutCancel(ctx), []domain.Decision{d}); err != nil {
		c.logger.Warn("publish command decision failed", "error", err, "source", d.Source)
	}
}
