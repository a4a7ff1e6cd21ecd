package ringer

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// Probe reads the device permission snapshot. It never fails: a permission
// source that cannot be reached reports nothing granted.
type Probe struct {
	source domain.PermissionSource
	logger *slog.Logger
}

// NewProbe creates a Probe over the device permission surface.
func NewProbe(source domain.PermissionSource, logger *slog.Logger) *Probe {
	return &Probe{source: source, logger: logger}
}

// Probe returns the current grants. Call it before every apply attempt.
func (p *Probe) Probe(ctx context.Context) domain.PermissionState {
	state, err := p.source.Permissions(ctx)
	if err != nil {
		p.logger.Warn("permission probe failed, assuming nothing granted", "error", err)
		return domain.PermissionState{}
	}
	return state
}

// Request asks the device to open the settings screen for perm.
func (p *Probe) Request(ctx context.Context, perm domain.Permission) error {
	return p.source.RequestPermission(ctx, perm)
}
