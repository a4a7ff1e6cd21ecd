// Package simdevice is an in-memory device for local runs and tests. It
// behaves like a phone whose audio and notification managers always answer,
// with permissions and failures set by the caller.
package simdevice

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// Device implements domain.Device in memory. It is safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	logger    *slog.Logger
	perms     domain.PermissionState
	ringer    domain.RingerMode
	filter    domain.InterruptionFilter
	writeErr  error
	requested []domain.Permission
	writes    int
}

// New creates a device in normal ringer mode with Do Not Disturb off and
// the given permissions granted.
func New(perms domain.PermissionState, logger *slog.Logger) *Device {
	return &Device{
		logger: logger,
		perms:  perms,
		ringer: domain.RingerNormal,
		filter: domain.FilterAll,
	}
}

// Grant replaces the permission snapshot.
func (d *Device) Grant(perms domain.PermissionState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.perms = perms
}

// FailWrites makes every subsequent write return err. Pass nil to recover.
func (d *Device) FailWrites(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}

// RingerMode returns the current ringer mode.
func (d *Device) RingerMode() domain.RingerMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ringer
}

// Writes returns how many writes succeeded.
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Requested returns the permissions the service asked the user for.
func (d *Device) Requested() []domain.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Permission(nil), d.requested...)
}

func (d *Device) Permissions(_ context.Context) (domain.PermissionState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perms, nil
}

func (d *Device) RequestPermission(_ context.Context, p domain.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requested = append(d.requested, p)
	d.logger.Info("simulated permission screen opened", "permission", string(p))
	return nil
}

func (d *Device) SetRingerMode(_ context.Context, mode domain.RingerMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.ringer = mode
	d.writes++
	d.logger.Info("simulated ringer mode set", "ringer_mode", mode.String())
	return nil
}

func (d *Device) InterruptionFilter(_ context.Context) (domain.InterruptionFilter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter, nil
}

func (d *Device) SetInterruptionFilter(_ context.Context, f domain.InterruptionFilter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.filter = f
	d.writes++
	d.logger.Info("simulated interruption filter set", "interruption_filter", f.String())
	return nil
}
