package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// RingerMode is the device-wide audio alert state.
type RingerMode int

const (
	// RingerUnknown is the zero value: no mode has been applied or targeted.
	RingerUnknown RingerMode = iota
	RingerNormal
	RingerSilent
)

// RingerModeFor returns the ringer mode a mute flag asks for.
func RingerModeFor(mute bool) RingerMode {
	if mute {
		return RingerSilent
	}
	return RingerNormal
}

func (m RingerMode) String() string {
	switch m {
	case RingerSilent:
		return "silent"
	case RingerNormal:
		return "normal"
	case RingerUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("ringer_mode(%d)", int(m))
	}
}

func (m RingerMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// InterruptionFilterForDND returns the filter for a Do Not Disturb flag.
func InterruptionFilterForDND(enable bool) InterruptionFilter {
	if enable {
		return FilterNone
	}
	return FilterAll
}

// InterruptionFilter is the Do Not Disturb axis. FilterNone suppresses all
// interruptions (DND on); FilterAll lets everything through (DND off).
type InterruptionFilter int

const (
	FilterUnknown InterruptionFilter = iota
	FilterAll
	FilterNone
)

// InterruptionFilterFor returns the filter that realises the ringer mode.
// Unknown modes map to FilterAll so a fallback write never silences the
// device by accident.
func InterruptionFilterFor(m RingerMode) InterruptionFilter {
	if m == RingerSilent {
		return FilterNone
	}
	return FilterAll
}

func (f InterruptionFilter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterAll:
		return "all"
	case FilterUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("interruption_filter(%d)", int(f))
	}
}

func (f InterruptionFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *InterruptionFilter) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none":
		*f = FilterNone
	case "all":
		*f = FilterAll
	default:
		return fmt.Errorf("%w: unknown interruption filter %q", ErrInvalidInput, s)
	}
	return nil
}

// AudioControl sets the device ringer mode.
type AudioControl interface {
	SetRingerMode(ctx context.Context, mode RingerMode) error
}

// InterruptionControl reads and sets the device interruption filter.
type InterruptionControl interface {
	InterruptionFilter(ctx context.Context) (InterruptionFilter, error)
	SetInterruptionFilter(ctx context.Context, filter InterruptionFilter) error
}

// PermissionSource exposes the device permission surface.
type PermissionSource interface {
	// Permissions returns the current grant snapshot.
	Permissions(ctx context.Context) (PermissionState, error)

	// RequestPermission asks the device to show the settings screen where
	// the user can grant p. It returns once the screen has been opened,
	// not once the user has decided.
	RequestPermission(ctx context.Context, p Permission) error
}

// Device is everything the service needs from the platform layer.
type Device interface {
	AudioControl
	InterruptionControl
	PermissionSource
}
