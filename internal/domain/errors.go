package domain

import "errors"

var (
	// ErrInvalidInput marks malformed coordinates or payloads. Not retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied means no control pathway is currently usable.
	// Recoverable only by the user granting a permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDeviceAPI marks a failure of the device call itself. Recovered by
	// the next evaluation.
	ErrDeviceAPI = errors.New("device api failure")

	// ErrDeviceTimeout is returned when a device call exceeds its deadline.
	// It always also matches ErrDeviceAPI.
	ErrDeviceTimeout = errors.New("device call timed out")

	// ErrCircuitOpen is returned by device adapters that short-circuit
	// calls while the device is known to be unreachable.
	ErrCircuitOpen = errors.New("device circuit open")
)
