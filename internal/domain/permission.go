package domain

import (
	"encoding/json"
	"fmt"
)

// Grant is a tri-state permission flag for version-gated permissions.
type Grant int

const (
	GrantDenied Grant = iota
	GrantGranted
	// GrantNotRequired means the OS version does not gate the capability,
	// so it behaves as granted.
	GrantNotRequired
)

// Allowed reports whether the capability may be used.
func (g Grant) Allowed() bool {
	return g == GrantGranted || g == GrantNotRequired
}

func (g Grant) String() string {
	switch g {
	case GrantDenied:
		return "denied"
	case GrantGranted:
		return "granted"
	case GrantNotRequired:
		return "not_required"
	default:
		return fmt.Sprintf("grant(%d)", int(g))
	}
}

func (g Grant) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

func (g *Grant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "denied", "":
		*g = GrantDenied
	case "granted":
		*g = GrantGranted
	case "not_required":
		*g = GrantNotRequired
	default:
		return fmt.Errorf("%w: unknown grant %q", ErrInvalidInput, s)
	}
	return nil
}

// PermissionState is a point-in-time snapshot of the device grants. It is
// taken fresh before every apply attempt; grants can be revoked at any time.
type PermissionState struct {
	WriteSettings      bool  `json:"write_settings"`
	NotificationPolicy bool  `json:"notification_policy"`
	PostNotifications  Grant `json:"post_notifications"`
	ListenerActive     bool  `json:"listener_active"`
}

// Permission names a grant the user can be asked for.
type Permission string

const (
	PermissionWriteSettings        Permission = "write_settings"
	PermissionNotificationPolicy   Permission = "notification_policy"
	PermissionPostNotifications    Permission = "post_notifications"
	PermissionNotificationListener Permission = "notification_listener"
)

// ParsePermission validates a permission name.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionWriteSettings, PermissionNotificationPolicy,
		PermissionPostNotifications, PermissionNotificationListener:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, s)
}
