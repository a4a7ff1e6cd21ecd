package domain

import (
	"encoding/json"
	"fmt"
)

// Pathway is a permission-gated mechanism for changing the device audio state.
type Pathway int

const (
	PathwayNone Pathway = iota
	PathwayDirectPolicyAccess
	PathwaySettingsWriteFallback
	PathwayInterruptionFilterFallback
)

func (p Pathway) String() string {
	switch p {
	case PathwayNone:
		return "none"
	case PathwayDirectPolicyAccess:
		return "direct_policy_access"
	case PathwaySettingsWriteFallback:
		return "settings_write_fallback"
	case PathwayInterruptionFilterFallback:
		return "interruption_filter_fallback"
	default:
		return fmt.Sprintf("pathway(%d)", int(p))
	}
}

func (p Pathway) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// SelectPathway picks the control pathway for the given grants. The order
// is fixed: some vendor builds honour only a subset of pathways, and the
// first usable one is the one that behaves consistently across them.
func SelectPathway(s PermissionState) (Pathway, bool) {
	switch {
	case s.NotificationPolicy:
		return PathwayDirectPolicyAccess, true
	case s.WriteSettings:
		return PathwaySettingsWriteFallback, true
	case s.PostNotifications.Allowed() || s.ListenerActive:
		return PathwayInterruptionFilterFallback, true
	default:
		return PathwayNone, false
	}
}
