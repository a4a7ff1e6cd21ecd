package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutcomeKind classifies the result of a reconcile or command.
type OutcomeKind int

const (
	// OutcomeUnchanged means the desired state was already applied; no
	// device write happened.
	OutcomeUnchanged OutcomeKind = iota
	// OutcomeApplied means the device write succeeded.
	OutcomeApplied
	// OutcomeDenied means no permission pathway was usable, or the device
	// refused the write for lack of permission.
	OutcomeDenied
	// OutcomeFailed means the device call itself failed or timed out.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeApplied:
		return "applied"
	case OutcomeDenied:
		return "denied"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

func (k OutcomeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Outcome is the typed result of driving the device toward a target state.
// Device failures never escape as panics or bare errors; they land here.
type Outcome struct {
	Kind OutcomeKind `json:"outcome"`
	// Mode is the ringer mode the decision targeted. Unknown for
	// interruption-filter commands.
	Mode RingerMode `json:"ringer_mode,omitempty"`
	// Filter is the interruption filter targeted by DND commands and by
	// the interruption-filter fallback pathway.
	Filter  InterruptionFilter `json:"interruption_filter,omitempty"`
	Pathway Pathway            `json:"pathway,omitempty"`
	Zone    string             `json:"zone,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Err     error              `json:"-"`
	At      time.Time          `json:"at"`
}

// ErrorMessage returns the failure message, or "" when the outcome carries none.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Ok reports whether the device is now in the desired state.
func (o Outcome) Ok() bool {
	return o.Kind == OutcomeApplied || o.Kind == OutcomeUnchanged
}
