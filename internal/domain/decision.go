package domain

import (
	"time"

	"github.com/google/uuid"
)

// DecisionSource says what triggered a decision.
type DecisionSource string

const (
	SourceFix      DecisionSource = "fix"
	SourceOverride DecisionSource = "override"
	SourceDND      DecisionSource = "dnd"
)

// Decision is the audit record emitted for every evaluated fix or command.
type Decision struct {
	ID          string         `json:"id"`
	Source      DecisionSource `json:"source"`
	Device      string         `json:"device,omitempty"`
	Position    *Position      `json:"position,omitempty"`
	Outcome     Outcome        `json:"result"`
	Error       string         `json:"error,omitempty"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// NewDecision builds a decision record with a fresh ID.
func NewDecision(source DecisionSource, device string, pos *Position, out Outcome) Decision {
	return Decision{
		ID:          uuid.NewString(),
		Source:      source,
		Device:      device,
		Position:    pos,
		Outcome:     out,
		Error:       out.ErrorMessage(),
		EvaluatedAt: out.At,
	}
}
