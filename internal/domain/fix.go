package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawFix is an unprocessed location message from a fix source.
type RawFix struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	// Device is set by sources that carry the device identity outside the
	// payload, such as an OwnTracks MQTT topic.
	Device string
	Commit func(ctx context.Context) error
}

// Fix is a decoded location fix.
type Fix struct {
	Device   string    `json:"device,omitempty"`
	Position Position  `json:"position"`
	Accuracy float64   `json:"accuracy,omitempty"` // meters, 0 when unknown
	At       time.Time `json:"at"`
}

// fixPayload accepts both the OwnTracks location message and the flat form
// produced by the companion app.
type fixPayload struct {
	Type      string   `json:"_type"`
	Device    string   `json:"device"`
	TrackerID string   `json:"tid"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Accuracy  float64  `json:"acc"`
	Epoch     int64    `json:"tst"`
	Timestamp string   `json:"timestamp"`
}

// ParseFix decodes and validates a raw fix. Messages that are not location
// fixes, lack coordinates, or carry invalid coordinates wrap ErrInvalidInput.
func ParseFix(raw RawFix) (Fix, error) {
	var p fixPayload
	if err := json.Unmarshal(raw.Value, &p); err != nil {
		return Fix{}, fmt.Errorf("%w: parse fix: %v", ErrInvalidInput, err)
	}
	if p.Type != "" && p.Type != "location" {
		return Fix{}, fmt.Errorf("%w: not a location message (_type=%q)", ErrInvalidInput, p.Type)
	}
	if p.Lat == nil || p.Lon == nil {
		return Fix{}, fmt.Errorf("%w: fix missing lat/lon", ErrInvalidInput)
	}

	pos := Position{Lat: *p.Lat, Lon: *p.Lon}
	if err := pos.Validate(); err != nil {
		return Fix{}, err
	}

	at, err := fixTime(p, raw.Timestamp)
	if err != nil {
		return Fix{}, err
	}

	return Fix{
		Device:   firstNonEmpty(p.Device, raw.Device, p.TrackerID, string(raw.Key)),
		Position: pos,
		Accuracy: p.Accuracy,
		At:       at,
	}, nil
}

// fixTime prefers the payload time, then the transport time, then now.
func fixTime(p fixPayload, transport time.Time) (time.Time, error) {
	switch {
	case p.Timestamp != "":
		t, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: fix timestamp: %v", ErrInvalidInput, err)
		}
		return t.UTC(), nil
	case p.Epoch > 0:
		return time.Unix(p.Epoch, 0).UTC(), nil
	case !transport.IsZero():
		return transport.UTC(), nil
	default:
		return clock.Now().UTC(), nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
