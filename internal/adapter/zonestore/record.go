// Package zonestore provides the zone sets the tracker matches fixes against:
// a YAML file with hot reload and a shared Redis hash.
package zonestore

import (
	"fmt"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// record is the stored form of a zone. A missing radius takes the store's
// default; an explicit zero is kept and simply never matches.
type record struct {
	Name         string   `json:"name" yaml:"name"`
	Lat          float64  `json:"lat" yaml:"lat"`
	Lon          float64  `json:"lon" yaml:"lon"`
	RadiusMeters *float64 `json:"radius_meters,omitempty" yaml:"radius_meters,omitempty"`
}

func (r record) zone(defaultRadius float64) domain.Zone {
	radius := defaultRadius
	if r.RadiusMeters != nil {
		radius = *r.RadiusMeters
	}
	return domain.Zone{Name: r.Name, Lat: r.Lat, Lon: r.Lon, RadiusMeters: radius}
}

func recordFor(z domain.Zone) record {
	radius := z.RadiusMeters
	return record{Name: z.Name, Lat: z.Lat, Lon: z.Lon, RadiusMeters: &radius}
}

// validateZone rejects zones an operator almost certainly mistyped.
func validateZone(z domain.Zone) error {
	if z.Name == "" {
		return fmt.Errorf("%w: zone name is required", domain.ErrInvalidInput)
	}
	if err := z.Center().Validate(); err != nil {
		return fmt.Errorf("zone %q: %w", z.Name, err)
	}
	if z.RadiusMeters < 0 {
		return fmt.Errorf("%w: zone %q radius must not be negative", domain.ErrInvalidInput, z.Name)
	}
	return nil
}

func toZones(records []record, defaultRadius float64) ([]domain.Zone, error) {
	zones := make([]domain.Zone, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		z := r.zone(defaultRadius)
		if err := validateZone(z); err != nil {
			return nil, err
		}
		if _, dup := seen[z.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate zone %q", domain.ErrInvalidInput, z.Name)
		}
		seen[z.Name] = struct{}{}
		zones = append(zones, z)
	}
	return zones, nil
}
