package domain

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the IUGG mean radius of the Earth.
const EarthRadiusMeters = 6371008.8

// DefaultZoneRadiusMeters is used by zone stores when a zone omits its radius.
const DefaultZoneRadiusMeters = 50.0

// Position is a WGS-84 latitude/longitude pair in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the position holds finite, in-range coordinates.
func (p Position) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidInput, p.Lat, p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, p.Lon)
	}
	return nil
}

// Zone is a named circle in which the device should be silenced.
type Zone struct {
	Name         string  `json:"name" yaml:"name"`
	Lat          float64 `json:"lat" yaml:"lat"`
	Lon          float64 `json:"lon" yaml:"lon"`
	RadiusMeters float64 `json:"radius_meters" yaml:"radius_meters"`
}

// Center returns the zone centre as a Position.
func (z Zone) Center() Position {
	return Position{Lat: z.Lat, Lon: z.Lon}
}

// Contains reports whether p lies within the zone, boundary inclusive.
// Degenerate zones (non-positive radius, invalid centre) contain nothing.
func (z Zone) Contains(p Position) bool {
	if !(z.RadiusMeters > 0) || z.Center().Validate() != nil {
		return false
	}
	return Distance(p, z.Center()) <= z.RadiusMeters
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Position) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Rounding can push h fractionally above 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Destination returns the point reached by travelling meters along the
// great circle leaving p at bearing degrees clockwise from true north.
func Destination(p Position, bearing, meters float64) Position {
	delta := meters / EarthRadiusMeters
	theta := radians(bearing)
	lat1 := radians(p.Lat)
	lon1 := radians(p.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Position{Lat: degrees(lat2), Lon: normalizeLon(degrees(lon2))}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func normalizeLon(lon float64) float64 {
	return math.Mod(lon+540, 360) - 180
}
