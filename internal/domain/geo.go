package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Earth radius in the units accepted by the geo endpoints.
const (
	EarthRadiusMiles = 3963.2
	EarthRadiusKm    = 6378.1

	// Meters to unit multipliers used by distance listings.
	MetersToMiles = 0.000621371
	MetersToKm    = 0.001
)

// Unit is a distance unit accepted by the geo endpoints.
type Unit string

const (
	UnitMiles Unit = "mi"
	UnitKm    Unit = "km"
)

// ParseUnit validates a unit string.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case UnitMiles, UnitKm:
		return Unit(s), nil
	default:
		return "", fmt.Errorf("unit must be one of mi, km (got %q)", s)
	}
}

// RadiusRadians converts a linear distance into radians on the earth sphere.
func (u Unit) RadiusRadians(distance float64) float64 {
	if u == UnitMiles {
		return distance / EarthRadiusMiles
	}
	return distance / EarthRadiusKm
}

// Multiplier converts meters into the unit.
func (u Unit) Multiplier() float64 {
	if u == UnitMiles {
		return MetersToMiles
	}
	return MetersToKm
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type" validate:"omitempty,oneof=Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"omitempty,len=2"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
}

// Lng returns the longitude.
func (p *GeoPoint) Lng() float64 { return p.Coordinates[0] }

// Lat returns the latitude.
func (p *GeoPoint) Lat() float64 { return p.Coordinates[1] }

// Valid reports whether the point has a usable coordinate pair.
func (p *GeoPoint) Valid() bool {
	return p != nil && len(p.Coordinates) == 2
}

// Location is a stop on a tour itinerary.
type Location struct {
	GeoPoint `bson:",inline"`
	Day      int `json:"day" bson:"day"`
}

// LatLng is a point parsed from a "lat,lng" path parameter.
type LatLng struct {
	Lat float64
	Lng float64
}

// ParseLatLng parses "lat,lng".
func ParseLatLng(s string) (LatLng, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return LatLng{}, fmt.Errorf("expected lat,lng (got %q)", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return LatLng{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		return LatLng{}, fmt.Errorf("invalid longitude %q", lngStr)
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

// earthRadiusMeters is the mean radius used for spherical distance.
const earthRadiusMeters = 6378100.0

func degToRad(d float64) float64 {
	return d * (math.Pi / 180)
}

// AngularDistance returns the great-circle distance between two points in radians.
func AngularDistance(a, b LatLng) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceMeters returns the spherical distance between two points in meters.
func DistanceMeters(a, b LatLng) float64 {
	return AngularDistance(a, b) * earthRadiusMeters
}
