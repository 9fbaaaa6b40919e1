// Package geo holds the coordinate helpers used when ranking and locating
// markets: great-circle distance, region lookup and map deep links.
package geo

import (
	"math"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Distance returns the haversine distance between a and b in kilometres.
func Distance(a, b domain.Coordinate) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// MarketDistance returns the distance from origin to the market, or +Inf
// when the market has no coordinates.
func MarketDistance(origin domain.Coordinate, m domain.Market) float64 {
	if m.Location == nil {
		return math.Inf(1)
	}
	return Distance(origin, m.Location.Coordinate())
}

// ValidCoordinate reports whether c lies within the legal lat/lng ranges.
func ValidCoordinate(c domain.Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180 &&
		!math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
