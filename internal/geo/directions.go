package geo

import (
	"net/url"
	"strconv"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

const mapsDirectionsBase = "https://www.google.com/maps/dir/?api=1"

// DirectionsURL builds a Google Maps directions link to dest. When origin is
// nil the maps app picks the traveller's current position.
func DirectionsURL(dest domain.Coordinate, origin *domain.Coordinate) string {
	u := mapsDirectionsBase
	if origin != nil {
		u += "&origin=" + url.QueryEscape(latLng(*origin))
	}
	return u + "&destination=" + url.QueryEscape(latLng(dest))
}

func latLng(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
