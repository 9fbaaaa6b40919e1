package domain

import "time"

// MarketStatus represents the listing state of a market in the directory.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "Active"
	MarketStatusInactive MarketStatus = "Inactive"
)

// Session is one operating window within a day, expressed as "HH:MM" strings
// in civil time. End may be earlier than Start for sessions that run past
// midnight.
type Session struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Note  string `json:"note,omitempty"`
}

// ScheduleRule applies every session in Times to every weekday in Days.
type ScheduleRule struct {
	Days  []Weekday `json:"days"`
	Times []Session `json:"times"`
}

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location places a market on the map.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	GmapsLink string  `json:"gmaps_link,omitempty"`
}

// Coordinate returns the location as a bare point.
func (l Location) Coordinate() Coordinate {
	return Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}

type Parking struct {
	Available  bool   `json:"available"`
	Accessible bool   `json:"accessible"`
	Notes      string `json:"notes,omitempty"`
}

type Amenities struct {
	Toilet     bool `json:"toilet"`
	PrayerRoom bool `json:"prayer_room"`
}

type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Market is one night market listing.
type Market struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	District    string         `json:"district"`
	State       string         `json:"state"`
	Status      MarketStatus   `json:"status"`
	Description string         `json:"description,omitempty"`
	Schedule    []ScheduleRule `json:"schedule"`
	Parking     Parking        `json:"parking"`
	Amenities   Amenities      `json:"amenities"`
	Contact     *Contact       `json:"contact,omitempty"`
	Location    *Location      `json:"location,omitempty"`
	AreaM2      *float64       `json:"area_m2,omitempty"`
	TotalShop   *int           `json:"total_shop,omitempty"`
	ShopList    []string       `json:"shop_list,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// HasLocation reports whether the market carries coordinates.
func (m Market) HasLocation() bool {
	return m.Location != nil
}

// States lists the administrative regions a market may belong to, in the
// order they are offered as filter choices.
var States = []string{
	"Johor",
	"Kedah",
	"Kelantan",
	"Kuala Lumpur",
	"Labuan",
	"Melaka",
	"Negeri Sembilan",
	"Pahang",
	"Perak",
	"Perlis",
	"Pulau Pinang",
	"Putrajaya",
	"Sabah",
	"Sarawak",
	"Selangor",
	"Terengganu",
}
