package importer

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/geo"
	"github.com/alanyoungcy/pasarmalam/internal/schedule"
)

// Row is one data row keyed by normalised header name.
type Row struct {
	Line   int
	Fields map[string]string
}

func (r Row) get(key string) string {
	return strings.TrimSpace(r.Fields[key])
}

// Warning is a non-fatal problem found in a row.
type Warning struct {
	Line     int
	MarketID string
	Message  string
}

func (w Warning) String() string {
	switch {
	case w.Line == 0:
		return fmt.Sprintf("%s: %s", w.MarketID, w.Message)
	case w.MarketID == "":
		return fmt.Sprintf("row %d: %s", w.Line, w.Message)
	}
	return fmt.Sprintf("row %d (%s): %s", w.Line, w.MarketID, w.Message)
}

var headerAliases = map[string]string{
	"operating_days":  "operating_day",
	"days":            "operating_day",
	"operating_hours": "operating_hour",
	"hours":           "operating_hour",
	"lat":             "latitude",
	"lng":             "longitude",
	"lon":             "longitude",
	"total_shops":     "total_shop",
	"area":            "area_m2",
	"gmaps":           "gmaps_link",
	"google_maps":     "gmaps_link",
}

// normaliseHeader lower-cases a header and joins words with underscores.
func normaliseHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.Join(strings.Fields(h), "_")
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

var (
	slugStrip    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

const maxSlugLen = 50

// Slug derives a market id from its name.
func Slug(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(name), "")
	s = strings.Trim(slugCollapse.ReplaceAllString(s, "-"), "-")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		return "unknown-market"
	}
	return s
}

var (
	daySplit = regexp.MustCompile(`[,&/]|\s+and\s+|\s+dan\s+`)
	everyDay = []string{"setiap hari", "every day", "everyday", "daily"}
)

// ParseDays reads a day list such as "Isnin, Rabu & Sabtu" or
// "tuesday and friday". The result is in Monday-first order without
// duplicates. Unrecognised parts are returned separately.
func ParseDays(s string) ([]domain.Weekday, []string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	for _, e := range everyDay {
		if strings.Contains(s, e) {
			return slices.Clone(domain.WeekOrder), nil
		}
	}

	seen := map[domain.Weekday]bool{}
	var unknown []string
	for _, part := range daySplit.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, ok := matchDay(part)
		if !ok {
			unknown = append(unknown, part)
			continue
		}
		seen[d] = true
	}

	var days []domain.Weekday
	for _, d := range domain.WeekOrder {
		if seen[d] {
			days = append(days, d)
		}
	}
	return days, unknown
}

// matchDay tries an exact name first, then any day name contained in part
// ("malam sabtu", "saturdays").
func matchDay(part string) (domain.Weekday, bool) {
	if d, err := domain.ParseWeekday(part); err == nil {
		return d, true
	}
	for _, d := range domain.WeekOrder {
		for _, name := range []string{d.Label(domain.LocaleMalay), d.Label(domain.LocaleEnglish), d.Code()} {
			if strings.Contains(part, strings.ToLower(name)) {
				return d, true
			}
		}
	}
	return 0, false
}

var hourRange = regexp.MustCompile(
	`^(\d{1,2})(?:[.:](\d{2}))?\s*(am|pm)?\s*(?:-|–|to|hingga|sampai)\s*(\d{1,2})(?:[.:](\d{2}))?\s*(am|pm)?$`)

// ParseHours reads comma separated hour ranges in 12-hour ("4-10pm",
// "4.30pm-10.30pm", "6pm-1am") or 24-hour ("16:00-22:00") form. A start
// without its own am/pm borrows the end's, unless that would put it after
// the end ("11-2pm" is 11:00-14:00). Unparseable parts are returned
// separately.
func ParseHours(s string) ([]domain.Session, []string) {
	var (
		sessions []domain.Session
		bad      []string
	)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := hourRange.FindStringSubmatch(strings.ToLower(strings.ReplaceAll(part, " ", "")))
		if m == nil {
			bad = append(bad, part)
			continue
		}
		sh, sm, sp := atoi(m[1]), atoi(m[2]), m[3]
		eh, em, ep := atoi(m[4]), atoi(m[5]), m[6]
		if sp == "" && ep != "" {
			sp = ep
			switch {
			case ep == "am" && eh == 12:
				sp = "pm" // "5-12am" runs to midnight
			case eh != 12 && sh != 12 && sh > eh:
				sp = flip(ep)
			}
		}
		start, ok1 := clock24(sh, sm, sp)
		end, ok2 := clock24(eh, em, ep)
		if !ok1 || !ok2 {
			bad = append(bad, part)
			continue
		}
		sessions = append(sessions, domain.Session{
			Start: schedule.FormatClock(start),
			End:   schedule.FormatClock(end),
		})
	}
	return sessions, bad
}

func flip(period string) string {
	if period == "pm" {
		return "am"
	}
	return "pm"
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// clock24 converts an hour/minute pair with an optional period to minutes
// after midnight. "12am" is midnight and "12pm" is noon.
func clock24(h, m int, period string) (int, bool) {
	if m > 59 {
		return 0, false
	}
	switch period {
	case "":
		if h > 24 || (h == 24 && m != 0) {
			return 0, false
		}
		return (h % 24 * 60) + m, true
	case "am", "pm":
		if h < 1 || h > 12 {
			return 0, false
		}
		h %= 12
		if period == "pm" {
			h += 12
		}
		return h*60 + m, true
	}
	return 0, false
}

// ParseAmenities detects toilet and prayer room keywords in English or
// Malay.
func ParseAmenities(s string) domain.Amenities {
	s = strings.ToLower(s)
	return domain.Amenities{
		Toilet:     strings.Contains(s, "toilet") || strings.Contains(s, "tandas"),
		PrayerRoom: strings.Contains(s, "prayer") || strings.Contains(s, "surau") || strings.Contains(s, "musolla"),
	}
}

var (
	noParking  = regexp.MustCompile(`\b(no|none|tiada|tidak)\b`)
	okuParking = regexp.MustCompile(`accessible|handicap|disabled|\boku\b`)
)

// ParseParking reads a free-text parking note.
func ParseParking(s string) domain.Parking {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Parking{}
	}
	lower := strings.ToLower(s)
	return domain.Parking{
		Available:  !noParking.MatchString(lower),
		Accessible: okuParking.MatchString(lower),
		Notes:      s,
	}
}

var number = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseArea extracts the first number from an area cell ("1,200 m2").
func ParseArea(s string) *float64 {
	m := number.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseCount reads a stall count. Spreadsheet exports may write "120.0".
func ParseCount(s string) *int {
	f := ParseArea(s)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// ParseCoordinates reads separate latitude and longitude cells, or a single
// "lat, lng" pair in the latitude cell.
func ParseCoordinates(lat, lng string) (*domain.Coordinate, error) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if strings.Contains(lat, ",") {
		parts := strings.SplitN(lat, ",", 2)
		lat, lng = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("unparseable coordinates %q, %q", lat, lng)
	}
	c := domain.Coordinate{Latitude: la, Longitude: lo}
	if !geo.ValidCoordinate(c) {
		return nil, fmt.Errorf("coordinates out of range %v, %v", la, lo)
	}
	return &c, nil
}

var stateAliases = map[string]string{
	"penang":                           "Pulau Pinang",
	"pinang":                           "Pulau Pinang",
	"malacca":                          "Melaka",
	"kl":                               "Kuala Lumpur",
	"wp kuala lumpur":                  "Kuala Lumpur",
	"wilayah persekutuan kuala lumpur": "Kuala Lumpur",
	"wp putrajaya":                     "Putrajaya",
	"wp labuan":                        "Labuan",
	"n. sembilan":                      "Negeri Sembilan",
	"n sembilan":                       "Negeri Sembilan",
}

// NormaliseState maps common spellings onto domain.States. Unknown names
// are returned trimmed with ok false.
func NormaliseState(s string) (string, bool) {
	s = strings.TrimSpace(s)
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if alias, ok := stateAliases[key]; ok {
		return alias, true
	}
	for _, st := range domain.States {
		if strings.EqualFold(st, key) {
			return st, true
		}
	}
	return s, false
}

// ParseStatus defaults to Active.
func ParseStatus(s string) (domain.MarketStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active", "aktif", "open":
		return domain.MarketStatusActive, true
	case "inactive", "tidak aktif", "closed", "tutup":
		return domain.MarketStatusInactive, true
	}
	return domain.MarketStatusActive, false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseRow converts a row into a market. ok is false when the row cannot be
// imported at all; warnings describe everything else that was dropped or
// defaulted.
func ParseRow(r Row) (m domain.Market, warnings []Warning, ok bool) {
	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{Line: r.Line, MarketID: m.ID, Message: fmt.Sprintf(format, args...)})
	}

	m.Name = r.get("name")
	if m.Name == "" {
		warn("missing name, row skipped")
		return m, warnings, false
	}
	m.ID = r.get("id")
	if m.ID == "" {
		m.ID = Slug(m.Name)
	}
	m.Address = r.get("address")
	m.District = r.get("district")
	m.Description = r.get("description")

	state, known := NormaliseState(r.get("state"))
	m.State = state
	if !known && state != "" {
		warn("unknown state %q", state)
	}

	status, known := ParseStatus(r.get("status"))
	m.Status = status
	if !known {
		warn("unknown status %q, defaulting to Active", r.get("status"))
	}

	days, unknownDays := ParseDays(r.get("operating_day"))
	for _, d := range unknownDays {
		warn("unrecognised day %q", d)
	}
	sessions, badHours := ParseHours(r.get("operating_hour"))
	for _, h := range badHours {
		warn("unparseable hours %q", h)
	}
	if len(days) > 0 && len(sessions) > 0 {
		m.Schedule = []domain.ScheduleRule{{Days: days, Times: sessions}}
	}

	m.Amenities = ParseAmenities(r.get("amenities"))
	m.Parking = ParseParking(r.get("parking"))
	m.AreaM2 = ParseArea(r.get("area_m2"))
	m.TotalShop = ParseCount(r.get("total_shop"))
	m.ShopList = splitList(r.get("shop_list"))

	if phone, email := r.get("phone"), r.get("email"); phone != "" || email != "" {
		m.Contact = &domain.Contact{Name: r.get("contact_name"), Phone: phone, Email: email}
	}

	c, err := ParseCoordinates(r.get("latitude"), r.get("longitude"))
	if err != nil {
		warn("%v", err)
	} else if c != nil {
		m.Location = &domain.Location{Latitude: c.Latitude, Longitude: c.Longitude, GmapsLink: r.get("gmaps_link")}
	}

	for _, msg := range Validate(m) {
		warn("%s", msg)
	}
	return m, warnings, true
}

// Validate lists the problems that make a market incomplete. None of them
// stop the market from being stored.
func Validate(m domain.Market) []string {
	var problems []string
	for _, f := range []struct{ name, value string }{
		{"id", m.ID},
		{"name", m.Name},
		{"address", m.Address},
		{"district", m.District},
		{"state", m.State},
	} {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, f.name+" is required")
		}
	}
	if len(m.Schedule) == 0 {
		problems = append(problems, "schedule is empty")
	}
	for i, rule := range m.Schedule {
		if len(rule.Days) == 0 {
			problems = append(problems, fmt.Sprintf("schedule %d: no days", i))
		}
		if len(rule.Times) == 0 {
			problems = append(problems, fmt.Sprintf("schedule %d: no times", i))
		}
		for j, t := range rule.Times {
			if !schedule.ValidClock(t.Start) || !schedule.ValidClock(t.End) {
				problems = append(problems, fmt.Sprintf("schedule %d, time %d: invalid time %q-%q", i, j, t.Start, t.End))
			}
		}
	}
	return problems
}
