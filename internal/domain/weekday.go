package domain

import (
	"fmt"
	"strings"
)

// Weekday indexes the days of the week from Sunday (0) to Saturday (6), the
// same numbering as time.Weekday.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// Locale selects a label set for weekday names.
type Locale string

const (
	LocaleMalay   Locale = "ms"
	LocaleEnglish Locale = "en"
)

type weekdayNames struct {
	code    string
	english string
	malay   string
}

var weekdays = [7]weekdayNames{
	Sunday:    {"sun", "Sunday", "Ahad"},
	Monday:    {"mon", "Monday", "Isnin"},
	Tuesday:   {"tue", "Tuesday", "Selasa"},
	Wednesday: {"wed", "Wednesday", "Rabu"},
	Thursday:  {"thu", "Thursday", "Khamis"},
	Friday:    {"fri", "Friday", "Jumaat"},
	Saturday:  {"sat", "Saturday", "Sabtu"},
}

// WeekOrder is the display order used when listing days, Monday first.
var WeekOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Valid reports whether d is one of the seven weekdays.
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// Next returns the following day, wrapping Saturday to Sunday.
func (d Weekday) Next() Weekday {
	return (d + 1) % 7
}

// Code returns the three-letter storage code ("sun".."sat").
func (d Weekday) Code() string {
	if !d.Valid() {
		return ""
	}
	return weekdays[d].code
}

// Label returns the day name for the locale. Unknown locales fall back to
// Malay, the directory's primary language.
func (d Weekday) Label(loc Locale) string {
	if !d.Valid() {
		return ""
	}
	if loc == LocaleEnglish {
		return weekdays[d].english
	}
	return weekdays[d].malay
}

func (d Weekday) String() string {
	return d.Code()
}

// ParseWeekday accepts a storage code, an English name or a Malay name in
// any letter case. Common short forms ("Jumat", "Khamees") are not accepted.
func ParseWeekday(s string) (Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdays {
		if key == n.code || key == strings.ToLower(n.english) || key == strings.ToLower(n.malay) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("domain: unknown weekday %q", s)
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("domain: invalid weekday %d", int(d))
	}
	return []byte(d.Code()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	w, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = w
	return nil
}

// LocaleFromString maps a request value to a supported locale.
func LocaleFromString(s string) Locale {
	if strings.EqualFold(strings.TrimSpace(s), string(LocaleEnglish)) {
		return LocaleEnglish
	}
	return LocaleMalay
}
