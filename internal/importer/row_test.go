package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Pasar Malam Taman Connaught": "pasar-malam-taman-connaught",
		"Pasar Malam (SS2) - PJ":      "pasar-malam-ss2-pj",
		"  Bazar  Ramadan  ":          "bazar-ramadan",
		"":                            "unknown-market",
		"!!!":                         "unknown-market",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), "Slug(%q)", in)
	}

	long := Slug("Pasar Malam Yang Sangat Panjang Namanya Di Kawasan Perumahan Baru")
	assert.LessOrEqual(t, len(long), maxSlugLen)
	assert.NotEqual(t, '-', rune(long[len(long)-1]))
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in      string
		want    []domain.Weekday
		unknown []string
	}{
		{"Isnin, Rabu & Sabtu", []domain.Weekday{domain.Monday, domain.Wednesday, domain.Saturday}, nil},
		{"friday and tuesday", []domain.Weekday{domain.Tuesday, domain.Friday}, nil},
		{"Malam Sabtu", []domain.Weekday{domain.Saturday}, nil},
		{"Ahad / Ahad", []domain.Weekday{domain.Sunday}, nil},
		{"Setiap Hari", domain.WeekOrder, nil},
		{"Ahad, Funday", []domain.Weekday{domain.Sunday}, []string{"funday"}},
		{"", nil, nil},
	}
	for _, tt := range tests {
		days, unknown := ParseDays(tt.in)
		assert.Equal(t, tt.want, days, "days of %q", tt.in)
		assert.Equal(t, tt.unknown, unknown, "unknown parts of %q", tt.in)
	}
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		in   string
		want [][2]string
		bad  []string
	}{
		{"4-10pm", [][2]string{{"16:00", "22:00"}}, nil},
		{"4.30pm-10.30pm", [][2]string{{"16:30", "22:30"}}, nil},
		{"4 - 10 pm", [][2]string{{"16:00", "22:00"}}, nil},
		{"16:00-22:00", [][2]string{{"16:00", "22:00"}}, nil},
		{"6pm-1am", [][2]string{{"18:00", "01:00"}}, nil},
		{"11-2pm", [][2]string{{"11:00", "14:00"}}, nil},
		{"5-12am", [][2]string{{"17:00", "00:00"}}, nil},
		{"12-4pm", [][2]string{{"12:00", "16:00"}}, nil},
		{"7am-11am, 5pm-10pm", [][2]string{{"07:00", "11:00"}, {"17:00", "22:00"}}, nil},
		{"petang, 5-10pm", [][2]string{{"17:00", "22:00"}}, []string{"petang"}},
		{"13-25", nil, []string{"13-25"}},
		{"", nil, nil},
	}
	for _, tt := range tests {
		sessions, bad := ParseHours(tt.in)
		var got [][2]string
		for _, s := range sessions {
			got = append(got, [2]string{s.Start, s.End})
		}
		assert.Equal(t, tt.want, got, "sessions of %q", tt.in)
		assert.Equal(t, tt.bad, bad, "bad parts of %q", tt.in)
	}
}

func TestParseAmenitiesAndParking(t *testing.T) {
	assert.Equal(t, domain.Amenities{Toilet: true, PrayerRoom: true}, ParseAmenities("Toilet, Surau"))
	assert.Equal(t, domain.Amenities{Toilet: true}, ParseAmenities("tandas awam"))
	assert.Equal(t, domain.Amenities{}, ParseAmenities(""))

	p := ParseParking("Roadside parking, OKU bays")
	assert.True(t, p.Available)
	assert.True(t, p.Accessible)
	assert.Equal(t, "Roadside parking, OKU bays", p.Notes)

	assert.False(t, ParseParking("No parking").Available)
	assert.False(t, ParseParking("Tiada").Available)
	assert.True(t, ParseParking("See notes").Available)
	assert.Equal(t, domain.Parking{}, ParseParking(" "))
}

func TestParseNumbers(t *testing.T) {
	require.NotNil(t, ParseArea("1,200 m2"))
	assert.Equal(t, 1200.0, *ParseArea("1,200 m2"))
	assert.Equal(t, 850.5, *ParseArea("approx 850.5sqm"))
	assert.Nil(t, ParseArea("n/a"))

	require.NotNil(t, ParseCount("120.0"))
	assert.Equal(t, 120, *ParseCount("120.0"))
	assert.Nil(t, ParseCount(""))
}

func TestParseCoordinates(t *testing.T) {
	c, err := ParseCoordinates("3.0797, 101.7390", "")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Latitude: 3.0797, Longitude: 101.739}, *c)

	c, err = ParseCoordinates("5.41", "100.33")
	require.NoError(t, err)
	assert.Equal(t, 100.33, c.Longitude)

	c, err = ParseCoordinates("", "")
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = ParseCoordinates("abc", "101")
	assert.Error(t, err)
	_, err = ParseCoordinates("95", "0")
	assert.Error(t, err)
}

func TestNormaliseStateAndStatus(t *testing.T) {
	for in, want := range map[string]string{
		"Penang":           "Pulau Pinang",
		"selangor":         "Selangor",
		"WP  Kuala Lumpur": "Kuala Lumpur",
		"Malacca":          "Melaka",
		"Negeri Sembilan":  "Negeri Sembilan",
	} {
		got, ok := NormaliseState(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	got, ok := NormaliseState(" Atlantis ")
	assert.False(t, ok)
	assert.Equal(t, "Atlantis", got)

	st, ok := ParseStatus("")
	assert.True(t, ok)
	assert.Equal(t, domain.MarketStatusActive, st)
	st, _ = ParseStatus("Tutup")
	assert.Equal(t, domain.MarketStatusInactive, st)
	_, ok = ParseStatus("maybe")
	assert.False(t, ok)
}

func TestParseRowComplete(t *testing.T) {
	row := Row{Line: 2, Fields: map[string]string{
		"name":           "Pasar Malam Taman Connaught",
		"address":        "Jalan Cerdas, Taman Connaught",
		"district":       "Cheras",
		"state":          "kuala lumpur",
		"operating_day":  "Rabu",
		"operating_hour": "5-11.30pm",
		"amenities":      "Toilet, Surau",
		"parking":        "Roadside",
		"latitude":       "3.0797, 101.7390",
		"total_shop":     "250",
		"shop_list":      "Food, Clothing, ",
	}}

	m, warnings, ok := ParseRow(row)
	require.True(t, ok)
	assert.Empty(t, warnings)
	assert.Equal(t, "pasar-malam-taman-connaught", m.ID)
	assert.Equal(t, "Kuala Lumpur", m.State)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.Equal(t, []domain.ScheduleRule{{
		Days:  []domain.Weekday{domain.Wednesday},
		Times: []domain.Session{{Start: "17:00", End: "23:30"}},
	}}, m.Schedule)
	assert.True(t, m.Amenities.PrayerRoom)
	require.NotNil(t, m.Location)
	assert.Equal(t, 101.739, m.Location.Longitude)
	assert.Equal(t, 250, *m.TotalShop)
	assert.Equal(t, []string{"Food", "Clothing"}, m.ShopList)
	assert.Nil(t, m.Contact)
}

func TestParseRowWarnings(t *testing.T) {
	m, warnings, ok := ParseRow(Row{Line: 7, Fields: map[string]string{
		"name":           "Pasar Malam Kg Baru",
		"state":          "Atlantis",
		"operating_day":  "Sabtu",
		"operating_hour": "petang",
		"latitude":       "abc",
	}})
	require.True(t, ok)
	assert.Empty(t, m.Schedule)
	assert.Nil(t, m.Location)

	var msgs []string
	for _, w := range warnings {
		assert.Equal(t, 7, w.Line)
		assert.Equal(t, "pasar-malam-kg-baru", w.MarketID)
		msgs = append(msgs, w.Message)
	}
	assert.Contains(t, msgs, `unknown state "Atlantis"`)
	assert.Contains(t, msgs, `unparseable hours "petang"`)
	assert.Contains(t, msgs, "schedule is empty")
	assert.Contains(t, msgs, "address is required")
	assert.Equal(t, `row 7 (pasar-malam-kg-baru): unparseable hours "petang"`, warnings[1].String())

	_, warnings, ok = ParseRow(Row{Line: 9, Fields: map[string]string{"state": "Johor"}})
	assert.False(t, ok)
	require.Len(t, warnings, 1)
	assert.Equal(t, "row 9: missing name, row skipped", warnings[0].String())
}

func TestValidateFlagsBadTimes(t *testing.T) {
	m := domain.Market{
		ID: "x", Name: "X", Address: "a", District: "d", State: "Johor",
		Schedule: []domain.ScheduleRule{{
			Days:  []domain.Weekday{domain.Monday},
			Times: []domain.Session{{Start: "5pm", End: "22:00"}},
		}},
	}
	assert.Equal(t, []string{`schedule 0, time 0: invalid time "5pm"-"22:00"`}, Validate(m))
}
