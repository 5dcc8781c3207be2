package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRegion = Region{
	ID:      "ep",
	Name:    "Eastern Pacific",
	FeedURL: "https://www.nhc.noaa.gov/index-ep.xml",
	Active:  true,
}

func TestNormalizeAdvisory(t *testing.T) {
	t.Run("complete advisory", func(t *testing.T) {
		raw := RawAdvisory{
			FieldATCF:        "EP022025",
			FieldName:        "Barbara",
			FieldType:        "Hurricane",
			FieldCenter:      "14.2, -120.9",
			FieldMovement:    "WNW at 12 mph",
			FieldPressure:    "985 mb",
			FieldWind:        "75 mph",
			FieldHeadline:    "Hurricane Barbara strengthens",
			FieldWallet:      "EP2",
			FieldDatetime:    "Sun, 15 Jun 2025 12:00:00 GMT",
			FieldTitle:       "Hurricane Barbara Public Advisory",
			FieldLink:        "https://www.nhc.noaa.gov/text/MIATCPEP2.shtml",
			FieldDescription: "<pre>Barbara is moving WNW.</pre>",
			FieldPubDate:     "Sun, 15 Jun 2025 12:01:00 GMT",
		}

		obs, err := NormalizeAdvisory(raw, testRegion)
		require.NoError(t, err)

		assert.Equal(t, "EP022025", obs.StormID)
		assert.Equal(t, "ep", obs.RegionID)
		assert.Equal(t, 2025, obs.Season)
		assert.Equal(t, "Barbara", obs.Name)
		assert.Equal(t, TypeHurricane, obs.StormType)
		require.NotNil(t, obs.Latitude)
		require.NotNil(t, obs.Longitude)
		assert.Equal(t, 14.2, *obs.Latitude)
		assert.Equal(t, -120.9, *obs.Longitude)
		assert.Equal(t, "WNW at 12 mph", obs.Movement)
		require.NotNil(t, obs.WindSpeed)
		assert.Equal(t, 75, *obs.WindSpeed)
		require.NotNil(t, obs.Pressure)
		assert.Equal(t, 985, *obs.Pressure)
		assert.Equal(t, "Barbara is moving WNW.", obs.Report)
		assert.Equal(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), obs.ReportTime)
		assert.Equal(t, "EP2", obs.Wallet)
		assert.Equal(t, "https://www.nhc.noaa.gov/nhc_ep2.xml", obs.WalletURL)
	})

	t.Run("missing storm identifier is fatal for the entry", func(t *testing.T) {
		raw := RawAdvisory{
			FieldName:     "Barbara",
			FieldDatetime: "Sun, 15 Jun 2025 12:00:00 GMT",
		}

		_, err := NormalizeAdvisory(raw, testRegion)
		require.Error(t, err)

		var nerr *NormalizeError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, FieldATCF, nerr.Field)
	})

	t.Run("missing report timestamp falls back to pubDate", func(t *testing.T) {
		raw := RawAdvisory{
			FieldATCF:    "EP022025",
			FieldPubDate: "Sun, 15 Jun 2025 18:00:00 GMT",
		}

		obs, err := NormalizeAdvisory(raw, testRegion)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC), obs.ReportTime)
	})

	t.Run("no usable timestamp is fatal for the entry", func(t *testing.T) {
		raw := RawAdvisory{
			FieldATCF:     "EP022025",
			FieldDatetime: "sometime soon",
		}

		_, err := NormalizeAdvisory(raw, testRegion)
		var nerr *NormalizeError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, FieldDatetime, nerr.Field)
	})

	t.Run("optional fields degrade instead of failing", func(t *testing.T) {
		raw := RawAdvisory{
			FieldATCF:     "EP022025",
			FieldDatetime: "Sun, 15 Jun 2025 12:00:00 GMT",
			FieldWind:     "UNK",
			FieldCenter:   "near the coast",
		}

		obs, err := NormalizeAdvisory(raw, testRegion)
		require.NoError(t, err)

		assert.Nil(t, obs.WindSpeed)
		assert.Nil(t, obs.Pressure)
		assert.Nil(t, obs.Latitude)
		assert.Nil(t, obs.Longitude)
		assert.Equal(t, TypeUnknown, obs.StormType)
		assert.Empty(t, obs.Wallet)
		assert.Empty(t, obs.WalletURL)
	})
}

func TestClassifyStormType(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		expected StormType
	}{
		{"hurricane", []string{"Hurricane"}, TypeHurricane},
		{"tropical storm", []string{"Tropical Storm"}, TypeTropicalStorm},
		{"tropical depression", []string{"Tropical Depression"}, TypeTropicalDepression},
		{"post-tropical wins over hurricane", []string{"Post-Tropical Cyclone Barbara, formerly Hurricane Barbara"}, TypePostTropical},
		{"falls through to later text", []string{"", "Tropical Storm Cosme Advisory 7"}, TypeTropicalStorm},
		{"case insensitive", []string{"hurricane barbara"}, TypeHurricane},
		{"no match", []string{"Weather Outlook"}, TypeUnknown},
		{"empty", nil, TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyStormType(tt.texts...))
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	ptr := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		center string
		lat    *float64
		lon    *float64
	}{
		{"signed decimal", "14.2, -120.9", ptr(14.2), ptr(-120.9)},
		{"hemisphere suffixes", "15.1N, 125.4W", ptr(15.1), ptr(-125.4)},
		{"southern hemisphere", "10.5S, 140.0E", ptr(-10.5), ptr(140.0)},
		{"degree symbols", "14.2°N, 120.9°W", ptr(14.2), ptr(-120.9)},
		{"missing longitude", "14.2", nil, nil},
		{"unparseable", "near the coast", nil, nil},
		{"empty", "", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon := ParseCoordinates(tt.center)
			if tt.lat == nil {
				assert.Nil(t, lat)
				assert.Nil(t, lon)
				return
			}
			require.NotNil(t, lat)
			require.NotNil(t, lon)
			assert.InDelta(t, *tt.lat, *lat, 1e-9)
			assert.InDelta(t, *tt.lon, *lon, 1e-9)
		})
	}
}

func TestParseReportTime(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)))
	defer SetClock(nil)

	tests := []struct {
		name     string
		input    string
		expected time.Time
		ok       bool
	}{
		{
			"RFC1123",
			"Sun, 15 Jun 2025 12:00:00 GMT",
			time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), true,
		},
		{
			"RFC1123 with numeric zone",
			"Sun, 15 Jun 2025 08:00:00 -0400",
			time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), true,
		},
		{
			"RFC3339",
			"2025-06-15T12:00:00Z",
			time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), true,
		},
		{
			"zoneless datetime treated as GMT",
			"2025-06-15 12:00:00",
			time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), true,
		},
		{
			"local advisory form without year",
			"1100 AM EDT Sun Jun 15",
			time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC), true,
		},
		{
			"local advisory form with year",
			"500 PM AST Tue Sep 02 2025",
			time.Date(2025, 9, 2, 21, 0, 0, 0, time.UTC), true,
		},
		{
			"local advisory noon is not offset",
			"1200 PM PDT Sun Jun 15",
			time.Date(2025, 6, 15, 19, 0, 0, 0, time.UTC), true,
		},
		{
			"local advisory midnight",
			"1200 AM CDT Sun Jun 15",
			time.Date(2025, 6, 15, 5, 0, 0, 0, time.UTC), true,
		},
		{"unknown zone abbreviation", "1100 AM XYZ Sun Jun 15", time.Time{}, false},
		{"garbage", "sometime soon", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseReportTime(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDeriveSeason(t *testing.T) {
	report := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		stormID  string
		expected int
	}{
		{"from ATCF identifier", "EP022025", 2025},
		{"no trailing year falls back to report year", "EPXX", 2024},
		{"implausible year falls back to report year", "EP029999", 2024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveSeason(tt.stormID, report))
		})
	}
}

func TestWalletFeedURL(t *testing.T) {
	assert.Equal(t, "https://www.nhc.noaa.gov/nhc_ep2.xml",
		walletFeedURL("https://www.nhc.noaa.gov/index-ep.xml", "EP2"))
	assert.Empty(t, walletFeedURL("https://www.nhc.noaa.gov/index-ep.xml", ""))
	assert.Empty(t, walletFeedURL("not a url", "EP2"))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Barbara is moving WNW at 12 mph.",
		stripHTML("<pre>Barbara is   moving\nWNW at 12 mph.</pre>"))
	assert.Equal(t, "wind & rain", stripHTML("wind &amp; rain"))
	assert.Empty(t, stripHTML(""))
}
