package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testObservation(reportTime time.Time) Observation {
	wind := 75
	pressure := 985
	lat, lon := 14.2, -120.9
	return Observation{
		StormID:    "EP022025",
		RegionID:   "ep",
		Season:     2025,
		Name:       "Barbara",
		StormType:  TypeHurricane,
		Latitude:   &lat,
		Longitude:  &lon,
		Movement:   "WNW at 12 mph",
		WindSpeed:  &wind,
		Pressure:   &pressure,
		Headline:   "Hurricane Barbara strengthens",
		ReportTime: reportTime,
	}
}

func TestReconcile(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	defer SetClock(nil)

	report := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("first sighting creates state and one history snapshot", func(t *testing.T) {
		obs := testObservation(report)

		d := Reconcile(obs, nil)

		assert.Equal(t, ActionCreate, d.Action)
		assert.Equal(t, StatusActive, d.State.Status)
		assert.Equal(t, 0, d.State.MissedCycles)
		assert.Equal(t, now, d.State.CreatedAt)
		assert.Equal(t, now, d.State.UpdatedAt)
		assert.Empty(t, cmp.Diff(obs, d.State.Observation))

		require.NotNil(t, d.History)
		assert.Equal(t, StatusActive, d.History.Status)
		assert.Equal(t, now, d.History.RecordedAt)
		assert.Empty(t, cmp.Diff(obs, d.History.Observation))
	})

	t.Run("equal report timestamp refreshes without history", func(t *testing.T) {
		prev := &StormState{
			Observation: testObservation(report),
			Status:      StatusActive,
			CreatedAt:   now.Add(-6 * time.Hour),
			UpdatedAt:   now.Add(-6 * time.Hour),
		}

		// Free-text fields change but the report timestamp does not.
		obs := testObservation(report)
		obs.Headline = "Hurricane Barbara strengthens (corrected)"
		obs.Movement = "WNW at 13 mph"

		d := Reconcile(obs, prev)

		assert.Equal(t, ActionRefresh, d.Action)
		assert.Nil(t, d.History)
		assert.Equal(t, prev.CreatedAt, d.State.CreatedAt)
		assert.Equal(t, now, d.State.UpdatedAt)
		assert.Equal(t, "Hurricane Barbara strengthens (corrected)", d.State.Headline)
	})

	t.Run("new report timestamp refreshes with history", func(t *testing.T) {
		prev := &StormState{
			Observation: testObservation(report),
			Status:      StatusActive,
			CreatedAt:   now.Add(-6 * time.Hour),
			UpdatedAt:   now.Add(-6 * time.Hour),
		}

		obs := testObservation(report.Add(6 * time.Hour))

		d := Reconcile(obs, prev)

		assert.Equal(t, ActionRefreshWithHistory, d.Action)
		require.NotNil(t, d.History)
		assert.Equal(t, obs.ReportTime, d.History.ReportTime)
		assert.Equal(t, prev.CreatedAt, d.State.CreatedAt)
	})

	t.Run("refresh clears the missed-cycle counter", func(t *testing.T) {
		prev := &StormState{
			Observation:  testObservation(report),
			Status:       StatusActive,
			MissedCycles: 2,
			CreatedAt:    now.Add(-6 * time.Hour),
		}

		d := Reconcile(testObservation(report), prev)
		assert.Equal(t, 0, d.State.MissedCycles)
	})

	t.Run("reappearing inactive storm is reactivated", func(t *testing.T) {
		prev := &StormState{
			Observation: testObservation(report.Add(-48 * time.Hour)),
			Status:      StatusInactive,
			CreatedAt:   now.Add(-72 * time.Hour),
		}

		d := Reconcile(testObservation(report), prev)

		assert.Equal(t, ActionRefreshWithHistory, d.Action)
		assert.Equal(t, StatusActive, d.State.Status)
	})

	t.Run("timestamp equality ignores wall-clock representation", func(t *testing.T) {
		// Same instant in a different zone must still compare equal.
		est := time.FixedZone("EST", -5*3600)
		prev := &StormState{
			Observation: testObservation(report.In(est)),
			Status:      StatusActive,
			CreatedAt:   now.Add(-6 * time.Hour),
		}

		d := Reconcile(testObservation(report), prev)
		assert.Equal(t, ActionRefresh, d.Action)
		assert.Nil(t, d.History)
	})
}

// TestReconcileAdvisorySequence walks a storm through the lifecycle the feeds
// actually produce: first advisory, a re-poll of the same advisory, then the
// next advisory six hours later.
func TestReconcileAdvisorySequence(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(now)
	SetClock(fake)
	defer SetClock(nil)

	first := testObservation(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	d1 := Reconcile(first, nil)
	require.Equal(t, ActionCreate, d1.Action)
	require.NotNil(t, d1.History)
	historyCount := 1

	// Next cycle re-reads the same advisory.
	fake.Advance(time.Hour)
	d2 := Reconcile(first, &d1.State)
	require.Equal(t, ActionRefresh, d2.Action)
	require.Nil(t, d2.History)
	assert.Equal(t, d1.State.CreatedAt, d2.State.CreatedAt)

	// A new advisory lands with a later report timestamp.
	fake.Advance(5 * time.Hour)
	second := testObservation(time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC))
	wind := 90
	second.WindSpeed = &wind

	d3 := Reconcile(second, &d2.State)
	require.Equal(t, ActionRefreshWithHistory, d3.Action)
	require.NotNil(t, d3.History)
	historyCount++

	assert.Equal(t, 2, historyCount)
	assert.Equal(t, d1.State.CreatedAt, d3.State.CreatedAt)
	require.NotNil(t, d3.State.WindSpeed)
	assert.Equal(t, 90, *d3.State.WindSpeed)
}
