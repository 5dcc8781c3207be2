package domain

import "time"

// Action is the reconciler's verdict for one observation.
type Action string

const (
	// ActionCreate inserts a new storm state and appends its first history
	// snapshot.
	ActionCreate Action = "create"

	// ActionRefresh overwrites the storm state without appending history.
	// This covers corrections to free text that do not bump the report
	// timestamp.
	ActionRefresh Action = "refresh"

	// ActionRefreshWithHistory overwrites the storm state and appends a new
	// history snapshot, because the report timestamp changed.
	ActionRefreshWithHistory Action = "refresh_with_history"
)

// Decision is the reconciler's output: what to do, the state row to persist,
// and the history snapshot to append (nil for ActionRefresh). The reconciler
// performs no persistence itself.
type Decision struct {
	Action  Action
	State   StormState
	History *HistoryEntry
}

// Reconcile compares an incoming observation against the last persisted state
// for its storm identifier (nil when none exists) and decides how to persist
// it.
//
// The report timestamp is the sole history-append signal: exact equality on
// the normalized UTC instant means no new history, regardless of other field
// changes. The upstream source bumps the timestamp on every substantive
// advisory revision, so a tolerance window would only mask duplicates.
func Reconcile(obs Observation, prev *StormState) Decision {
	now := clock.Now().UTC()

	state := StormState{
		Observation:  obs,
		Status:       StatusActive,
		MissedCycles: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if prev == nil {
		return Decision{
			Action:  ActionCreate,
			State:   state,
			History: snapshot(obs, now),
		}
	}

	state.CreatedAt = prev.CreatedAt

	if prev.ReportTime.Equal(obs.ReportTime) {
		return Decision{Action: ActionRefresh, State: state}
	}

	return Decision{
		Action:  ActionRefreshWithHistory,
		State:   state,
		History: snapshot(obs, now),
	}
}

func snapshot(obs Observation, now time.Time) *HistoryEntry {
	return &HistoryEntry{
		Observation: obs,
		Status:      StatusActive,
		RecordedAt:  now,
	}
}
