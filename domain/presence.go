package domain

import (
	"context"
	"time"
)

type PresenceStatus string

const (
	StatusActive       PresenceStatus = "active"
	StatusAway         PresenceStatus = "away"
	StatusAFK          PresenceStatus = "afk"
	StatusBreak        PresenceStatus = "break"
	StatusOutsideHours PresenceStatus = "outside_hours"
	StatusOffline      PresenceStatus = "offline"
)

// PresenceState is the per-user availability state. It is per user, not
// per connection: two tabs of the same user share one state.
type PresenceState struct {
	Status       PresenceStatus `json:"status"`
	AwayMessage  string         `json:"awayMessage,omitempty"`
	LastActivity time.Time      `json:"lastActivity"`
	EnteredAt    time.Time      `json:"enteredAt"`
	BreakUntil   time.Time      `json:"breakUntil,omitempty"`
}

// Signal kinds feeding the presence state machine.
const (
	SignalActivity   = "activity"
	SignalHidden     = "hidden"
	SignalVisible    = "visible"
	SignalSetAFK     = "set_afk"
	SignalClearAFK   = "clear_afk"
	SignalStartBreak = "start_break"
	SignalEndBreak   = "end_break"
	SignalConnect    = "connect"
	SignalDisconnect = "disconnect"
)

// PresenceSignal is one state-machine input. At is the triggering
// timestamp; signals older than the current state entry are discarded.
type PresenceSignal struct {
	Kind          string
	At            time.Time
	AwayMessage   string
	BreakDuration time.Duration
}

// PresenceUpdate is the fan-out payload for one state transition.
type PresenceUpdate struct {
	Type   string         `json:"type"`
	UserID uint64         `json:"userId"`
	Status PresenceStatus `json:"status"`
	State  PresenceState  `json:"state"`
}

// PresenceTracker serializes state mutations per user and reports
// transitions to its change listener.
type PresenceTracker interface {
	Apply(userID uint64, signal PresenceSignal) (PresenceState, error)
	State(userID uint64) (PresenceState, bool)
}

// PresenceWriter mirrors presence state to shared storage so peer nodes
// and plain HTTP views can read it.
type PresenceWriter interface {
	Update(ctx context.Context, userID uint64, state PresenceState) error
	Delete(ctx context.Context, userID uint64) error
	Refresh(ctx context.Context, userID uint64) error
}

type PresenceReader interface {
	Get(ctx context.Context, userID uint64) (*PresenceState, error)
}

// EffectiveStatus applies the working-hours overlay. Outside the user's
// configured hours, active and away display as outside_hours; afk, break
// and offline are never overridden.
func EffectiveStatus(state PresenceState, prefs Preferences, now time.Time) PresenceStatus {
	switch state.Status {
	case StatusActive, StatusAway:
		if !prefs.InWorkingHours(now) {
			return StatusOutsideHours
		}
	}

	return state.Status
}
