package presence

import (
	"context"
	"sync"
	"time"

	"github.com/collabhub/realtime/domain"
	"go.uber.org/zap"
)

const shardCount = 16

// Internal signals produced by the tracker's own timers.
const (
	signalAutoAway   = "auto_away"
	signalAutoAFK    = "auto_afk"
	signalBreakOver  = "break_over"
	defaultRetention = time.Hour
)

type Config struct {
	AwayTimeout      time.Duration
	AFKTimeout       time.Duration
	OfflineRetention time.Duration
}

type userState struct {
	mu    sync.Mutex
	state domain.PresenceState

	awayTimer  *time.Timer
	afkTimer   *time.Timer
	breakTimer *time.Timer
}

func (u *userState) stopTimers() {
	for _, t := range []*time.Timer{u.awayTimer, u.afkTimer, u.breakTimer} {
		if t != nil {
			t.Stop()
		}
	}

	u.awayTimer, u.afkTimer, u.breakTimer = nil, nil, nil
}

type shard struct {
	mu    sync.Mutex
	users map[uint64]*userState
}

// Tracker owns every user's presence state. Each user's state is guarded
// by its own lock, so two connections of the same user serialize while
// unrelated users never contend.
type Tracker struct {
	shards   [shardCount]shard
	cfg      Config
	prefs    domain.PreferenceReader
	onChange func(userID uint64, state domain.PresenceState)
	log      *zap.Logger
}

func NewTracker(cfg Config, prefs domain.PreferenceReader, log *zap.Logger) *Tracker {
	if cfg.OfflineRetention <= 0 {
		cfg.OfflineRetention = defaultRetention
	}

	t := &Tracker{cfg: cfg, prefs: prefs, log: log}

	for i := range t.shards {
		t.shards[i].users = make(map[uint64]*userState)
	}

	return t
}

// SetChangeListener wires the transition callback. Must be called before
// the first Apply.
func (t *Tracker) SetChangeListener(f func(userID uint64, state domain.PresenceState)) {
	t.onChange = f
}

func (t *Tracker) user(userID uint64, create bool) *userState {
	s := &t.shards[userID%shardCount]

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok && create {
		u = &userState{state: domain.PresenceState{Status: domain.StatusOffline}}
		s.users[userID] = u
	}

	return u
}

// State returns a copy of the user's current state.
func (t *Tracker) State(userID uint64) (domain.PresenceState, bool) {
	u := t.user(userID, false)
	if u == nil {
		return domain.PresenceState{}, false
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.state, true
}

// Apply feeds one signal into the user's state machine. Signals stamped
// before the current state entry are discarded with ErrStaleUpdate.
func (t *Tracker) Apply(userID uint64, sig domain.PresenceSignal) (domain.PresenceState, error) {
	u := t.user(userID, true)

	u.mu.Lock()

	if sig.At.IsZero() {
		sig.At = time.Now()
	}

	if sig.At.Before(u.state.EnteredAt) {
		state := u.state
		u.mu.Unlock()

		t.log.Debug("discarding stale presence update",
			zap.Uint64("userId", userID),
			zap.String("signal", sig.Kind),
			zap.Time("signalAt", sig.At),
			zap.Time("enteredAt", state.EnteredAt),
		)

		return state, domain.ErrStaleUpdate
	}

	prev := u.state.Status
	prevMsg := u.state.AwayMessage

	t.transition(userID, u, sig)

	state := u.state
	changed := state.Status != prev || state.AwayMessage != prevMsg

	u.mu.Unlock()

	if changed && t.onChange != nil {
		t.onChange(userID, state)
	}

	return state, nil
}

// transition mutates the state under the user lock.
func (t *Tracker) transition(userID uint64, u *userState, sig domain.PresenceSignal) {
	st := &u.state

	enter := func(status domain.PresenceStatus) {
		st.Status = status
		st.EnteredAt = sig.At
	}

	switch sig.Kind {
	case domain.SignalConnect:
		st.LastActivity = sig.At
		if st.Status == domain.StatusOffline {
			st.AwayMessage = ""
			st.BreakUntil = time.Time{}
			enter(domain.StatusActive)
		}

	case domain.SignalDisconnect:
		u.stopTimers()
		enter(domain.StatusOffline)
		return

	case domain.SignalActivity, domain.SignalVisible:
		st.LastActivity = sig.At
		// Automatic away clears on any activity; afk and break do not.
		if st.Status == domain.StatusAway {
			enter(domain.StatusActive)
		}

	case domain.SignalHidden:
		if st.Status == domain.StatusActive {
			enter(domain.StatusAway)
		}

	case signalAutoAway:
		if st.Status == domain.StatusActive && sig.At.Sub(st.LastActivity) >= t.cfg.AwayTimeout {
			enter(domain.StatusAway)
		}

	case domain.SignalSetAFK:
		if st.Status == domain.StatusActive || st.Status == domain.StatusAway || st.Status == domain.StatusAFK {
			st.AwayMessage = sig.AwayMessage
			enter(domain.StatusAFK)
		}

	case signalAutoAFK:
		if (st.Status == domain.StatusActive || st.Status == domain.StatusAway) &&
			sig.At.Sub(st.LastActivity) >= t.cfg.AFKTimeout {
			enter(domain.StatusAFK)
		}

	case domain.SignalClearAFK:
		if st.Status == domain.StatusAFK {
			st.AwayMessage = ""
			st.LastActivity = sig.At
			enter(domain.StatusActive)
		}

	case domain.SignalStartBreak:
		if st.Status == domain.StatusActive || st.Status == domain.StatusAway {
			st.BreakUntil = sig.At.Add(sig.BreakDuration)
			enter(domain.StatusBreak)
		}

	case domain.SignalEndBreak, signalBreakOver:
		if st.Status == domain.StatusBreak {
			st.BreakUntil = time.Time{}
			st.LastActivity = sig.At
			enter(domain.StatusActive)
		}
	}

	t.reschedule(userID, u)
}

// reschedule arms the timers the new status needs and drops the rest.
// Runs under the user lock; fired timers re-enter through Apply.
func (t *Tracker) reschedule(userID uint64, u *userState) {
	u.stopTimers()

	switch u.state.Status {
	case domain.StatusActive, domain.StatusAway:
		if u.state.Status == domain.StatusActive && t.cfg.AwayTimeout > 0 {
			u.awayTimer = time.AfterFunc(t.cfg.AwayTimeout, func() {
				t.Apply(userID, domain.PresenceSignal{Kind: signalAutoAway})
			})
		}

		// The preference lookup happens when the timer fires, on the
		// timer goroutine: a slow preference store must never stall the
		// signal path.
		if t.cfg.AFKTimeout > 0 {
			u.afkTimer = time.AfterFunc(t.cfg.AFKTimeout, func() {
				if !t.afkEnabled(userID) {
					return
				}

				t.Apply(userID, domain.PresenceSignal{Kind: signalAutoAFK})
			})
		}

	case domain.StatusBreak:
		if d := time.Until(u.state.BreakUntil); d > 0 {
			u.breakTimer = time.AfterFunc(d, func() {
				t.Apply(userID, domain.PresenceSignal{Kind: signalBreakOver})
			})
		}
	}
}

func (t *Tracker) afkEnabled(userID uint64) bool {
	if t.prefs == nil {
		return false
	}

	prefs, err := t.prefs.Preferences(context.Background(), userID)
	if err != nil {
		t.log.Warn("preference lookup failed, auto-afk disabled",
			zap.Uint64("userId", userID),
			zap.Error(err),
		)
		return false
	}

	return prefs.AFKEnabled
}

// RunGC drops offline users past the retention window until ctx ends.
func (t *Tracker) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.collect(now)
		}
	}
}

func (t *Tracker) collect(now time.Time) {
	for i := range t.shards {
		s := &t.shards[i]

		s.mu.Lock()
		for id, u := range s.users {
			u.mu.Lock()
			expired := u.state.Status == domain.StatusOffline &&
				now.Sub(u.state.EnteredAt) > t.cfg.OfflineRetention
			if expired {
				u.stopTimers()
				delete(s.users, id)
			}
			u.mu.Unlock()
		}
		s.mu.Unlock()
	}
}
