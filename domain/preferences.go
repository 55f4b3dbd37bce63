package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ClockWindow is a daily time window in minutes since midnight. A window
// whose start is after its end spans midnight (22:00-07:00).
type ClockWindow struct {
	StartMinute int `json:"startMinute"`
	EndMinute   int `json:"endMinute"`
}

func (w ClockWindow) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()

	if w.StartMinute > w.EndMinute {
		return minute >= w.StartMinute || minute <= w.EndMinute
	}

	return minute >= w.StartMinute && minute <= w.EndMinute
}

// ParseClock parses "15:04" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}

	return t.Hour()*60 + t.Minute(), nil
}

// Notification modes.
const (
	ModeAll      = "all"
	ModeMentions = "mentions"
	ModeNone     = "none"
)

// Preferences are a user's stored notification and presence settings.
// WorkDays uses 1-7 where 1 is Monday, e.g. "12345".
type Preferences struct {
	DNDEnabled       bool        `json:"dndEnabled"`
	DNDWindow        ClockWindow `json:"dndWindow"`
	WorkDays         string      `json:"workDays"`
	WorkHours        ClockWindow `json:"workHours"`
	MutedWorkItems   []uint64    `json:"mutedWorkItems"`
	AFKEnabled       bool        `json:"afkEnabled"`
	NotificationMode string      `json:"notificationMode"`
}

// DefaultPreferences matches a user who never saved settings: no DND,
// Monday-Friday 09:00-17:00, all notifications.
func DefaultPreferences() Preferences {
	return Preferences{
		WorkDays:         "12345",
		WorkHours:        ClockWindow{StartMinute: 9 * 60, EndMinute: 17 * 60},
		NotificationMode: ModeAll,
	}
}

func (p Preferences) InDNDPeriod(now time.Time) bool {
	if !p.DNDEnabled {
		return false
	}

	return p.DNDWindow.Contains(now)
}

func (p Preferences) InWorkingHours(now time.Time) bool {
	// time.Weekday has Sunday=0; our mask uses Monday=1 .. Sunday=7.
	day := int(now.Weekday())
	if day == 0 {
		day = 7
	}

	if !strings.Contains(p.WorkDays, fmt.Sprintf("%d", day)) {
		return false
	}

	return p.WorkHours.Contains(now)
}

func (p Preferences) Muted(workItemID uint64) bool {
	for _, id := range p.MutedWorkItems {
		if id == workItemID {
			return true
		}
	}

	return false
}

// ShouldNotify decides whether a live notification reaches this user.
// Urgent events cut through DND and off-hours, but not mutes or mode
// none.
func (p Preferences) ShouldNotify(event *NotificationEvent, now time.Time) bool {
	if p.NotificationMode == ModeNone {
		return false
	}

	if event.WorkItemID != 0 && p.Muted(event.WorkItemID) {
		return false
	}

	if !event.Urgent && p.InDNDPeriod(now) {
		return false
	}

	if !event.Urgent && !p.InWorkingHours(now) {
		return false
	}

	return true
}

// PreferenceReader is the stored-preference collaborator.
type PreferenceReader interface {
	Preferences(ctx context.Context, userID uint64) (Preferences, error)
}
