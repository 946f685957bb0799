package database

import (
	"time"

	"github.com/edgard/smartblinds/internal/schedule"
)

// Action is a persisted weekly schedule entry: at Time on Weekday the blinds
// are driven to Open. Actions are immutable; an update is a delete followed
// by a create.
type Action struct {
	ID      int64
	Weekday schedule.Weekday
	Time    schedule.TimeOfDay
	Open    bool
}

// NextOccurrence returns the next instant after now at which the action is due.
func (a Action) NextOccurrence(now time.Time) time.Time {
	return schedule.NextOccurrence(a.Weekday, a.Time, now)
}

// TargetName returns "open" or "close".
func (a Action) TargetName() string {
	if a.Open {
		return "open"
	}
	return "close"
}

// actionRow mirrors the actions table. Day and time are validated when
// converted to an Action.
type actionRow struct {
	ID   int64  `db:"id"`
	Day  int64  `db:"day"`
	Time string `db:"time"`
	Open bool   `db:"open"`
}

func (r actionRow) toAction() (*Action, error) {
	day, err := schedule.WeekdayFromInt(r.Day)
	if err != nil {
		return nil, err
	}
	tod, err := schedule.ParseTimeOfDay(r.Time)
	if err != nil {
		return nil, err
	}
	return &Action{ID: r.ID, Weekday: day, Time: tod, Open: r.Open}, nil
}
