package calendar

import (
	"time"

	"github.com/meenmo/curvekit/utils"
)

// CalendarID identifies a holiday calendar.
type CalendarID string

const (
	TARGET CalendarID = "TARGET"
	JPN    CalendarID = "JPN"
	USD    CalendarID = "USD"
	KRW    CalendarID = "KRW"
)

// Calendar is a weekend-plus-holidays business day calendar. The holiday set is
// fixed at construction; a Calendar is safe for concurrent use.
type Calendar struct {
	id       CalendarID
	holidays map[string]struct{}
	rule     func(time.Time) bool
}

// New builds a calendar from explicit holiday dates.
func New(id CalendarID, holidays ...time.Time) *Calendar {
	h := make(map[string]struct{}, len(holidays))
	for _, d := range holidays {
		h[d.Format(utils.DateLayout)] = struct{}{}
	}
	return &Calendar{id: id, holidays: h}
}

// WeekendsOnly returns a calendar with no holidays.
func WeekendsOnly(id CalendarID) *Calendar {
	return New(id)
}

// Standard returns the rule-based calendar of id plus any extra holidays.
// USD follows the Federal Reserve schedule and TARGET the ECB's. JPN and
// KRW have no rules and only know the extra dates.
func Standard(id CalendarID, extra ...time.Time) *Calendar {
	c := New(id, extra...)
	switch id {
	case USD:
		c.rule = usdHoliday
	case TARGET:
		c.rule = targetHoliday
	}
	return c
}

func (c *Calendar) ID() CalendarID {
	return c.id
}

func (c *Calendar) isHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	if _, ok := c.holidays[t.Format(utils.DateLayout)]; ok {
		return true
	}
	return c.rule != nil && c.rule(t)
}

// IsBusinessDay checks weekends and the holiday set.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !c.isHoliday(t)
}

// Adjust applies Modified Following.
func (c *Calendar) Adjust(t time.Time) time.Time {
	origMonth := t.Month()
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	if t.Month() != origMonth {
		t = t.AddDate(0, 0, -1)
		for !c.IsBusinessDay(t) {
			t = t.AddDate(0, 0, -1)
		}
	}
	return t
}

// AdjustFollowing applies a simple Following convention (no month preservation).
func (c *Calendar) AdjustFollowing(t time.Time) time.Time {
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AddBusinessDays advances n business days (n can be negative).
func (c *Calendar) AddBusinessDays(t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if c.IsBusinessDay(t) {
			n -= step
		}
	}
	return t
}

// LastBusinessDayOfMonth returns the last business day of the month containing t.
func (c *Calendar) LastBusinessDayOfMonth(t time.Time) time.Time {
	nextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return c.AddBusinessDays(nextMonth, -1)
}

// IsEndOfMonth checks if t is the last business day of its month.
func (c *Calendar) IsEndOfMonth(t time.Time) bool {
	return t.Equal(c.LastBusinessDayOfMonth(t))
}
