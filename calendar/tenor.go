package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meenmo/curvekit/utils"
)

// Unit is the period unit of a tenor.
type Unit byte

const (
	Days   Unit = 'D'
	Weeks  Unit = 'W'
	Months Unit = 'M'
	Years  Unit = 'Y'
)

// Tenor is a market period such as 2D, 1W, 3M or 10Y. Day tenors count business days.
type Tenor struct {
	N    int
	Unit Unit
}

// ParseTenor parses tenor strings like "2D", "1W", "3M", "10Y".
func ParseTenor(s string) (Tenor, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if len(s) < 2 {
		return Tenor{}, fmt.Errorf("ParseTenor: invalid tenor %q", s)
	}
	unit := Unit(s[len(s)-1])
	switch unit {
	case Days, Weeks, Months, Years:
	default:
		return Tenor{}, fmt.Errorf("ParseTenor: unknown unit in %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Tenor{}, fmt.Errorf("ParseTenor: invalid count in %q", s)
	}
	return Tenor{N: n, Unit: unit}, nil
}

func (t Tenor) String() string {
	return strconv.Itoa(t.N) + string(t.Unit)
}

// Months returns the tenor length in months, or 0 for day and week tenors.
func (t Tenor) Months() int {
	switch t.Unit {
	case Months:
		return t.N
	case Years:
		return 12 * t.N
	}
	return 0
}

// Years approximates the tenor as a year fraction.
func (t Tenor) Years() float64 {
	switch t.Unit {
	case Days:
		return float64(t.N) / 365.0
	case Weeks:
		return float64(t.N) * 7.0 / 365.0
	case Months:
		return float64(t.N) / 12.0
	default:
		return float64(t.N)
	}
}

// AddTenor rolls start by the tenor. Day tenors advance business days; week
// tenors advance calendar days then follow; month and year tenors roll with
// end-of-month preservation and Modified Following.
func (c *Calendar) AddTenor(start time.Time, t Tenor) time.Time {
	switch t.Unit {
	case Days:
		return c.AddBusinessDays(start, t.N)
	case Weeks:
		return c.AdjustFollowing(start.AddDate(0, 0, 7*t.N))
	default:
		months := t.Months()
		target := utils.AddMonth(start, months)
		if utils.IsMonthEnd(start) {
			target = time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		}
		return c.Adjust(target)
	}
}
