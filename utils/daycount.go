package utils

import (
	"time"
)

// DayCount names a year-fraction convention.
type DayCount string

const (
	Act360  DayCount = "ACT/360"
	Act365F DayCount = "ACT/365F"
	Dc30E   DayCount = "30E/360"
	Dc30360 DayCount = "30/360"
)

// YearFraction computes year fraction between two dates using the specified day count convention.
// Supported conventions: ACT/360, ACT/365F, 30E/360, 30/360. Unknown conventions fall back to ACT/365F.
func YearFraction(start, end time.Time, convention DayCount) float64 {
	switch convention {
	case Act360:
		return Days(start, end) / 360.0
	case Act365F:
		return Days(start, end) / 365.0
	case Dc30E:
		// 30E/360 ISDA (Eurobond basis): both day-of-month values capped at 30
		d1 := min(start.Day(), 30)
		d2 := min(end.Day(), 30)
		return thirty360(start, end, d1, d2)
	case Dc30360:
		// 30/360 US bond basis: D2 is capped only when D1 was
		d1 := min(start.Day(), 30)
		d2 := end.Day()
		if d2 == 31 && d1 == 30 {
			d2 = 30
		}
		return thirty360(start, end, d1, d2)
	default:
		return Days(start, end) / 365.0
	}
}

func thirty360(start, end time.Time, d1, d2 int) float64 {
	y1, m1 := start.Year(), int(start.Month())
	y2, m2 := end.Year(), int(end.Month())
	return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
}

// ParseDayCount maps a user-supplied name onto a DayCount.
func ParseDayCount(s string) (DayCount, bool) {
	switch DayCount(s) {
	case Act360, Act365F, Dc30E, Dc30360:
		return DayCount(s), true
	case "ACT/365":
		return Act365F, true
	}
	return "", false
}
