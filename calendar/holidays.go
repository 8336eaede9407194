package calendar

import "time"

// usdHoliday reports Federal Reserve holidays. A fixed-date holiday on a
// Sunday is observed the following Monday; one on a Saturday is not observed.
func usdHoliday(t time.Time) bool {
	y, m, d := t.Date()
	switch m {
	case time.January:
		return observedSunday(t, 1) || isNthWeekday(t, time.Monday, 3)
	case time.February:
		return isNthWeekday(t, time.Monday, 3)
	case time.May:
		return t.Weekday() == time.Monday && d+7 > daysIn(y, m)
	case time.June:
		return y >= 2022 && observedSunday(t, 19)
	case time.July:
		return observedSunday(t, 4)
	case time.September:
		return isNthWeekday(t, time.Monday, 1)
	case time.October:
		return isNthWeekday(t, time.Monday, 2)
	case time.November:
		return observedSunday(t, 11) || isNthWeekday(t, time.Thursday, 4)
	case time.December:
		return observedSunday(t, 25)
	}
	return false
}

// targetHoliday reports TARGET2 closing days.
func targetHoliday(t time.Time) bool {
	y, m, d := t.Date()
	switch {
	case m == time.January && d == 1,
		m == time.May && d == 1,
		m == time.December && (d == 25 || d == 26):
		return true
	}
	e := easter(y)
	return sameDay(t, e.AddDate(0, 0, -2)) || sameDay(t, e.AddDate(0, 0, 1))
}

// observedSunday matches day of t's month, or the Monday after it when it
// falls on a Sunday.
func observedSunday(t time.Time, day int) bool {
	d := t.Day()
	if d == day {
		return true
	}
	return t.Weekday() == time.Monday && d == day+1
}

func isNthWeekday(t time.Time, wd time.Weekday, n int) bool {
	return t.Weekday() == wd && (t.Day()-1)/7 == n-1
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// easter returns Gregorian Easter Sunday (anonymous Gregorian algorithm).
func easter(y int) time.Time {
	a := y % 19
	b, c := y/100, y%100
	d, e := b/4, b%4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i, k := c/4, c%4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
