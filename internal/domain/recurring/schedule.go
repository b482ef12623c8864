package recurring

import "time"

// NextDueDate advances a due date by exactly one period of the frequency.
// It is a pure function of its inputs and never reads the clock.
//
// All arithmetic is calendar-based in UTC at midnight. Month-granular
// frequencies keep the current day of month and clamp to the last valid day
// of the target month, so the clamp does not re-anchor: Jan 31 -> Feb 28 ->
// Mar 28 (Feb 29 in a leap year, then Mar 29).
func NextDueDate(f Frequency, current time.Time) time.Time {
	cur := DateOnly(current)
	switch f {
	case Daily:
		return cur.AddDate(0, 0, 1)
	case Weekly:
		return cur.AddDate(0, 0, 7)
	case Biweekly:
		return cur.AddDate(0, 0, 14)
	case Monthly:
		return addMonthsClamped(cur, 1)
	case Quarterly:
		return addMonthsClamped(cur, 3)
	case Yearly:
		return addMonthsClamped(cur, 12)
	}
	return cur
}

// DateOnly truncates a time to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addMonthsClamped adds whole calendar months, clamping the day of month to
// the target month's length. time.AddDate alone would normalize Jan 31 + 1
// month into Mar 2/3.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
