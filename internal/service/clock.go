package service

import "time"

// Clock is the wall-clock source. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// BillingClock answers calendar questions about payment days in a fixed timezone.
type BillingClock struct {
	clock Clock
	loc   *time.Location
}

// NewBillingClock creates a BillingClock. A nil location means UTC.
func NewBillingClock(clock Clock, loc *time.Location) *BillingClock {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BillingClock{clock: clock, loc: loc}
}

// Location returns the timezone all dates are evaluated in.
func (c *BillingClock) Location() *time.Location { return c.loc }

// Now returns the current instant in the billing timezone.
func (c *BillingClock) Now() time.Time { return c.clock.Now().In(c.loc) }

// Today returns midnight of the current day.
func (c *BillingClock) Today() time.Time {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// Tomorrow returns midnight of the next calendar day.
func (c *BillingClock) Tomorrow() time.Time {
	return c.Today().AddDate(0, 0, 1)
}

// TodayDayOfMonth returns today's day of the month in the billing timezone.
func (c *BillingClock) TodayDayOfMonth() int { return c.Today().Day() }

// TomorrowDayOfMonth returns tomorrow's day of the month in the billing timezone.
func (c *BillingClock) TomorrowDayOfMonth() int { return c.Tomorrow().Day() }

// IsValidDay reports whether day exists in the given month.
func (c *BillingClock) IsValidDay(day int, month time.Month, year int) bool {
	return day >= 1 && day <= DaysIn(month, year)
}

// ResolvePaymentDate turns a payment day into a date in the given month.
// Days past the end of the month clamp to its last day.
func (c *BillingClock) ResolvePaymentDate(day int, month time.Month, year int) time.Time {
	last := DaysIn(month, year)
	switch {
	case day > last:
		day = last
	case day < 1:
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, c.loc)
}

// DueDays lists the payment days that fall on date. On the last day of a
// month that includes every larger day up to 31.
func DueDays(date time.Time) []int {
	day := date.Day()
	days := []int{day}
	if day == DaysIn(date.Month(), date.Year()) {
		for d := day + 1; d <= 31; d++ {
			days = append(days, d)
		}
	}
	return days
}

// DaysIn returns the number of days in month of year.
func DaysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
