package models

import "time"

// Period is a typed training interval used for follow-up and refresher
// scheduling on training modules. Each value maps to a fixed calendar offset.
type Period string

const (
	// PeriodNone disables the schedule.
	PeriodNone Period = ""
	// Period1Week schedules one week after completion.
	Period1Week Period = "1_week"
	// Period2Weeks schedules two weeks after completion.
	Period2Weeks Period = "2_weeks"
	// Period1Month schedules one month after completion.
	Period1Month Period = "1_month"
	// Period3Months schedules three months after completion.
	Period3Months Period = "3_months"
	// Period6Months schedules six months after completion.
	Period6Months Period = "6_months"
	// Period1Year schedules one year after completion.
	Period1Year Period = "1_year"
	// Period2Years schedules two years after completion.
	Period2Years Period = "2_years"
	// Period3Years schedules three years after completion.
	Period3Years Period = "3_years"
)

// periodOffsets maps each period to its calendar offset in years, months and days.
var periodOffsets = map[Period][3]int{
	Period1Week:   {0, 0, 7},
	Period2Weeks:  {0, 0, 14},
	Period1Month:  {0, 1, 0},
	Period3Months: {0, 3, 0},
	Period6Months: {0, 6, 0},
	Period1Year:   {1, 0, 0},
	Period2Years:  {2, 0, 0},
	Period3Years:  {3, 0, 0},
}

// Valid reports whether the period is empty or one of the known intervals.
func (p Period) Valid() bool {
	if p == PeriodNone {
		return true
	}

	_, ok := periodOffsets[p]

	return ok
}

// ValidFollowUp reports whether the period may be used as a follow-up interval.
func (p Period) ValidFollowUp() bool {
	switch p {
	case PeriodNone, Period1Week, Period2Weeks, Period1Month, Period3Months:
		return true
	}

	return false
}

// ValidRefresh reports whether the period may be used as a refresher interval.
func (p Period) ValidRefresh() bool {
	switch p {
	case PeriodNone, Period6Months, Period1Year, Period2Years, Period3Years:
		return true
	}

	return false
}

// DueFrom returns the due date for the period counted from the given
// completion time. The second return value is false when no schedule applies.
func (p Period) DueFrom(completed time.Time) (time.Time, bool) {
	offset, ok := periodOffsets[p]
	if !ok {
		return time.Time{}, false
	}

	return completed.AddDate(offset[0], offset[1], offset[2]), true
}
