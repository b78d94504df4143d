package access

import "time"

// Rule names a time-window constraint.
type Rule string

const (
	RuleBusinessHours Rule = "business_hours"
	RuleWeekdayOnly   Rule = "weekday_only"
)

const (
	businessHourStart = 9
	businessHourEnd   = 17
)

// CheckRuBAC evaluates rule against now. The caller decides the location of
// now; the weekday and hour are read as-is.
func CheckRuBAC(rule Rule, now time.Time) bool {
	switch rule {
	case RuleBusinessHours:
		if !isWeekday(now) {
			return false
		}
		hour := now.Hour()
		return hour >= businessHourStart && hour < businessHourEnd
	case RuleWeekdayOnly:
		return isWeekday(now)
	default:
		return false
	}
}

func isWeekday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}
