package entities

import (
	"fmt"
	"time"
)

// StreakDeadlines are display values derived on read, never persisted.
type StreakDeadlines struct {
	Display time.Time // what the UI shows as the end of the goal day
	Cutoff  time.Time // local midnight, when the day rolls over
}

// InGrace reports whether now falls between the displayed deadline and the real cutoff.
func (d StreakDeadlines) InGrace(now time.Time) bool {
	return !now.Before(d.Display) && now.Before(d.Cutoff)
}

// DeadlinesFor returns today's deadlines for the user.
func DeadlinesFor(u *UserStreak, now time.Time, grace time.Duration) StreakDeadlines {
	loc := u.Location()
	cutoff := DayEnd(LocalDate(now, loc), loc)
	return StreakDeadlines{
		Display: cutoff.Add(-grace),
		Cutoff:  cutoff,
	}
}

// StreakTimeRemaining returns how long the user has before the streak is at risk.
// Users with an active streak or with today's goal met get until the end of
// the next local day; everyone else has until the end of today.
func StreakTimeRemaining(u *UserStreak, now time.Time) time.Duration {
	loc := u.Location()
	end := DayEnd(LocalDate(now, loc), loc)
	if u.CurrentStreak > 0 || u.StreakAwardedToday {
		end = DayEnd(LocalDate(now, loc).AddDate(0, 0, 1), loc)
	}
	return max(end.Sub(now), 0)
}

// FormatRemaining renders a duration as "5h 07m", or "42m" under an hour.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}
