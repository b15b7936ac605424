package domain

import (
	"fmt"
	"math"
	"time"
)

// DaysInGoalYear is the fixed year length the pace indicator assumes.
const DaysInGoalYear = 365

// Goal is an annual reading target.
type Goal struct {
	Books int
	Year  int
}

// Pace is the progress of finished books against a Goal.
type Pace struct {
	Goal          Goal    `json:"-"`
	Finished      int     `json:"finished"`
	DayOfYear     int     `json:"day_of_year"`
	Expected      float64 `json:"expected"`
	Delta         float64 `json:"delta"`
	DaysRemaining int     `json:"days_remaining"`
	Progress      float64 `json:"progress"`
	Message       string  `json:"message"`
}

// ComputePace measures the finished books in books against g as of now.
// Elapsed days count from midnight of January 1 of the goal year in now's location.
func ComputePace(g Goal, books []Book, now time.Time) Pace {
	finished := 0
	for _, b := range books {
		if b.Status == StatusFinished {
			finished++
		}
	}

	startOfYear := time.Date(g.Year, time.January, 1, 0, 0, 0, 0, now.Location())
	day := int(math.Floor(now.Sub(startOfYear).Hours() / 24))
	expected := float64(g.Books) / DaysInGoalYear * float64(day)
	delta := float64(finished) - expected

	p := Pace{
		Goal:          g,
		Finished:      finished,
		DayOfYear:     day,
		Expected:      expected,
		Delta:         delta,
		DaysRemaining: DaysInGoalYear - day,
		Progress:      1,
	}
	if g.Books > 0 {
		p.Progress = math.Min(float64(finished)/float64(g.Books), 1)
	}
	p.Message = paceMessage(delta, p.DaysRemaining)
	return p
}

func paceMessage(delta float64, daysRemaining int) string {
	switch {
	case delta >= 1:
		ahead := int(math.Floor(delta))
		return fmt.Sprintf("You're %d %s ahead of pace.", ahead, plural(ahead))
	case delta > -1:
		return "You're right on pace."
	default:
		behind := int(math.Ceil(math.Abs(delta)))
		return fmt.Sprintf("You're %d %s behind. That's okay — you have %d days left.",
			behind, plural(behind), daysRemaining)
	}
}

func plural(n int) string {
	if n == 1 {
		return "book"
	}
	return "books"
}
