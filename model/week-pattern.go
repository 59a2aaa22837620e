package model

import (
	"fmt"
	"math"
)

const (
	HoursPerDay = 24.0
	DaysPerWeek = 7
)

// WeekdayNames index weekdays the way patterns are stored; day 0 of a run
// is a Monday
var WeekdayNames = [DaysPerWeek]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// WeekPattern is an ordered list of activities per weekday
type WeekPattern struct {
	ID   int
	Name string
	days [DaysPerWeek][]*Activity
}

// NewWeekPattern validates and creates a pattern; every day needs at least
// one activity
func NewWeekPattern(id int, name string, days [DaysPerWeek][]*Activity) (*WeekPattern, error) {
	for d, acts := range days {
		if len(acts) == 0 {
			return nil, fmt.Errorf("%w: pattern %q, %s", ErrEmptyPatternDay, name, WeekdayNames[d])
		}
		for i, a := range acts {
			if a == nil {
				return nil, fmt.Errorf("pattern %q, %s: activity %d is nil", name, WeekdayNames[d], i)
			}
		}
	}
	return &WeekPattern{ID: id, Name: name, days: days}, nil
}

// NewDailyPattern creates a pattern that repeats the same day all week
func NewDailyPattern(id int, name string, activities []*Activity) (*WeekPattern, error) {
	var days [DaysPerWeek][]*Activity
	for d := range days {
		days[d] = activities
	}
	return NewWeekPattern(id, name, days)
}

// Day returns the activities of a weekday
func (w *WeekPattern) Day(weekday int) []*Activity {
	return w.days[((weekday%DaysPerWeek)+DaysPerWeek)%DaysPerWeek]
}

// DayOf returns the simulated day a time falls on
func DayOf(hours float64) int {
	return int(math.Floor(hours/HoursPerDay + 1e-9))
}

// HourOfDay returns the hour within the day a time falls on
func HourOfDay(hours float64) float64 {
	h := math.Mod(hours, HoursPerDay)
	if h < 0 {
		h += HoursPerDay
	}
	return h
}
