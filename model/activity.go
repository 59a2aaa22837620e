package model

import (
	"errors"
	"math"
)

// Locator resolves where a person performs an activity. Locators wrap one
// another and are evaluated at resolution time, since the person's current
// location changes between activities.
type Locator interface {
	Locate(p *Person) (*Location, error)
}

// Duration computes how long an activity instance lasts, in hours. A NaN
// result means the activity is skipped.
type Duration interface {
	Duration(p *Person) (float64, error)
}

// Skip returns the duration value that makes a person skip an activity
func Skip() float64 {
	return math.NaN()
}

// IsSkip reports whether d asks for the activity to be skipped
func IsSkip(d float64) bool {
	return math.IsNaN(d)
}

// Activity is an immutable named pair of a locator and a duration, shared
// by many persons' patterns
type Activity struct {
	Name     string
	Locator  Locator
	Duration Duration
}

// NewActivity creates an activity
func NewActivity(name string, locator Locator, duration Duration) (*Activity, error) {
	if locator == nil || duration == nil {
		return nil, errors.New("activity " + name + ": locator and duration cannot be nil")
	}
	return &Activity{
		Name:     name,
		Locator:  locator,
		Duration: duration,
	}, nil
}
