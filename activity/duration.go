package activity

import (
	"fmt"
	"math"
	"strings"

	"epi-model/dist"
	"epi-model/model"
)

// FixedDuration always lasts the same number of hours
type FixedDuration struct {
	Hours float64
}

func NewFixedDuration(hours float64) (*FixedDuration, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return nil, fmt.Errorf("%w: fixed duration %v", model.ErrInvalidDuration, hours)
	}
	return &FixedDuration{Hours: hours}, nil
}

func (f *FixedDuration) Duration(p *model.Person) (float64, error) {
	return f.Hours, nil
}

// Stochastic draws the duration from a distribution. Negative draws are
// truncated to zero.
type Stochastic struct {
	Dist dist.Continuous
}

// NewStochastic wraps a distribution declared in unit
func NewStochastic(d dist.Continuous, unit dist.TimeUnit) *Stochastic {
	return &Stochastic{Dist: dist.InHours(d, unit)}
}

func (s *Stochastic) Duration(p *model.Person) (float64, error) {
	d := s.Dist.Draw()
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: drew %v", model.ErrInvalidDuration, d)
	}
	return max(d, 0), nil
}

// Until lasts until a fixed hour of the day. An hour already passed today
// skips the activity.
type Until struct {
	Hour float64
}

func NewUntil(hour float64) (*Until, error) {
	if math.IsNaN(hour) || hour < 0 || hour > model.HoursPerDay {
		return nil, fmt.Errorf("%w: until hour %v", model.ErrInvalidDuration, hour)
	}
	return &Until{Hour: hour}, nil
}

func (u *Until) Duration(p *model.Person) (float64, error) {
	d := u.Hour - model.HourOfDay(p.Model.Sim.Now())
	if d <= 0 {
		return model.Skip(), nil
	}
	return d, nil
}

// TravelMode is a means of transport with a speed and a maximum trip time
type TravelMode struct {
	Name string
	// SpeedMPS is the speed in metres per second
	SpeedMPS float64
	// MaxSeconds caps the travel time regardless of distance
	MaxSeconds float64
}

var (
	Walk = TravelMode{Name: "walk", SpeedMPS: 1.4, MaxSeconds: 3600}
	Bike = TravelMode{Name: "bike", SpeedMPS: 3.0, MaxSeconds: 5400}
	Car  = TravelMode{Name: "car", SpeedMPS: 10.0, MaxSeconds: 7200}
)

// ParseTravelMode looks up a mode by name
func ParseTravelMode(s string) (TravelMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "walk":
		return Walk, nil
	case "bike":
		return Bike, nil
	case "car":
		return Car, nil
	}
	return TravelMode{}, fmt.Errorf("unknown travel mode %q", s)
}

// Hours returns the travel time for a straight-line distance in metres
func (t TravelMode) Hours(distanceM float64) float64 {
	return math.Min(distanceM/t.SpeedMPS, t.MaxSeconds) / 3600
}

// Transit returns the model's in-transit location for the mode
func (t TravelMode) Transit(m *model.Model) *model.Location {
	switch t.Name {
	case "bike":
		return m.Bike
	case "car":
		return m.Car
	}
	return m.Walk
}

// Travel lasts as long as the trip between where From and To resolve
// Travel is the trip time between two resolved locations. The endpoints are
// resolved independently of the activities around the trip, so they should
// be deterministic locators: a random destination would be drawn again and
// could differ from the location actually visited.
type Travel struct {
	Mode TravelMode
	From model.Locator
	To   model.Locator
}

func NewTravel(mode TravelMode, from, to model.Locator) *Travel {
	if from == nil {
		from = Current{}
	}
	return &Travel{Mode: mode, From: from, To: to}
}

func (t *Travel) Duration(p *model.Person) (float64, error) {
	from, err := t.From.Locate(p)
	if err != nil {
		return 0, err
	}
	to, err := t.To.Locate(p)
	if err != nil {
		return 0, err
	}
	return t.Mode.Hours(from.DistanceM(to)), nil
}

// for type check
var (
	_ model.Duration = (*FixedDuration)(nil)
	_ model.Duration = (*Stochastic)(nil)
	_ model.Duration = (*Until)(nil)
	_ model.Duration = (*Travel)(nil)
)
