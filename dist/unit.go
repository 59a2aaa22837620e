package dist

import (
	"fmt"
	"strings"
)

// TimeUnit is the unit a distribution or duration is declared in. The model
// clock runs in hours.
type TimeUnit string

const (
	Second TimeUnit = "second"
	Minute TimeUnit = "minute"
	Hour   TimeUnit = "hour"
	Day    TimeUnit = "day"
	Week   TimeUnit = "week"
)

// ParseTimeUnit accepts singular, plural and short forms
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return Second, nil
	case "m", "min", "minute", "minutes":
		return Minute, nil
	case "", "h", "hour", "hours":
		return Hour, nil
	case "d", "day", "days":
		return Day, nil
	case "w", "week", "weeks":
		return Week, nil
	}
	return "", fmt.Errorf("unknown time unit %q", s)
}

// ToHours converts v from this unit into hours
func (u TimeUnit) ToHours(v float64) float64 {
	switch u {
	case Second:
		return v / 3600.0
	case Minute:
		return v / 60.0
	case Day:
		return v * 24.0
	case Week:
		return v * 168.0
	default:
		return v
	}
}

// inHours rescales draws of a distribution declared in another unit
type inHours struct {
	d    Continuous
	unit TimeUnit
}

func (h inHours) Draw() float64 {
	return h.unit.ToHours(h.d.Draw())
}

// InHours wraps d so that its draws come out in hours
func InHours(d Continuous, unit TimeUnit) Continuous {
	if unit == Hour || unit == "" {
		return d
	}
	return inHours{d: d, unit: unit}
}
