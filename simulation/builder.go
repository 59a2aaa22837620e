package simulation

import (
	"fmt"
	"math"
	"strings"

	"epi-model/activity"
	"epi-model/devs"
	"epi-model/disease"
	"epi-model/dist"
	"epi-model/model"
	"epi-model/random"

	"github.com/paulmach/orb"
)

// builder turns scenario metadata into a configured model. It stands in
// for the population and geography loader.
type builder struct {
	meta *ScenarioMetadata
	m    *model.Model

	types      map[string]*model.LocationType
	activities map[string]*model.Activity
	patterns   map[string]*model.WeekPattern
	phases     map[string]*model.DiseasePhase
}

// BuildModel creates the model described by a scenario on top of sim. The
// model is configured but not started.
func BuildModel(
	meta *ScenarioMetadata,
	sim devs.Simulator,
	eventLogger func(*model.EventRecord),
) (*model.Model, *disease.Progression, error) {
	params := &model.ModelParams{
		MaxSkipsPerTick:           meta.Model.MaxSkipsPerTick,
		TransmissionSweepInterval: meta.Model.TransmissionSweepHours,
		PatternCheckHour:          meta.Model.PatternCheckHour,
	}
	b := &builder{
		meta: meta,
		m: model.NewModel(
			sim,
			random.NewStream(meta.Seed),
			random.NewKeyedStream(meta.Seed^0x9e3779b97f4a7c15),
			params,
			eventLogger,
		),
		types:      make(map[string]*model.LocationType),
		activities: make(map[string]*model.Activity),
		patterns:   make(map[string]*model.WeekPattern),
		phases:     make(map[string]*model.DiseasePhase),
	}
	for _, t := range b.m.LocationTypes() {
		b.types[t.Name] = t
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"location types", b.buildLocationTypes},
		{"locations", b.buildLocations},
		{"activities", b.buildActivities},
		{"week patterns", b.buildPatterns},
		{"persons", b.buildPersons},
		{"policies", b.buildPolicies},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, nil, fmt.Errorf("failed to build %s: %w", step.name, err)
		}
	}

	prog, err := b.buildDisease()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build disease: %w", err)
	}
	return b.m, prog, nil
}

func (b *builder) locationType(name string) (*model.LocationType, error) {
	t, ok := b.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: location type %q", model.ErrUnknownID, name)
	}
	return t, nil
}

func (b *builder) optionalType(name string) (*model.LocationType, error) {
	if name == "" {
		return nil, nil
	}
	return b.locationType(name)
}

func (b *builder) buildLocationTypes() error {
	for _, spec := range b.meta.LocationTypes {
		if math.IsNaN(spec.TransmissionRate) || spec.TransmissionRate < 0 {
			return fmt.Errorf("location type %q: transmission rate must be non-negative", spec.Name)
		}
		if _, ok := b.types[spec.Name]; ok {
			return fmt.Errorf("%w: location type %q", model.ErrDuplicateID, spec.Name)
		}
		t := model.NewLocationType(spec.ID, spec.Name, spec.TransmissionRate)
		if err := b.m.AddLocationType(t); err != nil {
			return err
		}
		b.types[spec.Name] = t
		if spec.House {
			if err := b.m.SetHouseType(t); err != nil {
				return err
			}
		}
	}

	// alternatives may refer to types declared later
	for _, spec := range b.meta.LocationTypes {
		alt, err := b.optionalType(spec.Alternative)
		if err != nil {
			return err
		}
		fo, fa := 1.0, 1.0
		if spec.FractionOpen != nil {
			fo = *spec.FractionOpen
		}
		if spec.FractionActivities != nil {
			fa = *spec.FractionActivities
		}
		if err := b.types[spec.Name].SetBaseConstraint(fo, fa, alt); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildLocations() error {
	for _, spec := range b.meta.Locations {
		t, err := b.locationType(spec.Type)
		if err != nil {
			return fmt.Errorf("location %d: %w", spec.ID, err)
		}
		if spec.ID < 0 {
			return fmt.Errorf("location %d: negative ids are reserved", spec.ID)
		}
		if err := b.m.AddLocation(model.NewLocation(spec.ID, t, orb.Point{spec.X, spec.Y}, spec.Area)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) locator(spec *LocatorSpec) (model.Locator, error) {
	if spec == nil {
		return activity.Current{}, nil
	}
	start := func() (model.Locator, error) {
		return b.locator(spec.Start)
	}

	switch strings.ToLower(spec.Kind) {
	case "fixed":
		l := b.m.Location(spec.Location)
		if l == nil {
			return nil, fmt.Errorf("%w: location %d", model.ErrUnknownID, spec.Location)
		}
		return activity.NewFixed(l), nil
	case "walk":
		return activity.NewFixed(b.m.Walk), nil
	case "bike":
		return activity.NewFixed(b.m.Bike), nil
	case "car":
		return activity.NewFixed(b.m.Car), nil
	case "", "current":
		return activity.Current{}, nil
	case "home":
		return activity.Home{}, nil
	case "work":
		return activity.NewWork(), nil
	case "school":
		return activity.NewSchool(), nil
	case "nearest":
		t, err := b.locationType(spec.Type)
		if err != nil {
			return nil, err
		}
		s, err := start()
		if err != nil {
			return nil, err
		}
		return activity.NewNearest(s, t), nil
	case "random_within_radius":
		t, err := b.locationType(spec.Type)
		if err != nil {
			return nil, err
		}
		s, err := start()
		if err != nil {
			return nil, err
		}
		return activity.NewRandomWithinRadius(s, t, spec.Radius, spec.Reproducible)
	}
	return nil, fmt.Errorf("unknown locator kind %q", spec.Kind)
}

// drawsLocation reports whether a locator tree draws a random location
func drawsLocation(spec *LocatorSpec) bool {
	for ; spec != nil; spec = spec.Start {
		if strings.ToLower(spec.Kind) == "random_within_radius" {
			return true
		}
	}
	return false
}

func (b *builder) distribution(spec *DistributionSpec) (dist.Continuous, error) {
	d, err := dist.New(spec.Distribution, spec.Params, b.m.Random)
	if err != nil {
		return nil, err
	}
	unit, err := dist.ParseTimeUnit(spec.Unit)
	if err != nil {
		return nil, err
	}
	return dist.InHours(d, unit), nil
}

func (b *builder) duration(spec *DurationSpec) (model.Duration, error) {
	switch strings.ToLower(spec.Kind) {
	case "fixed":
		return activity.NewFixedDuration(spec.Hours)
	case "stochastic":
		d, err := b.distribution(&spec.DistributionSpec)
		if err != nil {
			return nil, err
		}
		return &activity.Stochastic{Dist: d}, nil
	case "until":
		if spec.Until == nil {
			return nil, fmt.Errorf("%w: until duration needs an hour", model.ErrInvalidDuration)
		}
		return activity.NewUntil(*spec.Until)
	case "travel":
		mode, err := activity.ParseTravelMode(spec.Mode)
		if err != nil {
			return nil, err
		}
		from, err := b.locator(spec.From)
		if err != nil {
			return nil, err
		}
		if spec.To == nil {
			return nil, fmt.Errorf("travel duration needs a destination")
		}
		if drawsLocation(spec.From) || drawsLocation(spec.To) {
			return nil, fmt.Errorf("travel endpoints must not draw a random location")
		}
		to, err := b.locator(spec.To)
		if err != nil {
			return nil, err
		}
		return activity.NewTravel(mode, from, to), nil
	}
	return nil, fmt.Errorf("unknown duration kind %q", spec.Kind)
}

func (b *builder) buildActivities() error {
	for _, spec := range b.meta.Activities {
		if _, ok := b.activities[spec.Name]; ok {
			return fmt.Errorf("%w: activity %q", model.ErrDuplicateID, spec.Name)
		}
		loc, err := b.locator(&spec.Locator)
		if err != nil {
			return fmt.Errorf("activity %q: %w", spec.Name, err)
		}
		d, err := b.duration(&spec.Duration)
		if err != nil {
			return fmt.Errorf("activity %q: %w", spec.Name, err)
		}
		act, err := model.NewActivity(spec.Name, loc, d)
		if err != nil {
			return err
		}
		b.activities[spec.Name] = act
	}
	return nil
}

func (b *builder) activityList(names []string) ([]*model.Activity, error) {
	ret := make([]*model.Activity, len(names))
	for i, name := range names {
		act, ok := b.activities[name]
		if !ok {
			return nil, fmt.Errorf("%w: activity %q", model.ErrUnknownID, name)
		}
		ret[i] = act
	}
	return ret, nil
}

func (b *builder) buildPatterns() error {
	for _, spec := range b.meta.WeekPatterns {
		var days [model.DaysPerWeek][]*model.Activity
		daily, err := b.activityList(spec.Daily)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", spec.Name, err)
		}
		for d := range days {
			days[d] = daily
		}
		for name, acts := range spec.Days {
			d := weekdayIndex(name)
			if d < 0 {
				return fmt.Errorf("pattern %q: unknown weekday %q", spec.Name, name)
			}
			if days[d], err = b.activityList(acts); err != nil {
				return fmt.Errorf("pattern %q: %w", spec.Name, err)
			}
		}

		w, err := model.NewWeekPattern(spec.ID, spec.Name, days)
		if err != nil {
			return err
		}
		if err := b.m.AddWeekPattern(w); err != nil {
			return err
		}
		b.patterns[spec.Name] = w
	}
	return nil
}

func weekdayIndex(name string) int {
	name = strings.ToLower(name)
	for i, wd := range model.WeekdayNames {
		if wd == name || wd[:3] == name {
			return i
		}
	}
	return -1
}

func (b *builder) pattern(name string) (*model.WeekPattern, error) {
	w, ok := b.patterns[name]
	if !ok {
		return nil, fmt.Errorf("%w: week pattern %q", model.ErrUnknownID, name)
	}
	return w, nil
}

func (b *builder) buildPersons() error {
	for _, spec := range b.meta.Persons {
		home := b.m.Location(spec.Home)
		if home == nil {
			return fmt.Errorf("%w: home %d of person %d", model.ErrUnknownID, spec.Home, spec.ID)
		}
		w, err := b.pattern(spec.Pattern)
		if err != nil {
			return fmt.Errorf("person %d: %w", spec.ID, err)
		}
		p := model.NewPerson(spec.ID, spec.Age, spec.Female, home, w)
		if spec.Work != nil {
			if p.Work = b.m.Location(*spec.Work); p.Work == nil {
				return fmt.Errorf("%w: work %d of person %d", model.ErrUnknownID, *spec.Work, spec.ID)
			}
		}
		if spec.School != nil {
			if p.School = b.m.Location(*spec.School); p.School == nil {
				return fmt.Errorf("%w: school %d of person %d", model.ErrUnknownID, *spec.School, spec.ID)
			}
		}
		if err := b.m.AddPerson(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildPolicies() error {
	for _, spec := range b.meta.Policies {
		pol := model.NewPolicy(spec.Name)
		for _, r := range spec.Restrictions {
			t, err := b.locationType(r.Type)
			if err != nil {
				return fmt.Errorf("policy %q: %w", spec.Name, err)
			}
			alt, err := b.optionalType(r.Alternative)
			if err != nil {
				return fmt.Errorf("policy %q: %w", spec.Name, err)
			}
			if err := pol.Restrict(t, r.FractionOpen, r.FractionActivities, alt); err != nil {
				return err
			}
		}
		for _, sw := range spec.PatternSwaps {
			from, err := b.pattern(sw.From)
			if err != nil {
				return fmt.Errorf("policy %q: %w", spec.Name, err)
			}
			to, err := b.pattern(sw.To)
			if err != nil {
				return fmt.Errorf("policy %q: %w", spec.Name, err)
			}
			pol.SwapPattern(from, to)
		}
		if err := b.m.Policies.Register(pol); err != nil {
			return err
		}

		deactivate := math.Inf(1)
		if spec.DeactivateAtHours != nil {
			deactivate = *spec.DeactivateAtHours
		}
		if err := b.m.Policies.ScheduleWindow(spec.Name, spec.ActivateAtHours, deactivate); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildDisease() (*disease.Progression, error) {
	spec := b.meta.Disease
	phases := make([]*model.DiseasePhase, len(spec.Phases))
	for i, ps := range spec.Phases {
		if math.IsNaN(ps.Infectiousness) {
			return nil, fmt.Errorf("phase %q: infectiousness must be a number", ps.Name)
		}
		ph := &model.DiseasePhase{
			Name:           ps.Name,
			Index:          i,
			Infectiousness: ps.Infectiousness,
			Susceptible:    ps.Susceptible,
			Dead:           ps.Dead,
			Isolation:      ps.Isolation,
		}
		if ps.Dwell != nil {
			d, err := b.distribution(ps.Dwell)
			if err != nil {
				return nil, fmt.Errorf("phase %q: %w", ps.Name, err)
			}
			ph.Dwell = d
		}
		phases[i] = ph
		b.phases[ps.Name] = ph
	}
	for i, ps := range spec.Phases {
		for _, tr := range ps.Transitions {
			target, ok := b.phases[tr.To]
			if !ok {
				return nil, fmt.Errorf("phase %q: %w %q", ps.Name, disease.ErrUnknownPhase, tr.To)
			}
			phases[i].Transitions = append(phases[i].Transitions, model.Transition{
				Target:      target,
				Probability: tr.Probability,
			})
		}
	}

	initial, ok := b.phases[spec.Initial]
	if !ok {
		return nil, fmt.Errorf("%w: initial %q", disease.ErrUnknownPhase, spec.Initial)
	}
	infected, ok := b.phases[spec.Infected]
	if !ok {
		return nil, fmt.Errorf("%w: infected %q", disease.ErrUnknownPhase, spec.Infected)
	}

	prog, err := disease.NewProgression(b.m, spec.Name, phases, initial, infected, b.meta.Reproducible.Progression)
	if err != nil {
		return nil, err
	}
	b.m.SetDisease(prog, disease.NewAreaTransmission(b.m, b.meta.Reproducible.Transmission))
	return prog, nil
}

// ValidateScenario builds and starts a throwaway model of the scenario and
// describes what it contains
func ValidateScenario(meta *ScenarioMetadata) (string, error) {
	m, prog, err := BuildModel(meta, devs.NewEventSimulator(0), nil)
	if err != nil {
		return "", err
	}
	if err := m.Start(); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"%s: %d persons, %d locations, %d week patterns, disease %q with %d phases, %d policies",
		meta.UniqueName, len(m.Persons()), len(m.Locations()), len(meta.WeekPatterns),
		prog.Name(), len(prog.Phases()), len(m.Policies.Policies()),
	), nil
}
