package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"epi-model/devs"
	"epi-model/disease"
	"epi-model/logger"
	"epi-model/model"
	"epi-model/utils"

	"github.com/schollz/progressbar/v3"
)

type Scenario struct {
	dir         string
	metadata    *ScenarioMetadata
	sim         *devs.EventSimulator
	model       *model.Model
	progression *disease.Progression
	acc         *AccumulativeModelState
	summary     *Summary
	serializer  *SimulationSerializer
	db          *EventDB
	stream      *model.EventLogger

	// infections per location type since the last sample
	sinceSample []int32
	typeIndex   map[int]int

	// ShowProgress draws a progress bar per simulated day
	ShowProgress bool

	eventErr error
}

func NewScenario(dir string, metadata *ScenarioMetadata) *Scenario {
	return &Scenario{
		dir:          dir,
		metadata:     metadata,
		serializer:   NewSimulationSerializer(dir, metadata.UniqueName, metadata.Output.MaxSnapshotCount),
		ShowProgress: true,
	}
}

const STREAM_BATCH_SIZE = 256
const TOP_LOCATION_COUNT = 10
const SAVE_INTERVAL = 300 // seconds

// Model returns the model, nil before Init
func (s *Scenario) Model() *model.Model {
	return s.model
}

func (s *Scenario) Summary() *Summary {
	return s.summary
}

func (s *Scenario) Serializer() *SimulationSerializer {
	return s.serializer
}

// Init builds the model, opens the outputs and starts the simulation clock
func (s *Scenario) Init(ctx context.Context) error {
	meta := s.metadata
	ctx = logger.WithKV(ctx, "scenario", meta.UniqueName)

	if err := s.serializer.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create scenario dump folder: %w", err)
	}
	if err := s.serializer.SaveMetadata(meta); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	if meta.Output.EventDB {
		db, err := OpenEventDB(s.serializer.Path("events.db"), meta.Output.DBCacheSize)
		if err != nil {
			return fmt.Errorf("failed to create event db logger: %w", err)
		}
		s.db = db
	}
	if meta.Output.EventStream {
		stream, err := model.NewEventLogger(s.serializer.Path("events.msgpack"), STREAM_BATCH_SIZE)
		if err != nil {
			return err
		}
		s.stream = stream
	}

	s.sim = devs.NewEventSimulator(0)
	m, prog, err := BuildModel(meta, s.sim, s.logEvent)
	if err != nil {
		return err
	}
	s.model = m
	s.progression = prog

	s.acc = NewAccumulativeModelState()
	s.summary = NewSummary()
	s.typeIndex = make(map[int]int)
	for i, t := range m.LocationTypes() {
		s.typeIndex[t.ID] = i
	}
	s.sinceSample = make([]int32, len(m.LocationTypes()))

	graph := utils.SerializeGraph(prog.Graph(), prog.Name(), prog.Labels())
	if err := s.serializer.SavePhaseGraph(graph); err != nil {
		return fmt.Errorf("failed to save phase graph: %w", err)
	}

	if err := m.Start(); err != nil {
		return fmt.Errorf("failed to start model: %w", err)
	}
	if err := s.scheduleOutputs(); err != nil {
		return err
	}
	if err := s.scheduleInfections(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "scenario initialized",
		"persons", len(m.Persons()),
		"locations", len(m.Locations()),
		"phases", len(prog.Phases()),
		"policies", len(m.Policies.Policies()),
		"days", meta.Days,
	)
	return nil
}

func (s *Scenario) scheduleOutputs() error {
	interval := s.metadata.Output.StatsIntervalHours
	var sample func() error
	sample = func() error {
		s.acc.accumulate(s.model, s.sinceSample)
		s.summary.observe(s.model)
		_, err := s.sim.ScheduleAfter(interval, sample)
		return err
	}
	if _, err := s.sim.ScheduleAt(0, sample); err != nil {
		return err
	}

	if days := s.metadata.Output.PersonDumpIntervalDays; days > 0 {
		var dump func() error
		dump = func() error {
			if err := s.serializer.SavePersonDump(s.model.Dump()); err != nil {
				return fmt.Errorf("failed to save person dump: %w", err)
			}
			_, err := s.sim.ScheduleAfter(float64(days)*model.HoursPerDay, dump)
			return err
		}
		if _, err := s.sim.ScheduleAt(0, dump); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) scheduleInfections() error {
	for _, spec := range s.metadata.InitialInfections {
		_, err := s.sim.ScheduleAt(spec.AtHours, func() error {
			return s.seed(spec)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// seed infects the listed persons, then Count susceptible persons drawn
// from the global stream
func (s *Scenario) seed(spec InfectionSpec) error {
	m := s.model
	for _, id := range spec.Persons {
		p := m.Person(id)
		if p == nil {
			return fmt.Errorf("%w: initial infection of person %d", model.ErrUnknownID, id)
		}
		if err := s.progression.Infect(p, p.CurrentLocation()); err != nil {
			return err
		}
	}
	if spec.Count == 0 {
		return nil
	}

	candidates := make([]*model.Person, 0)
	for _, p := range m.Persons() {
		if !p.Dead() && p.Phase().Susceptible {
			candidates = append(candidates, p)
		}
	}
	m.Random.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for _, p := range candidates[:min(spec.Count, len(candidates))] {
		if err := s.progression.Infect(p, p.CurrentLocation()); err != nil {
			return err
		}
	}
	return nil
}

// Dump writes a snapshot and the accumulated series
func (s *Scenario) Dump() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Flush())
	}
	errs = append(errs, s.serializer.SaveSnapshot(s.model.Dump()))
	if len(s.acc.Times) > 0 {
		errs = append(errs, s.serializer.SaveAccumulativeState(s.acc))
	}
	return errors.Join(errs...)
}

func (s *Scenario) IsFinished() bool {
	finished, _ := s.serializer.IsFinished()
	return finished
}

// StepTillEnd runs the simulation day by day to the configured end,
// saving at a fixed wall-clock interval and once more at the end
func (s *Scenario) StepTillEnd(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "scenario", s.metadata.UniqueName)

	// if finished, jump this simulation
	if s.IsFinished() {
		logger.InfoKV(ctx, "scenario already finished, skipping")
		return nil
	}
	if s.model == nil {
		return model.ErrNotConfigured
	}

	end := s.metadata.Days * model.HoursPerDay
	days := int(math.Ceil(s.metadata.Days))

	var bar *progressbar.ProgressBar
	if s.ShowProgress {
		bar = progressbar.Default(int64(days), "simulating "+s.metadata.UniqueName)
	}

	lastSaveTime := time.Now()
	started := time.Now()
	for day := 1; day <= days; day++ {
		until := math.Min(float64(day)*model.HoursPerDay, end)
		if err := s.sim.RunUntil(ctx, until); err != nil {
			return fmt.Errorf("simulation failed on day %d: %w", day-1, err)
		}
		if s.eventErr != nil {
			return fmt.Errorf("failed to record events: %w", s.eventErr)
		}
		if bar != nil {
			bar.Set(day)
		}

		logger.DebugKV(ctx, "day finished",
			"day", day,
			"living", s.model.LivingCount(),
			"infections", s.summary.Infections,
			"events", s.sim.Executed(),
		)

		// save at fixed interval
		if time.Since(lastSaveTime).Seconds() >= SAVE_INTERVAL {
			lastSaveTime = time.Now()
			if err := s.Dump(); err != nil {
				return err
			}
		}
	}

	if err := s.model.CheckInvariants(); err != nil {
		return fmt.Errorf("model state is inconsistent: %w", err)
	}

	// finally save everything
	s.summary.finish(TOP_LOCATION_COUNT)
	if err := s.Dump(); err != nil {
		return err
	}
	if err := s.serializer.SaveSummary(s.summary); err != nil {
		return err
	}
	if err := s.serializer.MarkFinished(s.sim.Now()); err != nil {
		return err
	}

	logger.InfoKV(ctx, "scenario finished",
		"infections", s.summary.Infections,
		"deaths", s.summary.Deaths,
		"peak_infected", s.summary.PeakInfected,
		"peak_time", s.summary.PeakTime,
		"events", s.sim.Executed(),
		"elapsed", time.Since(started).String(),
	)
	return nil
}

// Close flushes and closes the event outputs
func (s *Scenario) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	if s.stream != nil {
		errs = append(errs, s.stream.Stop())
		s.stream = nil
	}
	return errors.Join(errs...)
}

func (s *Scenario) logEvent(event *model.EventRecord) {
	s.summary.record(s.model, event)
	if event.Type == model.EventInfection {
		body := event.Body.(model.InfectionEventBody)
		if i, ok := s.typeIndex[body.LocationTypeID]; ok {
			s.sinceSample[i]++
		}
	}

	switch event.Type {
	case model.EventPolicyActivated, model.EventPolicyDeactivated:
		logger.InfoKV(context.Background(), event.Type,
			"scenario", s.metadata.UniqueName,
			"policy", event.Body.(model.PolicyEventBody).Policy,
			"time", event.Time,
		)
	}

	if s.stream != nil {
		s.stream.LogEvent(event)
	}

	// add to database when necessary
	if s.db == nil {
		return
	}
	if event.Type == model.EventPhaseChange && !s.metadata.Output.PhaseChangeEvents {
		return
	}
	if err := s.db.StoreEvent(event); err != nil {
		s.eventErr = errors.Join(s.eventErr, err)
	}
}
