package devs

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
)

// Callback is the unit of scheduled work. A returned error stops the run.
type Callback func() error

// Handle identifies a scheduled callback for cancellation
type Handle uint64

// Simulator is the narrow scheduling surface the model consumes
type Simulator interface {
	Now() float64
	ScheduleAt(t float64, cb Callback) (Handle, error)
	ScheduleAfter(d float64, cb Callback) (Handle, error)
	Cancel(h Handle) bool
}

var (
	ErrPastTime    = errors.New("cannot schedule in the past")
	ErrInvalidTime = errors.New("event time must be finite")
	ErrNilCallback = errors.New("callback cannot be nil")
)

// how many events run between context checks
const ctxCheckInterval = 1024

// EventSimulator is a single-threaded discrete-event executor. Events run in
// time order, ties in scheduling order, each to completion.
type EventSimulator struct {
	now      float64
	seq      uint64
	queue    eventQueue
	pending  map[Handle]*event
	executed uint64
}

// NewEventSimulator creates a simulator with its clock at start
func NewEventSimulator(start float64) *EventSimulator {
	return &EventSimulator{
		now:     start,
		queue:   make(eventQueue, 0),
		pending: make(map[Handle]*event),
	}
}

func (s *EventSimulator) Now() float64 {
	return s.now
}

// Executed returns the number of callbacks run so far
func (s *EventSimulator) Executed() uint64 {
	return s.executed
}

// Pending returns the number of callbacks still queued
func (s *EventSimulator) Pending() int {
	return len(s.pending)
}

func (s *EventSimulator) ScheduleAt(t float64, cb Callback) (Handle, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTime, t)
	}
	if t < s.now {
		return 0, fmt.Errorf("%w: %.6f < now %.6f", ErrPastTime, t, s.now)
	}

	s.seq++
	ev := &event{
		handle:   Handle(s.seq),
		time:     t,
		seq:      s.seq,
		callback: cb,
	}
	heap.Push(&s.queue, ev)
	s.pending[ev.handle] = ev
	return ev.handle, nil
}

func (s *EventSimulator) ScheduleAfter(d float64, cb Callback) (Handle, error) {
	if math.IsNaN(d) || d < 0 {
		return 0, fmt.Errorf("%w: delay %v", ErrInvalidTime, d)
	}
	return s.ScheduleAt(s.now+d, cb)
}

// Cancel removes a pending callback. It reports false when the callback has
// already run or was never scheduled.
func (s *EventSimulator) Cancel(h Handle) bool {
	ev, ok := s.pending[h]
	if !ok {
		return false
	}
	ev.canceled = true
	delete(s.pending, h)
	if ev.index >= 0 {
		heap.Remove(&s.queue, ev.index)
	}
	return true
}

// peek returns the next live event without removing it
func (s *EventSimulator) peek() *event {
	for s.queue.Len() > 0 {
		ev := s.queue[0]
		if !ev.canceled {
			return ev
		}
		heap.Pop(&s.queue)
	}
	return nil
}

// Step runs the next callback. It reports false when nothing is queued.
func (s *EventSimulator) Step() (bool, error) {
	ev := s.peek()
	if ev == nil {
		return false, nil
	}
	heap.Pop(&s.queue)
	delete(s.pending, ev.handle)

	s.now = ev.time
	s.executed++
	if err := ev.callback(); err != nil {
		return true, fmt.Errorf("event %d at t=%.4fh: %w", ev.handle, ev.time, err)
	}
	return true, nil
}

// RunUntil executes every callback scheduled at or before end, then leaves
// the clock at end
func (s *EventSimulator) RunUntil(ctx context.Context, end float64) error {
	if math.IsNaN(end) || end < s.now {
		return fmt.Errorf("%w: run until %v (now %v)", ErrPastTime, end, s.now)
	}

	for i := 0; ; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ev := s.peek()
		if ev == nil || ev.time > end {
			break
		}
		if _, err := s.Step(); err != nil {
			return err
		}
	}

	s.now = end
	return nil
}

// for type check
var _ Simulator = (*EventSimulator)(nil)
