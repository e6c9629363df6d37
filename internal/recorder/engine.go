// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package recorder

import (
	"context"
	"time"

	"github.com/relabs-tech/tremor_recorder/internal/health"
	"github.com/relabs-tech/tremor_recorder/internal/protocol"
	"github.com/relabs-tech/tremor_recorder/internal/sensors"
	"github.com/relabs-tech/tremor_recorder/internal/session"
)

// Status is a read-only snapshot for the status surface.
type Status struct {
	State     session.State
	Cycle     int
	MaxCycles int
	Elapsed   time.Duration
	Resets    int
	Degraded  bool
}

// Options wires an Engine. Input, Display and Indicator may be nil when
// the corresponding surface is absent (simulator, tests).
type Options struct {
	Source  sensors.Source
	Machine *session.Machine
	Monitor *health.Monitor
	Emitter *protocol.Emitter

	Input     func() bool  // raw pressed level of the user button
	Display   func(Status) // status surface refresh
	Indicator func(bool)   // status LED drive

	SampleInterval  time.Duration
	HealthInterval  time.Duration
	DisplayInterval time.Duration
}

// task is one cooperatively scheduled sub-task with its own cadence.
type task struct {
	name     string
	interval time.Duration
	next     time.Time
	run      func(now time.Time)
}

// Engine multiplexes input handling, sampling, health checks, status
// refresh and indicator toggling on a single thread of control. Each
// sub-task keeps its own next-due time; a pass dispatches everything due
// and reports the earliest upcoming deadline so the run loop can sleep.
// All intervals are soft: a slow transport transaction just delays the
// next pass.
type Engine struct {
	opts  Options
	tasks []*task

	lastLevel bool
	ledOn     bool
}

// New builds an engine around an already-constructed machine and monitor.
func New(o Options) *Engine {
	e := &Engine{opts: o}

	// Input is polled at the sampling cadence; the quiet-interval
	// debounce lives in the machine.
	if o.Input != nil {
		e.tasks = append(e.tasks, &task{name: "input", interval: o.SampleInterval, run: e.pollInput})
	}
	e.tasks = append(e.tasks, &task{name: "sample", interval: o.SampleInterval, run: e.sampleTick})
	e.tasks = append(e.tasks, &task{name: "health", interval: o.HealthInterval, run: e.healthTick})
	if o.Display != nil {
		e.tasks = append(e.tasks, &task{name: "display", interval: o.DisplayInterval, run: e.displayTick})
	}
	if o.Indicator != nil {
		e.tasks = append(e.tasks, &task{name: "indicator", interval: 800 * time.Millisecond, run: e.indicatorTick})
	}
	return e
}

// Tick dispatches every due sub-task at now and returns the earliest
// next deadline.
func (e *Engine) Tick(now time.Time) time.Time {
	var earliest time.Time
	for _, t := range e.tasks {
		if t.next.IsZero() {
			t.next = now
		}
		if !t.next.After(now) {
			t.run(now)
			t.next = t.next.Add(t.interval)
			if !t.next.After(now) {
				// fell behind (slow transaction); skip forward instead
				// of bursting to catch up
				t.next = now.Add(t.interval)
			}
		}
		if earliest.IsZero() || t.next.Before(earliest) {
			earliest = t.next
		}
	}
	return earliest
}

// Run drives Tick until the session finishes or ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		now := time.Now()
		next := e.Tick(now)

		if e.opts.Machine.State() == session.Finished {
			// one last surface refresh so FINISHED is visible
			if e.opts.Display != nil {
				e.opts.Display(e.Snapshot(now))
			}
			if e.opts.Indicator != nil {
				e.opts.Indicator(true)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
	}
}

// Snapshot assembles the current status for the display surface.
func (e *Engine) Snapshot(now time.Time) Status {
	m := e.opts.Machine
	s := Status{
		State:   m.State(),
		Cycle:   m.Cycle(),
		Elapsed: m.Elapsed(now),
	}
	if e.opts.Monitor != nil {
		s.Resets = e.opts.Monitor.Resets()
		s.Degraded = e.opts.Monitor.Degraded()
	}
	return s
}

// pollInput feeds rising edges of the raw button level to the machine.
func (e *Engine) pollInput(now time.Time) {
	level := e.opts.Input()
	if level && !e.lastLevel {
		e.opts.Machine.Input(now)
	}
	e.lastLevel = level
}

// sampleTick runs the completion check and, while still RECORDING, one
// blocking sensor read. Successful samples pass through the freeze
// detector and are emitted; failures are counted and discarded, never
// retried within the tick.
func (e *Engine) sampleTick(now time.Time) {
	m := e.opts.Machine
	if m.CheckComplete(now) {
		return
	}
	if m.State() != session.Recording {
		return
	}

	s, err := e.opts.Source.Read()
	if err != nil {
		e.opts.Monitor.ReadFailed(now)
		return
	}
	e.opts.Monitor.Observe(s, now)
	e.opts.Emitter.Sample(m.Elapsed(now), s)
}

// healthTick runs the out-of-band liveness probe in every non-terminal
// state; a stopped session still benefits from early loss detection.
func (e *Engine) healthTick(now time.Time) {
	if e.opts.Machine.State() == session.Finished {
		return
	}
	e.opts.Monitor.HealthCheck(now)
}

func (e *Engine) displayTick(now time.Time) {
	e.opts.Display(e.Snapshot(now))
}

// indicatorTick drives the status LED. Solid while RECORDING and
// FINISHED; slow, medium and fast toggles for IDLE, PAUSED and
// WAITING_NEXT; a degraded sensor overrides with the fast pattern. The
// task re-arms itself with the pattern's own half-period.
func (e *Engine) indicatorTick(now time.Time) {
	interval, solid := e.ledPattern()
	for _, t := range e.tasks {
		if t.name == "indicator" {
			t.interval = interval
		}
	}
	if solid {
		e.ledOn = true
	} else {
		e.ledOn = !e.ledOn
	}
	e.opts.Indicator(e.ledOn)
}

func (e *Engine) ledPattern() (time.Duration, bool) {
	if e.opts.Monitor != nil && e.opts.Monitor.Degraded() {
		return 200 * time.Millisecond, false
	}
	switch e.opts.Machine.State() {
	case session.Recording, session.Finished:
		return 500 * time.Millisecond, true
	case session.Paused:
		return 500 * time.Millisecond, false
	case session.WaitingNext:
		return 200 * time.Millisecond, false
	default: // Idle
		return 800 * time.Millisecond, false
	}
}
