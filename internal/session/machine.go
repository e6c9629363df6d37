// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"log"
	"time"

	"github.com/relabs-tech/tremor_recorder/internal/protocol"
)

// Events is the outbound lifecycle sink, satisfied by protocol.Emitter.
type Events interface {
	Event(k protocol.Kind) error
	EventN(k protocol.Kind, n int) error
	Header() error
}

// Machine drives the session through IDLE, RECORDING, PAUSED,
// WAITING_NEXT and FINISHED. It is the sole writer of the session state
// and the stopwatch; everything it reacts to arrives through Input and
// CheckComplete, both called from the single engine tick.
type Machine struct {
	state State
	clock Clock

	cycle     int // 1-based, pre-incremented when entering WAITING_NEXT
	maxCycles int
	target    time.Duration

	quiet    time.Duration // minimum spacing between accepted input edges
	lastEdge time.Time
	haveEdge bool

	events Events
	resets func() int // cumulative sensor reset count for the cycle-end summary
}

// NewMachine builds an idle session machine. resets may be nil when no
// reset summary is wanted (tests, simulator without health monitoring).
func NewMachine(target time.Duration, maxCycles int, quiet time.Duration, events Events, resets func() int) *Machine {
	return &Machine{
		state:     Idle,
		maxCycles: maxCycles,
		target:    target,
		quiet:     quiet,
		events:    events,
		resets:    resets,
	}
}

// State returns the current session state.
func (m *Machine) State() State {
	return m.state
}

// Cycle returns the current 1-based cycle index.
func (m *Machine) Cycle() int {
	return m.cycle
}

// Elapsed returns stopwatch total at now.
func (m *Machine) Elapsed(now time.Time) time.Duration {
	return m.clock.Total(now)
}

// Input feeds a raw user input edge at now. The edge is accepted only
// when the quiet interval has elapsed since the last accepted edge; the
// return value reports acceptance. This toggle is the only user control:
// start, pause and resume all ride on it.
func (m *Machine) Input(now time.Time) bool {
	if m.haveEdge && now.Sub(m.lastEdge) < m.quiet {
		return false
	}
	m.lastEdge = now
	m.haveEdge = true

	switch m.state {
	case Idle:
		m.cycle++
		m.beginCycle(now)
	case WaitingNext:
		// cycle index was already advanced by the completion check
		m.beginCycle(now)
	case Recording:
		m.clock.CloseSegment(now)
		m.state = Paused
		m.events.Event(protocol.PauseCycle)
		log.Printf("session: paused at %v", m.clock.Total(now))
	case Paused:
		m.clock.StartSegment(now)
		m.state = Recording
		m.events.Event(protocol.ResumeCycle)
		log.Printf("session: resumed at %v", m.clock.Total(now))
	case Finished:
		// terminal; ignore input
		return false
	}
	return true
}

// beginCycle enters RECORDING with a fresh stopwatch and announces the
// cycle on the wire: session start, cycle index, then the column header
// ahead of the first data record.
func (m *Machine) beginCycle(now time.Time) {
	m.clock.Reset(now)
	m.state = Recording
	m.events.Event(protocol.SessionStart)
	m.events.EventN(protocol.CycleStart, m.cycle)
	m.events.Header()
	log.Printf("session: cycle %d/%d recording", m.cycle, m.maxCycles)
}

// CheckComplete ends the cycle once stopwatch total reaches the target
// duration, never earlier. It returns true when the cycle ended on this
// call.
func (m *Machine) CheckComplete(now time.Time) bool {
	if m.state != Recording || m.clock.Total(now) < m.target {
		return false
	}

	m.clock.CloseSegment(now)
	m.events.Event(protocol.CycleEnd)
	if m.resets != nil {
		m.events.EventN(protocol.Resets, m.resets())
	}

	if m.cycle < m.maxCycles {
		m.cycle++
		m.state = WaitingNext
		log.Printf("session: cycle complete, waiting for cycle %d", m.cycle)
	} else {
		m.state = Finished
		m.events.Event(protocol.AllComplete)
		log.Printf("session: all %d cycles complete", m.maxCycles)
	}
	return true
}
