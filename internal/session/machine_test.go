// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tremor_recorder/internal/protocol"
)

// eventLog captures emitted lifecycle lines for assertions.
type eventLog struct {
	lines []string
}

func (l *eventLog) Event(k protocol.Kind) error {
	l.lines = append(l.lines, string(k))
	return nil
}

func (l *eventLog) EventN(k protocol.Kind, n int) error {
	l.lines = append(l.lines, fmt.Sprintf("%s,%d", k, n))
	return nil
}

func (l *eventLog) Header() error {
	l.lines = append(l.lines, protocol.ColumnHeader)
	return nil
}

var t0 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestMachine(events Events, maxCycles int) *Machine {
	return NewMachine(8*time.Second, maxCycles, 500*time.Millisecond, events, nil)
}

func TestStartPauseResume(t *testing.T) {
	log := &eventLog{}
	m := newTestMachine(log, 3)

	require.Equal(t, Idle, m.State())
	require.True(t, m.Input(t0))
	require.Equal(t, Recording, m.State())
	require.Equal(t, 1, m.Cycle())
	require.Equal(t, []string{"SESSION_START", "CYCLE,1", protocol.ColumnHeader}, log.lines)

	require.True(t, m.Input(t0.Add(2*time.Second)))
	require.Equal(t, Paused, m.State())
	require.Equal(t, 2*time.Second, m.Elapsed(t0.Add(2*time.Second)))

	// elapsed frozen during the pause
	require.Equal(t, 2*time.Second, m.Elapsed(t0.Add(20*time.Second)))

	require.True(t, m.Input(t0.Add(20*time.Second)))
	require.Equal(t, Recording, m.State())
	require.Equal(t, 3*time.Second, m.Elapsed(t0.Add(21*time.Second)))

	require.Equal(t, "PAUSE_CYCLE", log.lines[3])
	require.Equal(t, "RESUME_CYCLE", log.lines[4])
}

func TestInputDebounce(t *testing.T) {
	m := newTestMachine(&eventLog{}, 3)

	require.True(t, m.Input(t0))
	require.Equal(t, Recording, m.State())

	// a bouncing contact 100 ms later must not pause
	require.False(t, m.Input(t0.Add(100*time.Millisecond)))
	require.Equal(t, Recording, m.State())

	// 499 ms is still inside the quiet interval
	require.False(t, m.Input(t0.Add(499*time.Millisecond)))

	require.True(t, m.Input(t0.Add(500*time.Millisecond)))
	require.Equal(t, Paused, m.State())
}

func TestCompletionNeverEarly(t *testing.T) {
	m := newTestMachine(&eventLog{}, 2)
	m.Input(t0)

	require.False(t, m.CheckComplete(t0.Add(8*time.Second-time.Millisecond)))
	require.Equal(t, Recording, m.State())

	require.True(t, m.CheckComplete(t0.Add(8*time.Second)))
	require.Equal(t, WaitingNext, m.State())
}

func TestTwoCycleSession(t *testing.T) {
	log := &eventLog{}
	m := newTestMachine(log, 2)

	// cycle 1
	m.Input(t0)
	require.Equal(t, 1, m.Cycle())
	require.True(t, m.CheckComplete(t0.Add(8*time.Second)))
	require.Equal(t, WaitingNext, m.State())
	require.Equal(t, 2, m.Cycle()) // pre-advanced for the next entry
	require.Contains(t, log.lines, "CYCLE_END")
	require.NotContains(t, log.lines, "ALL_COMPLETE")

	// cycle 2
	t1 := t0.Add(time.Minute)
	require.True(t, m.Input(t1))
	require.Equal(t, Recording, m.State())
	require.Equal(t, 2, m.Cycle())
	require.Equal(t, time.Duration(0), m.Elapsed(t1)) // fresh stopwatch

	require.True(t, m.CheckComplete(t1.Add(8*time.Second)))
	require.Equal(t, Finished, m.State())
	require.Equal(t, "ALL_COMPLETE", log.lines[len(log.lines)-1])

	// terminal: further input is ignored
	require.False(t, m.Input(t1.Add(time.Minute)))
	require.Equal(t, Finished, m.State())
}

func TestCompletionOnlyWhileRecording(t *testing.T) {
	m := newTestMachine(&eventLog{}, 2)
	require.False(t, m.CheckComplete(t0.Add(time.Hour)))
	require.Equal(t, Idle, m.State())

	m.Input(t0)
	m.Input(t0.Add(time.Second)) // paused
	require.False(t, m.CheckComplete(t0.Add(time.Hour)))
	require.Equal(t, Paused, m.State())
}

func TestResetSummaryAtCycleEnd(t *testing.T) {
	log := &eventLog{}
	resets := 3
	m := NewMachine(8*time.Second, 1, 500*time.Millisecond, log, func() int { return resets })

	m.Input(t0)
	m.CheckComplete(t0.Add(8 * time.Second))

	require.Equal(t, []string{
		"SESSION_START", "CYCLE,1", protocol.ColumnHeader,
		"CYCLE_END", "RESETS,3", "ALL_COMPLETE",
	}, log.lines)
}
