// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import "time"

// Clock is a stopwatch for session elapsed time. Total time is
// accumulated + (now - segmentStart) while a segment is open, and just
// accumulated while closed, so paused intervals never count and sample
// timestamps stay continuous across pause/resume.
type Clock struct {
	segmentStart time.Time
	accumulated  time.Duration
	running      bool
}

// Reset zeroes the stopwatch and opens a fresh segment at now.
func (c *Clock) Reset(now time.Time) {
	c.accumulated = 0
	c.segmentStart = now
	c.running = true
}

// StartSegment opens a new active segment at now. Accumulated time from
// earlier segments is unchanged.
func (c *Clock) StartSegment(now time.Time) {
	c.segmentStart = now
	c.running = true
}

// CloseSegment folds the current segment into the accumulated total and
// returns the segment's length. Total is frozen until the next segment
// opens.
func (c *Clock) CloseSegment(now time.Time) time.Duration {
	if !c.running {
		return 0
	}
	elapsed := now.Sub(c.segmentStart)
	c.accumulated += elapsed
	c.running = false
	return elapsed
}

// Total returns session elapsed time excluding paused intervals.
func (c *Clock) Total(now time.Time) time.Duration {
	if c.running {
		return c.accumulated + now.Sub(c.segmentStart)
	}
	return c.accumulated
}

// Running reports whether a segment is currently open.
func (c *Clock) Running() bool {
	return c.running
}
