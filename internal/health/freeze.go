// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package health

import (
	"math"

	"github.com/relabs-tech/tremor_recorder/internal/imu"
)

// FreezeStatus is the outcome of observing one accepted sample.
type FreezeStatus int

const (
	// Normal: the sample moved, or the stuck run is still below threshold.
	Normal FreezeStatus = iota
	// Recovered: values moved again after a nonzero stuck run. Informational.
	Recovered
	// Stuck: the stuck run just reached the threshold. Signaled once per
	// run; the caller must trigger recovery, which resets the counter.
	Stuck
)

// FreezeDetector watches consecutive accepted samples for a hung sensor:
// all three acceleration channels within epsilon of their predecessor.
type FreezeDetector struct {
	epsilon   float64
	threshold int

	stuck   int
	prev    imu.Sample
	have    bool
	latched bool
}

// NewFreezeDetector builds a detector with fixed epsilon (m/s²) and
// consecutive-match threshold.
func NewFreezeDetector(epsilon float64, threshold int) *FreezeDetector {
	return &FreezeDetector{epsilon: epsilon, threshold: threshold}
}

// Observe compares the sample's acceleration channels against the
// previous accepted sample.
func (d *FreezeDetector) Observe(s imu.Sample) FreezeStatus {
	if !d.have {
		d.have = true
		d.prev = s
		return Normal
	}

	matched := math.Abs(s.Ax-d.prev.Ax) < d.epsilon &&
		math.Abs(s.Ay-d.prev.Ay) < d.epsilon &&
		math.Abs(s.Az-d.prev.Az) < d.epsilon
	d.prev = s

	if !matched {
		wasStuck := d.stuck > 0
		d.stuck = 0
		d.latched = false
		if wasStuck {
			return Recovered
		}
		return Normal
	}

	d.stuck++
	if d.stuck >= d.threshold && !d.latched {
		d.latched = true
		return Stuck
	}
	return Normal
}

// StuckCount returns the current consecutive-match run length.
func (d *FreezeDetector) StuckCount() int {
	return d.stuck
}

// Reset clears the run state. Called from the sensor recovery path.
func (d *FreezeDetector) Reset() {
	d.stuck = 0
	d.have = false
	d.latched = false
}
