// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package health

import (
	"log"
	"time"

	"github.com/relabs-tech/tremor_recorder/internal/imu"
	"github.com/relabs-tech/tremor_recorder/internal/protocol"
	"github.com/relabs-tech/tremor_recorder/internal/sensors"
)

// Events is the lifecycle sink for health-related wire events,
// satisfied by protocol.Emitter.
type Events interface {
	Event(k protocol.Kind) error
	EventN(k protocol.Kind, n int) error
}

// Monitor tracks sensor health and performs recovery. It escalates on
// three triggers: a freeze-detector alarm, the consecutive read-failure
// cap, and a failed liveness probe while reads have gone stale. Recovery
// failure is non-fatal; the next health check retries. There is no
// backoff: sessions are short and bounded, so fast reconnection wins
// over retry restraint.
type Monitor struct {
	src    sensors.Source
	freeze *FreezeDetector
	events Events

	failCap    int
	staleAfter time.Duration
	settle     time.Duration

	failedReads int
	resets      int
	lastGood    time.Time
	degraded    bool

	sleep func(time.Duration) // injectable for tests
}

// NewMonitor wires the monitor to a source and freeze detector. now
// arms the staleness tracking.
func NewMonitor(src sensors.Source, freeze *FreezeDetector, events Events,
	failCap int, staleAfter, settle time.Duration, now time.Time) *Monitor {
	return &Monitor{
		src:        src,
		freeze:     freeze,
		events:     events,
		failCap:    failCap,
		staleAfter: staleAfter,
		settle:     settle,
		lastGood:   now,
		sleep:      time.Sleep,
	}
}

// Observe records a successful read and runs freeze detection,
// returning the detector's verdict. A Stuck verdict has already
// triggered recovery by the time Observe returns; the sample itself is
// still valid data and may be emitted.
func (m *Monitor) Observe(s imu.Sample, now time.Time) FreezeStatus {
	m.failedReads = 0
	m.lastGood = now

	status := m.freeze.Observe(s)
	switch status {
	case Stuck:
		log.Printf("health: sensor frozen after %d identical samples", m.freeze.StuckCount())
		m.events.Event(protocol.SensorStuck)
		m.Recover(now)
	case Recovered:
		log.Printf("health: sensor values moving again")
	}
	return status
}

// ReadFailed records a failed read; past the cap it escalates to
// recovery. The failed sample is discarded, never retried in-tick.
// While the sensor is degraded the read path never escalates; retries
// are paced by the health-check interval, not the sampling cadence.
func (m *Monitor) ReadFailed(now time.Time) {
	m.failedReads++
	if m.degraded || m.failedReads < m.failCap {
		return
	}
	log.Printf("health: %d consecutive read failures", m.failedReads)
	m.events.Event(protocol.ReadFailed)
	m.Recover(now)
}

// HealthCheck runs the out-of-band liveness probe. A degraded sensor is
// retried here, once per check. Otherwise a dead probe alone is not
// enough: reads must also have gone stale, so a probe hiccup during
// otherwise healthy sampling does not reset the sensor.
func (m *Monitor) HealthCheck(now time.Time) {
	if m.degraded {
		m.Recover(now)
		return
	}
	if m.src.Probe() {
		return
	}
	if now.Sub(m.lastGood) <= m.staleAfter {
		return
	}
	log.Printf("health: probe failed and no good read for %v", now.Sub(m.lastGood))
	m.events.Event(protocol.SensorLost)
	m.Recover(now)
}

// Recover power-cycles the transport: close, settle, reopen with fixed
// configuration. On success all consecutive counters clear, the
// cumulative reset count increments, and staleness re-arms so the next
// health check does not immediately re-trigger.
func (m *Monitor) Recover(now time.Time) bool {
	attempt := m.resets + 1
	m.events.EventN(protocol.SensorReset, attempt)
	log.Printf("health: sensor reset attempt %d", attempt)

	if err := m.src.Close(); err != nil {
		log.Printf("health: close before reset: %v", err)
	}
	m.sleep(m.settle)

	if err := m.src.Reinit(); err != nil {
		log.Printf("health: sensor reset failed: %v", err)
		m.events.Event(protocol.SensorResetFailed)
		m.degraded = true
		return false
	}

	m.freeze.Reset()
	m.failedReads = 0
	m.resets++
	m.lastGood = now
	m.degraded = false
	m.events.Event(protocol.SensorResetOK)
	log.Printf("health: sensor reset ok (lifetime resets: %d)", m.resets)
	return true
}

// Resets returns the cumulative reset count for this power cycle.
func (m *Monitor) Resets() int {
	return m.resets
}

// FailedReads returns the current consecutive read-failure count.
func (m *Monitor) FailedReads() int {
	return m.failedReads
}

// Degraded reports that the last recovery attempt failed and the sensor
// is still down.
func (m *Monitor) Degraded() bool {
	return m.degraded
}
