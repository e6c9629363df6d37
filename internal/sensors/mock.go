// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/tremor_recorder/internal/imu"
)

// MockSource generates smooth tremor-like 6-axis data without hardware.
// FreezeAfter, when positive, makes the source return an identical sample
// once that many reads have happened, exercising the freeze/recovery
// path end to end; Reinit clears the condition like a real sensor reset.
type MockSource struct {
	start time.Time
	reads int

	FreezeAfter int
	frozen      bool
	held        imu.Sample
}

// NewMockSource creates a mock source producing a ~5 Hz oscillation
// around 1 g on the vertical axis.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now()}
}

func (m *MockSource) Read() (imu.Sample, error) {
	m.reads++
	if m.frozen {
		return m.held, nil
	}

	t := time.Since(m.start).Seconds()
	w := 2 * math.Pi * 5 // 5 Hz dominant component
	s := imu.Sample{
		Ax: 0.8 * math.Sin(w*t),
		Ay: 0.5 * math.Sin(w*t*1.3),
		Az: 9.81 + 0.6*math.Cos(w*t),
		Gx: 30 * math.Sin(w*t+0.4),
		Gy: 20 * math.Cos(w*t*0.9),
		Gz: 10 * math.Sin(w*t*1.1),
	}

	if m.FreezeAfter > 0 && m.reads >= m.FreezeAfter {
		m.frozen = true
		m.held = s
	}
	return s, nil
}

func (m *MockSource) Probe() bool {
	return true
}

func (m *MockSource) Reinit() error {
	m.frozen = false
	m.reads = 0
	return nil
}

func (m *MockSource) Close() error {
	return nil
}
