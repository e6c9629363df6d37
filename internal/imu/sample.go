// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Sample is a single calibrated 6-axis reading. Acceleration is in m/s²
// (gravity included), angular rate in °/s.
type Sample struct {
	Ax float64 `json:"ax"`
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`

	Gx float64 `json:"gx"`
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
}

// Calibration holds fixed per-device zero offsets, subtracted from every
// raw reading. Loaded from the config file, never baked into the binary.
type Calibration struct {
	AccelX float64
	AccelY float64
	AccelZ float64

	GyroX float64
	GyroY float64
	GyroZ float64
}

// Apply returns s with the calibration offsets subtracted.
func (c Calibration) Apply(s Sample) Sample {
	return Sample{
		Ax: s.Ax - c.AccelX,
		Ay: s.Ay - c.AccelY,
		Az: s.Az - c.AccelZ,
		Gx: s.Gx - c.GyroX,
		Gy: s.Gy - c.GyroY,
		Gz: s.Gz - c.GyroZ,
	}
}
