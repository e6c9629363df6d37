// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/relabs-tech/tremor_recorder/internal/imu"
)

// Source is a 6-axis sample source.
//
// Read performs one blocking transaction and returns a calibrated sample
// or an error; it never retries. Probe is a minimal liveness transaction
// (device identification only, no sample). Reinit tears the transport
// down and brings it back up with the fixed configuration reapplied; it
// is idempotent and safe to call on an already-closed source.
type Source interface {
	Read() (imu.Sample, error)
	Probe() bool
	Reinit() error
	Close() error
}
