// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/tremor_recorder/internal/imu"
)

// Kind is a lifecycle event identifier as it appears on the wire.
type Kind string

const (
	SessionStart      Kind = "SESSION_START"
	CycleStart        Kind = "CYCLE" // emitted as CYCLE,<n>
	PauseCycle        Kind = "PAUSE_CYCLE"
	ResumeCycle       Kind = "RESUME_CYCLE"
	CycleEnd          Kind = "CYCLE_END"
	AllComplete       Kind = "ALL_COMPLETE"
	SensorStuck       Kind = "SENSOR_STUCK"
	SensorLost        Kind = "SENSOR_LOST"
	ReadFailed        Kind = "READ_FAILED"
	SensorReset       Kind = "SENSOR_RESET" // emitted as SENSOR_RESET,<n>
	SensorResetOK     Kind = "SENSOR_RESET_OK"
	SensorResetFailed Kind = "SENSOR_RESET_FAILED"
	Resets            Kind = "RESETS" // emitted as RESETS,<n>
)

// ColumnHeader is the fixed data-record header, emitted once per cycle start.
const ColumnHeader = "Timestamp,Ax,Ay,Az,Gx,Gy,Gz"

// Emitter serializes lifecycle events and sample records as single
// newline-terminated lines. Each unit is formatted into one buffer and
// handed to the writer in a single Write call, so a unit is never
// partially flushed. The link is assumed ordered and lossless; there is
// no retry or acknowledgment.
type Emitter struct {
	w io.Writer
}

// NewEmitter wraps the outbound byte-stream link.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Event emits a bare lifecycle event line.
func (e *Emitter) Event(k Kind) error {
	return e.writeLine(append([]byte(k), '\n'))
}

// EventN emits a lifecycle event carrying a numeric payload, e.g. CYCLE,3.
func (e *Emitter) EventN(k Kind, n int) error {
	return e.writeLine(fmt.Appendf(nil, "%s,%d\n", k, n))
}

// Header emits the fixed column header preceding the first record of a cycle.
func (e *Emitter) Header() error {
	return e.writeLine([]byte(ColumnHeader + "\n"))
}

// Sample emits one data record: session-relative timestamp in whole
// milliseconds followed by the six channels with three decimal places.
func (e *Emitter) Sample(ts time.Duration, s imu.Sample) error {
	return e.writeLine(fmt.Appendf(nil, "%d,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f\n",
		ts.Milliseconds(), s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz))
}

func (e *Emitter) writeLine(line []byte) error {
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}
