// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/tremor_recorder/internal/imu"
)

// Class is the host-side classification of a received line.
type Class int

const (
	ClassUnknown Class = iota
	ClassData          // seven comma-separated numeric fields
	ClassHeader        // the fixed column header
	ClassEvent         // a lifecycle event
)

// Record is a parsed data line as received by the host.
type Record struct {
	TimestampMS int64
	Sample      imu.Sample
}

// Event is a parsed lifecycle line. N is valid only when HasN is set
// (CYCLE, SENSOR_RESET, RESETS carry a numeric payload).
type Event struct {
	Kind Kind
	N    int
	HasN bool
}

var eventKinds = map[string]Kind{
	string(SessionStart):      SessionStart,
	string(CycleStart):        CycleStart,
	string(PauseCycle):        PauseCycle,
	string(ResumeCycle):       ResumeCycle,
	string(CycleEnd):          CycleEnd,
	string(AllComplete):       AllComplete,
	string(SensorStuck):       SensorStuck,
	string(SensorLost):        SensorLost,
	string(ReadFailed):        ReadFailed,
	string(SensorReset):       SensorReset,
	string(SensorResetOK):     SensorResetOK,
	string(SensorResetFailed): SensorResetFailed,
	string(Resets):            Resets,
}

// Classify decides what a received line is. Anything that is not a
// well-formed data record, the column header, or a known event is
// ClassUnknown; the host must tolerate and drop such lines.
func Classify(line string) Class {
	line = strings.TrimSpace(line)
	if line == "" {
		return ClassUnknown
	}
	if line == ColumnHeader {
		return ClassHeader
	}
	if _, err := ParseRecord(line); err == nil {
		return ClassData
	}
	if _, err := ParseEvent(line); err == nil {
		return ClassEvent
	}
	return ClassUnknown
}

// ParseRecord parses a seven-field data line.
func ParseRecord(line string) (Record, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 7 {
		return Record{}, fmt.Errorf("protocol: expected 7 fields, got %d", len(fields))
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("protocol: timestamp %q: %w", fields[0], err)
	}
	if ts < 0 {
		return Record{}, fmt.Errorf("protocol: negative timestamp %d", ts)
	}

	var ch [6]float64
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Record{}, fmt.Errorf("protocol: field %d %q: %w", i+1, fields[i+1], err)
		}
		ch[i] = v
	}

	return Record{
		TimestampMS: ts,
		Sample: imu.Sample{
			Ax: ch[0], Ay: ch[1], Az: ch[2],
			Gx: ch[3], Gy: ch[4], Gz: ch[5],
		},
	}, nil
}

// ParseEvent parses a lifecycle line, with or without numeric payload.
func ParseEvent(line string) (Event, error) {
	line = strings.TrimSpace(line)

	if k, ok := eventKinds[line]; ok {
		if k == CycleStart || k == SensorReset || k == Resets {
			return Event{}, fmt.Errorf("protocol: event %s requires a numeric payload", k)
		}
		return Event{Kind: k}, nil
	}

	name, payload, ok := strings.Cut(line, ",")
	if !ok {
		return Event{}, fmt.Errorf("protocol: unknown event %q", line)
	}
	k, known := eventKinds[name]
	if !known || (k != CycleStart && k != SensorReset && k != Resets) {
		return Event{}, fmt.Errorf("protocol: unknown event %q", line)
	}
	n, err := strconv.Atoi(payload)
	if err != nil {
		return Event{}, fmt.Errorf("protocol: event %s payload %q: %w", name, payload, err)
	}
	return Event{Kind: k, N: n, HasN: true}, nil
}
