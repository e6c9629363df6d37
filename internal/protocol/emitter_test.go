// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tremor_recorder/internal/imu"
)

func TestEmitterLines(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	require.NoError(t, e.Event(SessionStart))
	require.NoError(t, e.EventN(CycleStart, 1))
	require.NoError(t, e.Header())
	require.NoError(t, e.Sample(5010*time.Millisecond, imu.Sample{
		Ax: 0.123, Ay: -0.456, Az: 9.81, Gx: 1.2, Gy: -3.4, Gz: 0,
	}))
	require.NoError(t, e.Event(AllComplete))

	want := "SESSION_START\n" +
		"CYCLE,1\n" +
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz\n" +
		"5010,0.123,-0.456,9.810,1.200,-3.400,0.000\n" +
		"ALL_COMPLETE\n"
	require.Equal(t, want, buf.String())
}

func TestSampleRounding(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	require.NoError(t, e.Sample(0, imu.Sample{Ax: 0.12349, Az: 9.80665}))
	require.Equal(t, "0,0.123,0.000,9.807,0.000,0.000,0.000\n", buf.String())
}

// shortWriter fails every write.
type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return 0, errors.New("port gone")
}

func TestWriteErrorSurfaces(t *testing.T) {
	e := NewEmitter(shortWriter{})

	err := e.Event(SessionStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "port gone")
}

func TestEmittedLinesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	require.NoError(t, e.EventN(SensorReset, 2))
	require.NoError(t, e.Sample(120500*time.Millisecond, imu.Sample{Ay: 0.5}))

	lines := bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n"))
	require.Len(t, lines, 2)

	ev, err := ParseEvent(string(lines[0]))
	require.NoError(t, err)
	require.Equal(t, Event{Kind: SensorReset, N: 2, HasN: true}, ev)

	rec, err := ParseRecord(string(lines[1]))
	require.NoError(t, err)
	require.Equal(t, int64(120500), rec.TimestampMS)
	require.Equal(t, 0.5, rec.Sample.Ay)
}
