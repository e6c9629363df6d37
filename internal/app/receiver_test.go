// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type published struct {
	topic string
	line  string
}

func newTestReceiver(t *testing.T) (*receiver, *[]published) {
	t.Helper()
	var pubs []published
	r := &receiver{
		cw: &cycleWriter{folder: t.TempDir()},
		publish: func(topic, line string) {
			pubs = append(pubs, published{topic, line})
		},
		events:  "tremor/events",
		samples: "tremor/samples",
	}
	return r, &pubs
}

func feedLines(t *testing.T, r *receiver, lines ...string) bool {
	t.Helper()
	done := false
	for _, line := range lines {
		var err error
		done, err = r.handleLine(line)
		require.NoError(t, err, "line %q", line)
	}
	return done
}

func cycleFiles(t *testing.T, folder string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(folder, "tremor_cycle*.csv"))
	require.NoError(t, err)
	return matches
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestReceiverWritesCycleFile(t *testing.T) {
	r, _ := newTestReceiver(t)

	feedLines(t, r,
		"SESSION_START",
		"CYCLE,1",
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz",
		"0,0.100,-0.200,9.810,1.500,0.000,0.000",
		"10,0.110,-0.200,9.810,1.500,0.000,0.000",
		"CYCLE_END",
		"RESETS,0",
	)

	files := cycleFiles(t, r.cw.folder)
	require.Len(t, files, 1)
	require.Contains(t, filepath.Base(files[0]), "tremor_cycle1_")

	content := readFile(t, files[0])
	require.Equal(t,
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz\n"+
			"0,0.100,-0.200,9.810,1.500,0.000,0.000\n"+
			"10,0.110,-0.200,9.810,1.500,0.000,0.000\n",
		content)

	// file is closed at cycle end
	require.Nil(t, r.cw.file)
}

func TestReceiverPauseKeepsSameFile(t *testing.T) {
	r, _ := newTestReceiver(t)

	feedLines(t, r,
		"SESSION_START",
		"CYCLE,1",
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz",
		"0,0.100,0.000,9.810,0.000,0.000,0.000",
		"PAUSE_CYCLE",
		// device never sends data while paused, but a straggler in
		// flight must not land in the file
		"10,9.999,9.999,9.999,9.999,9.999,9.999",
		"RESUME_CYCLE",
		"20,0.120,0.000,9.810,0.000,0.000,0.000",
		"CYCLE_END",
	)

	files := cycleFiles(t, r.cw.folder)
	require.Len(t, files, 1)

	content := readFile(t, files[0])
	require.NotContains(t, content, "9.999")
	require.Contains(t, content, "0,0.100")
	require.Contains(t, content, "20,0.120")
}

func TestReceiverRotatesOnNewCycleOnly(t *testing.T) {
	r, _ := newTestReceiver(t)

	feedLines(t, r,
		"SESSION_START",
		"CYCLE,1",
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz",
		"0,0.100,0.000,9.810,0.000,0.000,0.000",
		"CYCLE_END",
		"RESETS,0",
		"SESSION_START",
		"CYCLE,2",
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz",
		"0,0.200,0.000,9.810,0.000,0.000,0.000",
		"CYCLE_END",
		"RESETS,0",
	)

	files := cycleFiles(t, r.cw.folder)
	require.Len(t, files, 2)

	// a repeated CYCLE,2 (device retransmit quirk) does not rotate
	feedLines(t, r, "CYCLE,2")
	require.Len(t, cycleFiles(t, r.cw.folder), 2)
}

func TestReceiverAllCompleteEndsSession(t *testing.T) {
	r, _ := newTestReceiver(t)

	done := feedLines(t, r,
		"SESSION_START",
		"CYCLE,1",
		"CYCLE_END",
		"RESETS,2",
	)
	require.False(t, done)

	done = feedLines(t, r, "ALL_COMPLETE")
	require.True(t, done)
}

func TestReceiverPublishesToTopics(t *testing.T) {
	r, pubs := newTestReceiver(t)

	feedLines(t, r,
		"SESSION_START",
		"CYCLE,1",
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz",
		"0,0.100,0.000,9.810,0.000,0.000,0.000",
		"SENSOR_STUCK",
	)

	var events, samples []string
	for _, p := range *pubs {
		switch p.topic {
		case "tremor/events":
			events = append(events, p.line)
		case "tremor/samples":
			samples = append(samples, p.line)
		}
	}
	require.Equal(t, []string{"SESSION_START", "CYCLE,1", "SENSOR_STUCK"}, events)
	require.Equal(t, []string{"0,0.100,0.000,9.810,0.000,0.000,0.000"}, samples)
}

func TestReceiverDropsUnknownLines(t *testing.T) {
	r, pubs := newTestReceiver(t)

	feedLines(t, r,
		"SESSION_START",
		"CYCLE,1",
		"Timestamp,Ax,Ay,Az,Gx,Gy,Gz",
		"##garbage##",
		"0,0.100,0.000,9.810,0.000,0.000,0.000",
	)

	files := cycleFiles(t, r.cw.folder)
	require.Len(t, files, 1)
	content := readFile(t, files[0])
	require.NotContains(t, content, "garbage")
	require.True(t, strings.HasSuffix(content, "0,0.100,0.000,9.810,0.000,0.000,0.000\n"))

	// nothing unknown reaches the republish path either
	for _, p := range *pubs {
		require.NotContains(t, p.line, "garbage")
	}

	// health events pass through without touching the file
	feedLines(t, r, "SENSOR_RESET,1", "SENSOR_RESET_OK")
	require.NotContains(t, readFile(t, files[0]), "SENSOR_RESET")
}
