// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/tremor_recorder/internal/config"
	"github.com/relabs-tech/tremor_recorder/internal/health"
	"github.com/relabs-tech/tremor_recorder/internal/protocol"
	"github.com/relabs-tech/tremor_recorder/internal/recorder"
	"github.com/relabs-tech/tremor_recorder/internal/sensors"
	"github.com/relabs-tech/tremor_recorder/internal/session"
)

// RunSimulator runs the full engine against the mock sensor and writes
// the wire protocol to out, usually stdout piped into the receiver or a
// pty. The session auto-starts and auto-advances between cycles: the
// simulated button is held whenever the machine is waiting for a press.
// freezeAfter > 0 freezes the mock sensor after that many reads to
// exercise the freeze/recovery path.
func RunSimulator(out io.Writer, freezeAfter int) error {
	cfg := config.Get()

	emitter := protocol.NewEmitter(out)
	src := sensors.NewMockSource()
	src.FreezeAfter = freezeAfter

	now := time.Now()
	freeze := health.NewFreezeDetector(cfg.StuckEpsilon, cfg.StuckThreshold)
	monitor := health.NewMonitor(src, freeze, emitter,
		cfg.FailedReadCap,
		time.Duration(cfg.StaleAfter)*time.Millisecond,
		time.Duration(cfg.ResetSettle)*time.Millisecond,
		now)
	machine := session.NewMachine(
		time.Duration(cfg.SessionDuration)*time.Millisecond,
		cfg.MaxCycles,
		time.Duration(cfg.DebounceInterval)*time.Millisecond,
		emitter,
		monitor.Resets)

	engine := recorder.New(recorder.Options{
		Source:  src,
		Machine: machine,
		Monitor: monitor,
		Emitter: emitter,
		Input: func() bool {
			st := machine.State()
			return st == session.Idle || st == session.WaitingNext
		},
		SampleInterval:  time.Duration(cfg.SampleInterval) * time.Millisecond,
		HealthInterval:  time.Duration(cfg.HealthCheckInterval) * time.Millisecond,
		DisplayInterval: time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("simulator: %d cycles of %d ms at %d ms/sample",
		cfg.MaxCycles, cfg.SessionDuration, cfg.SampleInterval)

	if err := engine.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("simulator: interrupted")
			return nil
		}
		return err
	}
	log.Println("simulator: session finished")
	return nil
}
