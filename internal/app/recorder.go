// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tremor_recorder/internal/config"
	"github.com/relabs-tech/tremor_recorder/internal/health"
	"github.com/relabs-tech/tremor_recorder/internal/protocol"
	"github.com/relabs-tech/tremor_recorder/internal/recorder"
	"github.com/relabs-tech/tremor_recorder/internal/sensors"
	"github.com/relabs-tech/tremor_recorder/internal/session"
)

// RunRecorder wires the acquisition engine to the real hardware: the
// MPU-6050 over I2C, the user button and status LED over GPIO, the
// SSD1306 status display, and the outbound serial link to the host.
func RunRecorder() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("recorder: periph host init: %w", err)
	}

	// ---- outbound serial link ----
	serialOpts := serial.OpenOptions{
		PortName:        cfg.SerialPort,
		BaudRate:        uint(cfg.SerialBaud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("recorder: open serial port %s: %w", cfg.SerialPort, err)
	}
	defer port.Close()
	log.Printf("recorder: serial link opened on %s at %d baud", cfg.SerialPort, cfg.SerialBaud)

	emitter := protocol.NewEmitter(port)

	// ---- sensor ----
	src, err := sensors.NewMPU6050()
	if err != nil {
		return fmt.Errorf("recorder: sensor init: %w", err)
	}
	defer src.Close()

	// ---- user button (active low, internal pull-up) ----
	button := gpioreg.ByName(cfg.ButtonPin)
	if button == nil {
		return fmt.Errorf("recorder: button pin %q not found", cfg.ButtonPin)
	}
	if err := button.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("recorder: configure button pin: %w", err)
	}

	// ---- status LED ----
	led := gpioreg.ByName(cfg.LEDPin)
	if led == nil {
		return fmt.Errorf("recorder: LED pin %q not found", cfg.LEDPin)
	}
	if err := led.Out(gpio.Low); err != nil {
		return fmt.Errorf("recorder: configure LED pin: %w", err)
	}

	// ---- status display (non-fatal if absent) ----
	var display *StatusDisplay
	if d, err := NewStatusDisplay(cfg.I2CBus); err != nil {
		log.Printf("recorder: WARNING: status display unavailable: %v", err)
	} else {
		display = d
		defer display.Close()
	}

	// ---- core components ----
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

	opts := recorder.Options{
		Source:  src,
		Machine: machine,
		Monitor: monitor,
		Emitter: emitter,
		Input: func() bool {
			return button.Read() == gpio.Low
		},
		Indicator: func(on bool) {
			if err := led.Out(gpio.Level(on)); err != nil {
				log.Printf("recorder: LED write: %v", err)
			}
		},
		SampleInterval:  time.Duration(cfg.SampleInterval) * time.Millisecond,
		HealthInterval:  time.Duration(cfg.HealthCheckInterval) * time.Millisecond,
		DisplayInterval: time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond,
	}
	if display != nil {
		opts.Display = func(st recorder.Status) {
			st.MaxCycles = cfg.MaxCycles
			if err := display.Update(st); err != nil {
				log.Printf("recorder: display update: %v", err)
			}
		}
	}

	engine := recorder.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("recorder: ready, press the button to start (%d cycles of %d ms at %d ms/sample)",
		cfg.MaxCycles, cfg.SessionDuration, cfg.SampleInterval)

	if err := engine.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("recorder: interrupted")
			return nil
		}
		return fmt.Errorf("recorder: engine: %w", err)
	}
	log.Println("recorder: session finished")
	return nil
}
