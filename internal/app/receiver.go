// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/tremor_recorder/internal/config"
	"github.com/relabs-tech/tremor_recorder/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network monitors only
	},
}

// lineFeed fans received lines out to connected websocket monitors.
type lineFeed struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newLineFeed() *lineFeed {
	return &lineFeed{conns: make(map[*websocket.Conn]bool)}
}

func (f *lineFeed) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("receiver: websocket upgrade error: %v", err)
		return
	}
	f.mu.Lock()
	f.conns[conn] = true
	f.mu.Unlock()
	log.Printf("receiver: websocket monitor connected from %s", r.RemoteAddr)

	// drain (and discard) client messages to notice disconnects
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.mu.Lock()
				delete(f.conns, conn)
				f.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func (f *lineFeed) broadcast(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			delete(f.conns, conn)
			conn.Close()
		}
	}
}

// cycleWriter owns the one-CSV-per-cycle output files. Pause and resume
// keep the same file; only a new cycle index rotates it.
type cycleWriter struct {
	folder  string
	cycle   int
	file    *os.File
	path    string
	samples int
	lastTS  int64
}

func (cw *cycleWriter) rotate(cycle int) error {
	if err := cw.close(); err != nil {
		log.Printf("receiver: closing previous file: %v", err)
	}
	cw.cycle = cycle
	cw.samples = 0
	cw.lastTS = 0

	stamp := time.Now().Format("20060102_150405")
	cw.path = filepath.Join(cw.folder, fmt.Sprintf("tremor_cycle%d_%s.csv", cycle, stamp))
	f, err := os.Create(cw.path)
	if err != nil {
		return fmt.Errorf("receiver: create %s: %w", cw.path, err)
	}
	cw.file = f
	log.Printf("receiver: recording cycle %d to %s", cycle, cw.path)
	return nil
}

func (cw *cycleWriter) writeLine(line string) error {
	if cw.file == nil {
		return nil
	}
	if _, err := cw.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("receiver: write %s: %w", cw.path, err)
	}
	return nil
}

func (cw *cycleWriter) close() error {
	if cw.file == nil {
		return nil
	}
	err := cw.file.Close()
	cw.file = nil
	return err
}

// receiver holds the host-side logging state driven line by line.
type receiver struct {
	cw      *cycleWriter
	paused  bool
	publish func(topic, line string)
	events  string
	samples string
}

// handleLine processes one received line and reports whether the
// session is over. Lines that match neither the data pattern nor a
// known event are logged and dropped; there is no retransmission, a
// lost line is lost.
func (r *receiver) handleLine(line string) (bool, error) {
	switch protocol.Classify(line) {
	case protocol.ClassData:
		r.publish(r.samples, line)
		if r.paused {
			return false, nil
		}
		if err := r.cw.writeLine(line); err != nil {
			return false, err
		}
		if r.cw.file != nil {
			r.cw.samples++
			if rec, err := protocol.ParseRecord(line); err == nil {
				r.cw.lastTS = rec.TimestampMS
			}
			if r.cw.samples%100 == 0 {
				log.Printf("receiver: %5d samples | %6.1fs", r.cw.samples, float64(r.cw.lastTS)/1000)
			}
		}

	case protocol.ClassHeader:
		return false, r.cw.writeLine(line)

	case protocol.ClassEvent:
		r.publish(r.events, line)
		ev, _ := protocol.ParseEvent(line)
		switch ev.Kind {
		case protocol.SessionStart:
			r.paused = false
		case protocol.CycleStart:
			// only a changed cycle index rotates the file; resume
			// within a cycle keeps writing to the same one
			if ev.N != r.cw.cycle {
				if err := r.cw.rotate(ev.N); err != nil {
					return false, err
				}
			}
			r.paused = false
		case protocol.PauseCycle:
			r.paused = true
			log.Printf("receiver: paused (%d samples so far)", r.cw.samples)
		case protocol.ResumeCycle:
			r.paused = false
			log.Println("receiver: resumed")
		case protocol.CycleEnd:
			log.Printf("receiver: cycle %d complete: %d samples, %.1fs, %s",
				r.cw.cycle, r.cw.samples, float64(r.cw.lastTS)/1000, r.cw.path)
			if err := r.cw.close(); err != nil {
				log.Printf("receiver: close %s: %v", r.cw.path, err)
			}
		case protocol.AllComplete:
			log.Println("receiver: all cycles complete")
			return true, nil
		default:
			// sensor health events; surface them but change nothing
			log.Printf("receiver: device event: %s", line)
		}

	default:
		log.Printf("receiver: ignoring line: %q", line)
	}
	return false, nil
}

// RunReceiver is the host-side collaborator: it reads the device's line
// protocol from the serial link, writes one CSV file per cycle (kept
// open across pause/resume), and optionally republishes lines to MQTT
// and a websocket live feed.
func RunReceiver() error {
	cfg := config.Get()

	if err := os.MkdirAll(cfg.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("receiver: create output folder: %w", err)
	}

	// ---- serial link in ----
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
		return fmt.Errorf("receiver: open serial port %s: %w", cfg.SerialPort, err)
	}
	defer port.Close()
	log.Printf("receiver: serial port opened on %s at %d baud", cfg.SerialPort, cfg.SerialBaud)

	// ---- optional MQTT republish ----
	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDReceiver)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("receiver: MQTT connect: %w", token.Error())
		}
		defer client.Disconnect(250)
		log.Printf("receiver: connected to MQTT broker at %s", cfg.MQTTBroker)
	}

	// ---- optional websocket live feed ----
	var feed *lineFeed
	if cfg.WSListenAddr != "" {
		feed = newLineFeed()
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", feed.handle)
		go func() {
			log.Printf("receiver: live feed listening on %s", cfg.WSListenAddr)
			if err := http.ListenAndServe(cfg.WSListenAddr, mux); err != nil {
				log.Printf("receiver: live feed server: %v", err)
			}
		}()
	}

	publish := func(topic, line string) {
		if client == nil || topic == "" {
			return
		}
		if token := client.Publish(topic, 0, false, line); token.Wait() && token.Error() != nil {
			log.Printf("receiver: MQTT publish error: %v", token.Error())
		}
	}

	r := &receiver{
		cw:      &cycleWriter{folder: cfg.OutputFolder},
		publish: publish,
		events:  cfg.TopicEvents,
		samples: cfg.TopicSamples,
	}
	defer func() {
		if r.cw.file != nil {
			r.cw.close()
			log.Printf("receiver: final save: %s", r.cw.path)
		}
	}()

	scanner := bufio.NewScanner(bufio.NewReader(port))

	log.Println("receiver: waiting for device to start recording")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if feed != nil {
			feed.broadcast(line)
		}

		done, err := r.handleLine(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("receiver: serial read: %w", err)
	}
	return nil
}
