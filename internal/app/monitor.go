// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/tremor_recorder/internal/config"
	"github.com/relabs-tech/tremor_recorder/internal/protocol"
)

// RunMonitor subscribes to the receiver's MQTT republish and prints
// lifecycle events as they happen, plus a once-a-second data line so a
// human can see samples flowing without drowning in them.
func RunMonitor() error {
	cfg := config.Get()

	if cfg.MQTTBroker == "" {
		return fmt.Errorf("monitor: MQTT_BROKER is not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDMonitor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to lifecycle events
	eventToken := client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Printf("[EVENT] %s\n", msg.Payload())
	})
	eventToken.Wait()
	if eventToken.Error() != nil {
		return eventToken.Error()
	}
	log.Printf("monitor: subscribed to %s", cfg.TopicEvents)

	// Subscribe to data records, printing one in every hundred
	var count atomic.Int64
	dataToken := client.Subscribe(cfg.TopicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		n := count.Add(1)
		if n%100 != 0 {
			return
		}
		rec, err := protocol.ParseRecord(string(msg.Payload()))
		if err != nil {
			log.Printf("monitor: bad data record: %v", err)
			return
		}
		fmt.Printf("[DATA ] t=%6.1fs  a=(%7.3f %7.3f %7.3f)  g=(%8.3f %8.3f %8.3f)  n=%d\n",
			float64(rec.TimestampMS)/1000,
			rec.Sample.Ax, rec.Sample.Ay, rec.Sample.Az,
			rec.Sample.Gx, rec.Sample.Gy, rec.Sample.Gz,
			n)
	})
	dataToken.Wait()
	if dataToken.Error() != nil {
		return dataToken.Error()
	}
	log.Printf("monitor: subscribed to %s", cfg.TopicSamples)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("monitor: shutting down")
	client.Disconnect(250)
	return nil
}
