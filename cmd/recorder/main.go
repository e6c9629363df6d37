// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/tremor_recorder/internal/app"
	"github.com/relabs-tech/tremor_recorder/internal/config"
)

func main() {
	configPath := flag.String("config", "./tremor_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting tremor-recorder acquisition engine")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRecorder(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
