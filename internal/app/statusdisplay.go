// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/tremor_recorder/internal/recorder"
	"github.com/relabs-tech/tremor_recorder/internal/session"
)

// StatusDisplay renders the session status on a 128x64 SSD1306 OLED.
type StatusDisplay struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

// NewStatusDisplay opens the display on the given I2C bus (the SSD1306
// sits at its fixed default address).
func NewStatusDisplay(busName string) (*StatusDisplay, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("display: open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: init SSD1306: %w", err)
	}
	log.Println("display: initialized")

	return &StatusDisplay{bus: bus, dev: dev}, nil
}

// Update redraws the status surface.
func (d *StatusDisplay) Update(st recorder.Status) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	state := st.State.String()
	if st.Degraded {
		state = "SENSOR ERROR"
	}
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(state))

	drawer.Dot = fixed.P(0, 26)
	switch st.State {
	case session.Idle:
		drawer.DrawBytes([]byte("Press to start"))
	case session.WaitingNext:
		drawer.DrawBytes([]byte(fmt.Sprintf("Next: cycle %d", st.Cycle)))
	default:
		drawer.DrawBytes([]byte(fmt.Sprintf("Cycle %d/%d", st.Cycle, st.MaxCycles)))
	}

	elapsed := st.Elapsed.Truncate(0)
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("%02d:%02d.%d",
		int(elapsed.Minutes()), int(elapsed.Seconds())%60, int(elapsed.Milliseconds()/100)%10)))

	if st.Resets > 0 {
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("Resets: %d", st.Resets)))
	}

	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

// Close releases the display's I2C bus.
func (d *StatusDisplay) Close() error {
	return d.bus.Close()
}
