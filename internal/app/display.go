// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_instrument/internal/config"
	"github.com/relabs-tech/motion_instrument/internal/engine"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// displayState holds the latest status received from the instrument.
type displayState struct {
	mu     sync.RWMutex
	status engine.Status
	have   bool
}

func (d *displayState) set(st engine.Status) {
	d.mu.Lock()
	d.status = st
	d.have = true
	d.mu.Unlock()
}

func (d *displayState) snapshot() (engine.Status, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status, d.have
}

func RunDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("display: failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("display: failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("display: failed to initialize ssd1306: %w", err)
	}
	log.Println("display: ssd1306 initialized")

	if err := drawLines(dev, []string{"", "  Motion", "  Instrument"}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	state := &displayState{}

	client, err := connectMQTT("display", cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe("display", client, cfg.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		var st engine.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("display: status unmarshal error: %v", err)
			return
		}
		state.set(st)
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	var last string
	for range ticker.C {
		lines := displayLines(state.snapshot())
		key := strings.Join(lines, "\n")
		if key == last {
			continue
		}
		if err := drawLines(dev, lines); err != nil {
			log.Printf("display: error updating display: %v", err)
			continue
		}
		last = key
	}
	return nil
}

// displayLines lays out up to four text rows. With the guide on, rows 2-3
// show the eight sector notes, sector 0 first.
func displayLines(st engine.Status, have bool) []string {
	if !have {
		return []string{"", "Instrument", "Waiting..."}
	}
	if !st.Powered {
		return []string{"", "  Power off"}
	}

	header := fmt.Sprintf("%-10s O%d", st.Scale, st.Octave)

	if st.Guide && len(st.Sectors) == 8 {
		return []string{
			header,
			sectorRow(st.Sectors[:4]),
			sectorRow(st.Sectors[4:]),
			"Note " + soundingName(st),
		}
	}

	expr := "---"
	if st.Sounding {
		expr = fmt.Sprintf("%3d", st.Expression)
	}
	return []string{
		header,
		"Note " + soundingName(st),
		"Expr " + expr,
		fmt.Sprintf("L%4.0f D%4.0f", st.Angles.Lateral, st.Angles.Depth),
	}
}

func soundingName(st engine.Status) string {
	if !st.Sounding {
		return "-"
	}
	return st.NoteName
}

func sectorRow(names []string) string {
	cells := make([]string, len(names))
	for i, n := range names {
		cells[i] = fmt.Sprintf("%-3s", n)
	}
	return strings.Join(cells, " ")
}

// renderLines draws text rows onto a blank 128x64 frame.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if i >= displayHeight/lineHeight {
			break
		}
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}

func drawLines(dev *ssd1306.Dev, lines []string) error {
	img := renderLines(lines)
	return dev.Draw(dev.Bounds(), img, image.Point{})
}
