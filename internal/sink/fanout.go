// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sink delivers engine events to MQTT, MIDI ports and logs.
package sink

import (
	"errors"

	"github.com/relabs-tech/motion_instrument/internal/engine"
)

// Fanout sends every event to each sink in order. A failing sink does not
// stop delivery to the rest.
type Fanout []engine.Sink

func (f Fanout) Send(e engine.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
