// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"log"

	"github.com/relabs-tech/motion_instrument/internal/engine"
)

// Log prints events. A nil logger uses the standard logger.
type Log struct {
	Logger *log.Logger
}

func (l Log) Send(e engine.Event) error {
	if l.Logger == nil {
		log.Printf("note: %v", e)
		return nil
	}
	l.Logger.Printf("note: %v", e)
	return nil
}
