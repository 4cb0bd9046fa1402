// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package midiout

import "strings"

// matchPort returns the index of the first name containing match, ignoring
// case, or -1.
func matchPort(names []string, match string) int {
	match = strings.ToLower(match)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), match) {
			return i
		}
	}
	return -1
}
