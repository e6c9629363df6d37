// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

// State is the recording session state. There is exactly one instance,
// owned and mutated only by the Machine.
type State int

const (
	Idle State = iota
	Recording
	Paused
	WaitingNext
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Recording:
		return "RECORDING"
	case Paused:
		return "PAUSED"
	case WaitingNext:
		return "WAITING_NEXT"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}
