// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

// State is the delivery worker's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Broken
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Broken:
		return "broken"
	default:
		return "unknown"
	}
}
