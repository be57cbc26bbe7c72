// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package transport

import "strings"

// Mode selects which byte-pipe leg an Adapter uses.
type Mode int

const (
	ModeRawTLS Mode = iota
	ModeWebSocket
)

// ParseScheme maps a connection URI scheme to a transport Mode. Recognizes
// "wss"/"ws" as WebSocket and "ssl"/"tls"/"tcp"/"mqtts"/"mqtt" as raw-TLS,
// matching original_source/src/prx_client.c's scheme table (it accepts
// both bare "tcp"/"ssl" and the MQTT-specific aliases). Any other
// non-empty scheme also maps to raw-TLS with ok true.
//
// Returns (mode, ok) — ok is false when scheme is empty, signaling the
// caller should fall back to its own toggle policy (spec §4.6.10/§9).
func ParseScheme(scheme string) (Mode, bool) {
	switch strings.ToLower(scheme) {
	case "":
		return ModeRawTLS, false
	case "ws", "wss":
		return ModeWebSocket, true
	default:
		return ModeRawTLS, true
	}
}
