// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import "strings"

// MatchTopic walks topic and pattern index-by-index, honoring MQTT's `#`
// (multi-level, terminal) and `+` (single-level) wildcards, both only
// recognized at a `/` segment boundary. On a full match it returns the
// substring of topic following the matched prefix (the properties query
// string, if any) and true; otherwise ("", false).
func MatchTopic(topic, pattern string) (string, bool) {
	ti, pi := 0, 0
	for pi < len(pattern) {
		atBoundary := pi == 0 || pattern[pi-1] == '/'

		if atBoundary && pattern[pi] == '#' {
			return topic[ti:], true
		}

		if atBoundary && pattern[pi] == '+' {
			next := strings.IndexByte(topic[ti:], '/')
			if next < 0 {
				ti = len(topic)
			} else {
				ti += next
			}
			pi++
			continue
		}

		if ti >= len(topic) || topic[ti] != pattern[pi] {
			return "", false
		}
		ti++
		pi++
	}

	if ti == len(topic) {
		return "", true
	}
	// Pattern exhausted but topic has trailing bytes: only a match if what
	// remains starts the properties query string.
	if topic[ti] == '?' {
		return topic[ti:], true
	}
	return "", false
}
