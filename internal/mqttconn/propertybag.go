// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"strings"

	"github.com/relaymesh/sockagent/internal/sockerr"
)

// PropertyBag is the `&key=value&key=value…` query string attached to a
// publish topic after its first `&` is rewritten to `?`. It is built once
// on the sending side and parsed opaquely on the receiving side.
type PropertyBag struct {
	s strings.Builder
}

// Add appends `&key=value`. value must be non-empty.
func (p *PropertyBag) Add(key, value string) error {
	if key == "" || value == "" {
		return sockerr.New(sockerr.KindArg, "property key/value must be non-empty")
	}
	p.s.WriteByte('&')
	p.s.WriteString(key)
	p.s.WriteByte('=')
	p.s.WriteString(value)
	return nil
}

// String returns the accumulated `&key=value…` string, empty if nothing
// was added.
func (p *PropertyBag) String() string {
	return p.s.String()
}

// AppendToTopic builds the effective publish topic: topic unchanged if the
// bag is empty, otherwise topic + the bag string with its leading `&`
// rewritten to `?`.
func AppendToTopic(topic string, bag *PropertyBag) string {
	if bag == nil {
		return topic
	}
	raw := bag.String()
	if raw == "" {
		return topic
	}
	return topic + "?" + raw[1:]
}

// PropertyGet performs a case-insensitive search for key within a raw
// `&k=v&k=v` (or `?k=v&k=v`) properties string, returning the value up to
// the next `&` or end of string. Mirrors spec's "property_get": not-found
// is returned, not an empty string, when the key is absent.
func PropertyGet(properties, key string) (string, bool) {
	lowerProps := strings.ToLower(properties)
	lowerKey := strings.ToLower(key) + "="

	pos := 0
	for pos < len(lowerProps) {
		idx := strings.Index(lowerProps[pos:], lowerKey)
		if idx < 0 {
			return "", false
		}
		start := pos + idx
		// Require a boundary immediately before the key (string start, or a
		// '&'/'?' separator) so "abkey=" doesn't match a query for "key".
		if start == 0 || properties[start-1] == '&' || properties[start-1] == '?' {
			valueStart := start + len(lowerKey)
			end := strings.IndexByte(properties[valueStart:], '&')
			if end < 0 {
				return properties[valueStart:], true
			}
			return properties[valueStart : valueStart+end], true
		}
		pos = start + 1
	}
	return "", false
}
