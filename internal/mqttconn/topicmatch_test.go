// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import "testing"

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		name    string
		topic   string
		pattern string
		want    string
		wantOK  bool
	}{
		{
			name:    "single-level wildcard with trailing properties",
			topic:   "home/kitchen/temp?unit=C",
			pattern: "home/+/temp",
			want:    "?unit=C",
			wantOK:  true,
		},
		{
			name:    "multi-level wildcard returns pointer just after the /",
			topic:   "home/kitchen/a/b",
			pattern: "home/#",
			want:    "kitchen/a/b",
			wantOK:  true,
		},
		{
			name:    "literal mismatch",
			topic:   "home/kitchen/temp",
			pattern: "home/+/light",
			want:    "",
			wantOK:  false,
		},
		{
			name:    "exact match with no trailing bytes",
			topic:   "home/kitchen/temp",
			pattern: "home/kitchen/temp",
			want:    "",
			wantOK:  true,
		},
		{
			name:    "pattern exhausted with non-properties trailer fails",
			topic:   "home/kitchen/tempXunit=C",
			pattern: "home/kitchen/temp",
			want:    "",
			wantOK:  false,
		},
		{
			name:    "bare # matches everything",
			topic:   "a/b/c",
			pattern: "#",
			want:    "a/b/c",
			wantOK:  true,
		},
		{
			name:    "+ only matches one segment",
			topic:   "home/kitchen/temp",
			pattern: "home/+",
			want:    "",
			wantOK:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MatchTopic(tc.topic, tc.pattern)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("MatchTopic(%q, %q) = (%q, %v), want (%q, %v)", tc.topic, tc.pattern, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestMatchTopic_PlusOnlyAtSegmentBoundary(t *testing.T) {
	// "+" embedded mid-segment is a literal character, not a wildcard.
	got, ok := MatchTopic("home/a+b/temp", "home/a+b/temp")
	if !ok || got != "" {
		t.Fatalf("expected literal match, got (%q, %v)", got, ok)
	}
}
