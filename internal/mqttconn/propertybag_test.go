// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import "testing"

func TestPropertyBag_AddRejectsEmpty(t *testing.T) {
	var bag PropertyBag
	if err := bag.Add("", "v"); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if err := bag.Add("k", ""); err == nil {
		t.Fatalf("expected error for empty value")
	}
}

func TestPropertyBag_RoundTrip(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"unit", "C"},
		{"zone", "kitchen"},
		{"id", "42"},
	}

	var bag PropertyBag
	for _, c := range cases {
		if err := bag.Add(c.key, c.value); err != nil {
			t.Fatalf("Add(%q, %q): %v", c.key, c.value, err)
		}
	}

	raw := bag.String()
	for _, c := range cases {
		got, ok := PropertyGet(raw, c.key)
		if !ok {
			t.Fatalf("PropertyGet(%q, %q): not found", raw, c.key)
		}
		if got != c.value {
			t.Fatalf("PropertyGet(%q, %q) = %q, want %q", raw, c.key, got, c.value)
		}
	}
}

func TestPropertyGet_NotFoundReturnsFalse(t *testing.T) {
	got, ok := PropertyGet("&unit=C&zone=kitchen", "missing")
	if ok {
		t.Fatalf("expected not found, got %q", got)
	}
}

func TestPropertyGet_RequiresBoundary(t *testing.T) {
	// "abkey=x" must not match a lookup for "key".
	if _, ok := PropertyGet("&abkey=x", "key"); ok {
		t.Fatalf("expected no match for substring key without boundary")
	}
}

func TestPropertyGet_CaseInsensitive(t *testing.T) {
	got, ok := PropertyGet("&Unit=C", "unit")
	if !ok || got != "C" {
		t.Fatalf("PropertyGet case-insensitive lookup = (%q, %v), want (\"C\", true)", got, ok)
	}
}

func TestAppendToTopic(t *testing.T) {
	var empty PropertyBag
	if got := AppendToTopic("home/kitchen/temp", &empty); got != "home/kitchen/temp" {
		t.Fatalf("AppendToTopic with empty bag = %q, want unchanged topic", got)
	}

	if got := AppendToTopic("home/kitchen/temp", nil); got != "home/kitchen/temp" {
		t.Fatalf("AppendToTopic with nil bag = %q, want unchanged topic", got)
	}

	var bag PropertyBag
	if err := bag.Add("unit", "C"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := "home/kitchen/temp?unit=C"
	if got := AppendToTopic("home/kitchen/temp", &bag); got != want {
		t.Fatalf("AppendToTopic = %q, want %q", got, want)
	}
}
