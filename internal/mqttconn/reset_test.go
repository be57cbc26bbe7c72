// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"testing"
	"time"

	"github.com/relaymesh/sockagent/internal/sockerr"
)

func TestResetPublishRecords_IdempotentAcrossRepeatedCalls(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	rec := &publishRecord{packetID: 3, published: true, attempted: time.Now()}
	c.publishQueue = []*publishRecord{rec}

	c.resetPublishRecords()
	if rec.published || !rec.attempted.IsZero() {
		t.Fatalf("expected published/attempted cleared after first reset, got published=%v attempted=%v", rec.published, rec.attempted)
	}

	// Calling it again (e.g. two hard resets in a row) must not panic or
	// change an already-cleared record.
	c.resetPublishRecords()
	if rec.published || !rec.attempted.IsZero() {
		t.Fatalf("expected record to remain cleared after second reset, got published=%v attempted=%v", rec.published, rec.attempted)
	}
}

func TestResetSubscriptionFlags_IdempotentAcrossRepeatedCalls(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	s := &Subscription{Topic: "home/kitchen/temp", conn: c, state: subSubscribed, pendingPacketID: 9}
	c.subscriptions = []*Subscription{s}

	c.resetSubscriptionFlags()
	if s.state != subUnsubscribed || s.pendingPacketID != 0 {
		t.Fatalf("expected subscription cleared after first reset, got state=%v pendingPacketID=%d", s.state, s.pendingPacketID)
	}

	c.resetSubscriptionFlags()
	if s.state != subUnsubscribed || s.pendingPacketID != 0 {
		t.Fatalf("expected subscription to remain cleared after second reset, got state=%v pendingPacketID=%d", s.state, s.pendingPacketID)
	}
}

func TestHardReset_TwiceInARowDoesNotPanic(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	c.setState(StateConnected)
	c.hardReset(sockerr.KindComm)
	c.hardReset(sockerr.KindComm)

	if c.State() != StateReset {
		t.Fatalf("state = %v, want StateReset", c.State())
	}
}
