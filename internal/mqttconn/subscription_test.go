// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

func newSuback(packetID uint16, returnCodes ...byte) *packets.SubackPacket {
	p := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
	p.MessageID = packetID
	p.ReturnCodes = returnCodes
	return p
}

func TestOnSuback_AcceptedMovesSubscribingToSubscribed(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	s := &Subscription{Topic: "home/kitchen/temp", conn: c, state: subSubscribing, pendingPacketID: 5}
	c.subscriptions = []*Subscription{s}

	c.onSuback(newSuback(5, 0x00))

	if s.state != subSubscribed {
		t.Fatalf("subscription state = %v, want subSubscribed", s.state)
	}
}

func TestOnSuback_RefusalTriggersHardReset(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	s := &Subscription{Topic: "home/kitchen/temp", conn: c, state: subSubscribing, pendingPacketID: 5}
	c.subscriptions = []*Subscription{s}

	c.onSuback(newSuback(5, subackFailureBit))

	// A refused SUBACK hard-resets the whole connection, which clears every
	// subscription's flags along with it — not a selective per-topic flip.
	if s.state != subUnsubscribed {
		t.Fatalf("expected hard reset to clear subscription state, got %v", s.state)
	}
	if c.State() != StateReset {
		t.Fatalf("expected hard reset to drive connection back to StateReset, got %v", c.State())
	}
}

func TestOnSuback_IgnoresMismatchedPacketID(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	s := &Subscription{Topic: "home/kitchen/temp", conn: c, state: subSubscribing, pendingPacketID: 5}
	c.subscriptions = []*Subscription{s}

	c.onSuback(newSuback(9, 0x00))

	if s.state != subSubscribing {
		t.Fatalf("SUBACK for a different packet id must not affect subscription state, got %v", s.state)
	}
}

func TestOnUnsuback_MovesUnsubscribingToUnsubscribed(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	s := &Subscription{Topic: "home/kitchen/temp", conn: c, state: subUnsubscribing, pendingPacketID: 11}
	c.subscriptions = []*Subscription{s}

	c.onUnsuback(11)

	if s.state != subUnsubscribed {
		t.Fatalf("subscription state = %v, want subUnsubscribed", s.state)
	}
}

func TestOnUnsuback_IgnoresMismatchedPacketID(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	s := &Subscription{Topic: "home/kitchen/temp", conn: c, state: subUnsubscribing, pendingPacketID: 11}
	c.subscriptions = []*Subscription{s}

	c.onUnsuback(99)

	if s.state != subUnsubscribing {
		t.Fatalf("UNSUBACK for a different packet id must not affect subscription state, got %v", s.state)
	}
}

func TestUnsubscribeAll_NoSubscribedTargetsAdvancesDisconnect(t *testing.T) {
	c, sched := newTestConnection(t)
	defer sched.Stop()

	c.setState(StateDisconnecting)
	s := &Subscription{Topic: "home/kitchen/temp", conn: c, state: subUnsubscribed}
	c.subscriptions = []*Subscription{s}

	// With nothing left subscribed/subscribing, unsubscribeAll has no wire
	// work to do and must hand off to the final DISCONNECT step rather than
	// stall the teardown sequence.
	done := make(chan struct{})
	sched.Post(func() {
		c.unsubscribeAll()
		sched.Post(func() { close(done) })
	})
	<-done
	sched.WaitQuiescent()

	if c.State() != StateReset {
		t.Fatalf("expected teardown to reach StateReset (no adapter to disconnect from), got %v", c.State())
	}
}
