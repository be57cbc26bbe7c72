// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/relaymesh/sockagent/internal/mqttwire"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

type subState int

const (
	subUnsubscribed subState = iota
	subSubscribing
	subSubscribed
	subUnsubscribing
)

// Subscription is one topic registration on a Connection. Operations
// (spec §4.7) only ever run on the connection's scheduler thread.
type Subscription struct {
	Topic     string
	OnReceive func(payload []byte, properties string)

	conn     *Connection
	state    subState
	disabled bool

	pendingPacketID uint16
}

// Subscribe registers topic on conn, scheduling a subscribe_all pass if
// the connection is already connected.
func Subscribe(conn *Connection, topic string, onReceive func(payload []byte, properties string)) *Subscription {
	s := &Subscription{
		Topic:     topic,
		OnReceive: onReceive,
		conn:      conn,
		state:     subUnsubscribed,
	}
	conn.sched.Post(func() {
		conn.subscriptions = append(conn.subscriptions, s)
		if conn.State() == StateConnected {
			conn.scheduleSubscribeAll()
		}
	})
	return s
}

// Release detaches the receiver callback and schedules the subscription's
// deallocation on the connection's scheduler.
func (s *Subscription) Release() {
	s.conn.sched.Post(func() {
		s.OnReceive = nil
		s.free()
	})
}

// free unlinks s from its connection, issuing a best-effort single-topic
// UNSUBSCRIBE if it was subscribed. Allocator/codec failures here are
// swallowed — this is teardown, not a user-facing operation.
func (s *Subscription) free() {
	c := s.conn
	if c == nil {
		return
	}
	if s.state == subSubscribed && c.adapter != nil {
		pid := c.packetIDs.allocate()
		var buf bufferWriter
		if err := mqttwire.WriteUnsubscribe(&buf, pid, []string{s.Topic}); err == nil {
			c.adapter.Send(buf.Bytes(), func(sockerr.Kind) {})
		}
	}
	for i, other := range c.subscriptions {
		if other == s {
			c.subscriptions = append(c.subscriptions[:i], c.subscriptions[i+1:]...)
			break
		}
	}
	s.conn = nil
}

// SetReceive toggles inbound flow control for this subscription. Rejected
// with a closed error if the connection is not currently connected.
func (s *Subscription) SetReceive(enable bool) error {
	if s.conn.State() != StateConnected {
		return sockerr.New(sockerr.KindClosed, "connection not active")
	}
	c := s.conn
	c.sched.Post(func() {
		if enable {
			s.disabled = false
			if s.state == subUnsubscribed || s.state == subSubscribing {
				c.scheduleSubscribeAll()
			}
			return
		}

		s.disabled = true
		if s.state == subSubscribed || s.state == subSubscribing {
			pid := c.packetIDs.allocate()
			var buf bufferWriter
			if err := mqttwire.WriteUnsubscribe(&buf, pid, []string{s.Topic}); err == nil {
				s.state = subUnsubscribing // so the UNSUBACK below moves it to unsubscribed
				s.pendingPacketID = pid
				c.adapter.Send(buf.Bytes(), func(sockerr.Kind) {})
			}
		}
	})
	return nil
}

// --- subscribe_all / unsubscribe_all (spec §4.6.7, §4.6.8) --------------

func (c *Connection) scheduleSubscribeAll() {
	c.sched.Post(c.subscribeAll)
}

func (c *Connection) subscribeAll() {
	if c.State() != StateConnected {
		return
	}

	var topics []string
	var qoss []byte
	var targets []*Subscription
	for _, s := range c.subscriptions {
		if s.state == subUnsubscribed && !s.disabled {
			topics = append(topics, s.Topic)
			qoss = append(qoss, QoSAtMostOnce.wireByte())
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		return
	}

	pid := c.packetIDs.allocate()
	var buf bufferWriter
	if err := mqttwire.WriteSubscribe(&buf, pid, topics, qoss); err != nil {
		c.lastError = sockerr.KindOutOfMemory
		c.hardReset(c.lastError)
		return
	}

	for _, s := range targets {
		s.state = subSubscribing
		s.pendingPacketID = pid
	}

	c.adapter.Send(buf.Bytes(), func(status sockerr.Kind) {
		if status != sockerr.KindOK {
			c.lastError = sockerr.KindComm
			c.hardReset(c.lastError)
		}
	})
}

// subackFailureBit marks a per-topic SUBACK return code as a refusal
// (MQTT 3.1.1 §3.9.3: 0x80).
const subackFailureBit = 0x80

func (c *Connection) onSuback(p *packets.SubackPacket) {
	for _, code := range p.ReturnCodes {
		if code >= subackFailureBit {
			c.lastError = sockerr.KindRefused
			c.hardReset(c.lastError)
			return
		}
	}
	for _, s := range c.subscriptions {
		if s.state == subSubscribing && s.pendingPacketID == p.MessageID {
			s.state = subSubscribed
		}
	}
	c.scheduleSubscribeAll()
}

func (c *Connection) scheduleUnsubscribeAll() {
	c.sched.Post(c.unsubscribeAll)
}

func (c *Connection) unsubscribeAll() {
	var topics []string
	var targets []*Subscription
	for _, s := range c.subscriptions {
		if s.state == subSubscribed {
			topics = append(topics, s.Topic)
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		if c.State() == StateDisconnecting || c.State() == StateClosing {
			c.sched.Post(c.beginDisconnectFinal)
		}
		return
	}

	pid := c.packetIDs.allocate()
	var buf bufferWriter
	if err := mqttwire.WriteUnsubscribe(&buf, pid, topics); err != nil {
		c.lastError = sockerr.KindComm
		c.hardReset(c.lastError)
		return
	}

	for _, s := range targets {
		s.state = subUnsubscribing
		s.pendingPacketID = pid
	}

	c.adapter.Send(buf.Bytes(), func(sockerr.Kind) {})
}

func (c *Connection) onUnsuback(packetID uint16) {
	for _, s := range c.subscriptions {
		if s.state == subUnsubscribing && s.pendingPacketID == packetID {
			s.state = subUnsubscribed
		}
	}
	if c.State() == StateDisconnecting || c.State() == StateClosing {
		c.scheduleUnsubscribeAll()
	}
}
