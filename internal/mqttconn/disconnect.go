// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"github.com/relaymesh/sockagent/internal/mqttwire"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

// beginDisconnect drains remaining subscriptions before sending DISCONNECT
// (spec §4.6.9). Entered from softReset (connected → disconnecting) and
// from Close (→ closing, same drain path).
func (c *Connection) beginDisconnect() {
	for _, s := range c.subscriptions {
		if s.state == subSubscribed || s.state == subSubscribing {
			c.scheduleUnsubscribeAll()
			return
		}
	}
	c.beginDisconnectFinal()
}

// beginDisconnectFinal is reached once no subscription remains
// subscribed/subscribing: it sends the actual DISCONNECT packet.
func (c *Connection) beginDisconnectFinal() {
	if c.adapter == nil {
		c.completeDisconnect()
		return
	}
	var buf bufferWriter
	if err := mqttwire.WriteDisconnect(&buf); err != nil {
		c.completeDisconnect()
		return
	}
	c.adapter.Send(buf.Bytes(), func(sockerr.Kind) {
		c.completeDisconnect()
	})
}

// completeDisconnect closes and destroys the transport, resets publish
// records for a later retry, clears subscription flags, and cancels every
// scheduled task belonging to this connection (spec §4.6.9).
func (c *Connection) completeDisconnect() {
	if c.adapter != nil {
		adapter := c.adapter
		c.adapter = nil
		adapter.Close(func() {})
	}
	c.resetPublishRecords()
	c.resetSubscriptionFlags()
	c.sched.CancelAll(c.keepAliveTimerKey)
	c.closeConnLog()

	if c.closing {
		c.setState(StateReset)
		c.finishClose()
		return
	}

	c.setState(StateReset)
	c.scheduleReconnect()
}
