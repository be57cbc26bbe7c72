// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"time"

	"github.com/relaymesh/sockagent/internal/mqttwire"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

// scheduleKeepAlive arms the first keep-alive tick after a successful
// CONNACK (spec §4.6.5 runs "on the scheduler; self-reschedules").
func (c *Connection) scheduleKeepAlive() {
	c.sched.PostAfter(c.cfg.KeepAlive, c.keepAliveTimerKey, c.keepAliveTick)
}

// keepAliveTick is the credential + liveness monitor (component J folded
// into G's own tick, per spec §4.6.5: it is one function, not two
// separate schedules).
func (c *Connection) keepAliveTick() {
	if c.State() != StateConnected && c.State() != StateConnecting {
		return
	}

	now := time.Now()

	// 1. Credential expiry.
	if c.credentialExpired(now) {
		if c.cfg.Scheme == "" {
			c.isWebSocket = !c.isWebSocket
		}
		c.softReset()
		c.clearFailures()
		return
	}

	// 2. Disabled monitor (no keep-alive interval configured).
	if c.cfg.KeepAlive <= 0 {
		c.sched.PostAfter(c.cfg.KeepAlive, c.keepAliveTimerKey, c.keepAliveTick)
		return
	}

	// 3. Δ = now - last_activity.
	delta := now.Sub(c.lastActivity)

	// 4. In-flight publishes past 2× keep-alive without a PUBACK.
	if c.keepAlivePublishTimeoutCheck(now) {
		return
	}

	// 5. Idle past 6× keep-alive, or still connecting: hard timeout.
	if delta >= 6*c.cfg.KeepAlive || c.State() == StateConnecting {
		c.lastError = sockerr.KindTimeout
		c.hardReset(c.lastError)
		return
	}

	// 6. Idle past 1× keep-alive: send a bare PINGREQ.
	if delta >= c.cfg.KeepAlive {
		if c.adapter != nil {
			var buf bufferWriter
			if err := mqttwire.WritePingReq(&buf); err == nil {
				c.adapter.Send(buf.Bytes(), func(sockerr.Kind) {})
			}
		}
		delta = 0
		c.lastActivity = now
	}

	// 7. Reschedule at min(keep_alive - Δ, expiry - now).
	next := c.cfg.KeepAlive - delta
	if !c.credExpiry.IsZero() {
		if untilExpiry := c.credExpiry.Sub(now); untilExpiry < next {
			next = untilExpiry
		}
	}
	if next < 0 {
		next = 0
	}
	c.sched.PostAfter(next, c.keepAliveTimerKey, c.keepAliveTick)
}
