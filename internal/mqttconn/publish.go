// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"time"

	"github.com/relaymesh/sockagent/internal/mqttwire"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

// pubackTimeout is 2× keep-alive, the point at which an in-flight publish
// with no PUBACK triggers a hard reset (spec §4.6.5 step 4).
func (c *Connection) pubackTimeout() time.Duration {
	return 2 * c.cfg.KeepAlive
}

// Publish queues payload for delivery on topic, translating properties
// (if non-nil) into the effective wire topic per spec §4.6.6. onComplete
// fires exactly once, on the scheduler thread, with the outcome.
func (c *Connection) Publish(topic string, properties *PropertyBag, qos QoS, payload []byte, onComplete func(sockerr.Kind)) {
	c.sched.Post(func() {
		rec := &publishRecord{
			packetID:   c.packetIDs.allocate(),
			generation: c.sessionGen,
			topic:      AppendToTopic(topic, properties),
			qos:        qos,
			payload:    append([]byte(nil), payload...),
			onComplete: onComplete,
		}
		c.publishQueue = append(c.publishQueue, rec)
		c.schedulePublishPending()
	})
}

func (c *Connection) schedulePublishPending() {
	c.sched.Post(c.publishPending)
}

// publishPending publishes the first un-published record in insertion
// order (spec ordering guarantee: publishes attempted head-first).
func (c *Connection) publishPending() {
	if c.State() != StateConnected || c.adapter == nil {
		return
	}

	var rec *publishRecord
	for _, r := range c.publishQueue {
		if !r.published {
			rec = r
			break
		}
	}
	if rec == nil {
		return
	}

	rec.published = true
	rec.generation = c.sessionGen
	rec.attempted = time.Now()

	var buf bufferWriter
	if err := mqttwire.WritePublish(&buf, rec.topic, rec.qos.wireByte(), rec.packetID, rec.payload); err != nil {
		c.lastError = sockerr.KindWriting
		c.softReset()
		return
	}

	c.adapter.Send(buf.Bytes(), func(status sockerr.Kind) {
		if status != sockerr.KindOK {
			c.lastError = sockerr.KindWriting
			c.softReset()
		}
	})
}

// onPuback matches an incoming PUBACK by packet id (and session
// generation) against the publish queue, fires on_complete, and frees the
// record.
func (c *Connection) onPuback(packetID uint16) {
	for i, r := range c.publishQueue {
		if r.packetID != packetID || r.generation != c.sessionGen {
			continue
		}
		c.publishQueue = append(c.publishQueue[:i], c.publishQueue[i+1:]...)
		c.clearFailures()
		if r.onComplete != nil {
			r.onComplete(sockerr.KindOK)
		}
		if c.State() == StateConnected {
			c.schedulePublishPending()
		}
		return
	}
}

// keepAlivePublishTimeoutCheck returns true (and triggers a hard reset)
// if any in-flight publish has exceeded 2× keep-alive without a PUBACK.
func (c *Connection) keepAlivePublishTimeoutCheck(now time.Time) bool {
	for _, r := range c.publishQueue {
		if r.published && !r.attempted.IsZero() && now.Sub(r.attempted) > c.pubackTimeout() {
			c.lastError = sockerr.KindWriting
			c.hardReset(c.lastError)
			return true
		}
	}
	return false
}
