// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mqttconn

import (
	"bytes"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/relaymesh/sockagent/internal/mqttwire"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

// onBytes is the transport's inbound delivery callback (spec §4.6, the
// receive_callback the codec client is bound to in beginConnect). It may
// be handed a partial packet across multiple calls; since the MQTT codec
// frames are short relative to the transport's fixed receive size, this
// connection buffers any leftover bytes across calls.
func (c *Connection) onBytes(payload []byte, status sockerr.Kind) {
	if status != sockerr.KindOK {
		if status == sockerr.KindClosed {
			c.hardReset(sockerr.KindComm)
		}
		return
	}

	c.inboundBuf = append(c.inboundBuf, payload...)
	for {
		r := bytes.NewReader(c.inboundBuf)
		before := r.Len()
		pkt, err := mqttwire.ReadPacket(r)
		if err != nil {
			return // incomplete packet; wait for more bytes
		}
		consumed := before - r.Len()
		c.inboundBuf = c.inboundBuf[consumed:]
		c.lastActivity = time.Now()
		c.dispatchPacket(pkt)
		if len(c.inboundBuf) == 0 {
			return
		}
	}
}

func (c *Connection) onTransportError(err error) {
	c.lastError = sockerr.KindComm
	c.hardReset(c.lastError)
}

func (c *Connection) dispatchPacket(pkt packets.ControlPacket) {
	switch p := pkt.(type) {
	case *packets.ConnackPacket:
		c.onConnack(p)
	case *packets.PubackPacket:
		c.onPuback(p.MessageID)
	case *packets.SubackPacket:
		c.onSuback(p)
	case *packets.UnsubackPacket:
		c.onUnsuback(p.MessageID)
	case *packets.PingrespPacket:
		// keep-alive monitor only needs last_activity, already stamped above.
	case *packets.PublishPacket:
		c.onPublish(p)
	case *packets.DisconnectPacket:
		c.hardReset(sockerr.KindClosed)
	default:
		c.logger.Debug("unhandled inbound packet", "type", pkt.Details().Qos)
	}
}

func (c *Connection) onConnack(p *packets.ConnackPacket) {
	if p.ReturnCode != packets.Accepted {
		c.lastError = sockerr.KindRefused
		c.hardReset(c.lastError)
		return
	}
	c.clearFailures()
	c.setState(StateConnected)
	c.lastActivity = time.Now()
	c.scheduleKeepAlive()
	c.scheduleSubscribeAll()
	c.schedulePublishPending()
}

func (c *Connection) onPublish(p *packets.PublishPacket) {
	for _, s := range c.subscriptions {
		if s.disabled {
			continue
		}
		trailing, ok := MatchTopic(p.TopicName, s.Topic)
		if !ok {
			continue
		}
		if s.OnReceive != nil {
			s.OnReceive(p.Payload, trailing)
		}
	}
}
