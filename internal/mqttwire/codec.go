// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package mqttwire is the thin wrapper around the external MQTT 3.1.1 wire
// codec (component F of the spec) — it only encodes and decodes packets; it
// has no state machine, no reconnect logic, and no subscription bookkeeping
// of its own. internal/mqttconn owns all of that and drives this package one
// packet at a time, exactly the collaborator split spec §4.5 describes.
//
// Grounded on other_examples' paho.mqtt.golang and paho.golang client code
// for the connect/publish/subscribe packet sequencing; the actual encode/
// decode is delegated to github.com/eclipse/paho.mqtt.golang/packets.
package mqttwire

import (
	"io"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// ConnectOptions carries everything needed to build a CONNECT packet.
type ConnectOptions struct {
	ClientID     string
	Username     string
	Password     string
	KeepAlive    uint16
	CleanSession bool
}

// WriteConnect encodes and writes a CONNECT packet.
func WriteConnect(w io.Writer, opts ConnectOptions) error {
	pkt := packets.NewControlPacket(packets.Connect).(*packets.ConnectPacket)
	pkt.ProtocolName = "MQTT"
	pkt.ProtocolVersion = 4 // MQTT 3.1.1
	pkt.ClientIdentifier = opts.ClientID
	pkt.Keepalive = opts.KeepAlive
	pkt.CleanSession = opts.CleanSession

	if opts.Username != "" {
		pkt.UsernameFlag = true
		pkt.Username = opts.Username
	}
	if opts.Password != "" {
		pkt.PasswordFlag = true
		pkt.Password = []byte(opts.Password)
	}

	return pkt.Write(w)
}

// WritePublish encodes and writes a PUBLISH packet. packetID is ignored for
// qos == 0 (the codec only assigns an id to acknowledged deliveries).
func WritePublish(w io.Writer, topic string, qos byte, packetID uint16, payload []byte) error {
	pkt := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
	pkt.TopicName = topic
	pkt.Qos = qos
	pkt.Payload = payload
	if qos != 0 {
		pkt.MessageID = packetID
	}
	return pkt.Write(w)
}

// WriteSubscribe encodes and writes a single SUBSCRIBE packet carrying every
// (topic, qos) pair.
func WriteSubscribe(w io.Writer, packetID uint16, topics []string, qoss []byte) error {
	pkt := packets.NewControlPacket(packets.Subscribe).(*packets.SubscribePacket)
	pkt.MessageID = packetID
	pkt.Topics = topics
	pkt.Qoss = qoss
	return pkt.Write(w)
}

// WriteUnsubscribe encodes and writes a single UNSUBSCRIBE packet carrying
// every topic.
func WriteUnsubscribe(w io.Writer, packetID uint16, topics []string) error {
	pkt := packets.NewControlPacket(packets.Unsubscribe).(*packets.UnsubscribePacket)
	pkt.MessageID = packetID
	pkt.Topics = topics
	return pkt.Write(w)
}

// WriteDisconnect encodes and writes a DISCONNECT packet.
func WriteDisconnect(w io.Writer) error {
	pkt := packets.NewControlPacket(packets.Disconnect).(*packets.DisconnectPacket)
	return pkt.Write(w)
}

// WritePingReq encodes and writes a raw PINGREQ packet.
func WritePingReq(w io.Writer) error {
	pkt := packets.NewControlPacket(packets.Pingreq).(*packets.PingreqPacket)
	return pkt.Write(w)
}

// ReadPacket decodes the next control packet from r.
func ReadPacket(r io.Reader) (packets.ControlPacket, error) {
	return packets.ReadPacket(r)
}
