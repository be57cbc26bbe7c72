// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package mqttconn implements the MQTT broker connection manager: a
// scheduler-driven state machine (component G) that owns a single durable
// MQTT session over a pluggable transport, plus its three collaborators —
// the subscription registry (H), the publish queue (I), and the
// credential monitor (J).
//
// Grounded on internal/agent/control_channel.go's architecture almost
// file-for-file: atomic.Value state field, reconnect loop with doubling
// back-off, a single scheduler task stream standing in for the teacher's
// reader/writer goroutine split.
package mqttconn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/relaymesh/sockagent/internal/logging"
	"github.com/relaymesh/sockagent/internal/mqttwire"
	"github.com/relaymesh/sockagent/internal/scheduler"
	"github.com/relaymesh/sockagent/internal/sockerr"
	"github.com/relaymesh/sockagent/internal/transport"
)

// State is one of the five connection lifecycle states (spec §4.6.1).
type State int

const (
	StateReset State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// QoS mirrors the three MQTT delivery guarantees named in spec §6.3.
type QoS int

const (
	QoSAtMostOnce QoS = iota
	QoSAtLeastOnce
	QoSExactlyOnce
)

func (q QoS) wireByte() byte { return byte(q) }

// TokenProvider supplies short-lived broker credentials, e.g. from a
// fleet-management control plane. RequestToken returns (username,
// password, lifetime).
type TokenProvider interface {
	RequestToken(ctx context.Context) (username, password string, lifetime time.Duration, err error)
}

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 86400 * time.Second
	defaultKeepAlive = 240 * time.Second
	teardownDeadline = 30 * time.Second
)

// Config configures one Connection.
type Config struct {
	Host   string
	Port   int // 0 picks the scheme-appropriate default (8883 raw-tls, 443 ws)
	Scheme string // "", "tls"/"ssl"/"mqtt" (raw), "ws"/"wss" (websocket)
	Path   string // WebSocket resource path

	ClientID string // random 8-char token if empty

	Username string
	Password string
	Token    TokenProvider // if set, overrides Username/Password per reconnect

	TrustedCerts *x509.CertPool
	WebSocketCapable bool // set from envcap's wsclient bit (spec §4.6.10)

	KeepAlive time.Duration // defaults to 240s

	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger

	// AgentName and ConnLogDir, if ConnLogDir is non-empty, arm a
	// dedicated debug-level log file per connection generation (see
	// internal/logging.NewConnectionLogger).
	AgentName  string
	ConnLogDir string

	// ReconnectPolicy decides whether to retry after a failure and may
	// adjust backoffSeconds in place; nil means "always retry."
	ReconnectPolicy func(lastErr sockerr.Kind, backoffSeconds *int) bool
}

// publishRecord is one in-flight or queued publish. generation is the
// session the record was last sent in (re-stamped by publishPending on
// every send): a PUBACK only completes records sent in the current
// session, so a packet id left over from an earlier session cannot
// complete a record that was re-sent after a reconnect.
type publishRecord struct {
	packetID   uint16
	generation uuid.UUID
	topic      string
	qos        QoS
	payload    []byte
	onComplete func(sockerr.Kind)
	published  bool
	attempted  time.Time
}

// Connection is the MQTT session state machine.
type Connection struct {
	cfg       Config
	baseLogger *slog.Logger
	logger    *slog.Logger

	state atomic.Value // State

	adapter *transport.Adapter
	sched   *scheduler.Scheduler

	isWebSocket bool // toggled when no explicit scheme is configured

	packetIDs      packetIDAllocator
	sessionGen     uuid.UUID

	lastError     sockerr.Kind
	lastActivity  time.Time
	credExpiry    time.Time // zero means "no expiry tracked"
	backoffSeconds int

	subscriptions []*Subscription
	publishQueue  []*publishRecord
	inboundBuf    []byte

	closing    bool
	closeDone  func()
	keepAliveTimerKey any

	connLogCloser io.Closer
}

// New creates a Connection in the reset state. Call Connect to begin.
func New(cfg Config) *Connection {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	base := cfg.Logger.With("component", "mqttconn")
	c := &Connection{
		cfg:               cfg,
		baseLogger:        base,
		logger:            base,
		sched:             cfg.Scheduler,
		keepAliveTimerKey: new(int),
	}
	c.state.Store(StateReset)
	return c
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return c.state.Load().(State)
}

func (c *Connection) setState(s State) {
	c.state.Store(s)
	c.logger.Debug("state transition", "state", s.String())
}

// Connect schedules the first connection attempt. Idempotent once past
// reset.
func (c *Connection) Connect() {
	if c.State() != StateReset {
		return
	}
	c.sched.Post(c.beginConnect)
}

// Close begins graceful teardown and invokes onClose once the connection
// has freed its resources. Outstanding publishes are aborted.
func (c *Connection) Close(onClose func()) {
	c.sched.Post(func() {
		c.closing = true
		c.closeDone = onClose
		switch c.State() {
		case StateReset:
			c.abortPublishes()
			if onClose != nil {
				onClose()
			}
		case StateConnecting:
			c.hardReset(sockerr.KindClosed)
		default:
			c.setState(StateClosing)
			c.sched.PostAfter(teardownDeadline, c.keepAliveTimerKey, func() { c.hardReset(sockerr.KindTimeout) })
			c.beginDisconnect()
		}
	})
}

// --- connect / reconnect (spec §4.6.10) ---------------------------------

func (c *Connection) beginConnect() {
	c.setState(StateConnecting)

	mode, explicit := transport.ParseScheme(c.cfg.Scheme)
	if !explicit {
		c.isWebSocket = !c.isWebSocket
		if c.isWebSocket {
			mode = transport.ModeWebSocket
		} else {
			mode = transport.ModeRawTLS
		}
	} else {
		c.isWebSocket = mode == transport.ModeWebSocket
	}

	if c.isWebSocket && !c.cfg.WebSocketCapable {
		c.lastError = sockerr.KindNotSupported
		c.hardReset(c.lastError)
		return
	}

	port := c.cfg.Port
	if port == 0 {
		if c.isWebSocket {
			port = 443
		} else {
			port = 8883
		}
	}

	var tlsCfg *tls.Config
	if !c.isWebSocket {
		tlsCfg = &tls.Config{RootCAs: c.cfg.TrustedCerts, ServerName: c.cfg.Host}
	} else if c.cfg.TrustedCerts != nil {
		tlsCfg = &tls.Config{RootCAs: c.cfg.TrustedCerts, ServerName: c.cfg.Host}
	}

	c.sessionGen = uuid.New()
	genLogger, closer, _, err := logging.NewConnectionLogger(c.baseLogger, c.cfg.ConnLogDir, c.cfg.AgentName, c.sessionGen.String())
	if err == nil {
		c.connLogCloser = closer
		c.logger = genLogger.With("generation", c.sessionGen.String())
	}

	c.adapter = transport.New(transport.Config{
		Mode:      mode,
		Host:      c.cfg.Host,
		Port:      port,
		Path:      c.cfg.Path,
		TLSConfig: tlsCfg,
		Scheduler: c.sched,
		Logger:    c.logger,
	})

	username, password := c.cfg.Username, c.cfg.Password
	if c.cfg.Token != nil {
		u, p, lifetime, err := c.cfg.Token.RequestToken(context.Background())
		if err != nil {
			c.lastError = sockerr.KindConnecting
			c.hardReset(c.lastError)
			return
		}
		username, password = u, p
		c.credExpiry = time.Now().Add(lifetime)
	}

	clientID := c.cfg.ClientID
	if clientID == "" {
		clientID = uuid.New().String()[:8]
	}

	c.adapter.Open(
		func(err error) {
			if err != nil {
				c.lastError = sockerr.KindConnecting
				c.hardReset(c.lastError)
				return
			}
			c.sendConnect(clientID, username, password)
		},
		c.onBytes,
		c.onTransportError,
	)
}

func (c *Connection) sendConnect(clientID, username, password string) {
	opts := mqttwire.ConnectOptions{
		ClientID:     clientID,
		Username:     username,
		Password:     password,
		KeepAlive:    uint16(c.cfg.KeepAlive / time.Second),
		CleanSession: true,
	}
	c.adapter.Send(encodeOrNil(func(w io.Writer) error { return mqttwire.WriteConnect(w, opts) }), func(status sockerr.Kind) {
		if status != sockerr.KindOK {
			c.lastError = sockerr.KindConnecting
			c.hardReset(c.lastError)
		}
	})
	// CONNACK arrives through onBytes/dispatch; the keep-alive monitor and
	// subscribe_all are kicked off once it is accepted (see dispatchPacket).
}

func encodeOrNil(write func(io.Writer) error) []byte {
	var buf bufferWriter
	if err := write(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// bufferWriter is a minimal io.Writer sink used to materialize codec
// output before handing it to the transport adapter's Send, which copies
// its argument into a queue buffer.
type bufferWriter struct {
	b []byte
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *bufferWriter) Bytes() []byte { return w.b }

// --- reconnect / back-off (spec §4.6.3) ---------------------------------

func (c *Connection) clearFailures() {
	c.backoffSeconds = 0
}

func (c *Connection) scheduleReconnect() {
	backoff := c.backoffSeconds
	if c.cfg.ReconnectPolicy != nil {
		if !c.cfg.ReconnectPolicy(c.lastError, &backoff) {
			c.backoffSeconds = backoff
			return
		}
	}

	if backoff == 0 {
		backoff = int(initialBackoff / time.Second)
	} else {
		backoff *= 2
	}
	if backoff > int(maxBackoff/time.Second) {
		backoff = int(maxBackoff / time.Second)
	}
	c.backoffSeconds = backoff

	delay := time.Duration(backoff) * time.Second
	c.sched.PostAfter(delay, c.keepAliveTimerKey, c.beginConnect)
}

// closeConnLog closes this generation's dedicated log file, if one was
// opened, and falls back the connection's logger to the base logger.
func (c *Connection) closeConnLog() {
	if c.connLogCloser != nil {
		c.connLogCloser.Close()
		c.connLogCloser = nil
	}
	c.logger = c.baseLogger
}

// removeConnLog deletes this generation's dedicated log file. Only called
// once the connection has closed for good (not when a reconnect is about
// to mint a fresh generation), so a generation's debug trail survives for
// as long as it might still be useful for diagnosing the failure that
// ended it.
func (c *Connection) removeConnLog() {
	logging.RemoveConnectionLog(c.cfg.ConnLogDir, c.cfg.AgentName, c.sessionGen.String())
}

// hardReset tears down the transport immediately and re-enters reset,
// scheduling a reconnect unless the connection is closing.
func (c *Connection) hardReset(reason sockerr.Kind) {
	c.lastError = reason
	c.logger.Warn("hard reset", "reason", reason.String())

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

// softReset begins a graceful renegotiation (credential refresh, a
// recoverable publish error) that preserves publish records.
func (c *Connection) softReset() {
	if c.State() != StateConnected {
		return
	}
	c.setState(StateDisconnecting)
	c.beginDisconnect()
}

func (c *Connection) resetPublishRecords() {
	for _, r := range c.publishQueue {
		r.attempted = time.Time{}
		r.published = false
	}
}

func (c *Connection) resetSubscriptionFlags() {
	for _, s := range c.subscriptions {
		s.state = subUnsubscribed
		s.pendingPacketID = 0
	}
}

func (c *Connection) abortPublishes() {
	for _, r := range c.publishQueue {
		if r.onComplete != nil {
			r.onComplete(sockerr.KindAborted)
		}
	}
	c.publishQueue = nil
}

func (c *Connection) finishClose() {
	c.removeConnLog()
	c.abortPublishes()
	if c.closeDone != nil {
		done := c.closeDone
		c.closeDone = nil
		done()
	}
}
