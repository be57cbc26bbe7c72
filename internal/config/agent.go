// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig is the complete configuration for the sockagent edge process.
type AgentConfig struct {
	Agent        AgentInfo      `yaml:"agent"`
	Broker       BrokerAddr     `yaml:"broker"`
	TLS          TLSClient      `yaml:"tls"`
	Credentials  Credentials    `yaml:"credentials"`
	Subscriptions []Subscription `yaml:"subscriptions"`
	Maintenance  MaintenanceInfo `yaml:"maintenance"`
	Resume       ResumeConfig   `yaml:"resume"`
	Logging      LoggingInfo    `yaml:"logging"`
}

// AgentInfo identifies this agent instance.
type AgentInfo struct {
	Name string `yaml:"name"`
}

// BrokerAddr is the MQTT broker's address and transport selection.
type BrokerAddr struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"` // 0 picks the scheme default
	Scheme     string        `yaml:"scheme"` // "", "tls", "ws", "wss"
	Path       string        `yaml:"path"` // WebSocket resource path
	ClientID   string        `yaml:"client_id"` // random if empty
	KeepAlive  time.Duration `yaml:"keep_alive"`
}

// TLSClient contains the mTLS client certificate paths.
type TLSClient struct {
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// Credentials configures static username/password, or a token-provider
// command invoked on every reconnect (mutually exclusive with static auth).
type Credentials struct {
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	TokenProvider string `yaml:"token_provider"` // command (split on whitespace, run without a shell) producing "username\npassword\nlifetime_seconds"
}

// Subscription is one topic the agent should subscribe to on connect.
type Subscription struct {
	Topic string `yaml:"topic"`
}

// MaintenanceInfo contains the cron expression for the housekeeping
// scheduler (environment probe + buffer pool stats logging).
type MaintenanceInfo struct {
	Schedule string `yaml:"schedule"`
}

// DefaultChunkSize is the default inbound/outbound buffer pool class unit.
const DefaultChunkSize = 64 * 1024

// ResumeConfig holds buffer sizing settings. LoadAgentConfig parses and
// validates them; nothing passes them on to the buffer pools backing the
// I/O queues, whose size classes are fixed.
type ResumeConfig struct {
	BufferSize    string `yaml:"buffer_size"` // e.g. "256mb", "1gb"
	BufferSizeRaw int64  `yaml:"-"`
	ChunkSize     string `yaml:"chunk_size"` // e.g. "16kb", "64kb" (default 64kb)
	ChunkSizeRaw  int64  `yaml:"-"`
}

// LoggingInfo configures the slog handler.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, if set, additionally writes the base logger to this path.
	File string `yaml:"file"`
	// ConnLogDir, if set, writes a dedicated debug-level log file per
	// broker connection generation under {ConnLogDir}/{agent.name}/.
	ConnLogDir string `yaml:"conn_log_dir"`
}

// LoadAgentConfig reads and validates the agent's YAML configuration file.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent config: %w", err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing agent config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating agent config: %w", err)
	}

	return &cfg, nil
}

func (c *AgentConfig) validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}
	if c.Broker.Host == "" {
		return fmt.Errorf("broker.host is required")
	}
	if c.TLS.CACert == "" {
		return fmt.Errorf("tls.ca_cert is required")
	}
	if c.TLS.ClientCert == "" {
		return fmt.Errorf("tls.client_cert is required")
	}
	if c.TLS.ClientKey == "" {
		return fmt.Errorf("tls.client_key is required")
	}
	if c.Credentials.TokenProvider == "" && c.Credentials.Username == "" {
		return fmt.Errorf("credentials: either token_provider or username/password must be set")
	}
	for i, s := range c.Subscriptions {
		if s.Topic == "" {
			return fmt.Errorf("subscriptions[%d].topic is required", i)
		}
	}
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = "@every 5m"
	}
	if c.Broker.KeepAlive <= 0 {
		c.Broker.KeepAlive = 240 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Resume.BufferSize == "" {
		c.Resume.BufferSize = "256mb"
	}
	parsed, err := ParseByteSize(c.Resume.BufferSize)
	if err != nil {
		return fmt.Errorf("resume.buffer_size: %w", err)
	}
	c.Resume.BufferSizeRaw = parsed

	if c.Resume.ChunkSize == "" {
		c.Resume.ChunkSize = "64kb"
	}
	chunkParsed, err := ParseByteSize(c.Resume.ChunkSize)
	if err != nil {
		return fmt.Errorf("resume.chunk_size: %w", err)
	}
	if chunkParsed < 4*1024 {
		return fmt.Errorf("resume.chunk_size must be at least 4kb, got %s", c.Resume.ChunkSize)
	}
	if chunkParsed > 16*1024*1024 {
		return fmt.Errorf("resume.chunk_size must be at most 16mb, got %s", c.Resume.ChunkSize)
	}
	c.Resume.ChunkSizeRaw = chunkParsed

	return nil
}

// ParseByteSize converts human-readable strings like "256mb", "1gb" into
// a byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Longest suffix first so "mb" isn't matched as "b".
	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
