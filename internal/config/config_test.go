// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAgentConfig_ExampleFile(t *testing.T) {
	cfgPath := filepath.Join("..", "..", "configs", "agent.example.yaml")
	cfg, err := LoadAgentConfig(cfgPath)
	if err != nil {
		t.Fatalf("failed to load agent example config: %v", err)
	}

	if cfg.Agent.Name != "edge-01" {
		t.Errorf("expected agent.name 'edge-01', got %q", cfg.Agent.Name)
	}
	if cfg.Broker.Host != "proxy.example.net" {
		t.Errorf("expected broker.host 'proxy.example.net', got %q", cfg.Broker.Host)
	}
	if cfg.Broker.Port != 8883 {
		t.Errorf("expected broker.port 8883, got %d", cfg.Broker.Port)
	}
	if cfg.Broker.Scheme != "tls" {
		t.Errorf("expected broker.scheme 'tls', got %q", cfg.Broker.Scheme)
	}
	if cfg.Broker.KeepAlive != 240*time.Second {
		t.Errorf("expected broker.keep_alive 240s, got %s", cfg.Broker.KeepAlive)
	}
	if cfg.Credentials.TokenProvider != "/usr/local/bin/sockagent-token" {
		t.Errorf("expected credentials.token_provider set, got %q", cfg.Credentials.TokenProvider)
	}
	if len(cfg.Subscriptions) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(cfg.Subscriptions))
	}
	if cfg.Subscriptions[0].Topic != "sockagent/edge-01/ctrl" {
		t.Errorf("expected subscriptions[0].topic 'sockagent/edge-01/ctrl', got %q", cfg.Subscriptions[0].Topic)
	}
	if cfg.Subscriptions[1].Topic != "sockagent/edge-01/data/#" {
		t.Errorf("expected subscriptions[1].topic 'sockagent/edge-01/data/#', got %q", cfg.Subscriptions[1].Topic)
	}
	if cfg.Maintenance.Schedule != "@every 5m" {
		t.Errorf("expected maintenance.schedule '@every 5m', got %q", cfg.Maintenance.Schedule)
	}
	if cfg.Resume.BufferSizeRaw != 256*1024*1024 {
		t.Errorf("expected resume.buffer_size 256mb, got %d", cfg.Resume.BufferSizeRaw)
	}
	if cfg.Resume.ChunkSizeRaw != 64*1024 {
		t.Errorf("expected resume.chunk_size 64kb, got %d", cfg.Resume.ChunkSizeRaw)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging.level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected logging.format 'json', got %q", cfg.Logging.Format)
	}
}

const validAgentYAML = `
agent:
  name: "test-agent"
broker:
  host: "broker.example.net"
tls:
  ca_cert: /tmp/ca.pem
  client_cert: /tmp/client.pem
  client_key: /tmp/client-key.pem
credentials:
  username: "test"
  password: "test"
subscriptions:
  - topic: "test/topic"
`

func TestLoadAgentConfig_ValidMinimal(t *testing.T) {
	cfgPath := writeTempConfig(t, validAgentYAML)
	cfg, err := LoadAgentConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Name != "test-agent" {
		t.Errorf("expected agent.name 'test-agent', got %q", cfg.Agent.Name)
	}
}

func TestLoadAgentConfig_MissingName(t *testing.T) {
	content := `
agent:
  name: ""
broker:
  host: "broker.example.net"
tls:
  ca_cert: /tmp/ca.pem
  client_cert: /tmp/client.pem
  client_key: /tmp/client-key.pem
credentials:
  username: "test"
subscriptions:
  - topic: "test/topic"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for empty agent.name")
	}
}

func TestLoadAgentConfig_MissingBrokerHost(t *testing.T) {
	content := `
agent:
  name: "test-agent"
broker:
  host: ""
tls:
  ca_cert: /tmp/ca.pem
  client_cert: /tmp/client.pem
  client_key: /tmp/client-key.pem
credentials:
  username: "test"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for empty broker.host")
	}
}

func TestLoadAgentConfig_MissingTLS(t *testing.T) {
	content := `
agent:
  name: "test-agent"
broker:
  host: "broker.example.net"
credentials:
  username: "test"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for missing tls paths")
	}
}

func TestLoadAgentConfig_MissingCredentials(t *testing.T) {
	content := `
agent:
  name: "test-agent"
broker:
  host: "broker.example.net"
tls:
  ca_cert: /tmp/ca.pem
  client_cert: /tmp/client.pem
  client_key: /tmp/client-key.pem
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestLoadAgentConfig_TokenProviderSatisfiesCredentials(t *testing.T) {
	content := `
agent:
  name: "test-agent"
broker:
  host: "broker.example.net"
tls:
  ca_cert: /tmp/ca.pem
  client_cert: /tmp/client.pem
  client_key: /tmp/client-key.pem
credentials:
  token_provider: "/usr/local/bin/get-token"
`
	cfgPath := writeTempConfig(t, content)
	cfg, err := LoadAgentConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Credentials.TokenProvider != "/usr/local/bin/get-token" {
		t.Errorf("expected token_provider set, got %q", cfg.Credentials.TokenProvider)
	}
}

func TestLoadAgentConfig_EmptySubscriptionTopic(t *testing.T) {
	content := validAgentYAML + `
  - topic: ""
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for empty subscription topic")
	}
}

func TestLoadAgentConfig_DefaultMaintenanceSchedule(t *testing.T) {
	cfgPath := writeTempConfig(t, validAgentYAML)
	cfg, err := LoadAgentConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Maintenance.Schedule != "@every 5m" {
		t.Errorf("expected default maintenance.schedule '@every 5m', got %q", cfg.Maintenance.Schedule)
	}
}

func TestLoadAgentConfig_DefaultKeepAlive(t *testing.T) {
	cfgPath := writeTempConfig(t, validAgentYAML)
	cfg, err := LoadAgentConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Broker.KeepAlive != 240*time.Second {
		t.Errorf("expected default broker.keep_alive 240s, got %s", cfg.Broker.KeepAlive)
	}
}

func TestLoadAgentConfig_DefaultLogging(t *testing.T) {
	cfgPath := writeTempConfig(t, validAgentYAML)
	cfg, err := LoadAgentConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default logging.level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected default logging.format 'json', got %q", cfg.Logging.Format)
	}
}

func TestLoadAgentConfig_DefaultResumeSizes(t *testing.T) {
	cfgPath := writeTempConfig(t, validAgentYAML)
	cfg, err := LoadAgentConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Resume.BufferSizeRaw != 256*1024*1024 {
		t.Errorf("expected default resume.buffer_size 256mb, got %d", cfg.Resume.BufferSizeRaw)
	}
	if cfg.Resume.ChunkSizeRaw != 64*1024 {
		t.Errorf("expected default resume.chunk_size 64kb, got %d", cfg.Resume.ChunkSizeRaw)
	}
}

func TestLoadAgentConfig_ChunkSizeTooLow(t *testing.T) {
	content := validAgentYAML + `
resume:
  chunk_size: "1kb"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for chunk_size below 4kb minimum")
	}
}

func TestLoadAgentConfig_ChunkSizeTooHigh(t *testing.T) {
	content := validAgentYAML + `
resume:
  chunk_size: "32mb"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for chunk_size above 16mb maximum")
	}
}

func TestLoadAgentConfig_InvalidBufferSize(t *testing.T) {
	content := validAgentYAML + `
resume:
  buffer_size: "not-a-size"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for invalid resume.buffer_size format")
	}
}

func TestLoadAgentConfig_FileNotFound(t *testing.T) {
	_, err := LoadAgentConfig("/nonexistent/path/agent.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadAgentConfig_InvalidYAML(t *testing.T) {
	cfgPath := writeTempConfig(t, "{{invalid yaml}}")
	_, err := LoadAgentConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"64kb", 64 * 1024, false},
		{"256mb", 256 * 1024 * 1024, false},
		{"1gb", 1024 * 1024 * 1024, false},
		{"100", 100, false},
		{"", 0, true},
		{"not-a-size", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseByteSize(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseByteSize(%q): expected error, got none", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseByteSize(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
