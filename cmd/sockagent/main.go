// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaymesh/sockagent/internal/config"
	"github.com/relaymesh/sockagent/internal/credential"
	"github.com/relaymesh/sockagent/internal/envcap"
	"github.com/relaymesh/sockagent/internal/logging"
	"github.com/relaymesh/sockagent/internal/maintenance"
	"github.com/relaymesh/sockagent/internal/mqttconn"
	"github.com/relaymesh/sockagent/internal/pki"
	"github.com/relaymesh/sockagent/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "/etc/sockagent/agent.yaml", "path to agent config file")
	flag.Parse()

	cfg, err := config.LoadAgentConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("agent exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AgentConfig, logger *slog.Logger) error {
	tlsConfig, err := pki.NewClientTLSConfig(cfg.TLS.CACert, cfg.TLS.ClientCert, cfg.TLS.ClientKey)
	if err != nil {
		return fmt.Errorf("building TLS config: %w", err)
	}

	sched := scheduler.New()
	defer sched.Stop()

	var tokenProvider mqttconn.TokenProvider
	if cfg.Credentials.TokenProvider != "" {
		tokenProvider = credential.NewCommandProvider(cfg.Credentials.TokenProvider)
	}

	caps := envcap.Probe(envcap.Config{
		HasTokenProvider: tokenProvider != nil,
		HasScheduler:     true,
	})

	conn := mqttconn.New(mqttconn.Config{
		Host:             cfg.Broker.Host,
		Port:             cfg.Broker.Port,
		Scheme:           cfg.Broker.Scheme,
		Path:             cfg.Broker.Path,
		ClientID:         cfg.Broker.ClientID,
		Username:         cfg.Credentials.Username,
		Password:         cfg.Credentials.Password,
		Token:            tokenProvider,
		TrustedCerts:     tlsConfig.RootCAs,
		WebSocketCapable: caps.Has(envcap.BitWSClient),
		KeepAlive:        cfg.Broker.KeepAlive,
		Scheduler:        sched,
		Logger:           logger,
		AgentName:        cfg.Agent.Name,
		ConnLogDir:       cfg.Logging.ConnLogDir,
	})

	for _, sub := range cfg.Subscriptions {
		topic := sub.Topic
		mqttconn.Subscribe(conn, topic, func(payload []byte, properties string) {
			logger.Debug("message received", "topic", topic, "bytes", len(payload), "properties", properties)
		})
	}

	maint, err := maintenance.New(cfg.Maintenance.Schedule, logger, nil, func(caps envcap.Capabilities) {
		logger.Debug("capability probe", "bits", caps.Bits, "disk_free", caps.DiskFree)
	})
	if err != nil {
		return fmt.Errorf("starting maintenance scheduler: %w", err)
	}
	maint.Start()

	conn.Connect()
	logger.Info("sockagent started", "agent", cfg.Agent.Name, "broker", cfg.Broker.Host)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	maint.Stop(stopCtx)

	closeDone := make(chan struct{})
	conn.Close(func() { close(closeDone) })
	select {
	case <-closeDone:
	case <-stopCtx.Done():
		logger.Warn("connection close timed out")
	}

	return nil
}
