// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package credential supplies mqttconn.TokenProvider implementations. The
// only one needed so far shells out to an external helper binary, the
// pattern config.Credentials.TokenProvider describes: a command that prints
// "username\npassword\nlifetime_seconds" and exits zero.
package credential

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommandProvider runs an external command on every RequestToken call and
// parses its stdout as three newline-separated fields.
type CommandProvider struct {
	Command string
	Args    []string
}

// NewCommandProvider splits command into a program and argument list on
// whitespace (no quoting or escaping is recognized; no shell is invoked;
// the first field is exec'd directly).
func NewCommandProvider(command string) *CommandProvider {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &CommandProvider{}
	}
	return &CommandProvider{Command: fields[0], Args: fields[1:]}
}

// RequestToken runs the configured command and parses its output.
func (p *CommandProvider) RequestToken(ctx context.Context) (username, password string, lifetime time.Duration, err error) {
	if p.Command == "" {
		return "", "", 0, fmt.Errorf("credential: no token provider command configured")
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	var out bytes.Buffer
	var errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", "", 0, fmt.Errorf("credential: token provider %q failed: %w (stderr: %s)", p.Command, err, strings.TrimSpace(errOut.String()))
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) < 3 {
		return "", "", 0, fmt.Errorf("credential: token provider %q produced %d lines, want 3 (username, password, lifetime_seconds)", p.Command, len(lines))
	}

	username = lines[0]
	password = lines[1]
	seconds, err := strconv.Atoi(strings.TrimSpace(lines[2]))
	if err != nil {
		return "", "", 0, fmt.Errorf("credential: invalid lifetime_seconds %q: %w", lines[2], err)
	}
	return username, password, time.Duration(seconds) * time.Second, nil
}
