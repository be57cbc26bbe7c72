// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package envcap probes the runtime environment's capability bitmap (spec
// §6.6): file, net, sockets, wsclient, cred, ev, dnssd, dirs, scan. The
// connection state machine queries the wsclient bit to decide whether the
// WebSocket transport leg is usable before it attempts one.
//
// Grounded on internal/agent/monitor.go's gopsutil-backed collection loop,
// repurposed from backup-job sizing metrics to environment capability bits
// and disk-free reporting.
package envcap

import (
	"net"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// Bit is one flag of the capability bitmap.
type Bit uint32

const (
	BitFile     Bit = 0x1
	BitNet      Bit = 0x2
	BitSockets  Bit = 0x4
	BitWSClient Bit = 0x8
	BitCred     Bit = 0x10
	BitEv       Bit = 0x20
	BitDNSSD    Bit = 0x40
	BitDirs     Bit = 0x80
	BitScan     Bit = 0x100
)

// Capabilities is the advertised bitmap plus a diagnostic number (disk
// free bytes on "/"), which callers only log.
type Capabilities struct {
	Bits     uint32
	DiskFree uint64
}

// Has reports whether bit is set in c.Bits.
func (c Capabilities) Has(bit Bit) bool {
	return c.Bits&uint32(bit) != 0
}

// Config supplies facts Probe cannot observe itself. A zero Config leaves
// BitCred and BitEv unset.
type Config struct {
	HasTokenProvider bool // feeds BitCred
	HasScheduler     bool // feeds BitEv
}

// Probe runs a best-effort capability self-test and returns the resulting
// bitmap. It never fails: a probe that errors simply leaves its bit unset.
func Probe(cfg Config) Capabilities {
	var bits uint32

	bits |= uint32(BitFile) // os.ReadFile/WriteFile are always available

	if probeNet() {
		bits |= uint32(BitNet)
		bits |= uint32(BitSockets)
	}

	bits |= uint32(BitWSClient) // gorilla/websocket is always vendored in

	if cfg.HasTokenProvider {
		bits |= uint32(BitCred)
	}
	if cfg.HasScheduler {
		bits |= uint32(BitEv)
	}

	if probeDirs() {
		bits |= uint32(BitDirs)
		bits |= uint32(BitScan)
	}

	caps := Capabilities{Bits: bits}
	if free, err := diskFree("/"); err == nil {
		caps.DiskFree = free
	}
	return caps
}

// probeNet self-tests whether the environment can open outbound sockets by
// attempting (and immediately closing) a loopback listener.
func probeNet() bool {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

func probeDirs() bool {
	dir, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	_, err = os.Stat(dir)
	return err == nil
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// pollInterval is a suggested re-probe cadence. internal/maintenance does
// not use it; it re-probes on its own cron schedule.
const pollInterval = 15 * time.Second

// PollInterval returns the suggested re-probe cadence.
func PollInterval() time.Duration { return pollInterval }
