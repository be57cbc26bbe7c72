// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sockapi

import "github.com/relaymesh/sockagent/internal/sockerr"

// Proxy is the Berkeley-socket-like surface an application process talks
// to locally (spec §6.1). Every operation threads key through to the
// remote proxy exchange for request/response correlation; Proxy itself
// never interprets it. Status returns use sockerr.Kind, matching the
// error taxonomy every other layer of the agent already classifies into.
//
// Implementations are free to be synchronous (serving from a local cache
// of proxy state) or to block pumping the underlying mqttconn.Connection;
// callers wanting non-blocking semantics use Poll/CanRecv/CanSend/HasError
// the way a classic select()-driven client would.
type Proxy interface {
	Socket(key Key, family AddressFamily, sockType SocketType, proto Protocol) (Handle, sockerr.Kind)
	Bind(key Key, h Handle, addr Address) sockerr.Kind
	Listen(key Key, h Handle, backlog int) sockerr.Kind
	Accept(key Key, h Handle) (Handle, sockerr.Kind)
	Connect(key Key, h Handle, addr Address) sockerr.Kind

	Send(key Key, h Handle, buf []byte, flags MessageFlag) (int, sockerr.Kind)
	SendTo(key Key, h Handle, buf []byte, flags MessageFlag, addr Address) (int, sockerr.Kind)
	Recv(key Key, h Handle, buf []byte, flags MessageFlag) (int, sockerr.Kind)
	RecvFrom(key Key, h Handle, buf []byte, flags MessageFlag) (int, Address, sockerr.Kind)

	GetSockOpt(key Key, h Handle, opt Option) (uint64, sockerr.Kind)
	SetSockOpt(key Key, h Handle, opt Option, value uint64) sockerr.Kind
	GetSockOptMulticast(key Key, h Handle, opt Option) (MulticastOption, sockerr.Kind)
	SetSockOptMulticast(key Key, h Handle, opt Option, value MulticastOption) sockerr.Kind

	GetPeerName(key Key, h Handle) (Address, sockerr.Kind)
	GetSockName(key Key, h Handle) (Address, sockerr.Kind)
	Shutdown(key Key, h Handle, op ShutdownOp) sockerr.Kind
	Close(key Key, h Handle) sockerr.Kind

	Poll(key Key, h Handle, timeoutMs int) sockerr.Kind
	CanRecv(h Handle) bool
	CanSend(h Handle) bool
	HasError(h Handle) bool
	IsDisconnected(h Handle) bool
}

// Resolver is the name/address helper surface (spec §6.1's pton, ntop,
// getaddrinfo/freeaddrinfo, getnameinfo, getifaddrinfo/freeifaddrinfo,
// getifnameinfo). Split from Proxy because these calls do not operate on a
// live Handle: they are pure translation/lookup helpers.
type Resolver interface {
	// Pton parses a textual address into its wire form for family.
	Pton(family AddressFamily, text string) (Address, sockerr.Kind)
	// Ntop renders addr back to text.
	Ntop(addr Address) (string, sockerr.Kind)

	GetAddrInfo(key Key, host, port string, family AddressFamily, flags int) ([]AddrInfo, sockerr.Kind)
	FreeAddrInfo(info []AddrInfo)

	GetNameInfo(key Key, addr Address, flags int) (host, service string, kind sockerr.Kind)

	GetIfAddrInfo(key Key, itfIndex int32) ([]IfAddrInfo, sockerr.Kind)
	FreeIfAddrInfo(info []IfAddrInfo)
	GetIfNameInfo(key Key, itfIndex int32) (string, sockerr.Kind)
}
