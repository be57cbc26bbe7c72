// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sockapi

// AddressFamily is one of the five wire-representable families (spec §6.2).
// Values follow the Windows Sockets AF_* numbering (inet6 = 23); proxy is a
// non-standard value.
type AddressFamily uint16

const (
	FamilyUnspecified AddressFamily = 0
	FamilyUnix        AddressFamily = 1
	FamilyInet        AddressFamily = 2
	FamilyInet6       AddressFamily = 23
	// FamilyProxy is a non-standard, proxy-local family used for
	// proxy-tunneled destinations that aren't resolvable client-side.
	FamilyProxy AddressFamily = 28165
)

// SocketType mirrors the Berkeley socket type constants.
type SocketType int

const (
	SockStream    SocketType = 1
	SockDgram     SocketType = 2
	SockRaw       SocketType = 3
	SockRDM       SocketType = 4
	SockSeqPacket SocketType = 5
)

// Protocol mirrors the IP protocol numbers the proxy recognizes.
type Protocol int

const (
	ProtoUnspecified Protocol = 0
	ProtoICMP        Protocol = 1
	ProtoTCP         Protocol = 6
	ProtoUDP         Protocol = 17
	ProtoICMPv6      Protocol = 58
)

const (
	MaxHostLength      = 1025
	MaxInterfaceLength = 128
	MaxUnixPathLength  = 108
)

// InetAddress holds a 4- or 16-byte IP address plus, for inet6, the flow
// and scope ids needed to fully qualify a link-local address.
type InetAddress struct {
	IP      [16]byte // low 4 bytes valid for inet, all 16 for inet6
	Flow    uint32   // inet6 only
	ScopeID uint32   // inet6 only
}

// UnixAddress is a Unix domain socket path (spec: ≤108 bytes, not
// reachable through the proxy-tunneled transport but representable on the
// wire for symmetry with the original socket surface).
type UnixAddress struct {
	Path string
}

// ProxyAddress is the logical family used for proxy-tunneled destinations:
// a hostname the remote proxy resolves on the agent's behalf, since the
// client-side process may have no DNS visibility into the target network.
type ProxyAddress struct {
	Port     uint16
	Flags    uint16
	ItfIndex int32
	Host     string // ≤ MaxHostLength bytes
}

// Address is a tagged union over the five families, mirroring
// prx_socket_address_t's cast-by-family-tag discipline without C's unsafe
// reinterpretation: callers switch on Family and read the matching field.
type Address struct {
	Family AddressFamily
	Port   uint16 // inet/inet6 only, host byte order

	Inet  InetAddress
	Unix  UnixAddress
	Proxy ProxyAddress
}

// AddrInfo is one result of a name resolution (spec §6.1's
// getaddrinfo/freeaddrinfo pair).
type AddrInfo struct {
	Address Address
	Name    string // canonical hostname
}

// IfAddrFlag marks properties of a resolved network interface address.
type IfAddrFlag uint8

const (
	IfaUp        IfAddrFlag = 0x1
	IfaLoopback  IfAddrFlag = 0x2
	IfaMulticast IfAddrFlag = 0x4
)

// ItfIndexAll selects every interface in a getifaddrinfo call.
const ItfIndexAll int32 = -1

// IfAddrInfo is one network interface's address, as returned by
// getifaddrinfo/freeifaddrinfo.
type IfAddrInfo struct {
	Address      Address
	Prefix       uint8
	Flags        IfAddrFlag
	Name         string // interface name, ≤ MaxInterfaceLength bytes
	Index        int32
	BroadcastAddr Address
}
