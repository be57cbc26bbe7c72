// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sockapi

// Option names the dense socket-option catalog available to
// getsockopt/setsockopt (spec §6.7). Values are carried as 64-bit unsigned
// integers except Multicast{Join,Leave}, which carry a MulticastOption.
type Option int

const (
	OptUnknown Option = iota
	OptNonBlocking
	OptAvailable
	OptShutdown
	OptDebug
	OptAcceptConn
	OptReuseAddr
	OptKeepAlive
	OptDontRoute
	OptBroadcast
	OptLinger
	OptOOBInline
	OptSendBuf
	OptRecvBuf
	OptSendLowat
	OptRecvLowat
	OptSendTimeout
	OptRecvTimeout
	OptError
	OptType
	OptIPOptions
	OptIPHdrIncl
	OptIPTos
	OptIPTTL
	OptIPMulticastTTL
	OptIPMulticastLoop
	OptIPPktInfo
	OptIPv6HopLimit
	OptIPv6ProtectionLevel
	OptIPv6Only
	OptTCPNoDelay
	OptIPMulticastJoin
	OptIPMulticastLeave
	OptPropsTimeout
)

// MulticastOption is the value carried by OptIPMulticastJoin/Leave: which
// family the address belongs to, which local interface to join/leave on,
// and the group address itself.
type MulticastOption struct {
	Family   AddressFamily
	ItfIndex int32
	Addr     InetAddress
}

// ShutdownOp selects which half of a full-duplex socket Shutdown closes.
type ShutdownOp int

const (
	ShutdownRead ShutdownOp = iota
	ShutdownWrite
	ShutdownBoth
)

// MessageFlag modifies a Send/Recv call (spec §6.1, prx_message_flags_t).
type MessageFlag int

const (
	MsgOOB        MessageFlag = 0x0001
	MsgPeek       MessageFlag = 0x0002
	MsgDontRoute  MessageFlag = 0x0004
	MsgTruncated  MessageFlag = 0x0100
	MsgCTruncated MessageFlag = 0x0200
)

// SocketFlag marks a property of a socket's creation (passive/listening,
// proxy-internal, or a persistent tunnel that should survive a reconnect).
type SocketFlag uint32

const (
	FlagPassive    SocketFlag = 0x1
	FlagInternal   SocketFlag = 0x2
	FlagPersistent SocketFlag = 0x4
)

// Properties describes a socket at creation time: its address family,
// type, protocol, flags, GC timeout, and bound/connected address.
type Properties struct {
	Family    AddressFamily
	SockType  SocketType
	ProtoType Protocol
	Flags     SocketFlag
	Timeout   uint64 // socket GC timeout, in the caller's chosen unit
	Address   Address
}
