// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package device holds the Device Record (§3): the per-NIC state shared by
// every component of the core. It is a plain data package — no component
// but C1 (creation) and C5 (destruction) is allowed to add or remove a
// Record from the fleet; C2/C3/C4 only mutate fields under the single-owner
// rule (§5).
package device

import (
	"fmt"
	"sync"
)

// Generation buckets a chip family, driving which HAL back-end is bound at
// attach (§9 Design Notes).
type Generation int

const (
	ISAPIO10 Generation = iota
	ISABusmaster100
	PCIVortex
	PCIBoomerang
	PCICyclone
	PCITornado
	CardBus
	MiniPCI
)

func (g Generation) String() string {
	switch g {
	case ISAPIO10:
		return "ISA_PIO_10"
	case ISABusmaster100:
		return "ISA_BUSMASTER_100"
	case PCIVortex:
		return "PCI_VORTEX"
	case PCIBoomerang:
		return "PCI_BOOMERANG"
	case PCICyclone:
		return "PCI_CYCLONE"
	case PCITornado:
		return "PCI_TORNADO"
	case CardBus:
		return "CARDBUS"
	case MiniPCI:
		return "MINI_PCI"
	default:
		return "UNKNOWN"
	}
}

// Capability is a per-device feature flag (§3 capability bit-set).
type Capability uint32

const (
	CapBusMaster Capability = 1 << iota
	CapHWChecksum
	CapScatterGather
	CapPermanentWindow1
	Cap16MiBLimit
	CapLinkAutoNeg
)

func (c Capability) Has(flag Capability) bool { return c&flag != 0 }

// DMAPolicy is set once by C2 and cached here (§4.2).
type DMAPolicy int

const (
	PolicyUnset DMAPolicy = iota
	PolicyPIO
	PolicyDirect
	PolicyCommonBuffer
	PolicyForbid
)

func (p DMAPolicy) String() string {
	switch p {
	case PolicyPIO:
		return "PIO"
	case PolicyDirect:
		return "DIRECT"
	case PolicyCommonBuffer:
		return "COMMON_BUFFER"
	case PolicyForbid:
		return "FORBID"
	default:
		return "UNSET"
	}
}

// CacheTier is the cache-coherency strategy chosen for the device (§4.2).
type CacheTier int

const (
	TierNone CacheTier = iota
	TierSoftwareBarrier
	TierWBINVD
	TierCLFLUSH
)

// LinkState tracks the physical link as reported by interrupt_handle
// link-change events (§4.3).
type LinkState int

const (
	LinkUnknown LinkState = iota
	LinkUp
	LinkDown
)

// ReceiveMode is the filter mask programmed via set_receive_mode (§4.3,
// §6 function 0x14).
type ReceiveMode uint8

const (
	RXOff ReceiveMode = 1 << iota
	RXDirect
	RXBroadcast
	RXMulticastList
	RXAllMulticast
	RXPromiscuous
)

// Stats mirrors §6 function 0x18's counters structure.
type Stats struct {
	PacketsIn  uint64
	PacketsOut uint64
	BytesIn    uint64
	BytesOut   uint64
	ErrorsIn   uint64
	ErrorsOut  uint64
	Lost       uint64
	Collisions uint64
	CRCErrors  uint64
	Alignment  uint64
	Overruns   uint64
	Underruns  uint64
}

// Address is a 6-byte Ethernet station address.
type Address [6]byte

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Ops is the operations vtable (§3): the immutable function set bound to a
// Record at attach. Implemented once per generation in package hal.
type Ops interface {
	Init(rec *Record) error
	Reset(rec *Record) error
	Send(rec *Record, frame []byte) error
	PollReceive(rec *Record, out []byte) (int, error)
	InterruptAckAndClassify(rec *Record) (Events, error)
	InterruptHandle(rec *Record, ev Events) error
	GetStationAddress(rec *Record) Address
	SetReceiveMode(rec *Record, mode ReceiveMode) error
	Teardown(rec *Record) error

	// Optional entries; a back-end that does not support one returns
	// ok=false, per §3's "presence reflects capability."
	CheckTXComplete(rec *Record) (ok bool)
	CheckRXAvailable(rec *Record) (ok bool)
	SetStationAddress(rec *Record, addr Address) (ok bool, err error)
}

// Events is the front-half's classification result (§4.3, §4.4).
type Events uint32

const (
	EvNone Events = 0
	EvNotOurs Events = 1 << (iota - 1)
	EvRXComplete
	EvTXComplete
	EvLinkChange
	EvAdapterFailure
	EvStatsThreshold
)

// Record is the Device Record of §3.
type Record struct {
	mu sync.Mutex

	Index      int
	Generation Generation
	IOBase     uint16
	MMIOBase   uint64
	IRQ        int
	Station    Address

	Capabilities Capability
	FIFOSize     int
	Policy       DMAPolicy
	CacheTier    CacheTier

	Ops Ops

	RXRing any // *ring.Ring, kept as any to avoid an import cycle with package ring
	TXRing any

	// CacheEngine is the device's bound *dmapolicy.Engine, applying the
	// cache-coherency tier Decide chose to every Send/PollReceive; kept
	// as any to avoid an import cycle with package dmapolicy.
	CacheEngine any

	Stats       Stats
	ReceiveMode ReceiveMode
	Link        LinkState

	// CurrentWindow is the HAL dispatcher's owned windowed-register cursor
	// (§4.3 "Windowed-register discipline").
	CurrentWindow int

	attached bool
}

// Lock/Unlock implement the bracketing critical sections §5 calls for
// around ring index updates and bounce-pool/handle-table access that cross
// the front-half/back-half boundary.
func (r *Record) Lock()   { r.mu.Lock() }
func (r *Record) Unlock() { r.mu.Unlock() }

// MarkAttached/Attached implement C5's exclusive ownership of the
// "attached" set (§4.5: "No other component modifies the attached set").
func (r *Record) MarkAttached(v bool) { r.attached = v }
func (r *Record) Attached() bool      { return r.attached }
