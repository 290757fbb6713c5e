// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package reg

import "sync"

// Bus abstracts the physical transport a back-end uses to reach a device's
// registers: x86 port I/O for ISA devices and PCI configuration space, or
// memory-mapped I/O for PCI BARs. It is the narrow seam that lets C3's HAL
// back-ends run unmodified against either real hardware (PortBus) or a
// deterministic fake (SimBus) in tests — the same role google-periph's pmem.Mem
// interface plays between a real DMA allocation and a test double.
type Bus interface {
	In8(port uint16) uint8
	Out8(port uint16, val uint8)
	In16(port uint16) uint16
	Out16(port uint16, val uint16)
	In32(port uint16) uint32
	Out32(port uint16, val uint32)
}

// PortBus issues real x86 IN/OUT instructions via In8/Out8/... (port_amd64.s).
// It requires I/O-privilege level 3; use SimBus where that is unavailable.
type PortBus struct{}

func (PortBus) In8(port uint16) uint8          { return In8(port) }
func (PortBus) Out8(port uint16, val uint8)    { Out8(port, val) }
func (PortBus) In16(port uint16) uint16        { return In16(port) }
func (PortBus) Out16(port uint16, val uint16)  { Out16(port, val) }
func (PortBus) In32(port uint16) uint32        { return In32(port) }
func (PortBus) Out32(port uint16, val uint32)  { Out32(port, val) }

// SimBus is an in-memory stand-in for a device's I/O port space, used by
// tests and by the loopback demo. Each port holds its last written value;
// reads return zero for untouched ports. A Trap can be registered to give a
// port read/write side effects (status-bit auto-clear, FIFO draining) so
// higher layers exercise the same polling loops they would against silicon.
type SimBus struct {
	mu    sync.Mutex
	ports map[uint16]uint32
	traps map[uint16]func(write bool, val uint32) uint32
}

// NewSimBus returns a ready-to-use simulated port bus.
func NewSimBus() *SimBus {
	return &SimBus{
		ports: make(map[uint16]uint32),
		traps: make(map[uint16]func(write bool, val uint32) uint32),
	}
}

// Trap installs a side-effecting handler for a port. The handler receives
// whether this access is a write and the value (for writes) or the stored
// value (for reads), and returns the value to store/return.
func (b *SimBus) Trap(port uint16, fn func(write bool, val uint32) uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.traps[port] = fn
}

func (b *SimBus) read(port uint16) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	val := b.ports[port]

	if fn, ok := b.traps[port]; ok {
		val = fn(false, val)
		b.ports[port] = val
	}

	return val
}

func (b *SimBus) write(port uint16, val uint32) {
	b.mu.Lock()
	if fn, ok := b.traps[port]; ok {
		val = fn(true, val)
	}
	b.ports[port] = val
	b.mu.Unlock()
}

func (b *SimBus) In8(port uint16) uint8         { return uint8(b.read(port)) }
func (b *SimBus) Out8(port uint16, val uint8)   { b.write(port, uint32(val)) }
func (b *SimBus) In16(port uint16) uint16       { return uint16(b.read(port)) }
func (b *SimBus) Out16(port uint16, val uint16) { b.write(port, uint32(val)) }
func (b *SimBus) In32(port uint16) uint32       { return b.read(port) }
func (b *SimBus) Out32(port uint16, val uint32) { b.write(port, val) }
