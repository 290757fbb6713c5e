// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hal

import (
	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/reg"
)

// pciTornado is PCI_TORNADO: the last and deepest-pipelined generation,
// with 64-entry rings and the scatterGather capability bit set. §9's open
// question on Tornado transmit buffers crossing a 64 KiB physical boundary
// is resolved here as: never reached, because Tornado's ring is built on
// the same dma.Pool boundary-checked allocator as every other generation —
// Alloc refuses any buffer that would straddle the boundary in the first
// place, so no crossing buffer ever reaches the ring to be split or
// bounced. See DESIGN.md.
type pciTornado struct {
	dmaBackend
}

// NewPCITornado returns the operations vtable for PCI_TORNADO devices.
func NewPCITornado(bus reg.Bus, deliver DeliverFunc) device.Ops {
	return &pciTornado{dmaBackend: dmaBackend{
		bus:              bus,
		rxRingSize:       64,
		txRingSize:       64,
		bufSize:          1536,
		permanentWindow1: true,
		scatterGather:    true,
		deliver:          deliver,
	}}
}
