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

// pciVortex is PCI_VORTEX: the first PCI generation, a permanent window 1
// and single-transmit-buffer-per-packet DMA (no scatter-gather yet).
type pciVortex struct {
	dmaBackend
}

// NewPCIVortex returns the operations vtable for PCI_VORTEX devices.
func NewPCIVortex(bus reg.Bus, deliver DeliverFunc) device.Ops {
	return &pciVortex{dmaBackend: dmaBackend{
		bus:              bus,
		rxRingSize:       16,
		txRingSize:       16,
		bufSize:          1536,
		permanentWindow1: true,
		scatterGather:    false,
		deliver:          deliver,
	}}
}
