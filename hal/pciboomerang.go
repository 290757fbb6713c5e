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

// pciBoomerang is PCI_BOOMERANG: Vortex's successor at a larger ring depth.
// Its scatterGather field is set, but each descriptor still carries one
// buffer and no descriptor chains are built; device.DefaultCapabilities
// does not give this generation CapScatterGather.
type pciBoomerang struct {
	dmaBackend
}

// NewPCIBoomerang returns the operations vtable for PCI_BOOMERANG devices.
func NewPCIBoomerang(bus reg.Bus, deliver DeliverFunc) device.Ops {
	return &pciBoomerang{dmaBackend: dmaBackend{
		bus:              bus,
		rxRingSize:       32,
		txRingSize:       32,
		bufSize:          1536,
		permanentWindow1: true,
		scatterGather:    true,
		deliver:          deliver,
	}}
}
