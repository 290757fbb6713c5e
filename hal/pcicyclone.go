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

// pciCyclone is PCI_CYCLONE: adds NWAY auto-negotiation over Boomerang,
// which already carries hardware checksum offload (§4.1: "capability derivation... except
// where a register bit unambiguously exposes a feature, e.g. NWAY
// auto-negotiation on Cyclone and later").
type pciCyclone struct {
	dmaBackend
}

// NewPCICyclone returns the operations vtable for PCI_CYCLONE devices.
func NewPCICyclone(bus reg.Bus, deliver DeliverFunc) device.Ops {
	return &pciCyclone{dmaBackend: dmaBackend{
		bus:              bus,
		rxRingSize:       32,
		txRingSize:       32,
		bufSize:          1536,
		permanentWindow1: true,
		scatterGather:    true,
		deliver:          deliver,
	}}
}
