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

// isaBusmaster is ISA_BUSMASTER_100: the first 3Com generation with an
// on-board DMA engine, subject to the ISA 16 MiB addressing ceiling (§4.2
// gate 6) and without a permanent window 1 (§4.3).
type isaBusmaster struct {
	dmaBackend
}

// NewISABusmaster returns the operations vtable for ISA_BUSMASTER_100
// devices.
func NewISABusmaster(bus reg.Bus, deliver DeliverFunc) device.Ops {
	return &isaBusmaster{dmaBackend: dmaBackend{
		bus:              bus,
		rxRingSize:       16,
		txRingSize:       16,
		bufSize:          1536,
		permanentWindow1: false,
		scatterGather:    false,
		deliver:          deliver,
	}}
}
