// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package isa implements C1's ISA bus probe (§4.1): the ID-sequence
// activation handshake 3Com EtherLink III ISA cards use in place of
// Plug-and-Play enumeration, and the well-known candidate I/O base sweep.
package isa

import (
	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/reg"
)

// CandidateBases are the well-known ISA I/O base addresses 3Com EtherLink
// III cards are jumpered or EEPROM-configured to (§4.1: "probe well-known
// I/O base candidates").
var CandidateBases = []uint16{0x200, 0x210, 0x220, 0x230, 0x240, 0x250, 0x260, 0x270, 0x280, 0x2a0, 0x2e0, 0x300, 0x310, 0x320, 0x330, 0x340, 0x350}

// ManufacturerToken is the historical 3Com ID code validated during probe
// (§4.1: "validate manufacturer token 0x6D50").
const ManufacturerToken = 0x6d50

const (
	idPort       = 0x0110
	activatePort = 0x0100
)

// productIDLow and productIDHigh bound the documented EtherLink III ISA
// product ID range (§4.1: "a product ID in a documented range"). The range
// is split between the two ISA generations this core supports: 3c509
// (ISA_PIO_10) family IDs below busmasterProductIDFloor, 3c515 Corkscrew
// (ISA_BUSMASTER_100) family IDs at or above it.
const (
	productIDLow            = 0x9000
	productIDHigh           = 0x90ff
	busmasterProductIDFloor = 0x9050
)

// GenerationFor classifies a validated ISA product ID into the generation
// it names (§4.1 "Capability derivation: from generation"). Callers must
// only pass a product ID Probe already accepted.
func GenerationFor(productID uint16) device.Generation {
	if productID >= busmasterProductIDFloor {
		return device.ISABusmaster100
	}
	return device.ISAPIO10
}

// Probe issues the ID-sequence handshake at base and validates the
// manufacturer token and product ID, returning the product ID on success.
func Probe(bus reg.Bus, base uint16) (productID uint16, ok bool) {
	sendIDSequence(bus)

	bus.Out16(base+idPort, 0)

	mfg := bus.In16(base + idPort)
	if mfg != ManufacturerToken {
		return 0, false
	}

	pid := bus.In16(base + idPort)
	if pid < productIDLow || pid > productIDHigh {
		return 0, false
	}

	bus.Out8(base+activatePort, 1)

	return pid, true
}

// sendIDSequence writes the documented LFSR-derived ID key sequence to the
// global ID port, the step every EtherLink III ISA card requires before it
// will respond to probes on its configured base (§4.1 "write ID-sequence to
// the activation port").
func sendIDSequence(bus reg.Bus) {
	const globalIDPort = 0x0110

	bus.Out8(globalIDPort, 0)
	bus.Out8(globalIDPort, 0)

	var lfsr uint8 = 0xff

	for i := 0; i < 255; i++ {
		bus.Out8(globalIDPort, lfsr)
		bit := ((lfsr >> 2) ^ (lfsr >> 3)) & 1
		lfsr = (lfsr << 1) | bit
	}
}

// Scan probes every candidate base and returns the ones that answered.
func Scan(bus reg.Bus) map[uint16]uint16 {
	found := make(map[uint16]uint16)

	for _, base := range CandidateBases {
		if pid, ok := Probe(bus, base); ok {
			found[base] = pid
		}
	}

	return found
}
