// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the tamago soc/intel/pci device table (a static
// vendor/device -> chip-variant lookup), generalized from identifying one
// SoC's onboard peripherals to 3Com's EtherLink III PCI/CardBus device IDs
// (§4.1 "match against a static table keyed by (vendor_id, device_id)").
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pci

import (
	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/reg"
)

// generationByDeviceID maps a 3Com PCI device ID to the chip generation it
// identifies (§4.1 "Capability derivation: from generation"). Entries are
// historical 3Com EtherLink III / Fast EtherLink XL part numbers.
var generationByDeviceID = map[uint16]device.Generation{
	0x5900: device.PCIVortex,     // 3c590 Vortex 10Mbps
	0x5920: device.PCIVortex,     // 3c592 Vortex EISA (PCI-bridged variant)
	0x5950: device.PCIVortex,     // 3c595 Vortex 100bTX
	0x5951: device.PCIVortex,     // 3c595 Vortex 100bT4
	0x9000: device.PCIBoomerang,  // 3c900 Boomerang 10Mbps Combo
	0x9001: device.PCIBoomerang,  // 3c900 Boomerang 10Mbps TPO
	0x9050: device.PCIBoomerang,  // 3c905 Boomerang 100bT4
	0x9051: device.PCIBoomerang,  // 3c905 Boomerang 100bTX
	0x9004: device.PCICyclone,    // 3c900B Cyclone 10Mbps Combo
	0x9005: device.PCICyclone,    // 3c900B Cyclone 10Mbps TPO
	0x9006: device.PCICyclone,    // 3c900B Cyclone 10Mbps TPC
	0x9055: device.PCICyclone,    // 3c905B Cyclone 100bTX
	0x9058: device.PCICyclone,    // 3c905B Cyclone 10/100/BNC
	0x905a: device.PCICyclone,    // 3c905B-FX Cyclone 100bFX
	0x9200: device.PCITornado,    // 3c905C Tornado
	0x9201: device.PCITornado,    // 3c920B-EMB-WNM embedded Tornado
	0x4500: device.PCITornado,    // 3c450 HomePNA Tornado
	0x5057: device.CardBus,       // 3c575 CardBus Boomerang
	0x5157: device.CardBus,       // 3c575C CardBus Boomerang
	0x6055: device.CardBus,       // 3c556 CardBus Tornado
	0x6056: device.CardBus,       // 3c556B CardBus Tornado
	0x6560: device.CardBus,       // 3CCFE656 CardBus Cyclone
	0x6562: device.CardBus,       // 3CCFEM656 CardBus Cyclone
	0x6564: device.CardBus,       // 3CXFEM656C CardBus Cyclone
}

// IdentifyGeneration looks up the chip generation a 3Com PCI device ID
// names. ok is false for a device ID not in the static table, per §4.1
// "reject on mismatch".
func IdentifyGeneration(deviceID uint16) (device.Generation, bool) {
	g, ok := generationByDeviceID[deviceID]
	return g, ok
}

// KnownDeviceIDs returns every PCI device ID IdentifyGeneration recognizes,
// the candidate set C1's PCI probe calls Probe with (§4.1 "match against a
// static table").
func KnownDeviceIDs() []uint16 {
	ids := make([]uint16, 0, len(generationByDeviceID))
	for id := range generationByDeviceID {
		ids = append(ids, id)
	}
	return ids
}

// Found pairs a probed root-bus function with the generation its device ID
// named in the static table, C1's output before C5 allocates a Device
// Record for it.
type Found struct {
	Device     *Device
	Generation device.Generation
}

// DiscoverEtherLinkIII probes the root PCI bus for every device ID
// IdentifyGeneration recognizes and classifies each hit into its generation
// (§4.1 "Enumerate candidate devices on ISA, PCI, CardBus; classify into
// generations"). CardBus functions live on a bridge's subordinate bus and
// are not reachable from here; see hal.DiscoverCardBus for those.
func DiscoverEtherLinkIII(bus reg.Bus) []Found {
	var found []Found

	for _, id := range KnownDeviceIDs() {
		gen, ok := IdentifyGeneration(id)
		if !ok {
			continue // unreachable: id came from the same table
		}

		for _, d := range Probe(bus, VendorID3Com, id) {
			found = append(found, Found{Device: d, Generation: gen})
		}
	}

	return found
}
