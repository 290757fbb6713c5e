// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the tamago soc/intel/pci capability-list walker.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pci

import "encoding/binary"

// Capability IDs relevant to the family this driver targets (PCI Code and ID
// Assignment Specification Revision 1.11, §2).
const (
	CapPower  = 0x01
	CapVPD    = 0x03
	CapPCIX   = 0x07
	CapBridge = 0x0d
)

// CapabilityHeader is the common two-byte prefix of every PCI capability
// list entry.
type CapabilityHeader struct {
	Vendor uint8
	Next   uint8
}

func (hdr *CapabilityHeader) unmarshal(d *Device, off uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, d.Read(off))
	hdr.Vendor = buf[0]
	hdr.Next = buf[1]
	return nil
}

// Capabilities iterates a device's capability list, used by capability
// derivation (§4.1) to confirm power-management and bridge capabilities
// without guessing from class code alone.
func (d *Device) Capabilities(yield func(off uint32, hdr *CapabilityHeader) bool) {
	off := d.Read(CapabilitiesOffset) & 0xff

	for off != 0 {
		hdr := &CapabilityHeader{}

		if err := hdr.unmarshal(d, off); err != nil {
			return
		}

		if !yield(off, hdr) {
			return
		}

		off = uint32(hdr.Next)
	}
}
