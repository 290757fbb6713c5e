package pci

import "testing"

func TestCapabilitiesWalksLinkedList(t *testing.T) {
	f := newFakeConfigSpace()

	f.put(0, 5, 0, VendorID, uint32(0x9200)<<16|uint32(VendorID3Com))
	f.put(0, 5, 0, HeaderType, 0)
	f.put(0, 5, 0, CapabilitiesOffset, 0x40)

	// Two-entry list: Power Management at 0x40 -> VPD at 0x48 -> end.
	f.put(0, 5, 0, 0x40, uint32(0x48)<<8|CapPower)
	f.put(0, 5, 0, 0x48, uint32(0x00)<<8|CapVPD)

	devs := Devices(f.bus, 0)
	if len(devs) != 1 {
		t.Fatalf("Devices found %d, want 1", len(devs))
	}

	var ids []uint8
	var offs []uint32
	devs[0].Capabilities(func(off uint32, hdr *CapabilityHeader) bool {
		ids = append(ids, hdr.Vendor)
		offs = append(offs, off)
		return true
	})

	if len(ids) != 2 || ids[0] != CapPower || ids[1] != CapVPD {
		t.Fatalf("Capabilities walked %v, want [CapPower CapVPD]", ids)
	}
	if offs[0] != 0x40 || offs[1] != 0x48 {
		t.Fatalf("Capabilities offsets %v, want [0x40 0x48]", offs)
	}
}

func TestCapabilitiesEmptyListYieldsNothing(t *testing.T) {
	f := newFakeConfigSpace()

	f.put(0, 5, 0, VendorID, uint32(0x9200)<<16|uint32(VendorID3Com))
	f.put(0, 5, 0, HeaderType, 0)
	f.put(0, 5, 0, CapabilitiesOffset, 0)

	devs := Devices(f.bus, 0)
	if len(devs) != 1 {
		t.Fatalf("Devices found %d, want 1", len(devs))
	}

	seen := 0
	devs[0].Capabilities(func(off uint32, hdr *CapabilityHeader) bool {
		seen++
		return true
	})
	if seen != 0 {
		t.Fatalf("expected no capabilities, saw %d", seen)
	}
}

func TestCapabilitiesStopsWhenYieldReturnsFalse(t *testing.T) {
	f := newFakeConfigSpace()

	f.put(0, 5, 0, VendorID, uint32(0x9200)<<16|uint32(VendorID3Com))
	f.put(0, 5, 0, HeaderType, 0)
	f.put(0, 5, 0, CapabilitiesOffset, 0x40)

	f.put(0, 5, 0, 0x40, uint32(0x48)<<8|CapPower)
	f.put(0, 5, 0, 0x48, uint32(0x00)<<8|CapVPD)

	devs := Devices(f.bus, 0)

	seen := 0
	devs[0].Capabilities(func(off uint32, hdr *CapabilityHeader) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Fatalf("expected the walk to stop after the first entry, saw %d", seen)
	}
}
