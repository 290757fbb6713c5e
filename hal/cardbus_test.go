package hal

import (
	"testing"

	"github.com/go3com/pktdrv/internal/reg"
	"github.com/go3com/pktdrv/pci"
)

// fakeConfigSpace mirrors package pci's own test helper (unexported there),
// standing in for configuration-mechanism-one space across a root bus and a
// CardBus bridge's subordinate bus.
type fakeConfigSpace struct {
	bus      *reg.SimBus
	regs     map[[4]uint32]uint32
	lastAddr uint32
}

func newFakeConfigSpace() *fakeConfigSpace {
	f := &fakeConfigSpace{
		bus:  reg.NewSimBus(),
		regs: make(map[[4]uint32]uint32),
	}

	f.bus.Trap(pci.ConfigAddress, func(write bool, val uint32) uint32 {
		if write {
			f.lastAddr = val
		}
		return f.lastAddr
	})

	f.bus.Trap(pci.ConfigData, func(write bool, val uint32) uint32 {
		b := (f.lastAddr >> 16) & 0xff
		s := (f.lastAddr >> 11) & 0x1f
		fn := (f.lastAddr >> 8) & 0x7
		off := f.lastAddr & 0xfc
		key := [4]uint32{b, s, fn, off}

		if write {
			f.regs[key] = val
			return val
		}
		return f.regs[key]
	})

	return f
}

func (f *fakeConfigSpace) put(bus, slot, fn, off uint32, val uint32) {
	f.regs[[4]uint32{bus, slot, fn, off &^ 0x3}] = val
}

func TestDiscoverCardBusFindsFunctionOnSubordinateBus(t *testing.T) {
	f := newFakeConfigSpace()

	// A CardBus bridge at bus 0, slot 2.
	f.put(0, 2, 0, pci.VendorID, uint32(0x1234)<<16|uint32(0x5678))
	f.put(0, 2, 0, pci.HeaderType, 0)
	f.put(0, 2, 0, pci.ClassCode, 0x060700)
	f.put(0, 2, 0, pci.SubordinateBus&^0x3, 3<<((pci.SubordinateBus&0x3)*8))

	// The 3Com function living on the bridge's subordinate bus 3, slot 0.
	f.put(3, 0, 0, pci.VendorID, uint32(0x9201)<<16|uint32(pci.VendorID3Com))
	f.put(3, 0, 0, pci.HeaderType, 0)

	found := DiscoverCardBus(f.bus, 0)
	if len(found) != 1 {
		t.Fatalf("DiscoverCardBus found %d devices, want 1", len(found))
	}
	if found[0].Bus != 3 || found[0].Slot != 0 {
		t.Fatalf("found device at (%d,%d), want (3,0)", found[0].Bus, found[0].Slot)
	}
}

func TestDiscoverCardBusIgnoresNonBridgeNonCardBusFunctions(t *testing.T) {
	f := newFakeConfigSpace()

	// A plain function, not a CardBus bridge.
	f.put(0, 2, 0, pci.VendorID, uint32(0x9200)<<16|uint32(pci.VendorID3Com))
	f.put(0, 2, 0, pci.HeaderType, 0)

	found := DiscoverCardBus(f.bus, 0)
	if len(found) != 0 {
		t.Fatalf("DiscoverCardBus found %d devices on a non-bridge bus, want 0", len(found))
	}
}

func TestDiscoverCardBusSkipsNon3ComFunctionsOnSubordinateBus(t *testing.T) {
	f := newFakeConfigSpace()

	f.put(0, 2, 0, pci.VendorID, uint32(0x1234)<<16|uint32(0x5678))
	f.put(0, 2, 0, pci.HeaderType, 0)
	f.put(0, 2, 0, pci.ClassCode, 0x060700)
	f.put(0, 2, 0, pci.SubordinateBus&^0x3, 3<<((pci.SubordinateBus&0x3)*8))

	// A non-3Com function on the subordinate bus.
	f.put(3, 0, 0, pci.VendorID, uint32(0x1111)<<16|uint32(0x2222))
	f.put(3, 0, 0, pci.HeaderType, 0)

	found := DiscoverCardBus(f.bus, 0)
	if len(found) != 0 {
		t.Fatalf("DiscoverCardBus found %d devices, want 0", len(found))
	}
}
