package pci

import (
	"testing"

	"github.com/go3com/pktdrv/internal/reg"
)

// fakeConfigSpace wires a SimBus's CONFIG_ADDRESS/CONFIG_DATA ports to a
// plain map keyed by (bus,slot,fn,offset), standing in for real PCI
// configuration space during tests.
type fakeConfigSpace struct {
	bus     *reg.SimBus
	regs    map[[4]uint32]uint32
	lastAddr uint32
}

func newFakeConfigSpace() *fakeConfigSpace {
	f := &fakeConfigSpace{
		bus:  reg.NewSimBus(),
		regs: make(map[[4]uint32]uint32),
	}

	f.bus.Trap(ConfigAddress, func(write bool, val uint32) uint32 {
		if write {
			f.lastAddr = val
		}
		return f.lastAddr
	})

	f.bus.Trap(ConfigData, func(write bool, val uint32) uint32 {
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

func TestProbeFindsVendorDeviceMatch(t *testing.T) {
	f := newFakeConfigSpace()

	// Plant one 3Com device at bus 0, slot 5, fn 0.
	f.put(0, 5, 0, VendorID, uint32(0x9200)<<16|uint32(VendorID3Com))
	f.put(0, 5, 0, HeaderType, 0) // single-function

	found := Probe(f.bus, VendorID3Com, 0x9200)
	if len(found) != 1 {
		t.Fatalf("Probe found %d devices, want 1", len(found))
	}
	if found[0].Bus != 0 || found[0].Slot != 5 || found[0].Fn != 0 {
		t.Fatalf("found device at (%d,%d,%d), want (0,5,0)", found[0].Bus, found[0].Slot, found[0].Fn)
	}
}

func TestProbeIgnoresEmptySlots(t *testing.T) {
	f := newFakeConfigSpace()
	// No device planted anywhere: all reads return zero, and probe()
	// treats vendor 0x0000, like 0xffff, as "no device".

	found := Probe(f.bus, VendorID3Com, 0x9200)
	if len(found) != 0 {
		t.Fatalf("Probe found %d devices in an empty bus, want 0", len(found))
	}
}

func TestBaseAddress32Bit(t *testing.T) {
	f := newFakeConfigSpace()

	f.put(0, 5, 0, VendorID, uint32(0x9200)<<16|uint32(VendorID3Com))
	f.put(0, 5, 0, HeaderType, 0)
	f.put(0, 5, 0, Bar0, 0xfebc0000) // 32-bit, non-prefetchable MMIO BAR

	devs := Devices(f.bus, 0)
	if len(devs) != 1 {
		t.Fatalf("Devices found %d, want 1", len(devs))
	}
	d := devs[0]

	if got := d.BaseAddress(0); got != 0xfebc0000 {
		t.Fatalf("BaseAddress(0) = 0x%x, want 0xfebc0000", got)
	}
}

func TestBaseAddressIOSpace(t *testing.T) {
	f := newFakeConfigSpace()

	f.put(0, 5, 0, VendorID, uint32(0x9200)<<16|uint32(VendorID3Com))
	f.put(0, 5, 0, HeaderType, 0)
	f.put(0, 5, 0, Bar0, 0x6001) // I/O space BAR, base 0x6000

	devs := Devices(f.bus, 0)
	if len(devs) != 1 {
		t.Fatalf("Devices found %d, want 1", len(devs))
	}

	if got := devs[0].BaseAddress(0); got != 0x6000 {
		t.Fatalf("BaseAddress(0) = 0x%x, want 0x6000", got)
	}
}

func TestIsCardBusBridgeAndSubordinateBus(t *testing.T) {
	f := newFakeConfigSpace()

	f.put(1, 2, 0, VendorID, uint32(0x1234)<<16|uint32(0x5678))
	f.put(1, 2, 0, HeaderType, 0)
	f.put(1, 2, 0, ClassCode, classBridgeCardBus<<8)
	f.put(1, 2, 0, SubordinateBus&^0x3, 7<<((SubordinateBus&0x3)*8))

	devs := Devices(f.bus, 1)
	if len(devs) != 1 {
		t.Fatalf("Devices found %d, want 1", len(devs))
	}

	if !devs[0].IsCardBusBridge() {
		t.Fatal("expected IsCardBusBridge to be true")
	}
	if got := devs[0].SubordinateBus(); got != 7 {
		t.Fatalf("SubordinateBus = %d, want 7", got)
	}
}
