// PCI configuration-mechanism-one bus driver
// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the tamago soc/intel/pci driver: the same configuration
// address/data port pair and BAR-decoding logic, generalized into C1's PCI
// enumeration back end (§4.1) — walking every bus/slot/function for a
// vendor/device match, rather than a single bus driver bound to one SoC.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pci implements PCI configuration-mechanism-one access (CF8/CFC)
// used by C1 to enumerate 3Com Vortex/Boomerang/Cyclone/Tornado devices and
// by C3's Cardbus back end to walk a CardBus bridge's subordinate bus.
package pci

import (
	"github.com/go3com/pktdrv/bits"
	"github.com/go3com/pktdrv/internal/reg"
)

// Standard configuration-mechanism-one port pair.
const (
	ConfigAddress = 0x0cf8
	ConfigData    = 0x0cfc
)

const (
	maxBuses    = 256
	maxDevices  = 32
	maxFuncs    = 8
	multiFnMask = 0x80
)

// Header type 0x0 register offsets (§4.1: vendor/device ID, BARs).
const (
	VendorID           = 0x00
	Command            = 0x04
	ClassCode          = 0x08
	HeaderType         = 0x0e
	Bar0               = 0x10
	SubordinateBus     = 0x19 // CardBus bridge (header type 0x2) subordinate bus number
	CapabilitiesOffset = 0x34
	InterruptLine      = 0x3c
)

// 3Com EtherLink III family PCI vendor ID.
const VendorID3Com = 0x10b7

const classBridgeCardBus = 0x060700 // class 0x06 (bridge), subclass 0x07 (CardBus)

// Device identifies one function on the PCI bus, addressable via the
// configuration-mechanism-one address/data port pair.
type Device struct {
	Bus    uint32
	Slot   uint32
	Fn     uint32
	Vendor uint16
	Device uint16

	bus Bus
}

// Bus abstracts the CONFIG_ADDRESS/CONFIG_DATA port pair so enumeration is
// testable without real I/O-privileged access (see reg.Bus).
type Bus = reg.Bus

func (d *Device) address(off uint32) uint32 {
	return 1<<31 | d.Bus<<16 | d.Slot<<11 | d.Fn<<8 | off&0xfc
}

// Read reads the 32-bit register containing the given offset. The lower two
// bits are masked off the request and the result is not shifted, so a
// caller reading a sub-dword field (SubordinateBus, HeaderType) shifts it
// out itself.
func (d *Device) Read(off uint32) uint32 {
	d.bus.Out32(ConfigAddress, d.address(off))
	return d.bus.In32(ConfigData)
}

// Write writes a 32-bit-aligned register.
func (d *Device) Write(off uint32, val uint32) {
	if off&0x3 != 0 {
		return
	}

	d.bus.Out32(ConfigAddress, d.address(off))
	d.bus.Out32(ConfigData, val)
}

// BaseAddress decodes and returns BAR n (0-5), handling 64-bit BAR pairs.
func (d *Device) BaseAddress(n int) uint64 {
	if n > 5 {
		return 0
	}

	off := uint32(Bar0 + n*4)
	bar := d.Read(off)

	if bar&0x1 == 1 {
		// I/O space BAR
		return uint64(bar &^ 0x3)
	}

	switch bits.GetN(&bar, 1, 0b11) {
	case 0:
		return uint64(bar &^ 0xf)
	case 2:
		hi := d.Read(off + 4)
		return uint64(hi)<<32 | uint64(bar&^0xf)
	}

	return 0
}

// IsCardBusBridge reports whether the device's class/subclass matches a
// CardBus bridge (header type 0x2), the trigger for C1's CardBus subordinate
// walk.
func (d *Device) IsCardBusBridge() bool {
	class := d.Read(ClassCode) >> 8
	return class == classBridgeCardBus
}

// SubordinateBus returns the bus number a CardBus bridge forwards
// transactions to.
func (d *Device) SubordinateBus() uint32 {
	return (d.Read(SubordinateBus&^0x3) >> ((SubordinateBus & 0x3) * 8)) & 0xff
}

func (d *Device) probe() bool {
	if d.Bus > maxBuses {
		return false
	}

	val := d.Read(VendorID)

	if d.Vendor = uint16(val); d.Vendor == 0xffff || d.Vendor == 0 {
		return false
	}

	d.Device = uint16(val >> 16)

	return true
}

// Probe searches every bus/slot/function for a vendor/device match,
// preserving bus-then-slot ordering (§4.1: "device ordering on the bus is
// preserved").
func Probe(bus reg.Bus, vendor, device uint16) []*Device {
	var found []*Device

	for b := uint32(0); b < maxBuses; b++ {
		for slot := uint32(0); slot < maxDevices; slot++ {
			base := &Device{Bus: b, Slot: slot, Fn: 0, bus: bus}

			if !base.probe() {
				continue
			}

			multi := (base.Read(HeaderType)>>((HeaderType&0x3)*8))&multiFnMask != 0
			fns := uint32(1)
			if multi {
				fns = maxFuncs
			}

			for fn := uint32(0); fn < fns; fn++ {
				d := &Device{Bus: b, Slot: slot, Fn: fn, bus: bus}
				if !d.probe() {
					continue
				}

				if d.Vendor == vendor && d.Device == device {
					found = append(found, d)
				}
			}
		}
	}

	return found
}

// Devices enumerates every responding function on bus, used by the CardBus
// subordinate-bus walk to discover whatever is plugged into the slot.
func Devices(bus reg.Bus, busNum uint32) []*Device {
	var devices []*Device

	for slot := uint32(0); slot < maxDevices; slot++ {
		d := &Device{Bus: busNum, Slot: slot, bus: bus}

		if d.probe() {
			devices = append(devices, d)
		}
	}

	return devices
}
