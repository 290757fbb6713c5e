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
	"github.com/go3com/pktdrv/pci"
)

// cardBus backs both CARDBUS and MINI_PCI generations: functionally a
// Cyclone/Tornado-class chip reached through a CardBus bridge's
// subordinate bus instead of directly on the root bus (§4.1 "CardBus
// (PCI-class-0x0607 bridges, then a PCI subordinate enumeration)").
type cardBus struct {
	dmaBackend
}

// NewCardBus returns the operations vtable for CARDBUS/MINI_PCI devices.
func NewCardBus(bus reg.Bus, deliver DeliverFunc) device.Ops {
	return &cardBus{dmaBackend: dmaBackend{
		bus:              bus,
		rxRingSize:       32,
		txRingSize:       32,
		bufSize:          1536,
		permanentWindow1: true,
		scatterGather:    true,
		deliver:          deliver,
	}}
}

// DiscoverCardBus walks every CardBus bridge on the root bus and returns the
// 3Com functions found on each bridge's subordinate bus (§4.1 supplemented
// CardBus subordinate-bus walk): first find class-0x0607 bridges via
// pci.Devices, then enumerate the subordinate bus each one reports.
func DiscoverCardBus(bus reg.Bus, rootBusNum uint32) []*pci.Device {
	var found []*pci.Device

	for _, d := range pci.Devices(bus, rootBusNum) {
		if !d.IsCardBusBridge() {
			continue
		}

		sub := d.SubordinateBus()

		for _, fn := range pci.Devices(bus, sub) {
			if fn.Vendor == pci.VendorID3Com {
				found = append(found, fn)
			}
		}
	}

	return found
}
