// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hal

import (
	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/pkgerr"
	"github.com/go3com/pktdrv/internal/reg"
)

// DeliverFunc is the handle-table dispatch hook a back-end's InterruptHandle
// calls for every frame it drains from a receive ring or FIFO (§4.4 "Drain
// step... deliver to matched handle's callback"). devIndex identifies which
// attached device produced the frame; frame is owned by the caller on
// return, so an implementation that retains it must copy. pktdrv.Driver.
// Deliver is the production implementation; tests may pass any matching
// func value.
type DeliverFunc func(devIndex int, frame []byte)

// Bind assembles the operations vtable matching a device's generation tag
// and the DMA policy C2 already chose (§4.3 "At device attach, assemble and
// bind the operations vtable matching the generation tag"). A vtable
// instance may be reused by every device of identical chip and policy; the
// dispatcher does not require a fresh allocation per device. deliver is
// wired into the back-end's InterruptHandle so a drained receive frame
// reaches C5/pktdrv's handle-table dispatch instead of being discarded; it
// may be nil, in which case received frames are still drained and counted
// but not delivered (matching the behavior of a caller that has not yet
// registered a consumer).
func Bind(gen device.Generation, policy device.DMAPolicy, bus reg.Bus, deliver DeliverFunc) (device.Ops, error) {
	if policy == device.PolicyPIO {
		return NewISAPIO(bus, deliver), nil
	}

	switch gen {
	case device.ISAPIO10:
		return NewISAPIO(bus, deliver), nil
	case device.ISABusmaster100:
		return NewISABusmaster(bus, deliver), nil
	case device.PCIVortex:
		return NewPCIVortex(bus, deliver), nil
	case device.PCIBoomerang:
		return NewPCIBoomerang(bus, deliver), nil
	case device.PCICyclone:
		return NewPCICyclone(bus, deliver), nil
	case device.PCITornado:
		return NewPCITornado(bus, deliver), nil
	case device.CardBus, device.MiniPCI:
		return NewCardBus(bus, deliver), nil
	default:
		return nil, pkgerr.WithKind(errors.Errorf("hal: unknown generation %v", gen), pkgerr.Configuration)
	}
}

// FastPathEligible reports whether events contain only the simple
// RX-complete/TX-available bits the front half can service via the
// minimized three-register save sequence (§4.3 "Dispatch fast path for
// interrupts"); anything else (failure, link, statistics) must take the
// full-register slow path.
func FastPathEligible(ev device.Events) bool {
	const fast = device.EvRXComplete | device.EvTXComplete
	return ev&^fast == 0
}
