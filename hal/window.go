// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hal implements C3, the Hardware Abstraction Dispatcher (§4.3):
// the per-generation operations vtables and the windowed-register
// discipline they share.
package hal

import (
	"time"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/reg"
)

// Register file layout shared by every 3Com EtherLink III generation: a
// 16-byte banked window plus a fixed command/status pair outside the bank.
const (
	regCommand = 0x0e
	regStatus  = 0x0e

	cmdSelectWindow = 0x0800
)

// window owns the per-device CurrentWindow cursor (§4.3 "Windowed-register
// discipline"). Vortex and later generations declare a permanent window 1
// and never pay the select cost again (§4.3).
type window struct {
	bus      reg.Bus
	ioBase   uint16
	rec      *device.Record
	permanent bool
}

func newWindow(bus reg.Bus, rec *device.Record, permanentWindow1 bool) *window {
	return &window{bus: bus, ioBase: rec.IOBase, rec: rec, permanent: permanentWindow1}
}

// Select asserts window n, skipping the I/O write if the dispatcher already
// believes it is selected or the generation pins window 1 permanently.
func (w *window) Select(n int) {
	if w.permanent && n == 1 {
		w.rec.CurrentWindow = 1
		return
	}

	if w.rec.CurrentWindow == n {
		return
	}

	w.bus.Out16(w.ioBase+regCommand, uint16(cmdSelectWindow|n))
	w.rec.CurrentWindow = n
}

// reg8/reg16/reg32 address a banked register at the current window.
func (w *window) in8(off uint16) uint8   { return w.bus.In8(w.ioBase + off) }
func (w *window) out8(off uint16, v uint8)  { w.bus.Out8(w.ioBase+off, v) }
func (w *window) in16(off uint16) uint16 { return w.bus.In16(w.ioBase + off) }
func (w *window) out16(off uint16, v uint16) { w.bus.Out16(w.ioBase+off, v) }
func (w *window) in32(off uint16) uint32 { return w.bus.In32(w.ioBase + off) }
func (w *window) out32(off uint16, v uint32) { w.bus.Out32(w.ioBase+off, v) }

func (w *window) status() uint16 { return w.bus.In16(w.ioBase + regStatus) }

// waitBit polls a status bit with a bounded timeout, the shared primitive
// behind every "poll a completion bit with bounded timeout" operation in
// §4.3 (init POST, reset completion).
func waitBit(poll func() uint16, mask uint16, want bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		v := poll()&mask != 0
		if v == want {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Microsecond)
	}
}

// defaultTimeout is the "fixed bound, e.g. 100 ms" §4.3 specifies for POST
// and reset completion.
const defaultTimeout = 100 * time.Millisecond
