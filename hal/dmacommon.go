// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hal

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/dma"
	"github.com/go3com/pktdrv/dmapolicy"
	"github.com/go3com/pktdrv/internal/pkgerr"
	"github.com/go3com/pktdrv/internal/reg"
	"github.com/go3com/pktdrv/ring"
)

// DMA doorbell offsets, window 7 ("Bus Master control") on Vortex-and-later
// generations (§4.3 send: "write the transmit head-pointer (or equivalent
// doorbell)").
const (
	offDownListPtr    = 0x24
	offUpListPtr      = 0x38
	offDownPollDemand = 0x2d
	offUpPollDemand   = 0x3c
)

const winBusMasterCmd = 7

// dmaBackend is the shared implementation behind every DMA-capable
// generation (ISA bus-master through Tornado and CardBus): it owns the
// windowed command path for init/reset/interrupt classification (identical
// across generations per §4.3) and drives transmit/receive through a
// ring.Ring rather than the PIO FIFO. Per-generation differences (16 MiB
// ceiling, scatter-gather, permanent window 1) are captured as fields set
// by each generation's constructor.
type dmaBackend struct {
	bus reg.Bus

	rxRingSize int
	txRingSize int
	bufSize    int

	permanentWindow1 bool
	scatterGather    bool

	// deliver is the handle-table dispatch hook InterruptHandle calls for
	// every frame drained off the receive ring; nil means drain-and-count
	// only (no consumer registered yet).
	deliver DeliverFunc
}

func (h *dmaBackend) win(rec *device.Record) *window {
	return newWindow(h.bus, rec, h.permanentWindow1)
}

func (h *dmaBackend) Init(rec *device.Record) error {
	if err := h.Reset(rec); err != nil {
		return err
	}

	w := h.win(rec)

	w.Select(winAddress)
	for i := 0; i < 3; i++ {
		w.out16(uint16(i*2), binary.LittleEndian.Uint16(rec.Station[i*2:i*2+2]))
	}

	pool := dma.NewPool(0, (h.rxRingSize+h.txRingSize)*h.bufSize)
	if rec.Capabilities.Has(device.Cap16MiBLimit) {
		pool = dma.NewISAPool((h.rxRingSize + h.txRingSize) * h.bufSize)
	}

	rxRing, err := ring.New(h.rxRingSize, h.bufSize, pool)
	if err != nil {
		return pkgerr.Wrap(err, pkgerr.Configuration, "hal: allocate receive ring")
	}
	if err := rxRing.PopulateReceive(); err != nil {
		return err
	}

	txRing, err := ring.New(h.txRingSize, h.bufSize, pool)
	if err != nil {
		return pkgerr.Wrap(err, pkgerr.Configuration, "hal: allocate transmit ring")
	}

	rec.RXRing = rxRing
	rec.TXRing = txRing

	// rec.CacheEngine applies the §4.2 cache-maintenance contract for
	// this device's tier on every Send/PollReceive; kept as any on the
	// Record to avoid an import cycle with package dmapolicy.
	rec.CacheEngine = &dmapolicy.Engine{Tier: rec.CacheTier, Queue: dmapolicy.NewQueue(nil)}

	w.Select(winOperating)
	w.out16(regCommand, cmdSetIntrEnb|statusIntMask)
	w.out16(regCommand, cmdSetStatusEnb|statusIntMask)

	if err := rec.Ops.SetReceiveMode(rec, device.RXDirect|device.RXBroadcast); err != nil {
		return err
	}

	w.Select(winBusMasterCmd)
	w.out32(offUpListPtr, uint32(rxRing.At(0).Phys()))

	w.Select(winOperating)
	w.out16(regCommand, cmdRxEnable)
	w.out16(regCommand, cmdTxEnable)

	return nil
}

func (h *dmaBackend) Reset(rec *device.Record) error {
	w := h.win(rec)

	w.Select(winConfig)
	w.out16(regCommand, cmdGlobalReset)

	if !waitBit(w.status, stCmdInProgress, false, defaultTimeout) {
		return pkgerr.WithKind(errors.New("hal: dma reset timed out"), pkgerr.HardwareTimeout)
	}

	w.out16(regCommand, cmdAckIntr|0x7ff)

	rec.RXRing = nil
	rec.TXRing = nil

	return nil
}

func (h *dmaBackend) Send(rec *device.Record, frame []byte) error {
	txRing, ok := rec.TXRing.(*ring.Ring)
	if !ok || txRing == nil {
		return pkgerr.WithKind(errors.New("hal: transmit ring not initialized"), pkgerr.InvariantViolation)
	}

	d, err := txRing.PostTransmit(frame)
	if err != nil {
		return err
	}

	// §4.2 "Before posting a transmit descriptor... the buffer's cache
	// lines are written back." Send runs from application context
	// (pktdrv.Driver.SendPacket), never from the interrupt back-half, so
	// inIRQ is always false here.
	if ce, ok := rec.CacheEngine.(*dmapolicy.Engine); ok && ce != nil {
		if err := ce.WriteBack(d.Bytes(), dmapolicy.FlagNone, false); err != nil {
			return err
		}
	}

	w := h.win(rec)
	w.Select(winBusMasterCmd)
	w.out32(offDownListPtr, uint32(d.Phys()))
	w.out8(offDownPollDemand, 1)

	rec.Stats.PacketsOut++
	rec.Stats.BytesOut += uint64(len(frame))

	return nil
}

func (h *dmaBackend) PollReceive(rec *device.Record, out []byte) (int, error) {
	rxRing, ok := rec.RXRing.(*ring.Ring)
	if !ok || rxRing == nil {
		return 0, pkgerr.WithKind(errors.New("hal: receive ring not initialized"), pkgerr.InvariantViolation)
	}

	frame, flags, ok := rxRing.DrainReceive()
	if !ok {
		return 0, nil
	}

	if flags&ring.FlagError != 0 {
		rec.Stats.ErrorsIn++
		return 0, pkgerr.WithKind(errors.New("hal: dma bad frame"), pkgerr.TransientIO)
	}

	// §4.2 "Before consuming a filled receive buffer... the buffer's
	// cache lines are invalidated." PollReceive only ever runs from the
	// interrupt back-half (InterruptHandle), so inIRQ is always true: a
	// T-WBINVD tier defers through the queue instead of running inline.
	if ce, ok := rec.CacheEngine.(*dmapolicy.Engine); ok && ce != nil {
		if err := ce.Invalidate(frame, dmapolicy.FlagNone, true); err != nil {
			return 0, err
		}
	}

	n := copy(out, frame)

	rec.Stats.PacketsIn++
	rec.Stats.BytesIn += uint64(n)

	return n, nil
}

func (h *dmaBackend) InterruptAckAndClassify(rec *device.Record) (device.Events, error) {
	w := h.win(rec)

	st := w.status()
	if st&statusIntMask == 0 {
		return device.EvNotOurs, nil
	}

	w.out16(regCommand, cmdAckIntr|uint16(st&statusIntMask))

	var ev device.Events
	if st&stRxComplete != 0 {
		ev |= device.EvRXComplete
	}
	if st&stTxComplete != 0 {
		ev |= device.EvTXComplete
	}
	if st&stAdapterFailure != 0 {
		ev |= device.EvAdapterFailure
	}
	if st&stLinkEvent != 0 {
		ev |= device.EvLinkChange
	}
	if st&stStatsFull != 0 {
		ev |= device.EvStatsThreshold
	}

	return ev, nil
}

func (h *dmaBackend) InterruptHandle(rec *device.Record, ev device.Events) error {
	if ev&device.EvRXComplete != 0 {
		buf := make([]byte, h.bufSize)
		for i := 0; i < DefaultRXBatch; i++ {
			n, err := h.PollReceive(rec, buf)
			if err != nil || n == 0 {
				break
			}
			if h.deliver != nil {
				h.deliver(rec.Index, append([]byte(nil), buf[:n]...))
			}
		}
	}

	if ev&device.EvTXComplete != 0 {
		txRing, ok := rec.TXRing.(*ring.Ring)
		if ok && txRing != nil {
			for i := 0; i < DefaultTXBatch; i++ {
				if _, ok := txRing.ReapTransmit(); !ok {
					break
				}
			}
		}
	}

	if ev&device.EvAdapterFailure != 0 {
		return h.Reset(rec)
	}

	if ev&device.EvLinkChange != 0 {
		rec.Link = device.LinkUp
	}

	return nil
}

// DefaultTXBatch mirrors intr.DefaultTXBatch (§4.4 batching caps).
const DefaultTXBatch = 16

func (h *dmaBackend) GetStationAddress(rec *device.Record) device.Address { return rec.Station }

func (h *dmaBackend) SetReceiveMode(rec *device.Record, mode device.ReceiveMode) error {
	w := h.win(rec)
	prior := rec.CurrentWindow

	w.Select(winFilter)
	w.out16(regCommand, cmdSetRxFilter|uint16(rxFilterFor(uint8(mode))))
	rec.ReceiveMode = mode

	w.Select(prior)

	return nil
}

func (h *dmaBackend) Teardown(rec *device.Record) error {
	w := h.win(rec)
	w.Select(winOperating)
	w.out16(regCommand, cmdSetIntrEnb|0)
	w.out16(regCommand, cmdRxDisable)
	w.out16(regCommand, cmdTxDisable)

	w.Select(winBusMasterCmd)
	w.out32(offDownListPtr, 0)
	w.out32(offUpListPtr, 0)

	return nil
}

func (h *dmaBackend) CheckTXComplete(rec *device.Record) bool {
	txRing, ok := rec.TXRing.(*ring.Ring)
	return ok && txRing != nil && txRing.InUse() == 0
}

func (h *dmaBackend) CheckRXAvailable(rec *device.Record) bool {
	rxRing, ok := rec.RXRing.(*ring.Ring)
	return ok && rxRing != nil && rxRing.InUse() > 0
}

func (h *dmaBackend) SetStationAddress(rec *device.Record, addr device.Address) (bool, error) {
	w := h.win(rec)
	w.Select(winAddress)

	for i := 0; i < 3; i++ {
		w.out16(uint16(i*2), binary.LittleEndian.Uint16(addr[i*2:i*2+2]))
	}

	rec.Station = addr

	return true, nil
}
