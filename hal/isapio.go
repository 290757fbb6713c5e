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
	"github.com/go3com/pktdrv/internal/pkgerr"
	"github.com/go3com/pktdrv/internal/reg"
)

// Window 1 (operating window) register offsets for the PIO data path.
const (
	offFIFOData   = 0x00
	offRxStatus   = 0x08
	offTimer      = 0x0a
	offTxStatus   = 0x0b
	offTxFree     = 0x0c
)

// isaPIO implements device.Ops for the ISA_PIO_10 generation (§9: earliest
// 10 Mbps ISA family, no bus-master capability at all — §4.2 gate 1 routes
// every such device straight to POLICY_PIO).
type isaPIO struct {
	bus reg.Bus

	// deliver is the handle-table dispatch hook InterruptHandle calls for
	// every frame drained off the FIFO; nil means drain-and-count only.
	deliver DeliverFunc
}

// NewISAPIO returns the operations vtable for ISA_PIO_10 devices.
func NewISAPIO(bus reg.Bus, deliver DeliverFunc) device.Ops {
	return &isaPIO{bus: bus, deliver: deliver}
}

func (h *isaPIO) Init(rec *device.Record) error {
	if err := h.Reset(rec); err != nil {
		return err
	}

	w := newWindow(h.bus, rec, false)

	w.Select(winAddress)
	addr := rec.Station
	for i := 0; i < 3; i++ {
		w.out16(uint16(i*2), binary.LittleEndian.Uint16(addr[i*2:i*2+2]))
	}

	if err := rec.Ops.SetReceiveMode(rec, device.RXDirect|device.RXBroadcast); err != nil {
		return err
	}

	w.Select(winOperating)
	w.out16(regCommand, cmdSetIntrEnb|statusIntMask)
	w.out16(regCommand, cmdSetStatusEnb|statusIntMask)
	w.out16(regCommand, cmdRxEnable)
	w.out16(regCommand, cmdTxEnable)

	return nil
}

func (h *isaPIO) Reset(rec *device.Record) error {
	w := newWindow(h.bus, rec, false)

	w.Select(winConfig)
	w.out16(regCommand, cmdGlobalReset)

	if !waitBit(w.status, stCmdInProgress, false, defaultTimeout) {
		return pkgerr.WithKind(errors.New("hal: isapio reset timed out"), pkgerr.HardwareTimeout)
	}

	w.out16(regCommand, cmdAckIntr|0x7ff)

	rec.RXRing = nil
	rec.TXRing = nil

	return nil
}

func (h *isaPIO) Send(rec *device.Record, frame []byte) error {
	w := newWindow(h.bus, rec, false)
	w.Select(winOperating)

	if w.in16(offTxFree) < uint16(len(frame)+4) {
		return pkgerr.WithKind(errors.New("hal: isapio tx fifo full"), pkgerr.ResourceExhaustion)
	}

	length := len(frame)
	w.out32(offFIFOData, uint32(length))

	for len(frame) >= 4 {
		w.out32(offFIFOData, binary.LittleEndian.Uint32(frame))
		frame = frame[4:]
	}
	for _, b := range frame {
		w.out8(offFIFOData, b)
	}

	rec.Stats.PacketsOut++
	rec.Stats.BytesOut += uint64(length)

	return nil
}

func (h *isaPIO) PollReceive(rec *device.Record, out []byte) (int, error) {
	w := newWindow(h.bus, rec, false)
	w.Select(winOperating)

	st := w.in16(offRxStatus)
	if st&0x8000 == 0 { // "incomplete" bit clear means nothing queued in this model
		return 0, nil
	}

	length := int(st & 0x07ff)
	if st&0x4000 != 0 { // error bit
		w.out16(regCommand, cmdRxDiscardTop)
		rec.Stats.ErrorsIn++
		return 0, pkgerr.WithKind(errors.New("hal: isapio bad frame"), pkgerr.TransientIO)
	}

	if length > len(out) {
		length = len(out)
	}

	n := 0
	for n+4 <= length {
		binary.LittleEndian.PutUint32(out[n:], w.in32(offFIFOData))
		n += 4
	}
	for n < length {
		out[n] = w.in8(offFIFOData)
		n++
	}

	w.out16(regCommand, cmdRxDiscardTop)

	rec.Stats.PacketsIn++
	rec.Stats.BytesIn += uint64(length)

	return length, nil
}

func (h *isaPIO) InterruptAckAndClassify(rec *device.Record) (device.Events, error) {
	w := newWindow(h.bus, rec, false)

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

func (h *isaPIO) InterruptHandle(rec *device.Record, ev device.Events) error {
	if ev&device.EvRXComplete != 0 {
		buf := make([]byte, 1518)
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

	if ev&device.EvAdapterFailure != 0 {
		return h.Reset(rec)
	}

	if ev&device.EvLinkChange != 0 {
		rec.Link = device.LinkUp
	}

	return nil
}

// DefaultRXBatch has the same value as intr.DefaultRXBatch; package hal does
// not import package intr.
const DefaultRXBatch = 16

func (h *isaPIO) GetStationAddress(rec *device.Record) device.Address { return rec.Station }

func (h *isaPIO) SetReceiveMode(rec *device.Record, mode device.ReceiveMode) error {
	w := newWindow(h.bus, rec, false)
	prior := rec.CurrentWindow

	w.Select(winFilter)
	w.out16(regCommand, cmdSetRxFilter|uint16(rxFilterFor(uint8(mode))))
	rec.ReceiveMode = mode

	w.Select(prior)

	return nil
}

func (h *isaPIO) Teardown(rec *device.Record) error {
	w := newWindow(h.bus, rec, false)
	w.Select(winOperating)
	w.out16(regCommand, cmdSetIntrEnb|0)
	w.out16(regCommand, cmdRxDisable)
	w.out16(regCommand, cmdTxDisable)
	return nil
}

func (h *isaPIO) CheckTXComplete(rec *device.Record) bool { return false }
func (h *isaPIO) CheckRXAvailable(rec *device.Record) bool {
	w := newWindow(h.bus, rec, false)
	return w.in16(offRxStatus)&0x8000 != 0
}

func (h *isaPIO) SetStationAddress(rec *device.Record, addr device.Address) (bool, error) {
	w := newWindow(h.bus, rec, false)
	w.Select(winAddress)

	for i := 0; i < 3; i++ {
		w.out16(uint16(i*2), binary.LittleEndian.Uint16(addr[i*2:i*2+2]))
	}

	rec.Station = addr

	return true, nil
}
