// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pktdrv is the public entry point (§6): a single dispatch surface
// implementing the Packet Driver Specification v1.11 function codes this
// core supports, backed by C1-C5's internal components.
package pktdrv

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/dma"
	"github.com/go3com/pktdrv/frame"
	"github.com/go3com/pktdrv/handle"
	"github.com/go3com/pktdrv/internal/pkgerr"
	"github.com/go3com/pktdrv/intr"
	"github.com/go3com/pktdrv/lifecycle"
	"github.com/go3com/pktdrv/metrics"
)

// Class and Type are the §6 function-1 "driver info" constants: this core
// only ever reports the Ethernet class.
const (
	ClassEthernet = 1
	TypeEthernet  = 1

	// Version is this core's Packet Driver Specification compliance
	// version, encoded the conventional major.minor way (§8 scenario 1:
	// "version>=0x0100").
	Version = 0x0100
)

// Driver is the process-wide singleton §9 describes: the attached-devices
// table, handle table, bounce pool, and readiness flag, exposed only
// through this narrow public surface.
type Driver struct {
	log *logrus.Entry

	orch    *lifecycle.Orchestrator
	handles *handle.Table
	pool    *dma.Pool
	metrics *metrics.Counters

	engines map[int]*intr.Engine // keyed by IRQ line

	txLimiter *rate.Limiter

	mu        sync.Mutex
	lastStats map[int]device.Stats
}

// New constructs a Driver around an Orchestrator whose bring-up is the
// caller's responsibility via lifecycle.Orchestrator.Run (§4.5's stage
// sequence; Driver itself only implements §6's dispatch). orch need not
// have run yet when New is called — every Driver method checks
// orch.Ready() itself — which lets a caller construct the Driver early
// enough to pass its Deliver method into C3's attach stage.
func New(orch *lifecycle.Orchestrator, handles *handle.Table, pool *dma.Pool, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Driver{
		log:       log,
		orch:      orch,
		handles:   handles,
		pool:      pool,
		metrics:   metrics.NewCounters(),
		engines:   make(map[int]*intr.Engine),
		txLimiter: rate.NewLimiter(rate.Every(0), 0), // not read by any method; retrySend paces with its own limiter
		lastStats: make(map[int]device.Stats),
	}
}

// notReady is returned by every call made before stage 15 completes (§5).
func (d *Driver) notReady() error {
	return pkgerr.WithKind(errors.New("pktdrv: driver not ready"), pkgerr.ProtocolMisuse)
}

// DriverInfo implements §6 function 1.
func (d *Driver) DriverInfo(ifIndex int) (version int, class int, typ int, name string, err error) {
	if !d.orch.Ready() {
		return 0, 0, 0, "", d.notReady()
	}

	if _, ok := d.orch.DeviceByIndex(ifIndex); !ok {
		return 0, 0, 0, "", pkgerr.WithKind(errors.Errorf("pktdrv: invalid interface %d", ifIndex), pkgerr.ProtocolMisuse)
	}

	return Version, ClassEthernet, TypeEthernet, "go3com pktdrv", nil
}

// AccessType implements §6 function 2: register for an Ethernet frame
// type, returning a new handle.
func (d *Driver) AccessType(ifIndex int, frameType int, cb handle.Callback) (handle.ID, error) {
	if !d.orch.Ready() {
		return 0, d.notReady()
	}

	devScope := handle.AnyDevice
	if ifIndex >= 0 {
		if _, ok := d.orch.DeviceByIndex(ifIndex); !ok {
			return 0, pkgerr.WithKind(errors.Errorf("pktdrv: invalid interface %d", ifIndex), pkgerr.ProtocolMisuse)
		}
		devScope = ifIndex
	}

	return d.handles.Register(handle.Entry{FrameType: frameType, Receiver: cb, Device: devScope})
}

// ReleaseType implements §6 function 3.
func (d *Driver) ReleaseType(h handle.ID) error {
	if !d.orch.Ready() {
		return d.notReady()
	}
	return d.handles.Release(h)
}

// SendPacket implements §6 function 4.
func (d *Driver) SendPacket(ifIndex int, data []byte) error {
	if !d.orch.Ready() {
		return d.notReady()
	}

	if err := frame.ValidateLength(len(data)); err != nil {
		return err
	}

	rec, ok := d.orch.DeviceByIndex(ifIndex)
	if !ok {
		return pkgerr.WithKind(errors.Errorf("pktdrv: invalid interface %d", ifIndex), pkgerr.ProtocolMisuse)
	}

	rec.Lock()
	defer rec.Unlock()

	err := rec.Ops.Send(rec, data)
	if err != nil && pkgerr.Is(err, pkgerr.TransientIO) {
		// Collision-class errors get a bounded, backed-off retry
		// (§4.4 "Transmit ring management": "may retry on transient
		// error (up to a small retry cap with backoff for
		// collision-class errors)").
		return d.retrySend(rec, data)
	}

	return err
}

const txRetryCap = 3

func (d *Driver) retrySend(rec *device.Record, data []byte) error {
	ctx := context.Background()
	limiter := rate.NewLimiter(rate.Limit(20), 1)

	var err error
	for i := 0; i < txRetryCap; i++ {
		if werr := limiter.Wait(ctx); werr != nil {
			break
		}
		if err = rec.Ops.Send(rec, data); err == nil {
			return nil
		}
		if !pkgerr.Is(err, pkgerr.TransientIO) {
			break
		}
	}

	return err
}

// Terminate implements §6 function 5.
func (d *Driver) Terminate(h handle.ID) error {
	if !d.orch.Ready() {
		return d.notReady()
	}
	return d.handles.Release(h)
}

// GetAddress implements §6 function 6.
func (d *Driver) GetAddress(h handle.ID) (device.Address, error) {
	if !d.orch.Ready() {
		return device.Address{}, d.notReady()
	}

	entry, ok := d.handles.Get(h)
	if !ok {
		return device.Address{}, pkgerr.WithKind(errors.New("pktdrv: bad handle"), pkgerr.ProtocolMisuse)
	}

	rec, ok := d.resolveDevice(entry)
	if !ok {
		return device.Address{}, pkgerr.WithKind(errors.New("pktdrv: handle has no concrete device"), pkgerr.ProtocolMisuse)
	}

	return rec.Ops.GetStationAddress(rec), nil
}

// ResetInterface implements §6 function 7.
func (d *Driver) ResetInterface(h handle.ID) error {
	if !d.orch.Ready() {
		return d.notReady()
	}

	entry, ok := d.handles.Get(h)
	if !ok {
		return pkgerr.WithKind(errors.New("pktdrv: bad handle"), pkgerr.ProtocolMisuse)
	}

	rec, ok := d.resolveDevice(entry)
	if !ok {
		return pkgerr.WithKind(errors.New("pktdrv: handle has no concrete device"), pkgerr.ProtocolMisuse)
	}

	rec.Lock()
	defer rec.Unlock()

	if err := rec.Ops.Reset(rec); err != nil {
		return err
	}

	return rec.Ops.Init(rec)
}

// SetReceiveMode implements §6 function 0x14.
func (d *Driver) SetReceiveMode(h handle.ID, mode device.ReceiveMode) error {
	if !d.orch.Ready() {
		return d.notReady()
	}

	entry, ok := d.handles.Get(h)
	if !ok {
		return pkgerr.WithKind(errors.New("pktdrv: bad handle"), pkgerr.ProtocolMisuse)
	}

	rec, ok := d.resolveDevice(entry)
	if !ok {
		return pkgerr.WithKind(errors.New("pktdrv: handle has no concrete device"), pkgerr.ProtocolMisuse)
	}

	rec.Lock()
	defer rec.Unlock()

	return rec.Ops.SetReceiveMode(rec, mode)
}

// GetReceiveMode implements §6 function 0x15.
func (d *Driver) GetReceiveMode(h handle.ID) (device.ReceiveMode, error) {
	if !d.orch.Ready() {
		return 0, d.notReady()
	}

	entry, ok := d.handles.Get(h)
	if !ok {
		return 0, pkgerr.WithKind(errors.New("pktdrv: bad handle"), pkgerr.ProtocolMisuse)
	}

	rec, ok := d.resolveDevice(entry)
	if !ok {
		return 0, pkgerr.WithKind(errors.New("pktdrv: handle has no concrete device"), pkgerr.ProtocolMisuse)
	}

	return rec.ReceiveMode, nil
}

// GetStatistics implements §6 function 0x18. The returned Stats is a deep
// copy, never the Device Record's live counters, so callers cannot observe
// or corrupt in-flight mutation (§3 Device Record: "mutated only under the
// per-device single-owner rule").
func (d *Driver) GetStatistics(h handle.ID) (device.Stats, error) {
	if !d.orch.Ready() {
		return device.Stats{}, d.notReady()
	}

	entry, ok := d.handles.Get(h)
	if !ok {
		return device.Stats{}, pkgerr.WithKind(errors.New("pktdrv: bad handle"), pkgerr.ProtocolMisuse)
	}

	rec, ok := d.resolveDevice(entry)
	if !ok {
		return device.Stats{}, pkgerr.WithKind(errors.New("pktdrv: handle has no concrete device"), pkgerr.ProtocolMisuse)
	}

	rec.Lock()
	defer rec.Unlock()

	var out device.Stats
	if err := deepCopyStats(&out, &rec.Stats); err != nil {
		return device.Stats{}, pkgerr.Wrap(err, pkgerr.InvariantViolation, "pktdrv: copy statistics")
	}

	return out, nil
}

// SetAddress implements §6 function 0x19.
func (d *Driver) SetAddress(h handle.ID, addr device.Address) error {
	if !d.orch.Ready() {
		return d.notReady()
	}

	entry, ok := d.handles.Get(h)
	if !ok {
		return pkgerr.WithKind(errors.New("pktdrv: bad handle"), pkgerr.ProtocolMisuse)
	}

	rec, ok := d.resolveDevice(entry)
	if !ok {
		return pkgerr.WithKind(errors.New("pktdrv: handle has no concrete device"), pkgerr.ProtocolMisuse)
	}

	rec.Lock()
	defer rec.Unlock()

	ok2, err := rec.Ops.SetStationAddress(rec, addr)
	if err != nil {
		return err
	}
	if !ok2 {
		return pkgerr.WithKind(errors.New("pktdrv: hardware refuses address change"), pkgerr.Capability)
	}

	return nil
}

// resolveDevice maps a handle entry's device scope to a concrete Device
// Record; a wildcard/any-device handle resolves to the first attached
// device, matching how single-NIC deployments (§8 scenarios 1-2) are
// expected to behave.
func (d *Driver) resolveDevice(e handle.Entry) (*device.Record, bool) {
	if e.Device != handle.AnyDevice {
		return d.orch.DeviceByIndex(e.Device)
	}

	fleet := d.orch.Fleet()
	if len(fleet) == 0 {
		return nil, false
	}

	return fleet[0], true
}

// Deliver is called by the back-half (via each Ops.InterruptHandle
// implementation, through a registered callback) for every frame drained
// from a receive ring. It performs the §4.4 "Handle dispatch": exact match
// preferred, wildcard fallback, drop on no match.
func (d *Driver) Deliver(devIndex int, data []byte) {
	etype, err := frame.EtherType(data)
	if err != nil {
		return
	}

	id, entry, ok := d.handles.Dispatch(devIndex, etype)
	if !ok {
		if rec, ok := d.orch.DeviceByIndex(devIndex); ok {
			rec.Stats.Lost++
		}
		return
	}

	if rec, ok := d.orch.DeviceByIndex(devIndex); ok {
		d.observeMetrics(devIndex, rec.Stats)
	}

	entry.Receiver(id, data)
}

// observeMetrics forwards the delta between a device's last-observed
// counters and its current ones to the Prometheus exporter (package
// metrics only knows how to add deltas, not set absolutes).
func (d *Driver) observeMetrics(devIndex int, cur device.Stats) {
	d.mu.Lock()
	prev := d.lastStats[devIndex]
	d.lastStats[devIndex] = cur
	d.mu.Unlock()

	d.metrics.Observe(devIndex, prev, cur)
}

// AttachEngine records e as the interrupt engine for irq. No other Driver
// method reads the recorded engines; Deliver and its metrics observation do
// not depend on them.
func (d *Driver) AttachEngine(irq int, e *intr.Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engines[irq] = e
}
