// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package intr

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/dmapolicy"
)

// RXBatch and TXBatch bound back-half work per device per pass (§4.4
// "Batching caps"). The spec calls these CPU-dependent (8-48); these are
// the defaults a conservative host picks.
const (
	DefaultRXBatch = 16
	DefaultTXBatch = 16
)

// Engine owns the shared-IRQ device group for one interrupt line, the
// bounded back-half queue, and the goroutine that drains it. It implements
// the front-half/back-half split of §4.4 using Go's runtime scheduler
// instead of a hand-rolled deferred-procedure-call table: the back-half
// goroutine blocks on a buffered channel exactly the way the hard-IRQ
// handler would schedule a bottom half, while staying idiomatic Go.
type Engine struct {
	PIC *Controller
	IRQ int

	RXBatch int
	TXBatch int

	// Chain is the previously installed handler for this line, invoked
	// when every device classifies NOT_OURS (§4.4 step 2, §8 boundary
	// behavior "shared-IRQ").
	Chain func()

	log *logrus.Entry

	mu      sync.Mutex
	devices []*device.Record

	// queue carries one wake-up signal per device that has pending,
	// uncoalesced events; pending holds the coalesced event bits
	// themselves, keyed by device, so two front-half hits for the same
	// device before BackHalf drains it merge into a single queue entry
	// instead of occupying two slots (§4.4 step 4).
	queue   chan *device.Record
	pending map[*device.Record]device.Events

	stopped chan struct{}
	once    sync.Once
}

// NewEngine constructs an Engine for one IRQ line. queueDepth should be one
// entry per device sharing the line (§4.4 step 4).
func NewEngine(pic *Controller, irq, queueDepth int, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if queueDepth < 1 {
		queueDepth = 1
	}

	e := &Engine{
		PIC:     pic,
		IRQ:     irq,
		RXBatch: DefaultRXBatch,
		TXBatch: DefaultTXBatch,
		log:     log,
		queue:   make(chan *device.Record, queueDepth),
		pending: make(map[*device.Record]device.Events),
		stopped: make(chan struct{}),
	}

	return e
}

// AddDevice registers a device as sharing this Engine's IRQ line.
func (e *Engine) AddDevice(rec *device.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = append(e.devices, rec)
}

// RemoveDevice undoes AddDevice (used by C5 teardown / unwind of stage 13).
func (e *Engine) RemoveDevice(rec *device.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, d := range e.devices {
		if d == rec {
			e.devices = append(e.devices[:i], e.devices[i+1:]...)
			break
		}
	}
}

// FrontHalf is the hard-IRQ handler (§4.4 "Front half"). It must complete in
// bounded time: it never allocates from the general pool and never blocks.
func (e *Engine) FrontHalf() {
	e.mu.Lock()
	devices := append([]*device.Record(nil), e.devices...)
	e.mu.Unlock()

	anyOurs := false

	for _, rec := range devices {
		ev, err := rec.Ops.InterruptAckAndClassify(rec)
		if err != nil || ev == device.EvNotOurs || ev == device.EvNone {
			continue
		}

		anyOurs = true
		e.schedule(rec, ev)
	}

	if !anyOurs {
		// §4.4 step 2 / §8 boundary: chain to the previously installed
		// handler without sending our EOI.
		if e.Chain != nil {
			e.Chain()
		}
		return
	}

	e.PIC.EOI(e.IRQ)
}

// schedule merges ev into rec's pending event bits and, if rec does not
// already have a queued wake-up, signals the back-half (§4.4 step 4). A
// second front-half hit for the same device before BackHalf drains the
// first is folded into the same pending entry rather than occupying a
// second queue slot, so the queue never needs more than one slot per
// device regardless of how many times a device interrupts between
// back-half passes.
func (e *Engine) schedule(rec *device.Record, ev device.Events) {
	e.mu.Lock()
	_, alreadyPending := e.pending[rec]
	e.pending[rec] |= ev
	e.mu.Unlock()

	if alreadyPending {
		return
	}

	select {
	case e.queue <- rec:
	default:
		// Unreachable in steady state: queue depth is one slot per
		// device and alreadyPending guards every device from holding
		// more than one slot at a time.
		e.log.WithField("irq", e.IRQ).Warn("intr: back-half queue full, dropping duplicate wake")
	}
}

// Run starts the back-half goroutine. It exits when Stop is called.
func (e *Engine) Run() {
	go func() {
		for {
			select {
			case rec := <-e.queue:
				e.backHalf(rec)
			case <-e.stopped:
				return
			}
		}
	}()
}

// Stop halts the back-half goroutine (§4.5 teardown).
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stopped) })
}

// backHalf drains one device's coalesced events by invoking its
// interrupt_handle (§4.4 "Back half"). The Engine's RXBatch/TXBatch fields
// are not passed to InterruptHandle; each hal back end applies its own
// DefaultRXBatch/DefaultTXBatch caps (the same values). The pending
// entry is cleared before the call so a front-half hit arriving during
// InterruptHandle starts a fresh coalesced entry instead of being lost.
// Once InterruptHandle returns, this is the outermost return from interrupt
// for rec, so any T-WBINVD op it deferred is drained here (§4.2).
func (e *Engine) backHalf(rec *device.Record) {
	e.mu.Lock()
	ev := e.pending[rec]
	delete(e.pending, rec)
	e.mu.Unlock()

	if err := rec.Ops.InterruptHandle(rec, ev); err != nil {
		e.log.WithError(err).WithField("device", rec.Index).Warn("intr: back-half handling failed")
	}

	if ce, ok := rec.CacheEngine.(*dmapolicy.Engine); ok && ce != nil {
		ce.DrainDeferred()
	}
}
