// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dmapolicy

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/pkgerr"
)

// deferredQueueCap is the bounded depth of the deferred cache-op queue
// (§4.2 cache-maintenance contract: "bounded queue, 16 entries").
const deferredQueueCap = 16

// Direction states which half of the cache-maintenance contract an op
// performs.
type Direction int

const (
	WriteBack Direction = iota
	Invalidate
)

// Op is one deferred cache-maintenance request, queued from interrupt
// context and drained at the outermost ISR return.
type Op struct {
	Dir   Direction
	Bytes []byte
}

// Queue is the deferred cache-op queue of §4.2/§5: interrupt context may
// only append; the drain happens on the outermost return from interrupt.
// Overflow is logged and the op is skipped, matching §4.2's fallback.
type Queue struct {
	mu      sync.Mutex
	entries []Op
	log     *logrus.Entry
}

// NewQueue returns an empty deferred cache-op queue.
func NewQueue(log *logrus.Entry) *Queue {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Queue{log: log}
}

// Append enqueues an op from IRQ context. It never blocks and never runs
// the flush primitive itself (testable property 4).
func (q *Queue) Append(op Op) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= deferredQueueCap {
		q.log.WithFields(logrus.Fields{
			"cap": deferredQueueCap,
		}).Warn("dmapolicy: deferred cache-op queue overflow, skipping elision")
		return
	}

	q.entries = append(q.entries, op)
}

// Drain runs every queued op through fn (the real flush/invalidate
// primitive) and empties the queue. Callers must invoke Drain only outside
// interrupt context, at IRQ nesting depth zero (§5: "Nesting is tracked;
// drain occurs only at depth zero").
func (q *Queue) Drain(fn func(Op)) {
	q.mu.Lock()
	pending := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, op := range pending {
		fn(op)
	}
}

// Len reports the current queue depth, used by tests asserting overflow
// behavior.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Engine applies the cache-maintenance contract of §4.2 for one device: it
// elides flush/invalidate under Tier-None or mapper-asserted
// NO_FLUSH/NO_INVALIDATE flags, and refuses to run WBINVD or call the
// mapper from interrupt context.
type Engine struct {
	Tier  device.CacheTier
	Queue *Queue
}

// WriteBack performs (or defers) the pre-transmit cache writeback (§4.2:
// "Before posting a transmit descriptor... the buffer's cache lines are
// written back"). inIRQ must be true only when called from the front half.
func (e *Engine) WriteBack(buf []byte, flags MapFlags, inIRQ bool) error {
	if e.Tier == device.TierNone || flags&FlagNoFlush != 0 {
		return nil
	}

	if inIRQ {
		if e.Tier == device.TierWBINVD {
			e.Queue.Append(Op{Dir: WriteBack, Bytes: buf})
			return nil
		}
		// CLFLUSH and the software barrier are cheap enough to run
		// inline even in IRQ context; only WBINVD must be deferred.
	}

	return e.flush(buf, WriteBack)
}

// Invalidate performs (or defers) the pre-consume cache invalidate (§4.2).
func (e *Engine) Invalidate(buf []byte, flags MapFlags, inIRQ bool) error {
	if e.Tier == device.TierNone || flags&FlagNoInvalidate != 0 {
		return nil
	}

	if inIRQ && e.Tier == device.TierWBINVD {
		e.Queue.Append(Op{Dir: Invalidate, Bytes: buf})
		return nil
	}

	return e.flush(buf, Invalidate)
}

// DrainDeferred runs every op appended while T-WBINVD was in interrupt
// context through the same primitive flush uses, and empties the queue
// (§4.2: "processed on the outermost return from interrupt"). Callers must
// invoke this only outside interrupt context, the same rule Queue.Drain
// itself carries.
func (e *Engine) DrainDeferred() {
	if e.Queue == nil {
		return
	}
	e.Queue.Drain(func(op Op) {
		clflushOrBarrier(op.Bytes)
	})
}

// flush executes the tier-appropriate primitive. T-WBINVD must never be
// invoked with inIRQ true; enforced by callers routing it through Queue
// instead (testable property 4).
func (e *Engine) flush(buf []byte, dir Direction) error {
	switch e.Tier {
	case device.TierCLFLUSH, device.TierWBINVD, device.TierSoftwareBarrier:
		clflushOrBarrier(buf)
		return nil
	case device.TierNone:
		return nil
	default:
		return pkgerr.WithKind(errors.Errorf("dmapolicy: unknown cache tier %v", e.Tier), pkgerr.InvariantViolation)
	}
}
