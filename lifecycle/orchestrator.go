// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/exception"
	"github.com/go3com/pktdrv/internal/pkgerr"
)

// StageFunc runs a stage's forward action.
type StageFunc func() error

// RollbackFunc releases exactly what the matching StageFunc acquired (§4.5
// "Unwind contract").
type RollbackFunc func() error

// step pairs a stage with its forward and rollback actions.
type step struct {
	stage    Stage
	forward  StageFunc
	rollback RollbackFunc
}

// Orchestrator owns the stage sequence, the fleet of attached devices, and
// the public-entry readiness flag (§4.5, §5 "Application / send context").
// No other component is permitted to add or remove from the fleet.
type Orchestrator struct {
	log    *logrus.Entry
	stages *StageSet
	steps  []step

	mu    sync.Mutex
	fleet []*device.Record

	ready int32 // atomic; gates the public entry point (§5)
}

// New returns an orchestrator with an empty stage list; call AddStage for
// each of the 15 stages in order before calling Run.
func New(log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{log: log, stages: NewStageSet()}
}

// AddStage registers a stage's forward/rollback pair. Stages must be added
// in ascending Stage order, since Run and unwind both rely on registration
// order to derive execution and rollback order; a caller that gets this
// wrong has a bug in its own wiring, not a recoverable runtime condition, so
// it is reported via exception.Throw rather than an error return.
func (o *Orchestrator) AddStage(stage Stage, forward StageFunc, rollback RollbackFunc) {
	for _, st := range o.steps {
		if st.stage == stage {
			exception.Throw("lifecycle: stage registered twice")
		}
		if st.stage > stage {
			exception.Throw("lifecycle: stages registered out of ascending order")
		}
	}

	o.steps = append(o.steps, step{stage: stage, forward: forward, rollback: rollback})
}

// Run executes every registered stage in order. On the first failure, it
// unwinds every completed stage in strict reverse order (§4.5) and returns
// the original error, annotated with the failing stage.
func (o *Orchestrator) Run() error {
	for _, st := range o.steps {
		o.log.WithField("stage", st.stage).Debug("lifecycle: running stage")

		if err := st.forward(); err != nil {
			o.log.WithError(err).WithField("stage", st.stage).Warn("lifecycle: stage failed, unwinding")
			o.unwind()
			return pkgerr.Wrapf(err, pkgerr.KindOf(err), "lifecycle: stage %s failed", st.stage)
		}

		o.stages.Mark(st.stage)
	}

	if !o.stages.Complete(StageActivate) {
		return pkgerr.WithKind(errors.New("lifecycle: activate stage did not run"), pkgerr.InvariantViolation)
	}

	atomic.StoreInt32(&o.ready, 1)

	return nil
}

// unwind rolls back every completed stage from highest to lowest (§4.5,
// §8 invariant 8).
func (o *Orchestrator) unwind() {
	for i := len(o.steps) - 1; i >= 0; i-- {
		st := o.steps[i]

		if !o.stages.Complete(st.stage) {
			continue
		}

		if st.rollback != nil {
			if err := st.rollback(); err != nil {
				o.log.WithError(err).WithField("stage", st.stage).Error("lifecycle: rollback failed")
			}
		}

		o.stages.Unmark(st.stage)
	}
}

// Teardown runs the full reverse-order unwind unconditionally — the
// operator-requested shutdown path, as opposed to Run's failure-triggered
// unwind.
func (o *Orchestrator) Teardown() {
	atomic.StoreInt32(&o.ready, 0)
	o.unwind()
}

// Ready reports whether stage 15 has completed and teardown has not yet run
// (§5: "calls before readiness return a driver not ready error").
func (o *Orchestrator) Ready() bool { return atomic.LoadInt32(&o.ready) == 1 }

// StageComplete exposes stage completion for tests asserting §8 invariant 5
// ("Relocation-before-install: stage 11 completes before stage 12 begins").
func (o *Orchestrator) StageComplete(s Stage) bool { return o.stages.Complete(s) }

// Stages exposes the Stage Bit-set for §8 invariant 8 assertions.
func (o *Orchestrator) Stages() *StageSet { return o.stages }

// AddDevice adds rec to the fleet — only C5 (via the device-attach stage)
// may call this (§4.5 "No other component modifies the attached set").
func (o *Orchestrator) AddDevice(rec *device.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec.MarkAttached(true)
	o.fleet = append(o.fleet, rec)
}

// RemoveDevice removes rec from the fleet (teardown of an individual
// device, or a per-device capability failure that must not affect peers —
// §8 end-to-end scenario 3).
func (o *Orchestrator) RemoveDevice(rec *device.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, d := range o.fleet {
		if d == rec {
			o.fleet = append(o.fleet[:i], o.fleet[i+1:]...)
			break
		}
	}
	rec.MarkAttached(false)
}

// Fleet returns a snapshot of the attached-devices table.
func (o *Orchestrator) Fleet() []*device.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*device.Record(nil), o.fleet...)
}

// DeviceByIndex looks up a fleet member by its stable device index.
func (o *Orchestrator) DeviceByIndex(idx int) (*device.Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, d := range o.fleet {
		if d.Index == idx {
			return d, true
		}
	}
	return nil, false
}
