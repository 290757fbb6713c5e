// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package lifecycle implements C5, the Lifecycle Orchestrator (§4.5): the
// 15-stage ordered bring-up sequence with strict reverse-order rollback on
// any stage failure.
package lifecycle

import mapset "github.com/deckarep/golang-set/v2"

// Stage identifies one of the 15 ordered bring-up stages (§4.5).
type Stage int

const (
	StageCPUFeatureDetection Stage = iota + 1
	StagePlatformProbe
	StageConfigExtraction
	StageChipsetDetection
	StageMappingServiceInit
	StageCoreMemoryInit
	StageFrameOpsInit
	StageDeviceAttach
	StageDMAPoolAllocation
	StageBackHalfScheduling
	StageRelocation
	StageVectorInstall
	StageIRQBind
	StageIRQUnmask
	StageActivate
)

// stageCount is the total number of stages, used to size iteration.
const stageCount = int(StageActivate)

func (s Stage) String() string {
	names := [...]string{
		"",
		"cpu-feature-detection",
		"platform-probe",
		"config-extraction",
		"chipset-detection",
		"mapping-service-init",
		"core-memory-init",
		"frame-ops-init",
		"device-attach",
		"dma-pool-allocation",
		"back-half-scheduling",
		"relocation",
		"vector-install",
		"irq-bind",
		"irq-unmask",
		"activate",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

// StageSet is the Stage Bit-set of §3/§8 invariant 5/8: which stages have
// completed. Backed by a generic set instead of a raw bitmask so the
// orchestrator's stage bookkeeping reads the same way the rest of the
// pack's higher-level collections do.
type StageSet struct {
	done mapset.Set[Stage]
}

// NewStageSet returns an empty Stage Bit-set.
func NewStageSet() *StageSet {
	return &StageSet{done: mapset.NewThreadUnsafeSet[Stage]()}
}

// Mark records a stage as complete.
func (s *StageSet) Mark(stage Stage) { s.done.Add(stage) }

// Unmark clears a stage's complete bit, performed by unwind as each stage's
// rollback action finishes.
func (s *StageSet) Unmark(stage Stage) { s.done.Remove(stage) }

// Complete reports whether a stage is marked complete.
func (s *StageSet) Complete(stage Stage) bool { return s.done.Contains(stage) }

// IsZero reports whether no stage is marked — the post-teardown
// expectation of §8 invariant 8 ("Unwind completeness").
func (s *StageSet) IsZero() bool { return s.done.Cardinality() == 0 }

// HighestComplete returns the highest-numbered complete stage, or 0 if
// none. Orchestrator's unwind does not call it; it walks its registered
// steps in reverse.
func (s *StageSet) HighestComplete() Stage {
	highest := Stage(0)
	for stage := StageActivate; stage >= StageCPUFeatureDetection; stage-- {
		if s.Complete(stage) {
			highest = stage
			break
		}
	}
	return highest
}
