// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dmapolicy implements C2, the DMA Policy Engine (§4.2): the gate
// ladder that decides, once per device at attach, whether a device uses
// PIO, direct DMA, common-buffer (bounced) DMA, or is forbidden from DMA
// entirely — plus the cache-coherency tier that decision implies.
package dmapolicy

import (
	"github.com/go3com/pktdrv/cpuid"
	"github.com/go3com/pktdrv/device"
)

// Mapper is the "virtual-DMA mapping service" of §4.2 gate 4: an
// environment-provided facility that translates a virtual buffer into a
// physical address safe for DMA, returning flags that tell the caller
// whether it still owns cache maintenance. Its absence under a virtualizing
// memory manager is what drives POLICY_FORBID.
type Mapper interface {
	Map(buf []byte) (phys uint64, flags MapFlags, err error)
	Unmap(phys uint64)
}

// MapFlags are returned by Mapper.Map (§4.2: "cache-maintenance
// responsibility via returned flags").
type MapFlags uint8

const (
	FlagNone         MapFlags = 0
	FlagNoFlush      MapFlags = 1 << 0
	FlagNoInvalidate MapFlags = 1 << 1
)

// Environment captures the platform facts the gate ladder needs besides the
// device itself (§4.5 stage 2: "Platform/execution-environment probe").
type Environment struct {
	CPU Info

	// Virtualized is true when the driver runs under a memory manager
	// that virtualizes physical addresses (§4.2 gate 4).
	Virtualized bool

	// Mapper is non-nil iff a virtual-DMA mapping service is exposed
	// under virtualization.
	Mapper Mapper

	// ForcePIO is the configuration-override gate (§4.2 gate 2): the
	// evaluated result of the user's force_busmaster/force_pio config
	// keys (see package config).
	ForcePIO bool

	// BusMasterSelfTestOK is the result of the gate-5 "tiny DMA
	// transfer" smoke test; nil means the test was not run (e.g.
	// PIO-only devices skip it per gate 1).
	BusMasterSelfTestOK *bool
}

// Info is a minimal CPU-capability view so this package does not need to
// import cpuid's /proc/cpuinfo parsing directly into its decision function,
// keeping Decide pure and unit-testable.
type Info = cpuid.Info

// Decide runs the gate ladder of §4.2 against a Device Record and returns
// the resulting policy and cache tier. It returns no 16 MiB ceiling: an ISA
// bus-master device carries that limit as its Cap16MiBLimit capability bit,
// which Decide leaves unchanged.
//
// Gates are evaluated in order; the first rejection wins, exactly as §4.2
// specifies.
func Decide(rec *device.Record, env Environment) (device.DMAPolicy, device.CacheTier) {
	tier := cacheTier(env.CPU)

	// Gate 1: device-class gate.
	if !rec.Capabilities.Has(device.CapBusMaster) {
		return device.PolicyPIO, tier
	}

	// Gate 2: configuration-override gate.
	if env.ForcePIO {
		return device.PolicyPIO, tier
	}

	// Gate 3: CPU capability gate.
	if env.CPU.Classify() == cpuid.ClassUnknown || env.CPU.Classify() == cpuid.Class386 {
		return device.PolicyPIO, tier
	}

	// Gate 4: execution-environment gate.
	if env.Virtualized {
		if env.Mapper == nil {
			return device.PolicyForbid, tier
		}
		return device.PolicyCommonBuffer, tier
	}

	// Gate 5: bus-master smoke test.
	if env.BusMasterSelfTestOK != nil && !*env.BusMasterSelfTestOK {
		return device.PolicyPIO, tier
	}

	// Gate 6: ISA 16 MiB-addressing gate is not a rejection and changes
	// nothing here; the device's Cap16MiBLimit bit, set from its
	// generation, is what makes hal allocate its buffers below 16 MiB.
	return device.PolicyDirect, tier
}

// cacheTier maps a CPU class to the coherency tier of §4.2.
func cacheTier(cpu Info) device.CacheTier {
	switch cpu.Classify() {
	case cpuid.ClassP4OrLater:
		return device.TierCLFLUSH
	case cpuid.Class486ToPentium:
		return device.TierWBINVD
	case cpuid.Class386:
		return device.TierSoftwareBarrier
	default:
		return device.TierNone
	}
}
