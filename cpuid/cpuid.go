// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from intel-PerfSpect's internal/cpudb family/model/stepping
// lookup: the same idea of matching a small reference table against
// /proc/cpuinfo-reported fields, narrowed from "which microarchitecture is
// this" to just the handful of generations C2's CPU-capability gate (§4.2
// gate 3) needs to distinguish: pre-bus-mastering-safe CPUs, CLFLUSH-capable
// CPUs, and everything between.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package cpuid identifies the host CPU's family/model and the cache
// maintenance instructions it offers, read from /proc/cpuinfo in the style
// of sandia-minimega's use of c9s/goprocinfo.
package cpuid

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/internal/pkgerr"
)

// Class buckets the CPU generations relevant to the DMA policy gate ladder
// (§4.2 gate 3 and cache tier selection).
type Class int

const (
	ClassUnknown Class = iota
	Class386                 // software-barrier tier only, no bus-mastering safety margin
	Class486ToPentium         // WBINVD tier
	ClassP4OrLater            // CLFLUSH tier
)

// Info is the subset of /proc/cpuinfo fields the policy engine and cpuid
// table lookup need.
type Info struct {
	VendorID string
	Family   int
	Model    int
	Flags    map[string]bool
}

// HasCLFLUSH reports whether the CPU exposes the CLFLUSH instruction.
func (i Info) HasCLFLUSH() bool { return i.Flags["clflush"] }

// HasCX8 reports whether the CPU exposes CMPXCHG8B, a rough proxy the
// reference table uses for "Pentium-class or later."
func (i Info) HasCX8() bool { return i.Flags["cx8"] }

// Classify buckets Info into a Class for §4.2 gate 3 and cache-tier
// selection, the same family/model-driven lookup cpudb.GetCPU performs,
// simplified to a three-way split instead of a full microarchitecture
// database since policy only cares about these boundaries.
func (i Info) Classify() Class {
	switch {
	case i.HasCLFLUSH():
		return ClassP4OrLater
	case i.HasCX8():
		return Class486ToPentium
	case i.Family >= 3:
		return Class386
	default:
		return ClassUnknown
	}
}

// Detect parses /proc/cpuinfo for the first logical CPU's identification
// fields (§4.5 stage 1: "CPU feature detection").
func Detect() (Info, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return Info{}, pkgerr.Wrap(err, pkgerr.Configuration, "cpuid: open /proc/cpuinfo")
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads cpuinfo-formatted text, used directly by Detect and by tests
// that substitute a canned fixture instead of the real file.
func Parse(r io.Reader) (Info, error) {
	info := Info{Flags: make(map[string]bool)}
	seenFamily := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" && seenFamily {
			break // first processor block only
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		switch key {
		case "vendor_id":
			info.VendorID = val
		case "cpu family":
			info.Family, _ = strconv.Atoi(val)
			seenFamily = true
		case "model":
			info.Model, _ = strconv.Atoi(val)
		case "flags", "Features":
			for _, flag := range strings.Fields(val) {
				info.Flags[flag] = true
			}
		}
	}

	if err := sc.Err(); err != nil {
		return Info{}, pkgerr.Wrap(err, pkgerr.Configuration, "cpuid: scan cpuinfo")
	}

	if !seenFamily {
		return Info{}, pkgerr.WithKind(errors.New("cpuid: no processor block found"), pkgerr.Configuration)
	}

	return info, nil
}
