// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command pktdrv-demo wires C1 through C5 end to end against a simulated
// bus instead of real silicon, so the full probe -> classify -> policy ->
// bind -> activate -> send/receive -> teardown path can be exercised
// without I/O-privilege level 3 or an actual 3Com card. It plants one
// simulated PCI Tornado function on the fake bus, runs bring-up, sends a
// frame, and drives a teardown, printing each stage's outcome.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/go3com/pktdrv/config"
	"github.com/go3com/pktdrv/cpuid"
	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/dma"
	"github.com/go3com/pktdrv/dmapolicy"
	"github.com/go3com/pktdrv/frame"
	"github.com/go3com/pktdrv/hal"
	"github.com/go3com/pktdrv/handle"
	"github.com/go3com/pktdrv/internal/reg"
	"github.com/go3com/pktdrv/lifecycle"
	"github.com/go3com/pktdrv/pci"
	"github.com/go3com/pktdrv/pktdrv"
)

// plantTornado wires a SimBus's CONFIG_ADDRESS/CONFIG_DATA ports to a
// minimal configuration space holding one 3c905C Tornado function at bus
// 0, slot 4, matching the historical device ID in pci/identify.go. The
// (bus,slot,fn,offset) decode mirrors pci.Device.address/Read.
func plantTornado(bus *reg.SimBus, ioBase uint16) {
	const (
		slot     = 4
		deviceID = 0x9200 // 3c905C Tornado
	)

	regs := make(map[[4]uint32]uint32)
	put := func(off uint32, val uint32) { regs[[4]uint32{0, slot, 0, off &^ 0x3}] = val }

	put(pci.VendorID, uint32(deviceID)<<16|uint32(pci.VendorID3Com))
	put(pci.HeaderType, 0) // single-function
	put(pci.Bar0, uint32(ioBase)|0x1) // I/O-space BAR

	var lastAddr uint32

	bus.Trap(pci.ConfigAddress, func(write bool, val uint32) uint32 {
		if write {
			lastAddr = val
		}
		return lastAddr
	})

	bus.Trap(pci.ConfigData, func(write bool, val uint32) uint32 {
		b := (lastAddr >> 16) & 0xff
		s := (lastAddr >> 11) & 0x1f
		fn := (lastAddr >> 8) & 0x7
		off := lastAddr & 0xfc
		key := [4]uint32{b, s, fn, off}

		if write {
			regs[key] = val
			return val
		}
		return regs[key]
	})
}

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	log.Logger.SetLevel(logrus.InfoLevel)

	const demoIOBase = 0x6000

	bus := reg.NewSimBus()
	plantTornado(bus, demoIOBase)

	cpu, err := cpuid.Parse(bytes.NewBufferString("flags\t: fpu vme de pse tsc msr pae mce cx8 apic sep mtrr pge mca cmov clflush\n"))
	if err != nil {
		fatal(log, "cpu feature detection", err)
	}

	found := pci.DiscoverEtherLinkIII(bus)
	if len(found) == 0 {
		fatal(log, "chipset detection", fmt.Errorf("no EtherLink III device found on simulated bus"))
	}

	orch := lifecycle.New(log)
	pool := dma.NewPool(0, 1<<20)
	handles := handle.NewTable(64)
	drv := pktdrv.New(orch, handles, pool, log)

	var fleet []*device.Record
	var opts *config.Options

	noop := func() error { return nil }

	orch.AddStage(lifecycle.StageCPUFeatureDetection, noop, noop)
	orch.AddStage(lifecycle.StagePlatformProbe, noop, noop)

	orch.AddStage(lifecycle.StageConfigExtraction,
		func() error {
			var err error
			opts, err = config.Parse(bytes.NewBufferString(
				"log_level=info\ninterfaces.eth0.io_base=0x6000\ninterfaces.eth0.irq=11\nforce_pio=false\n",
			))
			return err
		},
		noop,
	)

	orch.AddStage(lifecycle.StageChipsetDetection,
		func() error {
			for i, f := range found {
				fleet = append(fleet, &device.Record{
					Index:        i,
					Generation:   f.Generation,
					IOBase:       uint16(f.Device.BaseAddress(0)),
					IRQ:          11,
					Capabilities: f.Generation.DefaultCapabilities(),
				})
			}
			return nil
		},
		func() error { fleet = nil; return nil },
	)

	orch.AddStage(lifecycle.StageMappingServiceInit, noop, noop)
	orch.AddStage(lifecycle.StageCoreMemoryInit, noop, noop)
	orch.AddStage(lifecycle.StageFrameOpsInit, noop, noop)

	orch.AddStage(lifecycle.StageDeviceAttach,
		func() error {
			forcePIO, err := opts.Bool("force_pio")
			if err != nil {
				return err
			}

			for _, rec := range fleet {
				policy, tier := dmapolicy.Decide(rec, dmapolicy.Environment{CPU: cpu, ForcePIO: forcePIO})
				rec.Policy = policy
				rec.CacheTier = tier

				ops, err := hal.Bind(rec.Generation, rec.Policy, bus, drv.Deliver)
				if err != nil {
					return err
				}
				rec.Ops = ops

				orch.AddDevice(rec)
			}
			return nil
		},
		func() error {
			for _, rec := range fleet {
				orch.RemoveDevice(rec)
			}
			return nil
		},
	)

	orch.AddStage(lifecycle.StageDMAPoolAllocation,
		func() error {
			for _, rec := range fleet {
				if err := rec.Ops.Init(rec); err != nil {
					return err
				}
			}
			return nil
		},
		func() error {
			for _, rec := range fleet {
				if err := rec.Ops.Teardown(rec); err != nil {
					log.WithError(err).Warn("teardown during unwind")
				}
			}
			return nil
		},
	)

	orch.AddStage(lifecycle.StageBackHalfScheduling, noop, noop)
	orch.AddStage(lifecycle.StageRelocation, noop, noop)
	orch.AddStage(lifecycle.StageVectorInstall, noop, noop)
	orch.AddStage(lifecycle.StageIRQBind, noop, noop)
	orch.AddStage(lifecycle.StageIRQUnmask, noop, noop)
	orch.AddStage(lifecycle.StageActivate, noop, noop)

	if err := orch.Run(); err != nil {
		fatal(log, "bring-up", err)
	}
	log.Info("bring-up complete, driver ready")

	rx := make(chan []byte, 1)
	h, err := drv.AccessType(0, 0x0800, func(_ handle.ID, f []byte) { rx <- f })
	if err != nil {
		fatal(log, "access-type registration", err)
	}

	dst := device.Address{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	src := device.Address{0x00, 0xa0, 0x24, 0x11, 0x22, 0x33}

	payload, err := frame.Build(dst, src, 0x0800, []byte("pktdrv-demo"))
	if err != nil {
		fatal(log, "frame assembly", err)
	}

	if err := drv.SendPacket(0, payload); err != nil {
		log.WithError(err).Warn("send failed")
	} else {
		log.Info("frame queued for transmit")
	}

	stats, err := drv.GetStatistics(h)
	if err == nil {
		log.WithField("packets_out", stats.PacketsOut).Info("post-send statistics")
	}

	orch.Teardown()
	log.Info("teardown complete")
}

func fatal(log *logrus.Entry, stage string, err error) {
	log.WithError(err).Errorf("%s failed", stage)
	os.Exit(1)
}
