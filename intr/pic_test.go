package intr

import (
	"testing"

	"github.com/go3com/pktdrv/internal/reg"
)

func TestEOIMasterOnlyBelowIRQ8(t *testing.T) {
	bus := reg.NewSimBus()
	c := &Controller{Bus: bus}

	c.EOI(3)

	if bus.In8(MasterCommand) != eoiCommand {
		t.Fatal("expected master EOI command to be issued for IRQ < 8")
	}
}

func TestEOIMasterAndSlaveAboveIRQ8(t *testing.T) {
	bus := reg.NewSimBus()
	c := &Controller{Bus: bus}

	c.EOI(11)

	if bus.In8(MasterCommand) != eoiCommand {
		t.Fatal("expected master EOI for a cascaded IRQ")
	}
	if bus.In8(SlaveCommand) != eoiCommand {
		t.Fatal("expected slave EOI for a cascaded IRQ")
	}
}

func TestMaskUnmaskMasterLine(t *testing.T) {
	bus := reg.NewSimBus()
	c := &Controller{Bus: bus}

	c.Mask(3)
	if bus.In8(MasterData)&(1<<3) == 0 {
		t.Fatal("expected bit 3 set in the master data register after Mask(3)")
	}

	c.Unmask(3)
	if bus.In8(MasterData)&(1<<3) != 0 {
		t.Fatal("expected bit 3 cleared in the master data register after Unmask(3)")
	}
}

func TestMaskUnmaskSlaveLine(t *testing.T) {
	bus := reg.NewSimBus()
	c := &Controller{Bus: bus}

	c.Mask(10)
	if bus.In8(SlaveData)&(1<<2) == 0 {
		t.Fatal("expected bit 2 set in the slave data register after Mask(10)")
	}

	c.Unmask(10)
	if bus.In8(SlaveData)&(1<<2) != 0 {
		t.Fatal("expected bit 2 cleared in the slave data register after Unmask(10)")
	}
}
