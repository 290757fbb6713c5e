package hal

import (
	"testing"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/reg"
)

func TestBindSelectsGenerationBackend(t *testing.T) {
	bus := reg.NewSimBus()

	gens := []device.Generation{
		device.ISAPIO10,
		device.ISABusmaster100,
		device.PCIVortex,
		device.PCIBoomerang,
		device.PCICyclone,
		device.PCITornado,
		device.CardBus,
		device.MiniPCI,
	}

	for _, gen := range gens {
		ops, err := Bind(gen, device.PolicyDirect, bus, nil)
		if err != nil {
			t.Fatalf("Bind(%v): %v", gen, err)
		}
		if ops == nil {
			t.Fatalf("Bind(%v) returned a nil Ops", gen)
		}
	}
}

func TestBindForcesISAPIOUnderPIOPolicyRegardlessOfGeneration(t *testing.T) {
	bus := reg.NewSimBus()

	ops, err := Bind(device.PCIVortex, device.PolicyPIO, bus, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	if _, ok := ops.(*isaPIO); !ok {
		t.Fatalf("Bind with PolicyPIO = %T, want *isaPIO", ops)
	}
}

func TestBindRejectsUnknownGeneration(t *testing.T) {
	bus := reg.NewSimBus()

	if _, err := Bind(device.Generation(99), device.PolicyDirect, bus, nil); err == nil {
		t.Fatal("expected Bind to reject an unknown generation")
	}
}

func TestFastPathEligible(t *testing.T) {
	cases := []struct {
		ev   device.Events
		want bool
	}{
		{device.EvRXComplete, true},
		{device.EvTXComplete, true},
		{device.EvRXComplete | device.EvTXComplete, true},
		{device.EvNone, true},
		{device.EvLinkChange, false},
		{device.EvAdapterFailure, false},
		{device.EvRXComplete | device.EvLinkChange, false},
	}

	for _, c := range cases {
		if got := FastPathEligible(c.ev); got != c.want {
			t.Errorf("FastPathEligible(%v) = %v, want %v", c.ev, got, c.want)
		}
	}
}
