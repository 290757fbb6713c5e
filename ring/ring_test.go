package ring

import (
	"testing"

	"github.com/go3com/pktdrv/dma"
)

func TestRingOwnershipInvariant(t *testing.T) {
	pool := dma.NewPool(0, 1<<20)

	r, err := New(16, 1536, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.PopulateReceive(); err != nil {
		t.Fatalf("PopulateReceive: %v", err)
	}

	for i := 0; i < r.Size(); i++ {
		d := r.At(i)
		if d.Owner != OwnerDevice {
			t.Fatalf("descriptor %d owned by %v after populate, want OwnerDevice (awaiting device fill)", i, d.Owner)
		}
	}

	// Device fills and completes descriptor 0, flipping ownership back.
	r.MarkDeviceDone(0, FlagNone)

	if r.At(0).Owner != OwnerDriver {
		t.Fatalf("descriptor 0 owner after MarkDeviceDone = %v, want OwnerDriver", r.At(0).Owner)
	}
}

func TestTransmitPostAndReap(t *testing.T) {
	pool := dma.NewPool(0, 1<<20)

	r, err := New(4, 1536, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := []byte("loopback test frame payload")

	d, err := r.PostTransmit(frame)
	if err != nil {
		t.Fatalf("PostTransmit: %v", err)
	}

	if d.Owner != OwnerDevice {
		t.Fatalf("posted descriptor owner = %v, want OwnerDevice", d.Owner)
	}

	if r.InUse() != 1 {
		t.Fatalf("InUse = %d, want 1", r.InUse())
	}

	// Device hasn't completed yet.
	if _, ok := r.ReapTransmit(); ok {
		t.Fatal("ReapTransmit succeeded before device released ownership")
	}

	r.MarkDeviceDone(0, FlagNone)

	reaped, ok := r.ReapTransmit()
	if !ok {
		t.Fatal("ReapTransmit failed after device released ownership")
	}

	if string(reaped.Bytes()) != string(frame) {
		t.Fatalf("reaped frame = %q, want %q", reaped.Bytes(), frame)
	}

	if r.InUse() != 0 {
		t.Fatalf("InUse after reap = %d, want 0", r.InUse())
	}
}

func TestTransmitRingFull(t *testing.T) {
	pool := dma.NewPool(0, 1<<20)

	r, err := New(2, 256, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := []byte("12345678")

	if _, err := r.PostTransmit(frame); err != nil {
		t.Fatalf("post 1: %v", err)
	}
	if _, err := r.PostTransmit(frame); err != nil {
		t.Fatalf("post 2: %v", err)
	}

	if _, err := r.PostTransmit(frame); err == nil {
		t.Fatal("expected ring-full error on third post to a depth-2 ring")
	}
}

func TestReceiveDrainAndRefill(t *testing.T) {
	pool := dma.NewPool(0, 1<<20)

	r, err := New(4, 64, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.PopulateReceive(); err != nil {
		t.Fatalf("PopulateReceive: %v", err)
	}

	copy(r.At(0).Bytes(), []byte("incoming frame data"))
	r.MarkDeviceDone(0, FlagEOF)

	frame, flags, ok := r.DrainReceive()
	if !ok {
		t.Fatal("DrainReceive returned ok=false for a device-released descriptor")
	}
	if flags&FlagEOF == 0 {
		t.Fatal("drained flags missing FlagEOF")
	}
	if string(frame[:19]) != "incoming frame data" {
		t.Fatalf("drained frame = %q", frame[:19])
	}

	// Slot should have been refilled with a fresh driver-owned buffer,
	// which from the device's perspective starts out "owned by device"
	// again (ready for the next inbound frame).
	if r.At(0).Owner != OwnerDevice {
		t.Fatalf("refilled slot owner = %v, want OwnerDevice (awaiting next device write)", r.At(0).Owner)
	}
}
