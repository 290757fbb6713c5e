package hal

import (
	"encoding/binary"
	"testing"

	"github.com/go3com/pktdrv/device"
	"github.com/go3com/pktdrv/internal/reg"
)

const testIOBase = 0x300

// newSimRecord builds a Device Record wired to a SimBus. No trap is
// installed: the shared command/status port reads back the last command
// written to it, so after the global-reset command (0x0000) the
// command-in-progress bit reads clear. Tests that need specific status bits
// install their own trap.
func newSimRecord() (*reg.SimBus, *device.Record) {
	bus := reg.NewSimBus()
	rec := &device.Record{IOBase: testIOBase, Station: device.Address{1, 2, 3, 4, 5, 6}}
	return bus, rec
}

func TestISAPIOResetClearsCommandInProgress(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	if err := h.Reset(rec); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if rec.RXRing != nil || rec.TXRing != nil {
		t.Fatal("expected Reset to clear any prior ring references")
	}
}

func TestISAPIOSendWritesLengthAndPayloadToFIFO(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	// Report plenty of TX FIFO room.
	bus.Trap(testIOBase+offTxFree, func(write bool, val uint32) uint32 { return 2000 })

	var fifo []byte
	bus.Trap(testIOBase+offFIFOData, func(write bool, val uint32) uint32 {
		if write {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], val)
			fifo = append(fifo, b[:]...)
		}
		return val
	})

	frame := []byte("loopback frame payload!!")
	if err := h.Send(rec, frame); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if rec.Stats.PacketsOut != 1 {
		t.Fatalf("PacketsOut = %d, want 1", rec.Stats.PacketsOut)
	}
	if rec.Stats.BytesOut != uint64(len(frame)) {
		t.Fatalf("BytesOut = %d, want %d", rec.Stats.BytesOut, len(frame))
	}

	// First four written bytes are the 32-bit length prefix.
	if binary.LittleEndian.Uint32(fifo[:4]) != uint32(len(frame)) {
		t.Fatalf("length prefix = %d, want %d", binary.LittleEndian.Uint32(fifo[:4]), len(frame))
	}
}

func TestISAPIOSendFailsWhenFIFOFull(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	bus.Trap(testIOBase+offTxFree, func(write bool, val uint32) uint32 { return 4 })

	if err := h.Send(rec, make([]byte, 64)); err == nil {
		t.Fatal("expected a resource-exhaustion error when the TX FIFO lacks room")
	}
}

func TestISAPIOPollReceiveDrainsAFrame(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	payload := []byte("AB") // 2 bytes, triggers the trailing-byte loop
	length := len(payload)

	bus.Trap(testIOBase+offRxStatus, func(write bool, val uint32) uint32 {
		return 0x8000 | uint32(length) // "complete", no error, given length
	})

	idx := 0
	bus.Trap(testIOBase+offFIFOData, func(write bool, val uint32) uint32 {
		if write {
			return val
		}
		b := payload[idx]
		idx++
		return uint32(b)
	})

	out := make([]byte, 64)
	n, err := h.PollReceive(rec, out)
	if err != nil {
		t.Fatalf("PollReceive: %v", err)
	}
	if n != length {
		t.Fatalf("n = %d, want %d", n, length)
	}
	if rec.Stats.PacketsIn != 1 {
		t.Fatalf("PacketsIn = %d, want 1", rec.Stats.PacketsIn)
	}
}

func TestISAPIOPollReceiveNothingQueued(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	bus.Trap(testIOBase+offRxStatus, func(write bool, val uint32) uint32 { return 0 })

	n, err := h.PollReceive(rec, make([]byte, 64))
	if err != nil {
		t.Fatalf("PollReceive: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0 when nothing is queued", n)
	}
}

func TestISAPIOInterruptAckAndClassifyMapsStatusBits(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	bus.Trap(testIOBase+regStatus, func(write bool, val uint32) uint32 {
		return uint32(stRxComplete | stTxComplete)
	})

	ev, err := h.InterruptAckAndClassify(rec)
	if err != nil {
		t.Fatalf("InterruptAckAndClassify: %v", err)
	}
	if ev&device.EvRXComplete == 0 || ev&device.EvTXComplete == 0 {
		t.Fatalf("events = %v, want RXComplete|TXComplete", ev)
	}
}

func TestISAPIOInterruptAckAndClassifyNotOurs(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	bus.Trap(testIOBase+regStatus, func(write bool, val uint32) uint32 { return 0 })

	ev, err := h.InterruptAckAndClassify(rec)
	if err != nil {
		t.Fatalf("InterruptAckAndClassify: %v", err)
	}
	if ev != device.EvNotOurs {
		t.Fatalf("events = %v, want EvNotOurs", ev)
	}
}

func TestISAPIOInterruptHandleDeliversDrainedFrame(t *testing.T) {
	bus, rec := newSimRecord()
	rec.Index = 7

	var gotIndex int
	var gotFrame []byte
	h := &isaPIO{bus: bus, deliver: func(devIndex int, frame []byte) {
		gotIndex = devIndex
		gotFrame = frame
	}}

	payload := []byte("AB")
	length := len(payload)

	bus.Trap(testIOBase+regStatus, func(write bool, val uint32) uint32 {
		return uint32(stRxComplete)
	})

	idx := 0

	// Report the frame until its bytes have been read out of the FIFO, then
	// report nothing queued so the batch loop stops.
	bus.Trap(testIOBase+offRxStatus, func(write bool, val uint32) uint32 {
		if idx >= length {
			return 0
		}
		return 0x8000 | uint32(length)
	})

	bus.Trap(testIOBase+offFIFOData, func(write bool, val uint32) uint32 {
		if write {
			return val
		}
		b := payload[idx]
		idx++
		return uint32(b)
	})

	ev, err := h.InterruptAckAndClassify(rec)
	if err != nil {
		t.Fatalf("InterruptAckAndClassify: %v", err)
	}

	if err := h.InterruptHandle(rec, ev); err != nil {
		t.Fatalf("InterruptHandle: %v", err)
	}

	if gotIndex != 7 {
		t.Fatalf("deliver devIndex = %d, want 7", gotIndex)
	}
	if string(gotFrame) != string(payload) {
		t.Fatalf("deliver frame = %q, want %q", gotFrame, payload)
	}
}

func TestISAPIOGetSetStationAddress(t *testing.T) {
	bus, rec := newSimRecord()
	h := &isaPIO{bus: bus}

	addr := device.Address{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	ok, err := h.SetStationAddress(rec, addr)
	if err != nil || !ok {
		t.Fatalf("SetStationAddress: ok=%v err=%v", ok, err)
	}

	if h.GetStationAddress(rec) != addr {
		t.Fatalf("GetStationAddress = %v, want %v", h.GetStationAddress(rec), addr)
	}
}
