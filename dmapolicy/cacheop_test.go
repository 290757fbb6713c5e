package dmapolicy

import (
	"testing"

	"github.com/go3com/pktdrv/device"
)

func TestWBINVDWriteBackIsDeferredInIRQ(t *testing.T) {
	q := NewQueue(nil)
	e := &Engine{Tier: device.TierWBINVD, Queue: q}

	buf := make([]byte, 64)

	if err := e.WriteBack(buf, FlagNone, true); err != nil {
		t.Fatalf("WriteBack: %v", err)
	}

	// The deferred op must land in the queue, never run inline, since
	// WBINVD is not safe to execute in hard-IRQ context.
	if q.Len() != 1 {
		t.Fatalf("queue length = %d, want 1 (op deferred, not run inline)", q.Len())
	}
}

func TestWBINVDWriteBackRunsInlineOutsideIRQ(t *testing.T) {
	q := NewQueue(nil)
	e := &Engine{Tier: device.TierWBINVD, Queue: q}

	if err := e.WriteBack(make([]byte, 64), FlagNone, false); err != nil {
		t.Fatalf("WriteBack: %v", err)
	}

	if q.Len() != 0 {
		t.Fatalf("queue length = %d, want 0 outside IRQ context", q.Len())
	}
}

func TestCLFLUSHRunsInlineEvenInIRQ(t *testing.T) {
	q := NewQueue(nil)
	e := &Engine{Tier: device.TierCLFLUSH, Queue: q}

	if err := e.WriteBack(make([]byte, 64), FlagNone, true); err != nil {
		t.Fatalf("WriteBack: %v", err)
	}

	if q.Len() != 0 {
		t.Fatalf("queue length = %d, want 0 (CLFLUSH need not defer)", q.Len())
	}
}

func TestTierNoneElidesFlush(t *testing.T) {
	q := NewQueue(nil)
	e := &Engine{Tier: device.TierNone, Queue: q}

	if err := e.WriteBack(make([]byte, 64), FlagNone, true); err != nil {
		t.Fatalf("WriteBack: %v", err)
	}
	if err := e.Invalidate(make([]byte, 64), FlagNone, true); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("queue length = %d, want 0 under TierNone", q.Len())
	}
}

func TestMapperFlagsElideFlush(t *testing.T) {
	q := NewQueue(nil)
	e := &Engine{Tier: device.TierCLFLUSH, Queue: q}

	if err := e.WriteBack(make([]byte, 64), FlagNoFlush, false); err != nil {
		t.Fatalf("WriteBack: %v", err)
	}
	if err := e.Invalidate(make([]byte, 64), FlagNoInvalidate, false); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
}

func TestQueueOverflowDropsWithoutBlocking(t *testing.T) {
	q := NewQueue(nil)

	for i := 0; i < deferredQueueCap+4; i++ {
		q.Append(Op{Dir: WriteBack, Bytes: nil})
	}

	if q.Len() != deferredQueueCap {
		t.Fatalf("queue length = %d, want capped at %d", q.Len(), deferredQueueCap)
	}
}

func TestDrainEmptiesQueueAndRunsEachOp(t *testing.T) {
	q := NewQueue(nil)
	q.Append(Op{Dir: WriteBack, Bytes: []byte("a")})
	q.Append(Op{Dir: Invalidate, Bytes: []byte("b")})

	var ran []Direction
	q.Drain(func(op Op) { ran = append(ran, op.Dir) })

	if q.Len() != 0 {
		t.Fatalf("queue length after Drain = %d, want 0", q.Len())
	}
	if len(ran) != 2 {
		t.Fatalf("ran %d ops, want 2", len(ran))
	}
}
