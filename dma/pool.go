// Bounce / common-buffer pool for DMA-safe memory
// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the usbarmory/tamago dma package (dma/dma.go, dma/region.go,
// dma/alloc.go): the same first-fit free-list allocator, generalized into
// the "Bounce / Common Buffer Pool" of the core (§3): a single, small,
// pre-allocated, physically contiguous arena that DMA-capable back-ends
// draw buffers from when an application buffer is not itself DMA-safe.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dma implements the bounce/common-buffer pool used by C2's DMA
// policy engine and C4's descriptor rings: a bounded, linearly-searched set
// of physically contiguous buffers, each verified not to cross a 64 KiB
// physical page and, for ISA bus-master devices, to reside below 16 MiB.
package dma

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/internal/pkgerr"
)

const (
	// PageSize is the physical-boundary granularity no DMA buffer may cross
	// (§4.2 Scatter/gather & boundary rules, §8 invariant 6).
	PageSize = 1 << 16

	// ISA16MiB is the address ceiling for ISA bus-master devices (§8
	// invariant 7).
	ISA16MiB = 16 << 20

	// defaultAlign is the alignment tamago's enet ring also uses
	// (bufferAlign in soc/nxp/enet/dma.go) for descriptor and data buffers.
	defaultAlign = 64
)

// Descriptor is one bounce-pool entry: "{physical_addr, virtual_addr, size,
// in_use}" from §3's Bounce / Common Buffer Pool.
type Descriptor struct {
	Phys  uint64
	Bytes []byte
	inUse bool

	off  uint
	res  bool
}

// Size returns the descriptor's buffer length.
func (d *Descriptor) Size() int { return len(d.Bytes) }

// CrossesPage reports whether [phys, phys+size) spans two 64 KiB physical
// pages (§8 invariant 6: phys_base>>16 == (phys_base+length-1)>>16 must
// hold).
func CrossesPage(phys uint64, size int) bool {
	if size == 0 {
		return false
	}
	return phys>>16 != (phys+uint64(size)-1)>>16
}

// Within16MiB reports whether a mapping stays under the ISA bus-master
// ceiling (§8 invariant 7).
func Within16MiB(phys uint64, size int) bool {
	return phys+uint64(size) <= ISA16MiB
}

// Pool is the Bounce / Common Buffer Pool: a single, small, linearly
// searched arena of DMA-safe memory (§3: "typically <= 32 entries").
type Pool struct {
	mu sync.Mutex

	// physBase is the physical address the arena's offset 0 corresponds
	// to, standing in for wherever a real bus-master-addressable region
	// would be allocated; it lets CrossesPage/Within16MiB operate on
	// realistic addresses without the allocator needing raw physical
	// memory access.
	physBase uint64
	arena    []byte

	free *list.List
	used map[uint]*block
}

// NewPool allocates a pool backed by an arena of size bytes, addressed
// starting at physBase. Callers that need ISA 16 MiB compliance should pick
// a physBase+size that stays under ISA16MiB; NewISAPool does this for them.
func NewPool(physBase uint64, size int) *Pool {
	p := &Pool{
		physBase: physBase,
		arena:    make([]byte, size),
		free:     list.New(),
		used:     make(map[uint]*block),
	}

	p.free.PushFront(&block{off: 0, size: uint(size)})

	return p
}

// NewISAPool allocates a pool guaranteed to stay under the ISA bus-master
// 16 MiB addressing ceiling (§4.2 gate 6).
func NewISAPool(size int) *Pool {
	if size > ISA16MiB {
		size = ISA16MiB
	}
	return NewPool(0, size)
}

// Alloc reserves a DMA-safe buffer of the given size, copying buf's
// contents into it if buf is non-nil. The returned descriptor is guaranteed
// not to cross a 64 KiB physical page; Alloc pads past any block whose
// natural placement would cross one, mirroring the teacher allocator's
// alignment-padding behavior in dma/alloc.go but for page-crossing instead
// of power-of-two alignment.
func (p *Pool) Alloc(size int, buf []byte) (*Descriptor, error) {
	if size <= 0 {
		return nil, pkgerr.WithKind(errors.New("dma: zero-size allocation"), pkgerr.ProtocolMisuse)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.alloc(uint(size))
	if err != nil {
		return nil, err
	}

	p.used[b.off] = b

	d := &Descriptor{
		Phys:  p.physBase + uint64(b.off),
		Bytes: p.arena[b.off : b.off+b.size],
		off:   b.off,
		inUse: true,
	}

	if buf != nil {
		copy(d.Bytes, buf)
	}

	return d, nil
}

// Free returns a descriptor's buffer to the pool.
func (p *Pool) Free(d *Descriptor) {
	if d == nil || !d.inUse {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.used[d.off]
	if !ok {
		return
	}

	delete(p.used, d.off)
	d.inUse = false
	p.release(b)
}

// InUse returns the number of currently allocated descriptors, the
// left-hand side of §8 invariant 2 ("sum(in_use) == current in-flight
// mappings").
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.used)
}

func (p *Pool) alloc(size uint) (*block, error) {
	size = align(size, defaultAlign)

	for e := p.free.Front(); e != nil; e = e.Next() {
		cand := e.Value.(*block)

		if cand.size < size {
			continue
		}

		phys := p.physBase + uint64(cand.off)
		if CrossesPage(phys, int(size)) {
			// this block's natural placement crosses a 64 KiB page;
			// carve off just enough padding to push the allocation
			// past the boundary and retry against the remainder.
			pad := uint(PageSize - (phys % PageSize))

			if cand.size < pad+size {
				continue
			}

			padded := &block{off: cand.off, size: pad}
			cand.off += pad
			cand.size -= pad
			p.free.InsertBefore(padded, e)
		}

		if cand.size > size {
			rest := &block{off: cand.off + size, size: cand.size - size}
			p.free.InsertAfter(rest, e)
		}

		cand.size = size
		p.free.Remove(e)

		return cand, nil
	}

	return nil, pkgerr.WithKind(errors.Errorf("dma: pool exhausted (requested %d bytes)", size), pkgerr.ResourceExhaustion)
}

func (p *Pool) release(b *block) {
	for e := p.free.Front(); e != nil; e = e.Next() {
		cand := e.Value.(*block)

		if cand.off > b.off {
			p.free.InsertBefore(b, e)
			p.defrag()
			return
		}
	}

	p.free.PushBack(b)
	p.defrag()
}

func (p *Pool) defrag() {
	var prev *block

	for e := p.free.Front(); e != nil; {
		next := e.Next()
		cur := e.Value.(*block)

		if prev != nil && prev.off+prev.size == cur.off {
			prev.size += cur.size
			p.free.Remove(e)
		} else {
			prev = cur
		}

		e = next
	}
}

func align(size, a uint) uint {
	if r := size % a; r != 0 {
		size += a - r
	}
	return size
}
