// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// The PageMapMapper virtual-to-physical resolution technique (reading the
// 64-bit PFN entry for a virtual page out of /proc/self/pagemap) is adapted
// from periph.io/x/periph's host/pmem package (pagemap.go ReadPageMap):
// the same seek-to-page-index-then-read-eight-bytes approach, generalized
// from that package's general-purpose physical memory mapper to the
// virtual-DMA mapping service Mapper models (§4.2 gate 4).
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dmapolicy

import (
	"encoding/binary"
	"os"
	"sync"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/dma"
	"github.com/go3com/pktdrv/internal/pkgerr"
)

// NullMapper is the Mapper used on an unvirtualized host (§4.2 gate 4,
// POLICY_DIRECT): there is no guest-to-host translation to perform, so every
// Map just bounces the caller's buffer through a *dma.Pool arena and returns
// its real physical address, leaving the driver with full cache-maintenance
// responsibility over the bounce buffer (§4.2: Mapper.Map "returning flags
// that tell the caller whether it still owns cache maintenance" — NullMapper
// always says yes, via FlagNone).
type NullMapper struct {
	pool *dma.Pool

	mu   sync.Mutex
	live map[uint64]*dma.Descriptor
}

// NewNullMapper wraps an existing bounce pool as a Mapper.
func NewNullMapper(pool *dma.Pool) *NullMapper {
	return &NullMapper{pool: pool, live: make(map[uint64]*dma.Descriptor)}
}

func (m *NullMapper) Map(buf []byte) (uint64, MapFlags, error) {
	d, err := m.pool.Alloc(len(buf), buf)
	if err != nil {
		return 0, FlagNone, err
	}

	m.mu.Lock()
	m.live[d.Phys] = d
	m.mu.Unlock()

	return d.Phys, FlagNone, nil
}

func (m *NullMapper) Unmap(phys uint64) {
	m.mu.Lock()
	d, ok := m.live[phys]
	delete(m.live, phys)
	m.mu.Unlock()

	if ok {
		m.pool.Free(d)
	}
}

// pagemapEntrySize is the width of one /proc/self/pagemap entry.
const pagemapEntrySize = 8

// pagePresentBit marks a present page in a pagemap entry; see
// https://www.kernel.org/doc/Documentation/vm/pagemap.txt.
const pagePresentBit = uint64(1) << 63

// pfnMask keeps bits 0-54, the physical frame number, clearing the
// soft-dirty/exclusive/present/swap flag bits above it.
const pfnMask = uint64(1)<<55 - 1

// PageMapMapper is the Mapper used under virtualization (§4.2 gate 4,
// POLICY_COMMON_BUFFER) when the host exposes a real translation path: it
// resolves a buffer's physical address directly from the kernel's page
// tables via /proc/self/pagemap instead of bouncing it through a pool.
// Zero-copy, but the mapping service becomes the sole owner of cache
// maintenance going forward, since the driver never touched a copy it could
// flush or invalidate on its own (§4.2: "mapping service dictating
// cache-maintenance responsibility via returned flags").
type PageMapMapper struct {
	mu   sync.Mutex
	file *os.File
}

// NewPageMapMapper opens /proc/self/pagemap for this process. It is
// Linux-specific; callers on other platforms should fall back to NullMapper.
func NewPageMapMapper() (*PageMapMapper, error) {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return nil, pkgerr.Wrap(err, pkgerr.Configuration, "dmapolicy: open pagemap")
	}
	return &PageMapMapper{file: f}, nil
}

func (m *PageMapMapper) Map(buf []byte) (uint64, MapFlags, error) {
	if len(buf) == 0 {
		return 0, FlagNone, pkgerr.WithKind(errors.New("dmapolicy: empty buffer"), pkgerr.ProtocolMisuse)
	}

	vaddr := uintptr(unsafe.Pointer(&buf[0]))
	pageSize := uintptr(os.Getpagesize())
	page := vaddr / pageSize
	offset := uint64(vaddr % pageSize)

	var entry [pagemapEntrySize]byte

	m.mu.Lock()
	_, err := m.file.ReadAt(entry[:], int64(page)*pagemapEntrySize)
	m.mu.Unlock()
	if err != nil {
		return 0, FlagNone, pkgerr.Wrap(err, pkgerr.HardwareTimeout, "dmapolicy: read pagemap")
	}

	raw := binary.LittleEndian.Uint64(entry[:])
	if raw&pagePresentBit == 0 {
		return 0, FlagNone, pkgerr.WithKind(errors.New("dmapolicy: page not resident"), pkgerr.ResourceExhaustion)
	}

	phys := (raw&pfnMask)*uint64(pageSize) + offset

	return phys, FlagNoFlush | FlagNoInvalidate, nil
}

func (m *PageMapMapper) Unmap(phys uint64) {}

// Close releases the open pagemap file descriptor.
func (m *PageMapMapper) Close() error { return m.file.Close() }
