// First-fit memory allocator for DMA buffers
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dma provides primitives for direct memory allocation and
// alignment, it is primarily used in bare metal device driver operation to
// avoid passing Go pointers for DMA purposes.
//
// This package is only meant to be used with `GOOS=tamago` as supported by
// the TamaGo framework for bare metal Go, see
// https://github.com/armvirt/tamago.
package dma

import (
	"container/list"
	"errors"
	"unsafe"
)

// init sets up the free list for a freshly constructed region. When zero is
// true the underlying memory is cleared before being handed out, which
// matters for regions that back volatile queue state a device may read
// before the driver writes to it.
func (r *Region) init(zero bool) {
	r.Lock()
	defer r.Unlock()

	r.freeBlocks = list.New()
	r.freeBlocks.PushFront(&block{addr: r.start, size: r.size})
	r.usedBlocks = make(map[uint]*block)

	if zero {
		var mem []byte

		ptr := unsafe.Pointer(uintptr(r.start))
		mem = unsafe.Slice((*byte)(ptr), int(r.size))

		for i := range mem {
			mem[i] = 0
		}
	}
}

// NewRegion allocates and initializes a new DMA region of the given size
// starting at the given address. It is used to carve sub-regions (e.g. a
// device configuration window, a per-queue slot) out of a larger mapping
// without routing every access through the default global region.
func NewRegion(start uint, size int, zero bool) (r *Region, err error) {
	if size <= 0 {
		return nil, errors.New("invalid region size")
	}

	r = &Region{
		start: start,
		size:  uint(size),
	}

	r.init(zero)

	return
}

// Init initializes the global memory region for DMA buffer allocation, the
// application must guarantee that the passed memory range is never used by
// the Go runtime (defining runtime.ramStart and runtime.ramSize accordingly).
//
// The global region is used throughout the tamago package for all DMA
// allocations performed through the package level functions below. Separate
// DMA regions can be allocated in other areas by the application using
// NewRegion().
func Init(start uint, size int) {
	dma, _ = NewRegion(start, size, false)
}

// Reserve is the equivalent of Region.Reserve() on the global DMA region.
func Reserve(size int, align int) (addr uint, buf []byte) {
	return dma.Reserve(size, align)
}

// Reserved is the equivalent of Region.Reserved() on the global DMA region.
func Reserved(buf []byte) (res bool, addr uint) {
	return dma.Reserved(buf)
}

// Alloc is the equivalent of Region.Alloc() on the global DMA region.
func Alloc(buf []byte, align int) (addr uint) {
	return dma.Alloc(buf, align)
}

// Read is the equivalent of Region.Read() on the global DMA region.
func Read(addr uint, off int, buf []byte) {
	dma.Read(addr, off, buf)
}

// Write is the equivalent of Region.Write() on the global DMA region.
func Write(addr uint, off int, buf []byte) {
	dma.Write(addr, off, buf)
}

// Free is the equivalent of Region.Free() on the global DMA region.
func Free(addr uint) {
	dma.Free(addr)
}

// Release is the equivalent of Region.Release() on the global DMA region.
func Release(addr uint) {
	dma.Release(addr)
}
