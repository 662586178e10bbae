// VirtIO DMA arena
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import (
	"github.com/armvirt/tamago/dma"
)

// SlotSize is the fixed size of a single queue's DMA arena slot.
const SlotSize = 0x10000

// Arena carves a fixed high-address window into per-queue slots, so that
// each virtqueue's descriptor table, available ring and used ring live at
// a predictable, identity-mapped address independent of the general DMA
// heap used for scratch buffers.
type Arena struct {
	base uint
}

// NewArena returns an Arena rooted at base. The caller is responsible for
// ensuring base..base+n*SlotSize does not overlap any other DMA region,
// including the default general purpose region used by dma.Alloc.
func NewArena(base uint) *Arena {
	return &Arena{base: base}
}

// Slot returns the base address of the arena slot reserved for queueID.
func (a *Arena) Slot(queueID int) uint {
	return a.base + uint(queueID)*SlotSize
}

// reserve carves a size-byte, align-byte aligned region out of the given
// slot at the given byte offset, returning a byte slice view backed
// directly by that physical memory.
//
// Unlike the general dma.Region allocator this does not track freed
// space: arena slots are assigned 1:1 to queues at init and never
// reused, so there is nothing to free.
func reserve(slot uint, offset uint, size int, align int) (addr uint, buf []byte) {
	addr = slot + offset

	if align > 0 {
		if rem := addr % uint(align); rem != 0 {
			addr += uint(align) - rem
		}
	}

	r, err := dma.NewRegion(addr, size, true)
	if err != nil {
		return addr, make([]byte, size)
	}

	_, buf = r.Reserve(size, 0)

	return
}
