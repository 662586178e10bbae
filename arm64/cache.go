// ARM64 processor support
// https://github.com/armvirt/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

// CacheLineSize is the data cache line length, in bytes, for the supported
// Cortex-A cores. Cache maintenance by address must be issued once per line.
const CacheLineSize = 64

// defined in cache.s
func cache_enable()
func cache_disable()
func dc_cvac(addr uint64)
func dc_ivac(addr uint64)
func dmb_sy()

// EnableCache activates the ARM instruction and data caches.
func (cpu *CPU) EnableCache() {
	cache_enable()
}

// DisableCache disables the ARM instruction and data caches.
func (cpu *CPU) DisableCache() {
	cache_disable()
}

// FlushTLBs flushes the ARM Translation Lookaside Buffers.
func (cpu *CPU) FlushTLBs() {
	flush_tlb()
}

// alignRange rounds addr/size down/up to CacheLineSize boundaries, cache
// maintenance by address operates on whole lines and otherwise corrupts
// neighbouring data.
func alignRange(addr uint64, size int) (start uint64, end uint64) {
	start = addr &^ (CacheLineSize - 1)
	end = (addr + uint64(size) + CacheLineSize - 1) &^ (CacheLineSize - 1)
	return
}

// CleanRange writes back (DC CVAC) the data cache lines covering [addr,
// addr+size) to the point of coherency, without invalidating them. It must
// be issued before a buffer is handed off to a DMA capable device, so that
// the device observes values written by the CPU rather than stale memory.
func (cpu *CPU) CleanRange(addr uint64, size int) {
	start, end := alignRange(addr, size)

	for a := start; a < end; a += CacheLineSize {
		dc_cvac(a)
	}

	DataMemoryBarrier()
}

// InvalidateRange discards (DC IVAC) the data cache lines covering [addr,
// addr+size), forcing the next load to fetch from memory. It must be issued
// after a DMA capable device has written a buffer, so that the CPU does not
// read back values it cached before the transfer completed.
func (cpu *CPU) InvalidateRange(addr uint64, size int) {
	start, end := alignRange(addr, size)

	for a := start; a < end; a += CacheLineSize {
		dc_ivac(a)
	}

	DataMemoryBarrier()
}

// DataMemoryBarrier issues a full system data memory barrier (DMB SY),
// ordering all prior memory accesses against all subsequent ones across all
// observers. It is used to separate descriptor and index writes from the
// notification that makes them visible to a device, and vice versa.
func DataMemoryBarrier() {
	dmb_sy()
}
