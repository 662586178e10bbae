// QEMU virt support for tamago/arm64
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package virt provides hardware initialization, automatically on import,
// for a QEMU "virt" machine configured with a single AArch64 core, a
// GICv3 interrupt controller and a PL011 console, as used to host the
// virtio-mmio block/FAT32 stack in this repository.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64`
// as supported by the TamaGo framework for bare metal Go, see
// https://github.com/armvirt/tamago.
package virt

import (
	"runtime"
	_ "unsafe"

	"github.com/armvirt/tamago/arm64"
	"github.com/armvirt/tamago/arm64/gic"
	"github.com/armvirt/tamago/dma"
	"github.com/armvirt/tamago/soc/arm/pl011"
	"github.com/armvirt/tamago/virtio"
)

// Peripheral registers, following the QEMU "virt" machine's default
// memory map (gicv3, no PCI, "virt" default flash/ram layout).
const (
	GICD_BASE = 0x08000000
	GICR_BASE = 0x080a0000

	UART0_BASE = 0x09000000

	// VIRTIO_MMIO_BASE is the start of the flat virtio-mmio discovery
	// region, 32 slots at SlotStride bytes apart.
	VIRTIO_MMIO_BASE = 0x0a000000
	VIRTIO_SLOTS     = 32

	// VIRTIO_IRQ_BASE is the SPI vector of the first virtio-mmio slot;
	// QEMU wires slot n to SPI 16+n (IRQ 48+n in GIC numbering).
	VIRTIO_IRQ_BASE = 48
)

// DMA layout: the queue arena is carved first, the general purpose
// region used for block request scratch buffers starts immediately
// above it so the two never overlap regardless of how many queues are
// opened.
const (
	queueArenaBase = 0x45000000
	maxQueues      = 4
	queueArenaSize = maxQueues * virtio.SlotSize

	dmaStart = queueArenaBase + queueArenaSize
	dmaSize  = 0x00100000 // 1MB of scratch buffers
)

// Peripheral instances
var (
	// ARM64 core
	ARM64 = &arm64.CPU{
		TimerMultiplier: 1,
	}

	// GICv3 interrupt controller
	GIC = &gic.GIC{
		GICD: GICD_BASE,
		GICR: GICR_BASE,
	}

	// Serial console
	UART0 = &pl011.UART{
		Base: UART0_BASE,
	}

	// DMA arena for virtqueue descriptor/avail/used memory
	QueueArena = virtio.NewArena(queueArenaBase)
)

//go:linkname ramStackOffset runtime.ramStackOffset
var ramStackOffset uint32 = 0x100

//go:linkname nanotime1 runtime.nanotime1
func nanotime1() int64 {
	return ARM64.GetTime()
}

// Init takes care of the lower level initialization triggered early in
// runtime setup (post World start).
//
//go:linkname Init runtime.hwinit1
func Init() {
	ramStart, _ := runtime.MemRegion()
	ARM64.Init(ramStart)
	ARM64.InitMMU()
	ARM64.EnableCache()

	ARM64.InitGenericTimers(0, 0)

	// initialize interrupt controller before enabling any vector
	GIC.Init()

	// initialize console
	UART0.Init()
}

func init() {
	// allocate the scratch region used for block request buffers,
	// disjoint from the queue arena carved out above
	dma.Init(dmaStart, dmaSize)
}
