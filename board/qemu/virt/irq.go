// QEMU virt support for tamago/arm64
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virt

import (
	"github.com/armvirt/tamago/arm64"
)

// maxVector bounds the registered-handler table; QEMU's virt machine
// never raises an SPI past the virtio-mmio IRQ range this board uses.
const maxVector = 128

var handlers [maxVector]func()

// irqController adapts the GICv3 driver to the virtio.IRQController
// boundary interface, keeping interrupt priority, routing and EOI
// entirely inside the GIC driver: this package only registers handlers
// and toggles per-vector delivery.
type irqController struct{}

// IRQ is the bound IRQController instance.
var IRQ = irqController{}

// Register installs handler for vector, replacing any previous one.
func (irqController) Register(vector int, handler func()) {
	if vector < 0 || vector >= maxVector {
		panic("virt: interrupt vector out of range")
	}

	handlers[vector] = handler
}

// Enable forwards vector to the CPU interface.
func (irqController) Enable(vector int) {
	GIC.EnableInterrupt(vector)
}

// EnableAll unmasks IRQ delivery at the CPU and starts the dispatch
// loop, dispatching each acknowledged interrupt to its registered
// handler (if any) and otherwise dropping it silently, matching the
// spurious-interrupt handling already performed at the VirtIO status
// register level.
func (irqController) EnableAll() {
	go arm64.ServiceInterrupts(dispatch)
}

func dispatch() {
	id := GIC.GetInterrupt()

	if id < 0 || id >= maxVector || handlers[id] == nil {
		return
	}

	handlers[id]()
}
