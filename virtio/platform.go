// VirtIO platform boundary interfaces
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

// Console is the byte sink used for boot and diagnostic output. A board
// package binds it to a concrete UART.
type Console interface {
	WriteByte(b byte) error
}

// IRQController is the interrupt controller capability this package
// requires: vector registration, per-vector enable, and a global enable
// issued once bring-up has registered every handler. A board package
// binds it to its interrupt controller driver; this package never
// programs interrupt priority, routing or EOI directly.
type IRQController interface {
	Register(vector int, handler func())
	Enable(vector int)
	EnableAll()
}

// Clock reads the current time in architectural ticks, used by callers
// that need wall-clock timeouts rather than iteration-bounded polling.
type Clock interface {
	Ticks() uint64
}

// Bind registers an IRQ handler that feeds s from io's interrupt status
// and enables the vector. Callers still issue a single EnableAll once
// every device on the bus has been bound.
func (s *InterruptState) Bind(ic IRQController, vector int, io VirtIO) {
	ic.Register(vector, func() {
		s.HandleInterrupt(io)
	})
	ic.Enable(vector)
}
