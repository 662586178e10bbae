// VirtIO interrupt-driven completion
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import "sync/atomic"

// InterruptState is the shared record an IRQ handler and the foreground
// communicate through. received and count are accessed with atomics so
// that the handler's writes and the foreground's reads cannot be
// reordered across the interrupt boundary, without requiring a lock that
// the handler (which must do constant-time work) cannot take.
type InterruptState struct {
	received uint32
	count    uint32
	spurious uint32
}

// HandleInterrupt is the IRQ handler body: read INTERRUPT_STATUS, write
// it back to INTERRUPT_ACK, record that something happened. It performs
// no ring manipulation; the foreground drains the used ring once it
// observes Received.
//
// Spurious interrupts, where status reads back zero (neither the
// used-buffer nor the configuration-change bit set), are counted
// separately and do not set Received.
func (s *InterruptState) HandleInterrupt(io VirtIO) {
	buffer, config := io.InterruptStatus()

	atomic.AddUint32(&s.count, 1)

	if !buffer && !config {
		atomic.AddUint32(&s.spurious, 1)
		return
	}

	atomic.StoreUint32(&s.received, 1)
}

// Received reports whether an interrupt has arrived since the previous
// call, and clears the flag as it reads it.
func (s *InterruptState) Received() bool {
	return atomic.SwapUint32(&s.received, 0) != 0
}

// Count returns the total number of interrupts observed, spurious or
// not.
func (s *InterruptState) Count() uint32 {
	return atomic.LoadUint32(&s.count)
}

// Spurious returns the number of interrupts observed with an empty
// status register.
func (s *InterruptState) Spurious() uint32 {
	return atomic.LoadUint32(&s.spurious)
}
