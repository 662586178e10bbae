// VirtIO device and queue bring-up
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import (
	"errors"

	"github.com/armvirt/tamago/arm64"
	"github.com/armvirt/tamago/internal/reg"
	"github.com/armvirt/tamago/virtio/verr"
)

// Open probes the MMIO discovery region for a device of the given
// class id, and returns the matching transport bound to it, selecting
// the legacy or modern implementation according to the device's
// reported interface version.
//
// slots and slotSize describe the discovery region per §4.5; callers
// pass the conventional 32 slots at 0x200 byte stride unless the board
// documents otherwise.
func Open(base uint32, slots int, slotSize uint32, class uint32) (io VirtIO, err error) {
	addr, err := Probe(base, slots, slotSize, class)
	if err != nil {
		return nil, err
	}

	switch v := reg.Read(addr + Version); v {
	case LegacyVersion:
		return &Legacy{Base: addr}, nil
	case ModernVersion:
		return &Modern{Base: addr}, nil
	default:
		return nil, verr.New(verr.BadVersion, "virtio.Open", nil)
	}
}

// OpenQueue runs the init(device, device_queue_index) -> queue contract:
// select the queue, read and cap its maximum size, lay it out in the
// arena slot reserved for queueID, publish its addresses to the device,
// mark it ready, and select polling or interrupt notification.
func OpenQueue(io VirtIO, arena *Arena, queueID int, poll bool, cpu *arm64.CPU) (q *VirtualQueue, err error) {
	max := io.MaxQueueSize(queueID)
	if max == 0 {
		return nil, verr.New(verr.QueueInitFailed, "virtio.OpenQueue", errors.New("queue_max_zero"))
	}

	size := max
	if size > MaxQueueSize {
		size = MaxQueueSize
	}

	io.SetQueueSize(queueID, size)

	_, legacy := io.(*Legacy)

	q = newQueue(queueID, size, arena.Slot(queueID), legacy, cpu)
	q.SetPolling(poll)

	if err = io.SetQueue(queueID, q); err != nil {
		return nil, err
	}

	q.clean()
	q.state = stateReady

	return q, nil
}
