// VirtIO completion waiting strategies
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import "github.com/armvirt/tamago/virtio/verr"

// PollIterations bounds the polling completion loop. It is large enough
// to absorb a slow device under QEMU emulation without hanging a caller
// forever on a wedged queue.
const PollIterations = 1 << 20

// Completer waits for a submitted request to complete, either by
// spinning on the used ring or by waiting for an interrupt to set the
// shared InterruptState before draining it.
type Completer interface {
	Wait(q *VirtualQueue) ([]completion, error)
}

// PollCompleter waits by repeatedly invalidating and inspecting the used
// ring, with no reliance on interrupts.
type PollCompleter struct{}

// Wait implements Completer.
func (PollCompleter) Wait(q *VirtualQueue) ([]completion, error) {
	return q.WaitCompletion(PollIterations)
}

// InterruptCompleter waits on a shared InterruptState flag, draining the
// used ring once the IRQ handler has signalled activity.
type InterruptCompleter struct {
	State *InterruptState
}

// Wait implements Completer.
func (c InterruptCompleter) Wait(q *VirtualQueue) ([]completion, error) {
	if q.state == stateFailed {
		return nil, verr.New(verr.ProtocolViolation, "wait_completion", nil)
	}

	for i := 0; i < PollIterations; i++ {
		if !c.State.Received() {
			continue
		}

		completions, err := q.drain()
		if err != nil {
			return nil, err
		}

		if len(completions) > 0 {
			q.state = stateReady
			return completions, nil
		}
	}

	q.state = stateFailed

	return nil, verr.New(verr.Timeout, "wait_completion", nil)
}
