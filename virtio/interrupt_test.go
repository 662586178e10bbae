// VirtIO interrupt-driven completion tests
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import "testing"

// fakeIO stubs the VirtIO transport down to the single method
// HandleInterrupt relies on.
type fakeIO struct {
	buffer, config bool
}

func (f fakeIO) Init(features uint64) (err error)                { return nil }
func (f fakeIO) Config(size int) []byte                          { return nil }
func (f fakeIO) DeviceID() uint32                                { return 0 }
func (f fakeIO) DeviceFeatures() (features uint64)               { return 0 }
func (f fakeIO) NegotiatedFeatures() (features uint64)           { return 0 }
func (f fakeIO) MaxQueueSize(index int) int                      { return 0 }
func (f fakeIO) SetQueueSize(index int, n int)                   {}
func (f fakeIO) SetQueue(index int, queue *VirtualQueue) (err error) { return nil }
func (f fakeIO) SetReady()                                       {}
func (f fakeIO) QueueNotify(index int)                           {}
func (f fakeIO) Status() uint32                                  { return 0 }

func (f fakeIO) InterruptStatus() (buffer bool, config bool) {
	return f.buffer, f.config
}

func TestHandleInterruptSetsReceived(t *testing.T) {
	var s InterruptState

	s.HandleInterrupt(fakeIO{buffer: true})

	if !s.Received() {
		t.Fatal("expected Received to be true after a buffer interrupt")
	}
	if s.Received() {
		t.Fatal("Received should clear itself once read")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
	if s.Spurious() != 0 {
		t.Errorf("Spurious() = %d, want 0", s.Spurious())
	}
}

func TestHandleInterruptCountsSpurious(t *testing.T) {
	var s InterruptState

	s.HandleInterrupt(fakeIO{})

	if s.Received() {
		t.Fatal("spurious interrupt should not set Received")
	}
	if s.Spurious() != 1 {
		t.Errorf("Spurious() = %d, want 1", s.Spurious())
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestHandleInterruptConfigChange(t *testing.T) {
	var s InterruptState

	s.HandleInterrupt(fakeIO{config: true})

	if !s.Received() {
		t.Fatal("expected Received to be true after a config-change interrupt")
	}
	if s.Spurious() != 0 {
		t.Errorf("Spurious() = %d, want 0", s.Spurious())
	}
}
