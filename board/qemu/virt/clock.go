// QEMU virt support for tamago/arm64
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virt

// clock adapts the ARMv8 generic timer to the virtio.Clock boundary
// interface.
type clock struct{}

// Clock is the bound Clock instance.
var Clock = clock{}

// Ticks returns the current physical counter value.
func (clock) Ticks() uint64 {
	return ARM64.Counter()
}
