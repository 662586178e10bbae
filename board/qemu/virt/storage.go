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
	"github.com/armvirt/tamago/fat32"
	"github.com/armvirt/tamago/virtio"
	"github.com/armvirt/tamago/virtio/block"
)

// Block is the discovered virtio-blk device, set by MountBlockDevice.
var Block *block.Device

// Volume is the mounted FAT32 filesystem on Block, set by Mount.
var Volume *fat32.Volume

// MountBlockDevice scans the virtio-mmio discovery region for a block
// device, completes the feature negotiation handshake, binds its
// request queue and returns the bound device. poll selects polling
// completion; pass false only after IRQ.EnableAll has run and the
// device's interrupt has been bound with an InterruptState.
func MountBlockDevice(poll bool) (dev *block.Device, err error) {
	io, err := virtio.Open(VIRTIO_MMIO_BASE, VIRTIO_SLOTS, virtio.SlotStride, block.DeviceID)
	if err != nil {
		return nil, err
	}

	dev, err = block.Open(io, QueueArena, ARM64, poll)
	if err != nil {
		return nil, err
	}

	Block = dev

	return dev, nil
}

// Mount discovers the block device and mounts its FAT32 volume.
func Mount() (v *fat32.Volume, err error) {
	dev, err := MountBlockDevice(true)
	if err != nil {
		return nil, err
	}

	v, err = fat32.Mount(dev)
	if err != nil {
		return nil, err
	}

	Volume = v

	return v, nil
}
