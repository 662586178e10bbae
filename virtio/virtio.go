// VirtIO driver
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package virtio implements a driver for paravirtualized I/O devices
// (VirtIO) over the MMIO transport, following reference specifications:
//   - Virtual I/O Device (VIRTIO) - Version 1.2
//
// Both the legacy (pre 1.0, page-frame-number addressed) and modern
// (split, separately addressed) queue layouts are supported, selected at
// runtime from the device's reported interface version.
//
// This package is only meant to be used with `GOOS=tamago` as supported by
// the TamaGo framework for bare metal Go, see
// https://github.com/armvirt/tamago.
package virtio

import (
	"github.com/armvirt/tamago/bits"
	"github.com/armvirt/tamago/internal/reg"
	"github.com/armvirt/tamago/virtio/verr"
)

// VirtIO MMIO device registers, offsets in bytes from the device base.
const (
	Magic             = 0x000
	Version           = 0x004
	DeviceID          = 0x008
	VendorID          = 0x00c
	DeviceFeatures    = 0x010
	DeviceFeaturesSel = 0x014
	DriverFeatures    = 0x020
	DriverFeaturesSel = 0x024
	GuestPageSize     = 0x028
	QueueSel          = 0x030
	QueueNumMax       = 0x034
	QueueNum          = 0x038
	QueueAlign        = 0x03c
	QueuePFN          = 0x040
	QueueReady        = 0x044
	QueueNotify       = 0x050
	InterruptStatus   = 0x060
	InterruptACK      = 0x064
	Status            = 0x070
	QueueDescLow      = 0x080
	QueueDescHigh     = 0x084
	QueueDriverLow    = 0x090
	QueueDriverHigh   = 0x094
	QueueDeviceLow    = 0x0a0
	QueueDeviceHigh   = 0x0a4
	ConfigGeneration  = 0x0fc
	Config            = 0x100
)

const (
	MAGIC = 0x74726976 // "virt"

	// LegacyVersion is the VERSION register value of a pre-1.0 device,
	// addressed through the single QUEUE_PFN register.
	LegacyVersion = 0x01
	// ModernVersion is the VERSION register value of a 1.0+ device,
	// addressed through separate desc/avail/used register pairs.
	ModernVersion = 0x02

	// LegacyPageSize is the page size a legacy device assumes when
	// interpreting QUEUE_PFN and QUEUE_ALIGN.
	LegacyPageSize = 0x1000
)

// Device Status bits.
const (
	Acknowledge      = 0
	Driver           = 1
	DriverOk         = 2
	FeaturesOk       = 3
	DeviceNeedsReset = 6
	Failed           = 7
)

// Reserved feature bits.
const (
	Version1         = 32
	Packed           = 34
	NotificationData = 38

	// device-specific bits, bits 0 to 23 and 50 to 63
	deviceSpecificFeatureMask = 0xfffc000000ffffff
	// reserved bits, bits 24 to 49
	deviceReservedFeatureMask = 0x0003ffffff000000
)

// SlotStride is the byte distance between consecutive device slots in a
// flat MMIO discovery region, as used by Probe.
const SlotStride = 0x200

// VirtIO represents a VirtIO device transport, abstracting over the
// legacy and modern queue addressing schemes.
type VirtIO interface {
	// Init resets the device and negotiates the given driver feature
	// bits against the device's advertised features.
	Init(features uint64) (err error)
	// Config returns a snapshot of the device configuration space.
	Config(size int) []byte
	// DeviceID returns the VirtIO subsystem device ID.
	DeviceID() uint32
	// DeviceFeatures returns the device's advertised feature bits.
	DeviceFeatures() (features uint64)
	// NegotiatedFeatures returns the feature bits accepted by both sides.
	NegotiatedFeatures() (features uint64)
	// MaxQueueSize returns the maximum virtual queue size for index.
	MaxQueueSize(index int) int
	// SetQueueSize sets the virtual queue size for index.
	SetQueueSize(index int, n int)
	// SetQueue registers queue for device access at index.
	SetQueue(index int, queue *VirtualQueue) (err error)
	// SetReady indicates that the driver is set up and ready to drive
	// the device.
	SetReady()
	// QueueNotify notifies the device that queue index can be processed.
	QueueNotify(index int)
	// InterruptStatus returns the interrupt status bits and acknowledges
	// them to the device.
	InterruptStatus() (buffer bool, config bool)
	// Status returns the raw device status register.
	Status() uint32
}

// Probe scans count device slots of slotSize bytes starting at base,
// returning the base address of the first slot whose MAGIC register
// reads 0x74726976 ("virt"), whose VERSION register is a recognized
// legacy or modern value, and whose DEVICE_ID register matches id.
//
// A DEVICE_ID of zero marks an unimplemented (empty) slot and is always
// skipped, independently of the requested id.
func Probe(base uint32, count int, slotSize uint32, id uint32) (addr uint32, err error) {
	for i := 0; i < count; i++ {
		slot := base + uint32(i)*slotSize

		if reg.Read(slot+Magic) != MAGIC {
			continue
		}

		switch reg.Read(slot + Version) {
		case LegacyVersion, ModernVersion:
		default:
			continue
		}

		devID := reg.Read(slot + DeviceID)

		if devID == 0 {
			continue
		}

		if devID == id {
			return slot, nil
		}
	}

	return 0, verr.New(verr.DeviceNotFound, "virtio.Probe", nil)
}

func negotiate(deviceFeatures, driverFeatures uint64) (features uint64) {
	features = deviceFeatures

	// clear unsupported features
	bits.Clear64(&features, Packed)
	bits.Clear64(&features, NotificationData)

	// keep all remaining reserved features, intersect device type
	// features with what the driver actually requested
	reserved := features & deviceReservedFeatureMask
	features &= deviceSpecificFeatureMask
	features &= driverFeatures
	features |= reserved

	return
}
