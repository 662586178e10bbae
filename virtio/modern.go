// VirtIO MMIO transport, modern (split address) queue layout
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

	"github.com/armvirt/tamago/bits"
	"github.com/armvirt/tamago/internal/reg"
	"github.com/armvirt/tamago/virtio/verr"
)

// Modern represents a VirtIO 1.0+ MMIO device, whose queue is addressed
// through three independently published 64-bit addresses.
type Modern struct {
	// Base is the device's MMIO base address.
	Base uint32

	features uint64
	config   []byte
}

func (io *Modern) statusHandshake(bit int, op string) (err error) {
	reg.Set(io.Base+Status, bit)

	if !reg.IsSet(io.Base+Status, bit) {
		return verr.New(verr.NegotiationRejected, op, nil)
	}

	return nil
}

// Init resets the device and runs the feature negotiation handshake
// defined for the modern interface: ACKNOWLEDGE, DRIVER, read device
// features, negotiate, write driver features, FEATURES_OK.
func (io *Modern) Init(driverFeatures uint64) (err error) {
	if io.Base == 0 || reg.Read(io.Base+Magic) != MAGIC {
		return verr.New(verr.BadMagic, "virtio.Modern.Init", nil)
	}

	if reg.Read(io.Base+Version) != ModernVersion {
		return verr.New(verr.BadVersion, "virtio.Modern.Init", nil)
	}

	reg.Write(io.Base+Status, 0x0)

	reg.Set(io.Base+Status, Acknowledge)
	reg.Set(io.Base+Status, Driver)

	io.features = negotiate(io.DeviceFeatures(), driverFeatures|(1<<Version1))
	io.setDriverFeatures(io.features)

	return io.statusHandshake(FeaturesOk, "virtio.Modern.Init")
}

// Config returns a snapshot of the device configuration space.
func (io *Modern) Config(size int) (config []byte) {
	if io.config == nil {
		for i := 0; i < size; i++ {
			io.config = append(io.config, byte(reg.Get(io.Base+uint32(Config+i), 0, 0xff)))
		}
	}

	config = make([]byte, size)
	copy(config, io.config)

	return
}

// DeviceID returns the VirtIO subsystem device ID.
func (io *Modern) DeviceID() uint32 {
	return reg.Read(io.Base + DeviceID)
}

// DeviceFeatures returns the device's advertised feature bits, read
// through the two 32-bit windows selected by DEVICE_FEATURES_SEL.
func (io *Modern) DeviceFeatures() (features uint64) {
	for i := uint32(0); i <= 1; i++ {
		reg.Write(io.Base+DeviceFeaturesSel, i)
		features |= uint64(reg.Read(io.Base+DeviceFeatures)) << (i * 32)
	}

	return
}

func (io *Modern) setDriverFeatures(features uint64) {
	for i := uint32(0); i <= 1; i++ {
		reg.Write(io.Base+DriverFeaturesSel, i)
		reg.Write(io.Base+DriverFeatures, uint32(features>>(i*32)))
	}
}

// NegotiatedFeatures returns the feature bits accepted by both sides.
func (io *Modern) NegotiatedFeatures() (features uint64) {
	return io.features
}

// MaxQueueSize returns the maximum virtual queue size for index.
func (io *Modern) MaxQueueSize(index int) int {
	reg.Write(io.Base+QueueSel, uint32(index))
	return int(reg.Read(io.Base + QueueNumMax))
}

// SetQueueSize sets the virtual queue size for index.
func (io *Modern) SetQueueSize(index int, n int) {
	reg.Write(io.Base+QueueSel, uint32(index))
	reg.Write(io.Base+QueueNum, uint32(n))
}

// SetQueue publishes queue's three component addresses and marks it
// ready, failing if the device does not latch QUEUE_READY.
func (io *Modern) SetQueue(index int, queue *VirtualQueue) (err error) {
	desc, avail, used := queue.Address()

	reg.Write(io.Base+QueueSel, uint32(index))
	reg.Write(io.Base+QueueDescLow, uint32(desc))
	reg.Write(io.Base+QueueDescHigh, uint32(uint64(desc)>>32))
	reg.Write(io.Base+QueueDriverLow, uint32(avail))
	reg.Write(io.Base+QueueDriverHigh, uint32(uint64(avail)>>32))
	reg.Write(io.Base+QueueDeviceLow, uint32(used))
	reg.Write(io.Base+QueueDeviceHigh, uint32(uint64(used)>>32))
	reg.Write(io.Base+QueueReady, 1)

	if reg.Read(io.Base+QueueReady) == 0 {
		return verr.New(verr.QueueInitFailed, "virtio.Modern.SetQueue", errors.New("queue_ready_timeout"))
	}

	return nil
}

// SetReady indicates that the driver is set up and ready to drive the
// device.
func (io *Modern) SetReady() {
	reg.Set(io.Base+Status, DriverOk)
}

// QueueNotify notifies the device that queue index can be processed.
func (io *Modern) QueueNotify(index int) {
	reg.Write(io.Base+QueueNotify, uint32(index))
}

// InterruptStatus reads, acknowledges and decodes the interrupt status
// register: bit 0 is a used-buffer notification, bit 1 a configuration
// space change.
func (io *Modern) InterruptStatus() (buffer bool, config bool) {
	s := reg.Read(io.Base + InterruptStatus)

	reg.Write(io.Base+InterruptACK, s)

	buffer = bits.IsSet(&s, 0)
	config = bits.IsSet(&s, 1)

	return
}

// Status returns the raw device status register.
func (io *Modern) Status() uint32 {
	return reg.Read(io.Base + Status)
}
