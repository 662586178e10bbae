// VirtIO MMIO transport, legacy (page-frame-number) queue layout
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import (
	"github.com/armvirt/tamago/bits"
	"github.com/armvirt/tamago/internal/reg"
	"github.com/armvirt/tamago/virtio/verr"
)

// Legacy represents a pre-1.0 VirtIO MMIO device, whose queue is
// published as a single page frame number and must be laid out
// contiguously at a page-aligned base, per the queue-align value the
// driver publishes.
type Legacy struct {
	// Base is the device's MMIO base address.
	Base uint32

	features uint64
	config   []byte
}

func (io *Legacy) statusHandshake(bit int, op string) (err error) {
	reg.Set(io.Base+Status, bit)

	if !reg.IsSet(io.Base+Status, bit) {
		return verr.New(verr.NegotiationRejected, op, nil)
	}

	return nil
}

// Init resets the device and runs the legacy handshake. Legacy driver
// features are bits 0-31 of the device features masked by
// driverFeatures: there is no FEATURES_SEL window and no VERSION_1 bit to
// require.
func (io *Legacy) Init(driverFeatures uint64) (err error) {
	if io.Base == 0 || reg.Read(io.Base+Magic) != MAGIC {
		return verr.New(verr.BadMagic, "virtio.Legacy.Init", nil)
	}

	if reg.Read(io.Base+Version) != LegacyVersion {
		return verr.New(verr.BadVersion, "virtio.Legacy.Init", nil)
	}

	reg.Write(io.Base+Status, 0x0)

	reg.Set(io.Base+Status, Acknowledge)
	reg.Set(io.Base+Status, Driver)

	io.features = io.DeviceFeatures() & driverFeatures
	reg.Write(io.Base+DriverFeatures, uint32(io.features))

	reg.Write(io.Base+GuestPageSize, LegacyPageSize)

	return io.statusHandshake(FeaturesOk, "virtio.Legacy.Init")
}

// Config returns a snapshot of the device configuration space.
func (io *Legacy) Config(size int) (config []byte) {
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
func (io *Legacy) DeviceID() uint32 {
	return reg.Read(io.Base + DeviceID)
}

// DeviceFeatures returns the device's advertised feature bits, a single
// 32-bit register on the legacy interface (no high half exists).
func (io *Legacy) DeviceFeatures() (features uint64) {
	return uint64(reg.Read(io.Base + DeviceFeatures))
}

// NegotiatedFeatures returns the feature bits accepted by both sides.
func (io *Legacy) NegotiatedFeatures() (features uint64) {
	return io.features
}

// MaxQueueSize returns the maximum virtual queue size for index.
func (io *Legacy) MaxQueueSize(index int) int {
	reg.Write(io.Base+QueueSel, uint32(index))
	return int(reg.Read(io.Base + QueueNumMax))
}

// SetQueueSize sets the virtual queue size for index.
func (io *Legacy) SetQueueSize(index int, n int) {
	reg.Write(io.Base+QueueSel, uint32(index))
	reg.Write(io.Base+QueueNum, uint32(n))
}

// SetQueue publishes queue's page frame number along with the queue
// alignment the device must use to derive the avail/used offsets.
func (io *Legacy) SetQueue(index int, queue *VirtualQueue) (err error) {
	reg.Write(io.Base+QueueSel, uint32(index))
	reg.Write(io.Base+QueueAlign, LegacyPageSize)
	reg.Write(io.Base+QueuePFN, queue.PFN())

	return nil
}

// SetReady indicates that the driver is set up and ready to drive the
// device.
func (io *Legacy) SetReady() {
	reg.Set(io.Base+Status, DriverOk)
}

// QueueNotify notifies the device that queue index can be processed.
func (io *Legacy) QueueNotify(index int) {
	reg.Write(io.Base+QueueNotify, uint32(index))
}

// InterruptStatus reads, acknowledges and decodes the interrupt status
// register.
func (io *Legacy) InterruptStatus() (buffer bool, config bool) {
	s := reg.Read(io.Base + InterruptStatus)

	reg.Write(io.Base+InterruptACK, s)

	buffer = bits.IsSet(&s, 0)
	config = bits.IsSet(&s, 1)

	return
}

// Status returns the raw device status register.
func (io *Legacy) Status() uint32 {
	return reg.Read(io.Base + Status)
}
