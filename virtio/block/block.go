// VirtIO block device driver
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package block implements a driver for the VirtIO block device class,
// riding on the split virtqueue machinery in the parent virtio package.
//
// This package is only meant to be used with `GOOS=tamago` as supported
// by the TamaGo framework for bare metal Go, see
// https://github.com/armvirt/tamago.
package block

import (
	"encoding/binary"

	"github.com/armvirt/tamago/arm64"
	"github.com/armvirt/tamago/dma"
	"github.com/armvirt/tamago/virtio"
	"github.com/armvirt/tamago/virtio/verr"
)

// Device ID for the VirtIO block device class, as reported in the
// transport's DEVICE_ID register.
const DeviceID = 0x02

// Feature bits this driver understands and may negotiate.
const (
	FeatureSizeMax = 1
	FeatureSegMax  = 2
	FeatureBlkSize = 6
)

// Request types.
const (
	typeIn    = 0
	typeOut   = 1
	typeFlush = 4
)

// Request status codes.
const (
	statusOK     = 0
	statusIOErr  = 1
	statusUnsupp = 2
)

const (
	SectorSize   = 512
	headerSize   = 16
	driverFeatures = (1 << FeatureSizeMax) | (1 << FeatureSegMax) | (1 << FeatureBlkSize)
)

// Device represents one bound VirtIO block device: a transport, its
// single request queue, and the DMA-visible scratch buffers used for
// every request. Concurrent requests on one queue are not supported.
type Device struct {
	io    virtio.VirtIO
	queue *virtio.VirtualQueue
	cpu   *arm64.CPU
	poll  virtio.Completer

	capacity uint64
	blkSize  uint32

	headerAddr uint
	header     []byte
	dataAddr   uint
	data       []byte
	statusAddr uint
	status     []byte
}

// Open negotiates features and binds the single request queue of a
// VirtIO block device already discovered on the MMIO transport.
func Open(io virtio.VirtIO, arena *virtio.Arena, cpu *arm64.CPU, poll bool) (d *Device, err error) {
	if err = io.Init(driverFeatures); err != nil {
		return nil, err
	}

	q, err := virtio.OpenQueue(io, arena, 0, poll, cpu)
	if err != nil {
		return nil, err
	}

	io.SetReady()

	d = &Device{
		io:    io,
		queue: q,
		cpu:   cpu,
	}

	if poll {
		d.poll = virtio.PollCompleter{}
	}

	d.headerAddr, d.header = dma.Reserve(headerSize, 8)
	d.dataAddr, d.data = dma.Reserve(SectorSize, 8)
	d.statusAddr, d.status = dma.Reserve(1, 8)

	cfg := io.Config(24)
	d.capacity = binary.LittleEndian.Uint64(cfg[0:8])
	d.blkSize = binary.LittleEndian.Uint32(cfg[20:24])

	return d, nil
}

// SetCompleter overrides the completion wait strategy, e.g. to switch to
// virtio.InterruptCompleter once interrupts are enabled.
func (d *Device) SetCompleter(c virtio.Completer) {
	d.poll = c
}

// Capacity returns the device capacity in 512-byte sectors.
func (d *Device) Capacity() uint64 {
	return d.capacity
}

// BlockSize returns the device's native block size, as advertised in its
// configuration space.
func (d *Device) BlockSize() uint32 {
	return d.blkSize
}

func (d *Device) request(sector uint64, reqType uint32, buf []byte, dataWrite bool) (err error) {
	binary.LittleEndian.PutUint32(d.header[0:4], reqType)
	binary.LittleEndian.PutUint32(d.header[4:8], 0)
	binary.LittleEndian.PutUint64(d.header[8:16], sector)
	d.status[0] = 0xff

	if dataWrite {
		copy(d.data, buf)
	}

	chain, ok := d.queue.AllocChain(3)
	if !ok {
		return verr.New(verr.Timeout, "block.request", nil)
	}

	dataFlags := uint16(2) // WRITE, device writes into this buffer
	if dataWrite {
		dataFlags = 0 // driver supplied data, device only reads it
	}

	d.queue.AddDescriptor(int(chain[0]), uint64(d.headerAddr), headerSize, 1, chain[1])
	d.queue.AddDescriptor(int(chain[1]), uint64(d.dataAddr), SectorSize, dataFlags|1, chain[2])
	d.queue.AddDescriptor(int(chain[2]), uint64(d.statusAddr), 1, 2, 0)

	d.cpu.CleanRange(uint64(d.headerAddr), headerSize)
	d.cpu.CleanRange(uint64(d.dataAddr), SectorSize)

	if err = d.queue.Submit(d.io, 0, chain[0]); err != nil {
		return err
	}

	if _, err = d.poll.Wait(d.queue); err != nil {
		return err
	}

	d.cpu.InvalidateRange(uint64(d.statusAddr), 1)

	if !dataWrite {
		d.cpu.InvalidateRange(uint64(d.dataAddr), SectorSize)
		copy(buf, d.data)
	}

	switch d.status[0] {
	case statusOK:
		return nil
	case statusIOErr:
		return verr.New(verr.IoError, "block.request", nil)
	case statusUnsupp:
		return verr.New(verr.Unsupported, "block.request", nil)
	default:
		return verr.New(verr.ProtocolViolation, "block.request", nil)
	}
}

// ReadSector reads one 512-byte sector into buf, which must be at least
// SectorSize bytes.
func (d *Device) ReadSector(sector uint64, buf []byte) (err error) {
	return d.request(sector, typeIn, buf, false)
}

// WriteSector writes one 512-byte sector from buf, which must be at
// least SectorSize bytes.
func (d *Device) WriteSector(sector uint64, buf []byte) (err error) {
	return d.request(sector, typeOut, buf, true)
}
