// VirtIO split virtqueue
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import (
	"encoding/binary"

	"github.com/armvirt/tamago/arm64"
	"github.com/armvirt/tamago/dma"
	"github.com/armvirt/tamago/virtio/verr"
)

// Descriptor flags.
const (
	descNext     = 1
	descWrite    = 2
	descIndirect = 4
)

// Available ring flags.
const (
	noInterrupt = 1
)

// MaxQueueSize is the largest queue size this driver will request, even
// if the device advertises a larger QUEUE_NUM_MAX.
const MaxQueueSize = 16

const (
	descriptorSize = 16
	usedEntrySize  = 8
)

// queueState is the per-queue state machine defined for the virtqueue
// lifecycle: UNBOUND -> READY -> SUBMITTING -> AWAITING -> READY on each
// request, or UNBOUND -> FAILED on init error, or READY -> FAILED on
// protocol violation.
type queueState int

const (
	stateUnbound queueState = iota
	stateReady
	stateSubmitting
	stateAwaiting
	stateFailed
)

// VirtualQueue is a split virtqueue: a descriptor table, an available
// ring (driver to device) and a used ring (device to driver), laid out
// in a single Arena slot and addressed either as a legacy page frame
// number or as three separately published modern addresses.
type VirtualQueue struct {
	id    int
	size  int
	state queueState
	poll  bool

	descAddr, availAddr, usedAddr uint
	desc, avail, used             []byte

	freeHead  []uint16
	freeCount int
	lastUsed  uint16

	// inFlight holds the head index of every chain published to the
	// device by Submit but not yet reclaimed, so drain can refuse a
	// used-ring id that does not head a chain the driver actually
	// submitted.
	inFlight map[uint16]bool

	cpu *arm64.CPU
}

func availRingOffset(size int) int {
	// flags(2) + idx(2) + ring(2*size)
	return 4 + 2*size
}

func availSize(size int) int {
	// flags(2) + idx(2) + ring(2*size) + used_event(2)
	return 6 + 2*size
}

func usedSize(size int) int {
	// flags(2) + idx(2) + ring(8*size) + avail_event(2)
	return 6 + usedEntrySize*size
}

// newQueue lays out a split virtqueue of the given size inside slot,
// using the legacy contiguous layout (desc, then avail immediately
// after, then used at the next 4 KiB boundary) when legacy is true, or
// three independently 16-byte aligned regions otherwise.
func newQueue(id int, size int, slot uint, legacy bool, cpu *arm64.CPU) *VirtualQueue {
	q := &VirtualQueue{
		id:       id,
		size:     size,
		state:    stateUnbound,
		freeHead: make([]uint16, size),
		inFlight: make(map[uint16]bool, size),
		cpu:      cpu,
	}

	for i := range q.freeHead {
		q.freeHead[i] = uint16(i)
	}
	q.freeCount = size

	descBytes := size * descriptorSize

	if legacy {
		q.descAddr, q.desc = reserve(slot, 0, descBytes, LegacyPageSize)
		q.availAddr, q.avail = reserve(slot, uint(descBytes), availSize(size), 2)
		usedOff := ((uint(descBytes) + uint(availSize(size)) + LegacyPageSize - 1) / LegacyPageSize) * LegacyPageSize
		q.usedAddr, q.used = reserve(slot, usedOff, usedSize(size), LegacyPageSize)
	} else {
		q.descAddr, q.desc = reserve(slot, 0, descBytes, 16)
		q.availAddr, q.avail = reserve(slot, uint(descBytes), availSize(size), 16)
		q.usedAddr, q.used = reserve(slot, uint(descBytes)+uint(availSize(size)), usedSize(size), 16)
	}

	return q
}

// Address returns the three component addresses of the queue, for the
// modern split-address registers.
func (q *VirtualQueue) Address() (desc uint, avail uint, used uint) {
	return q.descAddr, q.availAddr, q.usedAddr
}

// PFN returns the legacy page frame number of the queue's base address,
// valid only when the queue was laid out with the legacy contiguous
// layout.
func (q *VirtualQueue) PFN() uint32 {
	return uint32(q.descAddr / LegacyPageSize)
}

// SetPolling sets or clears the NO_INTERRUPT bit in the available ring's
// flags field, selecting polling or interrupt-driven completion.
func (q *VirtualQueue) SetPolling(poll bool) {
	q.poll = poll

	flags := uint16(0)
	if poll {
		flags = noInterrupt
	}

	binary.LittleEndian.PutUint16(q.avail[0:2], flags)
}

// clean flushes the entire DMA window backing the queue to memory.
func (q *VirtualQueue) clean() {
	q.cpu.CleanRange(uint64(q.descAddr), len(q.desc))
	q.cpu.CleanRange(uint64(q.availAddr), len(q.avail))
	q.cpu.CleanRange(uint64(q.usedAddr), len(q.used))
}

// AddDescriptor writes one descriptor slot. It does not publish the
// chain to the device; callers must follow with Submit once the full
// chain starting at the head index has been written.
func (q *VirtualQueue) AddDescriptor(index int, addr uint64, length uint32, flags uint16, next uint16) {
	off := index * descriptorSize

	binary.LittleEndian.PutUint64(q.desc[off:], addr)
	binary.LittleEndian.PutUint32(q.desc[off+8:], length)
	binary.LittleEndian.PutUint16(q.desc[off+12:], flags)
	binary.LittleEndian.PutUint16(q.desc[off+14:], next)
}

// AllocChain pops count descriptor indices off the free list, returning
// them in chain order. The caller links them with the NEXT flag. A queue
// that has failed (§4.8: a wait timeout or a protocol violation) refuses
// further allocation.
func (q *VirtualQueue) AllocChain(count int) (chain []uint16, ok bool) {
	if q.state == stateFailed {
		return nil, false
	}

	if q.freeCount < count {
		return nil, false
	}

	chain = make([]uint16, count)
	copy(chain, q.freeHead[q.freeCount-count:q.freeCount])
	q.freeCount -= count

	return chain, true
}

// availIdx and usedIdx read the ring index fields.
func (q *VirtualQueue) availIdx() uint16 { return binary.LittleEndian.Uint16(q.avail[2:4]) }
func (q *VirtualQueue) usedIdx() uint16  { return binary.LittleEndian.Uint16(q.used[2:4]) }

// Submit publishes the descriptor chain starting at head to the device
// and notifies it, per the ordering contract: clean descriptors and
// buffers, increment avail.idx with a store-release barrier, clean the
// available ring, fence, then notify. A queue already in the FAILED
// state refuses the submission.
func (q *VirtualQueue) Submit(io VirtIO, index int, head uint16, bufs ...[]byte) (err error) {
	if q.state == stateFailed {
		return verr.New(verr.ProtocolViolation, "virtio.Submit", nil)
	}

	q.state = stateSubmitting

	q.inFlight[head] = true

	q.cpu.CleanRange(uint64(q.descAddr), len(q.desc))

	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		addr, _ := addressOf(b)
		q.cpu.CleanRange(addr, len(b))
	}

	idx := q.availIdx()
	off := availRingOffset(q.size) + int(idx)%q.size*2

	binary.LittleEndian.PutUint16(q.avail[off:], head)

	arm64.DataMemoryBarrier()

	binary.LittleEndian.PutUint16(q.avail[2:4], idx+1)

	q.cpu.CleanRange(uint64(q.availAddr), len(q.avail))

	arm64.DataMemoryBarrier()

	io.QueueNotify(q.id)

	arm64.DataMemoryBarrier()

	q.state = stateAwaiting

	return nil
}

// completion records one used-ring entry: which descriptor chain the
// device consumed and how many bytes it wrote.
type completion struct {
	id  uint16
	len uint32
}

// drain invalidates the used ring, reads used.idx, and consumes any
// entries produced since lastUsed, reclaiming each chain's descriptors
// onto the free list as it goes. A used-ring id that does not head a
// chain Submit actually published is a protocol violation: the queue is
// marked FAILED and drain stops short, reclaiming nothing further.
func (q *VirtualQueue) drain() (completions []completion, err error) {
	q.cpu.InvalidateRange(uint64(q.usedAddr), len(q.used))

	idx := q.usedIdx()

	for q.lastUsed != idx {
		off := 4 + int(q.lastUsed)%q.size*usedEntrySize

		id := uint16(binary.LittleEndian.Uint32(q.used[off:]))
		n := binary.LittleEndian.Uint32(q.used[off+4:])

		if !q.inFlight[id] {
			q.state = stateFailed
			return completions, verr.New(verr.ProtocolViolation, "virtio.drain", nil)
		}

		delete(q.inFlight, id)

		completions = append(completions, completion{id: id, len: n})

		q.Reclaim(id)

		q.lastUsed++
	}

	return completions, nil
}

// WaitCompletion polls the used ring for up to iterations rounds,
// returning the completions produced since the last call. It returns a
// Timeout error if nothing new appears within the iteration budget, and
// a ProtocolViolation error if the device published an unknown
// descriptor id. Either failure leaves the queue FAILED.
func (q *VirtualQueue) WaitCompletion(iterations int) (completions []completion, err error) {
	if q.state == stateFailed {
		return nil, verr.New(verr.ProtocolViolation, "wait_completion", nil)
	}

	for i := 0; i < iterations; i++ {
		completions, err = q.drain()
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

// Reclaim walks the descriptor chain starting at head following the
// NEXT flag, clearing each descriptor and returning it to the free list.
func (q *VirtualQueue) Reclaim(head uint16) {
	cur := head

	for {
		off := int(cur) * descriptorSize

		flags := binary.LittleEndian.Uint16(q.desc[off+12:])
		next := binary.LittleEndian.Uint16(q.desc[off+14:])

		for i := 0; i < descriptorSize; i++ {
			q.desc[off+i] = 0
		}

		q.freeHead[q.freeCount] = cur
		q.freeCount++

		if flags&descNext == 0 {
			break
		}

		cur = next
	}
}

// addressOf returns the DMA physical address backing a buffer obtained
// through the general purpose dma package allocator.
func addressOf(buf []byte) (addr uint64, ok bool) {
	res, a := dma.Reserved(buf)
	return uint64(a), res
}
