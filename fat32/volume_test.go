// FAT32 volume mount and file round-trip tests
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package fat32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/armvirt/tamago/virtio/verr"
)

// fakeDisk is an in-memory BlockDevice backing a flat sector image, used
// in place of a live virtio-blk device.
type fakeDisk struct {
	sectors [][]byte
}

func newFakeDisk(count int) *fakeDisk {
	d := &fakeDisk{sectors: make([][]byte, count)}
	for i := range d.sectors {
		d.sectors[i] = make([]byte, SectorSize)
	}
	return d
}

func (d *fakeDisk) ReadSector(sector uint64, buf []byte) error {
	copy(buf, d.sectors[sector])
	return nil
}

func (d *fakeDisk) WriteSector(sector uint64, buf []byte) error {
	copy(d.sectors[sector], buf)
	return nil
}

// newFakeVolume builds a blank FAT32 image matching a 1 MiB-class layout:
// 512 byte sectors, one sector per cluster, two FAT copies of 8 sectors
// each starting at sector 32, root directory at cluster 2.
func newFakeVolume(t *testing.T, totalSectors int) (*Volume, *fakeDisk) {
	t.Helper()

	const (
		reservedSectors   = 32
		numFATs           = 2
		fatSize32         = 8
		rootCluster       = 2
		sectorsPerCluster = 1
	)

	d := newFakeDisk(totalSectors)

	boot := d.sectors[0]
	binary.LittleEndian.PutUint16(boot[offBytesPerSector:], SectorSize)
	boot[offSectorsPerCluster] = sectorsPerCluster
	binary.LittleEndian.PutUint16(boot[offReservedSectors:], reservedSectors)
	boot[offNumFATs] = numFATs
	binary.LittleEndian.PutUint32(boot[offFATSize32:], fatSize32)
	binary.LittleEndian.PutUint32(boot[offRootCluster:], rootCluster)

	// mark the root directory's own cluster allocated in both FAT
	// copies so allocateCluster never reuses it.
	for fat := 0; fat < numFATs; fat++ {
		sector := reservedSectors + fat*fatSize32
		binary.LittleEndian.PutUint32(d.sectors[sector][rootCluster*4:], eoc)
	}

	v, err := Mount(d)
	if err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	return v, d
}

func TestMountComputesGeometry(t *testing.T) {
	v, _ := newFakeVolume(t, 2048)

	if v.boot.fatStartSector != 32 {
		t.Errorf("fatStartSector = %d, want 32", v.boot.fatStartSector)
	}
	if v.boot.dataStartSector != 48 {
		t.Errorf("dataStartSector = %d, want 48", v.boot.dataStartSector)
	}
	if got := v.boot.clusterFirstSector(2); got != 48 {
		t.Errorf("clusterFirstSector(2) = %d, want 48", got)
	}
}

func TestMountRejectsInvalidBootSector(t *testing.T) {
	d := newFakeDisk(1)
	// sector 0 is all zero: bytesPerSector reads 0, not 512

	if _, err := Mount(d); err == nil {
		t.Fatal("expected Mount to reject an invalid boot sector")
	}
}

func TestWriteFileThenReadFileRoundTrip(t *testing.T) {
	v, _ := newFakeVolume(t, 2048)

	data := []byte("Hello, world!\n")
	if err := v.WriteFile("HELLO.TXT", data); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out := make([]byte, 64)
	n, err := v.ReadFile("HELLO.TXT", out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if n != len(data) {
		t.Errorf("ReadFile returned n = %d, want %d", n, len(data))
	}
	if !bytes.Equal(out[:n], data) {
		t.Errorf("ReadFile returned %q, want %q", out[:n], data)
	}

	short, _ := normalizeName("HELLO.TXT")
	entry, err := v.findFile(short)
	if err != nil {
		t.Fatalf("findFile failed: %v", err)
	}
	if entry.size != uint32(len(data)) {
		t.Errorf("directory entry size = %d, want %d", entry.size, len(data))
	}
}

func TestWriteFileRefusesOverwrite(t *testing.T) {
	v, _ := newFakeVolume(t, 2048)

	if err := v.WriteFile("DUP.TXT", []byte("first")); err != nil {
		t.Fatalf("first WriteFile failed: %v", err)
	}

	if err := v.WriteFile("DUP.TXT", []byte("second")); err == nil {
		t.Fatal("expected WriteFile to refuse overwriting an existing file")
	}
}

func TestWriteFileEmptyAllocatesOneCluster(t *testing.T) {
	v, _ := newFakeVolume(t, 2048)

	if err := v.WriteFile("EMPTY.BIN", nil); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	short, _ := normalizeName("EMPTY.BIN")
	entry, err := v.findFile(short)
	if err != nil {
		t.Fatalf("findFile failed: %v", err)
	}
	if entry.size != 0 {
		t.Errorf("entry.size = %d, want 0", entry.size)
	}

	next, err := v.nextCluster(entry.first)
	if err != nil {
		t.Fatalf("nextCluster failed: %v", err)
	}
	if next < eocMin {
		t.Errorf("expected a single-cluster chain terminated with EOC, got %#x", next)
	}

	out := make([]byte, 16)
	n, err := v.ReadFile("EMPTY.BIN", out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if n != 0 {
		t.Errorf("ReadFile returned n = %d, want 0", n)
	}
}

func TestWriteFileOverflowsReturnsNoSpace(t *testing.T) {
	// the FAT maps 1024 clusters (8 sectors of 128 entries), far fewer
	// than the 3907 one-sector clusters a 2,000,000 byte file needs.
	v, _ := newFakeVolume(t, 2048)

	big := make([]byte, 2_000_000)

	if err := v.WriteFile("BIG.BIN", big); !errors.Is(err, verr.ErrNoSpace) {
		t.Fatalf("expected WriteFile to fail with no space, got %v", err)
	}

	short, _ := normalizeName("BIG.BIN")
	if _, err := v.findFile(short); err == nil {
		t.Fatal("a failed WriteFile must not leave a directory entry behind")
	}
}

func TestSetFATEntryPreservesReservedBits(t *testing.T) {
	v, d := newFakeVolume(t, 2048)

	const reserved = uint32(0xf) << 28
	const cluster = 10

	// plant reserved upper bits directly, as a filesystem created by a
	// different implementation might
	sector := int(v.boot.fatStartSector)
	off := cluster * 4
	binary.LittleEndian.PutUint32(d.sectors[sector][off:], reserved|0x11111)

	if err := v.setFATEntry(cluster, 0x54321); err != nil {
		t.Fatalf("setFATEntry failed: %v", err)
	}

	next, err := v.nextCluster(cluster)
	if err != nil {
		t.Fatalf("nextCluster failed: %v", err)
	}
	if next != 0x54321 {
		t.Errorf("nextCluster = %#x, want %#x", next, 0x54321)
	}

	stored := binary.LittleEndian.Uint32(d.sectors[sector][off:])
	if stored&0xf0000000 != reserved {
		t.Errorf("stored entry upper bits = %#x, want %#x preserved", stored&0xf0000000, reserved)
	}
}
