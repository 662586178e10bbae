// FAT32 volume read/write operations
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package fat32

import (
	"encoding/binary"
	"log"

	"github.com/armvirt/tamago/virtio/verr"
)

// eocMin is the smallest FAT entry value that terminates a cluster
// chain. badCluster marks a cluster the filesystem has flagged
// unusable. freeCluster marks an unallocated entry.
const (
	eoc         = 0x0fffffff
	eocMin      = 0x0ffffff8
	badCluster  = 0x0ffffff7
	freeCluster = 0x00000000

	clusterMask = 0x0fffffff
)

// BlockDevice is the sector-addressed storage this package rides on. It
// is satisfied by *virtio/block.Device, kept as an interface so the
// filesystem logic does not depend on the virtio transport directly.
type BlockDevice interface {
	ReadSector(sector uint64, buf []byte) error
	WriteSector(sector uint64, buf []byte) error
}

// Volume is a mounted FAT32 filesystem.
type Volume struct {
	dev BlockDevice
	boot bootSector
}

// Mount reads sector 0 of dev as a boot sector, validates it, and
// returns a mounted Volume.
func Mount(dev BlockDevice) (v *Volume, err error) {
	sector := make([]byte, SectorSize)

	if err = dev.ReadSector(0, sector); err != nil {
		return nil, err
	}

	boot, ok := parseBootSector(sector)
	if !ok {
		return nil, verr.New(verr.InvalidVolume, "fat32.Mount", nil)
	}

	return &Volume{dev: dev, boot: boot}, nil
}

// ClusterBytes returns the size in bytes of one cluster on this volume.
func (v *Volume) ClusterBytes() int {
	return v.boot.clusterBytes()
}

// Capacity returns the total number of clusters addressable by the
// volume's FAT, derived from the FAT size in sectors.
func (v *Volume) Capacity() uint32 {
	return v.boot.fatSize32 * SectorSize / 4
}

func (v *Volume) readCluster(c uint32, buf []byte) (err error) {
	first := v.boot.clusterFirstSector(c)

	for s := 0; s < int(v.boot.sectorsPerCluster); s++ {
		if err = v.dev.ReadSector(uint64(first+uint32(s)), buf[s*SectorSize:(s+1)*SectorSize]); err != nil {
			return err
		}
	}

	return nil
}

func (v *Volume) writeCluster(c uint32, buf []byte) (err error) {
	first := v.boot.clusterFirstSector(c)

	for s := 0; s < int(v.boot.sectorsPerCluster); s++ {
		if err = v.dev.WriteSector(uint64(first+uint32(s)), buf[s*SectorSize:(s+1)*SectorSize]); err != nil {
			return err
		}
	}

	return nil
}

// nextCluster reads the FAT entry for cluster c and returns the next
// cluster in the chain, masked to its significant low 28 bits.
func (v *Volume) nextCluster(c uint32) (next uint32, err error) {
	fatByteOff := uint64(c) * 4
	sector := v.boot.fatStartSector + uint32(fatByteOff/SectorSize)
	off := int(fatByteOff % SectorSize)

	buf := make([]byte, SectorSize)
	if err = v.dev.ReadSector(uint64(sector), buf); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf[off:]) & clusterMask, nil
}

// setFATEntry updates the low 28 bits of cluster c's entry to value,
// preserving the upper 4 reserved bits, and mirrors the write to every
// additional FAT copy the volume declares.
func (v *Volume) setFATEntry(c uint32, value uint32) (err error) {
	fatByteOff := uint64(c) * 4
	sectorOff := uint32(fatByteOff / SectorSize)
	off := int(fatByteOff % SectorSize)

	for fat := uint32(0); fat < uint32(v.boot.numFATs); fat++ {
		sector := v.boot.fatStartSector + fat*v.boot.fatSize32 + sectorOff

		buf := make([]byte, SectorSize)
		if rerr := v.dev.ReadSector(uint64(sector), buf); rerr != nil {
			if fat == 0 {
				return rerr
			}
			continue
		}

		existing := binary.LittleEndian.Uint32(buf[off:])
		merged := (existing &^ clusterMask) | (value & clusterMask)
		binary.LittleEndian.PutUint32(buf[off:], merged)

		if werr := v.dev.WriteSector(uint64(sector), buf); werr != nil {
			if fat == 0 {
				return werr
			}
			// a failed backup-FAT write is logged, not fatal
			log.Printf("fat32: backup FAT %d write failed: %v", fat, werr)
		}
	}

	return nil
}

// allocateCluster linearly scans the FAT starting at cluster 2 for the
// first free entry and marks it end-of-chain, so that the next scan does
// not return it again. Every step re-reads the FAT sector through
// nextCluster; no sector is cached between steps.
func (v *Volume) allocateCluster() (cluster uint32, err error) {
	capacity := v.Capacity()

	for c := uint32(2); c < capacity; c++ {
		next, nerr := v.nextCluster(c)
		if nerr != nil {
			return 0, nerr
		}

		if next == freeCluster {
			if err = v.setFATEntry(c, eoc); err != nil {
				return 0, err
			}
			return c, nil
		}
	}

	return 0, verr.New(verr.NoSpace, "fat32.allocateCluster", nil)
}

// findFile scans the root directory cluster chain for a matching 8.3
// name, returning its directory entry.
func (v *Volume) findFile(name [11]byte) (entry dirEntry, err error) {
	cluster := v.boot.rootCluster
	buf := make([]byte, v.boot.clusterBytes())

	for {
		if rerr := v.readCluster(cluster, buf); rerr != nil {
			return entry, rerr
		}

		for off := 0; off+dirEntrySize <= len(buf); off += dirEntrySize {
			raw := buf[off : off+dirEntrySize]

			if raw[0] == 0x00 {
				return entry, verr.New(verr.NotFound, "fat32.findFile", nil)
			}
			if raw[0] == 0xe5 {
				continue
			}

			e := readDirEntry(raw)
			if e.skip() {
				continue
			}

			if e.matchesName(name) {
				return e, nil
			}
		}

		next, nerr := v.nextCluster(cluster)
		if nerr != nil {
			return entry, nerr
		}
		if next >= eocMin {
			return entry, verr.New(verr.NotFound, "fat32.findFile", nil)
		}

		cluster = next
	}
}

// ReadFile locates name in the root directory and copies its contents
// into out, failing if the file is larger than len(out).
func (v *Volume) ReadFile(name string, out []byte) (n int, err error) {
	short, ok := normalizeName(name)
	if !ok {
		return 0, verr.New(verr.NotFound, "fat32.ReadFile", nil)
	}

	entry, err := v.findFile(short)
	if err != nil {
		return 0, err
	}

	if int(entry.size) > len(out) {
		return 0, verr.New(verr.TooLarge, "fat32.ReadFile", nil)
	}

	cluster := entry.first
	remaining := int(entry.size)
	clusterBuf := make([]byte, v.boot.clusterBytes())

	for remaining > 0 {
		if err = v.readCluster(cluster, clusterBuf); err != nil {
			return 0, err
		}

		chunk := len(clusterBuf)
		if chunk > remaining {
			chunk = remaining
		}

		copy(out[n:], clusterBuf[:chunk])
		n += chunk
		remaining -= chunk

		if remaining == 0 {
			break
		}

		cluster, err = v.nextCluster(cluster)
		if err != nil {
			return 0, err
		}
		if cluster >= eocMin {
			break
		}
	}

	if n < len(out) {
		out[n] = 0
	}

	return n, nil
}

// WriteFile creates name in the root directory with the contents of
// data. It refuses to overwrite an existing file. If an allocation or
// write fails partway, the clusters already allocated stay marked in the
// FAT and no directory entry is created.
func (v *Volume) WriteFile(name string, data []byte) (err error) {
	short, ok := normalizeName(name)
	if !ok {
		return verr.New(verr.NotFound, "fat32.WriteFile", nil)
	}

	if _, ferr := v.findFile(short); ferr == nil {
		return verr.New(verr.Exists, "fat32.WriteFile", nil)
	}

	clusterBytes := v.boot.clusterBytes()
	size := len(data)

	n := (size + clusterBytes - 1) / clusterBytes
	if n < 1 {
		n = 1
	}

	first, err := v.allocateCluster()
	if err != nil {
		return err
	}

	cur := first
	off := 0
	buf := make([]byte, clusterBytes)

	for i := 0; i < n; i++ {
		for j := range buf {
			buf[j] = 0
		}

		end := off + clusterBytes
		if end > size {
			end = size
		}
		copy(buf, data[off:end])
		off = end

		if err = v.writeCluster(cur, buf); err != nil {
			return err
		}

		if i == n-1 {
			if err = v.setFATEntry(cur, eoc); err != nil {
				return err
			}
			break
		}

		next, aerr := v.allocateCluster()
		if aerr != nil {
			return aerr
		}

		if err = v.setFATEntry(cur, next); err != nil {
			return err
		}

		cur = next
	}

	return v.createDirEntry(short, uint32(size), first)
}

// createDirEntry scans the root directory cluster chain for a free or
// deleted slot, writing the new entry into the first one found. Like
// findFile, it follows the FAT chain across clusters rather than
// assuming the root directory fits in its first cluster.
func (v *Volume) createDirEntry(name [11]byte, size uint32, first uint32) (err error) {
	cluster := v.boot.rootCluster
	buf := make([]byte, v.boot.clusterBytes())

	for {
		if err = v.readCluster(cluster, buf); err != nil {
			return err
		}

		for off := 0; off+dirEntrySize <= len(buf); off += dirEntrySize {
			raw := buf[off : off+dirEntrySize]

			if !entryFree(raw[0]) {
				continue
			}

			writeDirEntry(raw, name, AttrArchive, first, size)

			return v.writeCluster(cluster, buf)
		}

		next, nerr := v.nextCluster(cluster)
		if nerr != nil {
			return nerr
		}
		if next >= eocMin {
			return verr.New(verr.NoSpace, "fat32.createDirEntry", nil)
		}

		cluster = next
	}
}

// Stat reports the size and first cluster of name without reading its
// contents, split out from ReadFile for callers that only need metadata.
func (v *Volume) Stat(name string) (size uint32, firstCluster uint32, ok bool) {
	short, ok := normalizeName(name)
	if !ok {
		return 0, 0, false
	}

	entry, err := v.findFile(short)
	if err != nil {
		return 0, 0, false
	}

	return entry.size, entry.first, true
}
