// FAT32 boot sector parsing
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fat32 implements a minimal read/write driver for a FAT32
// volume backed by a sector-addressed block device, following the DOS
// 4.0 boot sector with the FAT32 extended fields.
//
// This package is only meant to be used with `GOOS=tamago` as supported
// by the TamaGo framework for bare metal Go, see
// https://github.com/armvirt/tamago.
package fat32

import "encoding/binary"

// Supported sector size. The driver refuses to mount a volume with any
// other value.
const SectorSize = 512

// Boot sector field byte offsets, all little-endian and unaligned.
const (
	offBytesPerSector    = 11
	offSectorsPerCluster = 13
	offReservedSectors   = 14
	offNumFATs           = 16
	offFATSize32         = 36
	offRootCluster       = 44
)

// bootSector holds the parsed and derived geometry of a mounted volume.
// All multi-byte fields are read as unaligned little-endian bytes, never
// through a natively-aligned struct overlay.
type bootSector struct {
	bytesPerSector    uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	numFATs           uint8
	fatSize32         uint32
	rootCluster       uint32

	fatStartSector  uint32
	dataStartSector uint32
}

func parseBootSector(sector []byte) (b bootSector, ok bool) {
	b.bytesPerSector = binary.LittleEndian.Uint16(sector[offBytesPerSector:])
	b.sectorsPerCluster = sector[offSectorsPerCluster]
	b.reservedSectors = binary.LittleEndian.Uint16(sector[offReservedSectors:])
	b.numFATs = sector[offNumFATs]
	b.fatSize32 = binary.LittleEndian.Uint32(sector[offFATSize32:])
	b.rootCluster = binary.LittleEndian.Uint32(sector[offRootCluster:])

	if b.bytesPerSector != SectorSize || b.fatSize32 == 0 {
		return b, false
	}

	b.fatStartSector = uint32(b.reservedSectors)
	b.dataStartSector = b.fatStartSector + uint32(b.numFATs)*b.fatSize32

	return b, true
}

// clusterFirstSector returns the first sector of cluster c, valid for
// c >= 2.
func (b *bootSector) clusterFirstSector(c uint32) uint32 {
	return b.dataStartSector + (c-2)*uint32(b.sectorsPerCluster)
}

// clusterBytes returns the size in bytes of one cluster.
func (b *bootSector) clusterBytes() int {
	return int(b.sectorsPerCluster) * SectorSize
}
