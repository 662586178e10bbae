// FAT32 directory entries and 8.3 filename handling
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
	"strings"
)

// Directory entry size and field byte offsets.
const (
	dirEntrySize = 32

	offName            = 0
	offAttr            = 11
	offFirstClusterHi  = 20
	offFirstClusterLo  = 26
	offFileSize        = 28
)

// File attributes.
const (
	AttrReadOnly = 0x01
	AttrHidden   = 0x02
	AttrSystem   = 0x04
	AttrVolumeID = 0x08
	AttrDirectory = 0x10
	AttrArchive  = 0x20
	AttrLongName = 0x0f
)

// entryFree reports whether the first byte of a directory entry marks it
// as available for reuse: 0x00 (never used, end of directory) or 0xe5
// (deleted).
func entryFree(b byte) bool {
	return b == 0x00 || b == 0xe5
}

// normalizeName upper-cases name and left-justifies it into the 11-byte
// 8.3 short-name form, base padded with spaces to 8 bytes, extension
// padded with spaces to 3 bytes. Only 8.3 names are accepted; the dot,
// if present, separates base and extension.
func normalizeName(name string) (out [11]byte, ok bool) {
	for i := range out {
		out[i] = ' '
	}

	name = strings.ToUpper(name)

	base := name
	ext := ""

	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base = name[:i]
		ext = name[i+1:]
	}

	if len(base) == 0 || len(base) > 8 || len(ext) > 3 {
		return out, false
	}

	copy(out[0:8], base)
	copy(out[8:11], ext)

	return out, true
}

// dirEntry is a view over one 32-byte directory entry's fields.
type dirEntry struct {
	name  [11]byte
	attr  byte
	first uint32
	size  uint32
}

func readDirEntry(raw []byte) dirEntry {
	var e dirEntry

	copy(e.name[:], raw[offName:offName+11])
	e.attr = raw[offAttr]

	hi := binary.LittleEndian.Uint16(raw[offFirstClusterHi:])
	lo := binary.LittleEndian.Uint16(raw[offFirstClusterLo:])
	e.first = uint32(hi)<<16 | uint32(lo)

	e.size = binary.LittleEndian.Uint32(raw[offFileSize:])

	return e
}

// writeDirEntry zeroes a 32-byte slot and fills in name, attr, first and
// size, leaving the timestamp fields at zero.
func writeDirEntry(raw []byte, name [11]byte, attr byte, first uint32, size uint32) {
	for i := range raw[:dirEntrySize] {
		raw[i] = 0
	}

	copy(raw[offName:offName+11], name[:])
	raw[offAttr] = attr

	binary.LittleEndian.PutUint16(raw[offFirstClusterHi:], uint16(first>>16))
	binary.LittleEndian.PutUint16(raw[offFirstClusterLo:], uint16(first))
	binary.LittleEndian.PutUint32(raw[offFileSize:], size)
}

// matchesName reports whether the entry's stored short name matches name
// case-insensitively over the 11-byte form. Callers are expected to have
// already skipped long-name, volume and directory entries.
func (e dirEntry) matchesName(name [11]byte) bool {
	return strings.EqualFold(string(e.name[:]), string(name[:]))
}

// skip reports whether this entry must be ignored during a file lookup
// scan: long-name components, the volume label, and subdirectories.
func (e dirEntry) skip() bool {
	if e.attr == AttrLongName {
		return true
	}
	return e.attr&(AttrVolumeID|AttrDirectory) != 0
}
