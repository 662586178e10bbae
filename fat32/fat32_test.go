// FAT32 driver tests
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
	"testing"
)

func sampleBootSector() []byte {
	b := make([]byte, SectorSize)
	binary.LittleEndian.PutUint16(b[offBytesPerSector:], 512)
	b[offSectorsPerCluster] = 8
	binary.LittleEndian.PutUint16(b[offReservedSectors:], 32)
	b[offNumFATs] = 2
	binary.LittleEndian.PutUint32(b[offFATSize32:], 1024)
	binary.LittleEndian.PutUint32(b[offRootCluster:], 2)
	return b
}

func TestParseBootSectorValid(t *testing.T) {
	raw := sampleBootSector()

	b, ok := parseBootSector(raw)
	if !ok {
		t.Fatal("expected valid boot sector")
	}

	if b.bytesPerSector != 512 {
		t.Errorf("bytesPerSector = %d, want 512", b.bytesPerSector)
	}
	if b.sectorsPerCluster != 8 {
		t.Errorf("sectorsPerCluster = %d, want 8", b.sectorsPerCluster)
	}
	if b.fatStartSector != 32 {
		t.Errorf("fatStartSector = %d, want 32", b.fatStartSector)
	}

	wantDataStart := uint32(32) + 2*1024
	if b.dataStartSector != wantDataStart {
		t.Errorf("dataStartSector = %d, want %d", b.dataStartSector, wantDataStart)
	}
}

func TestParseBootSectorRejectsBadSectorSize(t *testing.T) {
	raw := sampleBootSector()
	binary.LittleEndian.PutUint16(raw[offBytesPerSector:], 4096)

	if _, ok := parseBootSector(raw); ok {
		t.Fatal("expected rejection of non-512 byte sector")
	}
}

func TestParseBootSectorRejectsZeroFATSize(t *testing.T) {
	raw := sampleBootSector()
	binary.LittleEndian.PutUint32(raw[offFATSize32:], 0)

	if _, ok := parseBootSector(raw); ok {
		t.Fatal("expected rejection of zero FAT size (not a FAT32 volume)")
	}
}

func TestClusterFirstSectorAndBytes(t *testing.T) {
	raw := sampleBootSector()
	b, ok := parseBootSector(raw)
	if !ok {
		t.Fatal("parseBootSector failed")
	}

	if got := b.clusterFirstSector(2); got != b.dataStartSector {
		t.Errorf("clusterFirstSector(2) = %d, want %d", got, b.dataStartSector)
	}
	if got := b.clusterFirstSector(3); got != b.dataStartSector+8 {
		t.Errorf("clusterFirstSector(3) = %d, want %d", got, b.dataStartSector+8)
	}
	if got := b.clusterBytes(); got != 8*SectorSize {
		t.Errorf("clusterBytes() = %d, want %d", got, 8*SectorSize)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		name string
		want string
		ok   bool
	}{
		{"readme.txt", "README  TXT", true},
		{"README.TXT", "README  TXT", true},
		{"a.b", "A       B  ", true},
		{"noext", "NOEXT      ", true},
		{"", "", false},
		{"toolongname.txt", "", false},
		{"ok.toolong", "", false},
		{".txt", "", false},
	}

	for _, c := range cases {
		out, ok := normalizeName(c.name)
		if ok != c.ok {
			t.Errorf("normalizeName(%q) ok = %v, want %v", c.name, ok, c.ok)
			continue
		}
		if !ok {
			continue
		}
		if string(out[:]) != c.want {
			t.Errorf("normalizeName(%q) = %q, want %q", c.name, out[:], c.want)
		}
	}
}

func TestEntryFree(t *testing.T) {
	if !entryFree(0x00) {
		t.Error("0x00 should be free (end of directory)")
	}
	if !entryFree(0xe5) {
		t.Error("0xe5 should be free (deleted)")
	}
	if entryFree('R') {
		t.Error("'R' should not be free")
	}
}

func TestDirEntryRoundTrip(t *testing.T) {
	name, ok := normalizeName("data.bin")
	if !ok {
		t.Fatal("normalizeName failed")
	}

	raw := make([]byte, dirEntrySize)
	writeDirEntry(raw, name, AttrArchive, 0x00010203, 4096)

	e := readDirEntry(raw)

	if e.name != name {
		t.Errorf("name = %q, want %q", e.name, name)
	}
	if e.attr != AttrArchive {
		t.Errorf("attr = %#x, want %#x", e.attr, AttrArchive)
	}
	if e.first != 0x00010203 {
		t.Errorf("first = %#x, want %#x", e.first, 0x00010203)
	}
	if e.size != 4096 {
		t.Errorf("size = %d, want 4096", e.size)
	}

	if !e.matchesName(name) {
		t.Error("matchesName should match the name it was written with")
	}
}

func TestDirEntrySkip(t *testing.T) {
	cases := []struct {
		attr byte
		skip bool
	}{
		{AttrArchive, false},
		{AttrReadOnly, false},
		{AttrLongName, true},
		{AttrVolumeID, true},
		{AttrDirectory, true},
	}

	for _, c := range cases {
		e := dirEntry{attr: c.attr}
		if got := e.skip(); got != c.skip {
			t.Errorf("skip() for attr %#x = %v, want %v", c.attr, got, c.skip)
		}
	}
}
