// VirtIO error taxonomy tests
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package verr

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := New(NotFound, "fat32.ReadFile", nil)
	want := "fat32.ReadFile: not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorMessageWrapped(t *testing.T) {
	inner := errors.New("boom")
	e := New(IoError, "block.ReadSector", inner)

	want := "block.ReadSector: io error: boom"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if !errors.Is(e, inner) {
		t.Error("errors.Is should unwrap to the wrapped error")
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	a := New(NoSpace, "fat32.allocateCluster", nil)
	b := New(NoSpace, "fat32.WriteFile", nil)

	if !errors.Is(a, b) {
		t.Error("two errors with the same Kind should match via errors.Is")
	}
	if !errors.Is(a, ErrNoSpace) {
		t.Error("errors.Is should match the Kind sentinel")
	}
}

func TestErrorIsDistinguishesKind(t *testing.T) {
	a := New(NotFound, "fat32.findFile", nil)

	if errors.Is(a, ErrExists) {
		t.Error("errors with different Kind should not match")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		DeviceNotFound:      "device not found",
		BadMagic:            "bad magic",
		BadVersion:          "bad version",
		NegotiationRejected: "negotiation rejected",
		QueueInitFailed:     "queue init failed",
		ProtocolViolation:   "protocol violation",
		Timeout:             "timeout",
		IoError:             "io error",
		Unsupported:         "unsupported",
		NotFound:            "not found",
		NoSpace:             "no space",
		Exists:              "already exists",
		InvalidVolume:       "invalid volume",
		TooLarge:            "too large",
		Unknown:             "unknown",
	}

	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
