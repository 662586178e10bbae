// VirtIO driver tests
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import "testing"

func TestNegotiateClearsUnsupportedFeatures(t *testing.T) {
	device := uint64(1)<<Packed | uint64(1)<<NotificationData | uint64(1)<<Version1
	driver := uint64(1) << Version1

	got := negotiate(device, driver)

	if got&(1<<Packed) != 0 {
		t.Error("Packed feature should be cleared")
	}
	if got&(1<<NotificationData) != 0 {
		t.Error("NotificationData feature should be cleared")
	}
	if got&(1<<Version1) == 0 {
		t.Error("Version1 should remain negotiated")
	}
}

func TestNegotiateIntersectsDeviceSpecificFeatures(t *testing.T) {
	// bit 5 is device-specific; device offers it, driver doesn't ask
	device := uint64(1) << 5
	driver := uint64(0)

	got := negotiate(device, driver)

	if got&(1<<5) != 0 {
		t.Error("device-specific feature not requested by driver should not be negotiated")
	}
}

func TestNegotiateKeepsReservedBits(t *testing.T) {
	// bit 30 falls in the reserved range (24-49), kept regardless of
	// what the driver requested
	device := uint64(1) << 30
	driver := uint64(0)

	got := negotiate(device, driver)

	if got&(1<<30) == 0 {
		t.Error("reserved feature bit should be preserved")
	}
}

func TestNegotiateAcceptsRequestedDeviceSpecificFeature(t *testing.T) {
	device := uint64(1) << 5
	driver := uint64(1) << 5

	got := negotiate(device, driver)

	if got&(1<<5) == 0 {
		t.Error("device-specific feature requested by driver and offered by device should be negotiated")
	}
}
