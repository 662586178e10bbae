// QEMU virt support for tamago/arm64
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linkprintk

package virt

import (
	_ "unsafe"
)

//go:linkname printk runtime.printk
func printk(c byte) {
	UART0.Tx(c)
}
