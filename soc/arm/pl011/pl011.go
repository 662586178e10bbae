// ARM PL011 UART driver
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pl011 implements a driver for the ARM PrimeCell PL011 UART, as
// exposed by QEMU's "virt" machine for guest console I/O.
//
// This package is only meant to be used with `GOOS=tamago` as supported
// by the TamaGo framework for bare metal Go, see
// https://github.com/armvirt/tamago.
package pl011

import (
	"sync"

	"github.com/armvirt/tamago/bits"
	"github.com/armvirt/tamago/internal/reg"
)

// PL011 register offsets.
const (
	UARTDR   = 0x00
	UARTFR   = 0x18
	UARTIBRD = 0x24
	UARTFBRD = 0x28
	UARTLCRH = 0x2c
	UARTCR   = 0x30
	UARTIMSC = 0x38
	UARTICR  = 0x44
)

// UARTFR (flag register) bits.
const (
	FR_TXFF = 5 // transmit FIFO full
	FR_RXFE = 4 // receive FIFO empty
)

// UARTLCRH bits.
const (
	LCRH_WLEN  = 5 // word length, 2 bits
	LCRH_FEN   = 4 // enable FIFOs
)

// UARTCR bits.
const (
	CR_RXE = 9
	CR_TXE = 8
	CR_UARTEN = 0
)

// UART represents a PL011 instance.
type UART struct {
	sync.Mutex

	// Base is the UART's MMIO base address.
	Base uint32

	dr   uint32
	fr   uint32
	ibrd uint32
	fbrd uint32
	lcrh uint32
	cr   uint32
	imsc uint32
	icr  uint32
}

// Init initializes the UART for 8n1, FIFOs enabled, no interrupts.
func (hw *UART) Init() {
	hw.Lock()
	defer hw.Unlock()

	if hw.Base == 0 {
		panic("invalid PL011 base address")
	}

	hw.dr = hw.Base + UARTDR
	hw.fr = hw.Base + UARTFR
	hw.ibrd = hw.Base + UARTIBRD
	hw.fbrd = hw.Base + UARTFBRD
	hw.lcrh = hw.Base + UARTLCRH
	hw.cr = hw.Base + UARTCR
	hw.imsc = hw.Base + UARTIMSC
	hw.icr = hw.Base + UARTICR

	// disable UART before reprogramming
	reg.Write(hw.cr, 0)

	// mask all UART interrupts, the core drives timer-based polling
	reg.Write(hw.imsc, 0)

	var lcrh uint32
	bits.SetN(&lcrh, LCRH_WLEN, 0b11, 0b11) // 8 bit words
	bits.Set(&lcrh, LCRH_FEN)
	reg.Write(hw.lcrh, lcrh)

	var cr uint32
	bits.Set(&cr, CR_RXE)
	bits.Set(&cr, CR_TXE)
	bits.Set(&cr, CR_UARTEN)
	reg.Write(hw.cr, cr)
}

func (hw *UART) txFull() bool {
	return reg.IsSet(hw.fr, FR_TXFF)
}

func (hw *UART) rxEmpty() bool {
	return reg.IsSet(hw.fr, FR_RXFE)
}

// Tx transmits a single byte.
func (hw *UART) Tx(c byte) {
	for hw.txFull() {
		// wait for TX FIFO to drain
	}

	reg.Write(hw.dr, uint32(c))
}

// Rx receives a single byte, if available.
func (hw *UART) Rx() (c byte, valid bool) {
	if hw.rxEmpty() {
		return
	}

	return byte(reg.Read(hw.dr)), true
}

// Write implements io.Writer.
func (hw *UART) Write(p []byte) (n int, err error) {
	for _, c := range p {
		hw.Tx(c)
	}

	return len(p), nil
}

// WriteByte transmits a single byte, matching the virtio.Console
// boundary interface.
func (hw *UART) WriteByte(c byte) error {
	hw.Tx(c)
	return nil
}
