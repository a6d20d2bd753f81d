// Package serial implements the COM1 debug writer spec.md §6 names as the
// serial collaborator (Putc(byte)), wired as the fstream stddbg sink.
// Grounded bit-for-bit on the original serial.c's init sequence and
// transmit-empty poll.
package serial

import "github.com/peachsmith/osdev64-sub000/kernel/cpu"

const com1 = 0x03F8

// portOut/portIn indirect through cpu.Outb/cpu.Inb so hosted tests can
// substitute a fake port space instead of linking the bodiless asm
// intrinsics.
var (
	portOut = cpu.Outb
	portIn  = cpu.Inb
)

// Init programs COM1 for 38400 8N1 with FIFO enabled, matching
// k_serial_com1_init.
func Init() {
	portOut(com1+1, 0x00) // disable all interrupts
	portOut(com1+3, 0x80) // enable DLAB
	portOut(com1+0, 0x03) // divisor lo: 38400 baud
	portOut(com1+1, 0x00) // divisor hi
	portOut(com1+3, 0x03) // 8 bits, no parity, one stop bit
	portOut(com1+2, 0xC7) // enable FIFO, clear, 14-byte threshold
	portOut(com1+4, 0x0B) // IRQs enabled, RTS/DTR set
}

func transmitEmpty() bool {
	return portIn(com1+5)&0x20 != 0
}

// Putc blocks until the transmit holding register is empty, then writes
// one byte to COM1.
func Putc(b byte) {
	for !transmitEmpty() {
	}
	portOut(com1, b)
}

// Puts writes every byte of s to COM1 in order.
func Puts(s string) {
	for i := 0; i < len(s); i++ {
		Putc(s[i])
	}
}
