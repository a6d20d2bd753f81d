// Package pit programs the legacy 8254 programmable interval timer; the
// IRQ0 handler in cmd/kernel turns its interrupts into scheduler ticks.
// Grounded on the original
// pit.c's k_pit_init, which sends the same mode-3 command byte and
// divisor to ports 0x43/0x40; this package generalizes the original's
// hardcoded 60 Hz divisor into the configurable Init(hz) spec.md §9
// names.
package pit

import "github.com/peachsmith/osdev64-sub000/kernel/cpu"

const (
	inputFrequency = 1193180
	commandPort    = 0x43
	channel0Port   = 0x40

	// modeSquareWave selects mode 3 (square wave generator) with the
	// low/high byte access mode the original sends as command byte 0x36.
	modeSquareWave = 0x36
)

// portOut is indirected so hosted tests can substitute a fake I/O port
// instead of linking the bodiless cpu.Outb intrinsic.
var portOut = cpu.Outb

// Init programs channel 0 to fire at approximately hz ticks per second.
// Frequencies above the PIT's ~1.193MHz input clock or below the
// ~18.2Hz floor (a 16-bit divisor) are clamped to the nearest
// representable divisor.
func Init(hz uint32) {
	divisor := inputFrequency / hz
	if divisor == 0 {
		divisor = 1
	}
	if divisor > 0xFFFF {
		divisor = 0xFFFF
	}

	portOut(commandPort, modeSquareWave)
	portOut(channel0Port, uint8(divisor&0xFF))
	portOut(channel0Port, uint8((divisor>>8)&0xFF))
}
