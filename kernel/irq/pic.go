package irq

import "github.com/peachsmith/osdev64-sub000/kernel/cpu"

// PIC 8259 I/O ports, following the OSDev-wiki remap recipe also used by
// pic.c.
const (
	masterCommand = 0x20
	masterData    = 0x21
	slaveCommand  = 0xA0
	slaveData     = 0xA1

	icw1Init = 0x10
	icw1ICW4 = 0x01
	icw4_8086 = 0x01

	picEOI = 0x20
)

// RemapPIC reprograms the legacy PIC so its 16 IRQ lines land on vectors
// offset1..offset1+7 (master) and offset2..offset2+7 (slave). spec.md fixes
// these at 32 and 40.
func RemapPIC(offset1, offset2 uint8) {
	cpu.Outb(masterCommand, icw1Init|icw1ICW4)
	cpu.Outb(slaveCommand, icw1Init|icw1ICW4)

	cpu.Outb(masterData, offset1)
	cpu.Outb(slaveData, offset2)

	cpu.Outb(masterData, 4) // tell master there is a slave at IRQ2
	cpu.Outb(slaveData, 2)  // tell slave its cascade identity

	cpu.Outb(masterData, icw4_8086)
	cpu.Outb(slaveData, icw4_8086)
}

// SendEOI acknowledges an IRQ to the PIC. irq is 0-15; IRQs >= 8 also
// require acknowledging the slave PIC.
func SendEOI(irqLine uint8) {
	if irqLine >= 8 {
		cpu.Outb(slaveCommand, picEOI)
	}
	cpu.Outb(masterCommand, picEOI)
}

// Disable masks every PIC line, used only for diagnostics/tests; normal
// boot relies on RemapPIC followed by per-vector handler installation.
func Disable() {
	cpu.Outb(slaveData, 0xFF)
	cpu.Outb(masterData, 0xFF)
}
