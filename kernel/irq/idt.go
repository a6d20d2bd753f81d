package irq

import (
	"unsafe"

	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/cpu"
)

// Vector numbers fixed by spec.md §3/§4.4.
const (
	VectorDivideError = 0
	VectorPICBase     = 32
	VectorPICCount    = 16
	VectorSoftSleep   = 0x40
	vectorCount       = 256
)

// Handler is invoked by the (out of scope) common ISR trampoline once it
// has built a Frame/Regs pair on the interrupt stack. Returning a non-nil
// Regs installs it as the frame to resume into, letting the timer handler
// splice in a different task's saved registers — this is exactly the hook
// task.Switch uses.
type Handler func(vector uint8, frame *Frame, regs *Regs) *Regs

// IDT owns the 256-entry interrupt descriptor table and the table of
// Go-level handlers the trampoline dispatches into.
type IDT struct {
	entries  [vectorCount * 2]uint64
	handlers [vectorCount]Handler
}

// exceptionISRAddrs must be populated by the (out of scope) assembly
// package with the addresses of isr0..isr31; Init uses them verbatim, as
// k_idt_init installs isr0 through isr31 by name.
var exceptionISRAddrs [32]uintptr

// genericISRAddr is the single trampoline address shared by vectors 32-255,
// matching generic_isr in idt.c.
var genericISRAddr uintptr

// install writes one 128-bit interrupt gate descriptor, matching
// k_install_isr: offset selector cpu.SelCode, type 0xE (64-bit interrupt
// gate), DPL 0, IST1 only for vector 0.
func (t *IDT) install(vector uint8, isrAddr uintptr) {
	var lo, hi uint64

	lo |= uint64(cpu.SelCode) << 16
	if vector == VectorDivideError {
		lo |= 1 << 32
	}
	lo |= 0xE << 40 // interrupt gate
	lo |= 0 << 45   // DPL 0
	lo |= 1 << 47   // present

	r := uint64(isrAddr)
	lo |= r & 0xFFFF
	lo |= (r & 0xFFFF0000) << 32
	hi |= (r & 0xFFFFFFFF00000000) >> 32

	t.entries[int(vector)*2] = lo
	t.entries[int(vector)*2+1] = hi
}

// Init installs the 32 exception gates and the generic handler for 32-255;
// Load then installs the table with LIDT. Vector 0 always uses IST1;
// matches k_idt_init.
func (t *IDT) Init() *kernel.Error {
	for v := 0; v < 32; v++ {
		addr := exceptionISRAddrs[v]
		if addr == 0 {
			addr = genericISRAddr
		}
		t.install(uint8(v), addr)
	}
	for v := 32; v < vectorCount; v++ {
		t.install(uint8(v), genericISRAddr)
	}
	return nil
}

// Load installs the table via LIDT.
func (t *IDT) Load() {
	limit := uint16(len(t.entries)*8 - 1)
	cpu.LoadIDT(uintptr(unsafe.Pointer(&t.entries[0])), limit)
}

// Install registers a Go-level handler for vector, replacing the default
// generic/exception behavior. cmd/kernel uses it to wire IRQ0 (timer),
// IRQ1 (keyboard) and VectorSoftSleep (the syscall handler).
func (t *IDT) Install(vector uint8, h Handler) {
	t.handlers[vector] = h
}

// Dispatch is called by the (out of scope) trampoline with the frame it
// built; it looks up and invokes the registered Go handler, if any, and
// otherwise returns regs unchanged. Exercised directly by
// tests that simulate interrupt delivery.
func (t *IDT) Dispatch(vector uint8, frame *Frame, regs *Regs) *Regs {
	if h := t.handlers[vector]; h != nil {
		return h(vector, frame, regs)
	}
	return regs
}
