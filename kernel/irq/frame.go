// Package irq owns the IDT, the PIC remap, and the RegisterFrame layout
// shared by every ISR entry stub (the assembly trampolines themselves are
// out of this repository's scope, see SPEC_FULL.md's hosting model).
package irq

import "github.com/peachsmith/osdev64-sub000/kernel/kfmt"

// Frame holds the five words the CPU pushes automatically before entering
// an interrupt handler: SS, RSP, RFLAGS, CS, RIP, slots 20-16 of spec.md's
// RegisterFrame.
type Frame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// Print dumps the frame to the active kfmt sink, used by the panic path.
func (f *Frame) Print() {
	kfmt.Printf("RIP = %16x CS  = %16x\n", f.RIP, f.CS)
	kfmt.Printf("RSP = %16x SS  = %16x\n", f.RSP, f.SS)
	kfmt.Printf("RFL = %16x\n", f.RFlags)
}

// Regs holds the general-purpose registers the ISR stub saves, slots
// 15-1 of spec.md's RegisterFrame (RAX, RBX, RCX, RDX, R8-R15, RSI, RDI,
// RBP), in the exact field order of spec.md §3's table.
type Regs struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
	RSI uint64
	RDI uint64
	RBP uint64
}

// Print dumps the registers to the active kfmt sink.
func (r *Regs) Print() {
	kfmt.Printf("RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Printf("RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Printf("RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Printf("RBP = %16x\n", r.RBP)
	kfmt.Printf("R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Printf("R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Printf("R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Printf("R14 = %16x R15 = %16x\n", r.R14, r.R15)
}

// RegisterFrameWords is the total word count of spec.md's RegisterFrame:
// Frame (5 words) + Regs (15 words, RBP included) + one padding word.
const RegisterFrameWords = 21
