package cpu

import "unsafe"

// uintptrOf returns the linear address of a pointee. Kernel code routinely
// needs the numeric address of statically-allocated arrays (GDT, IDT, TSS)
// to hand to LGDT/LIDT/LTR; this helper keeps that cast in one place.
func uintptrOf[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}
