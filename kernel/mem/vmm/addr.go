package vmm

import "unsafe"

// pml4Addr and pdptAddr return the linear address of the PML4/PDPT arrays;
// kept as two tiny helpers so call sites read as "address of X" without
// scattering unsafe.Pointer casts through vmm.go. The kernel runs
// identity-mapped at this stage of boot, so a Go address and its physical
// address coincide, per SPEC_FULL.md's hosting model.
func pml4Addr(p *Paging) uint64 {
	return uint64(uintptr(unsafe.Pointer(&p.pml4[0])))
}

func pdptAddr(p *Paging) uint64 {
	return uint64(uintptr(unsafe.Pointer(&p.pdpt[0])))
}
