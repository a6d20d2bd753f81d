// Package vmm implements the paging bootstrap and virtual-range mapper of
// spec.md §4.3: a single PML4/PDPT hierarchy that identity-maps the first
// 512 GiB of address space with 1 GiB pages, plus a MapLedger that serves
// MMIO/framebuffer virtual windows without double-spending page-frame
// bookkeeping. Grounded on the bit-layout style of gopheros's
// mem/vmm/pte.go and paging.c's make_pml4e/make_pdpte.
package vmm

import (
	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/kfmt"
	"github.com/peachsmith/osdev64-sub000/kernel/mem"
	"github.com/peachsmith/osdev64-sub000/kernel/mem/pmm"
)

const (
	pml4Entries = 512
	pdptEntries = 512
)

// pageEntry flag bits, shared by PML4 and PDPT entries.
type entryFlag uint64

const (
	flagPresent   entryFlag = 1 << 0
	flagWritable  entryFlag = 1 << 1
	flagPageSize  entryFlag = 1 << 7 // PDPT only: 1 GiB page
)

var (
	// ErrOutOfAddressSpace is returned by MapRange for physical ranges
	// above the 512 GiB identity window, per spec.md §4.3 and the Open
	// Question resolution in spec.md §9 (no silent truncation).
	ErrOutOfAddressSpace = &kernel.Error{Module: "vmm", Message: "address range exceeds the 512 GiB identity window"}

	errAllocFailed = &kernel.Error{Module: "vmm", Message: "failed to allocate paging structures"}

	// MaxMapLedgerEntries bounds the MMIO window ledger. Sized for the
	// domain-stack collaborators SPEC_FULL.md wires in: APIC, IOAPIC,
	// framebuffer, and PCI extended config space, with headroom.
	MaxMapLedgerEntries = 64
)

// mapLedgerEntry is spec.md's MapLedger entry.
type mapLedgerEntry struct {
	physStart uint64
	physEnd   uint64
	virtStart uint64
	used      bool
}

// Paging owns the PML4, the single PDPT, and the MapLedger. It is
// constructed once during init per spec.md §9's "single owner" rule.
type Paging struct {
	pml4 [pml4Entries]uint64
	pdpt [pdptEntries]uint64

	ledger [64]mapLedgerEntry
}

func makePML4E(pdptAddr uint64) uint64 {
	return uint64(flagPresent|flagWritable) | pdptAddr
}

func makePDPTE(pageBase uint64) uint64 {
	return uint64(flagPresent|flagWritable|flagPageSize) | pageBase
}

// Init identity-maps 0..512 GiB: PDPT[i] points at a 1 GiB page for
// i*1GiB, PML4[0] points at the PDPT, and every other PML4 entry is marked
// not-present. It does not itself call LoadCR3; callers invoke that
// separately once satisfied with the bootstrap (mirrors k_paging_init's
// structure, minus the commented-out MTRR/CPUID probing which SPEC_FULL.md
// assigns to the kernel/mtrr and kernel/cpuid collaborators instead).
func (p *Paging) Init() *kernel.Error {
	for i := uint64(0); i < pdptEntries; i++ {
		p.pdpt[i] = makePDPTE(i << mem.GigabyteShift)
	}

	p.pml4[0] = makePML4E(pdptAddr(p))
	for i := 1; i < pml4Entries; i++ {
		p.pml4[i] = p.pml4[0] &^ uint64(flagPresent)
	}

	kfmt.Printf("[vmm] identity map installed for 0..%d GiB\n", mem.IdentityMapGigabytes)
	return nil
}

// PML4PhysAddr returns the address to load into CR3.
func (p *Paging) PML4PhysAddr() uintptr {
	return uintptr(pml4Addr(p))
}

// MapRange returns the virtual address that serves physical
// [physLo, physHi]. Addresses below the 512 GiB identity window map 1:1
// (virtual == physical) and are recorded in the MapLedger; addresses above
// it fail with ErrOutOfAddressSpace per spec.md §4.3's design mandate.
func (p *Paging) MapRange(physLo, physHi uint64) (uint64, *kernel.Error) {
	limit := uint64(mem.IdentityMapGigabytes) << mem.GigabyteShift
	if physHi >= limit {
		return 0, ErrOutOfAddressSpace
	}

	for i := range p.ledger {
		if !p.ledger[i].used {
			p.ledger[i] = mapLedgerEntry{physStart: physLo, physEnd: physHi, virtStart: physLo, used: true}
			return physLo, nil
		}
	}

	return 0, &kernel.Error{Module: "vmm", Message: "map ledger full"}
}

// LedgerEntries returns a snapshot of the active MMIO windows, used by
// tests and diagnostics.
func (p *Paging) LedgerEntries() []struct{ PhysStart, PhysEnd, VirtStart uint64 } {
	var out []struct{ PhysStart, PhysEnd, VirtStart uint64 }
	for _, e := range p.ledger {
		if e.used {
			out = append(out, struct{ PhysStart, PhysEnd, VirtStart uint64 }{e.physStart, e.physEnd, e.virtStart})
		}
	}
	return out
}

// AllocFromPMM is a convenience constructor matching the PageAllocatorFn
// signature other subsystems (heap, gdt, tasks) use; vmm itself does not
// need pmm at bootstrap since its two tables are static arrays.
func AllocFromPMM(alloc *pmm.Allocator, n uint64) (uintptr, *kernel.Error) {
	return alloc.AllocPages(n)
}
