package cpu

import "github.com/peachsmith/osdev64-sub000/kernel"

// Segment selectors, fixed by the GDT layout built in GDT.Init below.
const (
	SelNull = 0x00
	SelCode = 0x08
	SelData = 0x10
	SelTSS  = 0x18
)

// gdtEntryCount is null, code, data, and a two-slot TSS descriptor.
const gdtEntryCount = 5

// tssWordCount matches the 26 32-bit words of a 64-bit TSS.
const tssWordCount = 26

// ist1Pages is the two contiguous pages backing the IST1 stack used by
// vector 0 (divide error).
const ist1Pages = 2

// segDescType enumerates the handful of GDT descriptor type fields this
// kernel builds, mirroring cd_seg_type in the original descriptor.h.
type segDescType uint8

const (
	segTypeCodeERC segDescType = 0xE // execute/read, conforming
	segTypeDataRWD segDescType = 0x6 // read/write, expand-down
	segTypeTSSAvl  segDescType = 0x9 // 64-bit TSS available
)

// buildCodeDataDescriptor assembles a 64-bit long-mode code or data segment
// descriptor with 4 KiB granularity, matching build_cd_descriptor in gdt.c.
func buildCodeDataDescriptor(base uint64, limit uint32, typ segDescType) uint64 {
	var desc uint64

	desc |= (base & 0x00FFFFFF) << 16
	desc |= (uint64(base) & 0xFF000000) << 32

	desc |= uint64(limit) & 0x00FFFF
	desc |= (uint64(limit) & 0x0F0000) << 32

	desc |= 1 << 55 // granularity: 4 KiB
	desc |= 1 << 53 // long mode
	desc |= 1 << 47 // present
	desc |= 1 << 44 // code/data descriptor type
	desc |= uint64(typ&0x0F) << 40

	return desc
}

// GDT owns the installed Global Descriptor Table, the Task State Segment,
// and the IST1 stack referenced from TSS words 9/10, following spec.md
// §3/§4.4 and gdt.c.
type GDT struct {
	entries [gdtEntryCount]uint64
	tss     [tssWordCount]uint32
	ist1    uintptr
}

// Init builds the five descriptors described in spec.md §3: null, code,
// data, and the 16-byte TSS descriptor split across two slots. allocPages
// must return a zeroed, 4 KiB-aligned run of n pages.
func (g *GDT) Init(allocPages func(n uint64) (uintptr, *kernel.Error)) *kernel.Error {
	ist1, err := allocPages(ist1Pages)
	if err != nil {
		return &kernel.Error{Module: "cpu_gdt", Message: "failed to allocate IST1 stack"}
	}
	g.ist1 = ist1

	ist1Top := uint64(ist1) + 4096

	g.entries[0] = 0
	g.entries[1] = buildCodeDataDescriptor(0, 0x0FFFFF, segTypeCodeERC)
	g.entries[2] = buildCodeDataDescriptor(0, 0x0FFFFF, segTypeDataRWD)

	for i := range g.tss {
		g.tss[i] = 0
	}
	g.tss[9] = uint32(ist1Top & 0xFFFFFFFF)
	g.tss[10] = uint32(ist1Top >> 32)

	tssBase := uint64(uintptrOf(&g.tss[0]))
	var tssLo, tssHi uint64
	tssLo |= 0xFFFF
	tssLo |= 0x0F0000 << 32
	tssLo |= uint64(segTypeTSSAvl) << 40
	tssLo |= 1 << 47
	tssLo |= 1 << 55
	tssLo |= (tssBase & 0xFF000000) << 32
	tssLo |= (tssBase & 0x00FFFFFF) << 16
	tssHi |= tssBase >> 32

	g.entries[3] = tssLo
	g.entries[4] = tssHi

	return nil
}

// Load installs the GDT with LGDT and loads TR with selector 0x18, matching
// k_load_gdt's final two steps.
func (g *GDT) Load() {
	limit := uint16(len(g.entries)*8 - 1)
	LoadGDT(uintptrOf(&g.entries[0]), limit, SelCode, SelData)
	LoadTR(SelTSS)
}

// IST1Top returns the top address of the IST1 stack (base+4096), the value
// written into TSS words 9/10.
func (g *GDT) IST1Top() uintptr {
	return g.ist1 + 4096
}
