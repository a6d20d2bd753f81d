package vmm

import (
	"testing"

	"github.com/peachsmith/osdev64-sub000/kernel/mem"
)

func TestIdentityMapBelowWindow(t *testing.T) {
	var p Paging
	if err := p.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	phys := uint64(0xFEE00000) // local APIC, well inside 512 GiB
	virt, err := p.MapRange(phys, phys+0xFFF)
	if err != nil {
		t.Fatalf("MapRange: %v", err)
	}
	if virt != phys {
		t.Fatalf("expected identity mapping, got virt=0x%x phys=0x%x", virt, phys)
	}

	entries := p.LedgerEntries()
	if len(entries) != 1 || entries[0].PhysStart != phys {
		t.Fatalf("expected one ledger entry for 0x%x, got %+v", phys, entries)
	}
}

func TestOutOfAddressSpaceAboveWindow(t *testing.T) {
	var p Paging
	if err := p.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	limit := uint64(mem.IdentityMapGigabytes) << mem.GigabyteShift
	if _, err := p.MapRange(limit, limit+0x1000); err != ErrOutOfAddressSpace {
		t.Fatalf("expected ErrOutOfAddressSpace, got %v", err)
	}
}

func TestPDPTEntriesCoverIdentityWindow(t *testing.T) {
	var p Paging
	if err := p.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for i := 0; i < pdptEntries; i++ {
		entry := p.pdpt[i]
		if entry&uint64(flagPresent) == 0 {
			t.Fatalf("pdpt[%d] not marked present", i)
		}
		if entry&uint64(flagPageSize) == 0 {
			t.Fatalf("pdpt[%d] missing 1 GiB page-size bit", i)
		}
		gotBase := entry &^ 0xFFF
		wantBase := uint64(i) << mem.GigabyteShift
		if gotBase != wantBase {
			t.Fatalf("pdpt[%d] base = 0x%x, want 0x%x", i, gotBase, wantBase)
		}
	}

	for i := 1; i < pml4Entries; i++ {
		if p.pml4[i]&uint64(flagPresent) != 0 {
			t.Fatalf("pml4[%d] unexpectedly marked present", i)
		}
	}
}
