package pmm

import (
	"testing"

	"github.com/peachsmith/osdev64-sub000/kernel/mem"
)

func newAllocator(t *testing.T, regions ...mem.Region) *Allocator {
	t.Helper()
	a := &Allocator{}
	if err := a.Init(regions); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return a
}

// TestScenarioS1 reproduces spec.md §8 scenario S1: pool = one region
// (base=0x100000, pages=64); allocate 8, allocate 4, free the first,
// allocate 12 -> bases (0x100000, 0x108000, freed, 0x10C000). The root
// ledger reservation is hosted in its own dedicated region (exactly
// rootLedgerPages, listed first so Init roots there) so it doesn't eat
// into the 64-page region S1 actually exercises.
func TestScenarioS1(t *testing.T) {
	a := newAllocator(t,
		mem.Region{PhysicalBase: 0x1000, PageCount: rootLedgerPages},
		mem.Region{PhysicalBase: 0x100000, PageCount: 64},
	)

	first, err := a.AllocPages(8)
	if err != nil || first != 0x100000 {
		t.Fatalf("alloc 1: got (0x%x, %v), want (0x100000, nil)", first, err)
	}

	second, err := a.AllocPages(4)
	if err != nil || second != 0x108000 {
		t.Fatalf("alloc 2: got (0x%x, %v), want (0x108000, nil)", second, err)
	}

	a.FreePages(first)

	third, err := a.AllocPages(12)
	if err != nil || third != 0x10C000 {
		t.Fatalf("alloc 3: got (0x%x, %v), want (0x10C000, nil)", third, err)
	}
}

func TestAllocPagesOutOfMemory(t *testing.T) {
	a := newAllocator(t, mem.Region{PhysicalBase: 0x100000, PageCount: 8})

	if _, err := a.AllocPages(100); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestFreeUnknownAddressIsNoOp(t *testing.T) {
	a := newAllocator(t, mem.Region{PhysicalBase: 0x100000, PageCount: 64})

	before := a.LiveReservedPages()
	a.FreePages(0xDEADBEEF)
	a.FreePages(0xDEADBEEF) // double free of an unknown address
	if after := a.LiveReservedPages(); after != before {
		t.Fatalf("free of unknown address mutated ledger: before=%d after=%d", before, after)
	}
}

// TestDisjointness verifies spec.md §8 property 1: no two simultaneously
// -live reservations overlap, and every live base is 4 KiB-aligned.
func TestDisjointness(t *testing.T) {
	a := newAllocator(t, mem.Region{PhysicalBase: 0x100000, PageCount: 128})

	var bases []uint64
	for i := 0; i < 10; i++ {
		base, err := a.AllocPages(uint64(i%4 + 1))
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		if uint64(base)%uint64(mem.PageSize) != 0 {
			t.Fatalf("base 0x%x is not page aligned", base)
		}
		bases = append(bases, uint64(base))
	}

	for i := 1; i < MaxReservations; i++ {
		if a.ledger[i].available {
			continue
		}
		for j := i + 1; j < MaxReservations; j++ {
			if a.ledger[j].available {
				continue
			}
			ri, rj := a.ledger[i], a.ledger[j]
			if ri.regionIndex != rj.regionIndex {
				continue
			}
			iEnd := ri.base + ri.pages*uint64(mem.PageSize) - 1
			jEnd := rj.base + rj.pages*uint64(mem.PageSize) - 1
			if overlaps(ri.base, iEnd, rj.base, jEnd) {
				t.Fatalf("reservations %d and %d overlap", i, j)
			}
		}
	}
}

// TestConservation verifies spec.md §8 property 2.
func TestConservation(t *testing.T) {
	a := newAllocator(t, mem.Region{PhysicalBase: 0x100000, PageCount: 128})

	for i := 0; i < 5; i++ {
		if _, err := a.AllocPages(3); err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
	}

	live := a.LiveReservedPages() - rootLedgerPages
	if live > a.TotalPages()-rootLedgerPages {
		t.Fatalf("conservation violated: live=%d total=%d root=%d", live, a.TotalPages(), rootLedgerPages)
	}
}

// TestDeterminism verifies spec.md §8 property 3: identical pool and call
// sequence produce identical addresses across independent allocators.
func TestDeterminism(t *testing.T) {
	region := mem.Region{PhysicalBase: 0x200000, PageCount: 256}
	seq := []uint64{4, 2, 8, 1, 16}

	run := func() []uintptr {
		a := newAllocator(t, region)
		var got []uintptr
		for _, n := range seq {
			addr, err := a.AllocPages(n)
			if err != nil {
				t.Fatalf("alloc %d: %v", n, err)
			}
			got = append(got, addr)
		}
		return got
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("determinism violated at call %d: %v != %v", i, first[i], second[i])
		}
	}
}

func TestMultipleRegionsPicksFirstFitting(t *testing.T) {
	a := newAllocator(t,
		mem.Region{PhysicalBase: 0x1000, PageCount: 4},
		mem.Region{PhysicalBase: 0x100000, PageCount: 64},
	)

	// Region 0 only has 4 pages, too few for this 5-page request, so the
	// allocator must fall through to region 1 — which already hosts the
	// 8-page root reservation the ledger was seeded into.
	addr, err := a.AllocPages(5)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if addr != 0x100000+8*uintptr(mem.PageSize) {
		t.Fatalf("expected allocation after root reservation, got 0x%x", addr)
	}
}
