// Package pmm implements the physical page allocator and reservation
// ledger described in spec.md §4.1: it partitions firmware-reported
// conventional memory into a bookkeeping structure and vends 4 KiB-aligned
// contiguous page runs. It is grounded on the region-walking style of
// gopheros's kernel/mem/pmm/allocator.BootMemAllocator, generalized to
// support both allocation and (ledger-tracked) free, per the original
// k_memory_alloc_pages/k_memory_free_pages algorithm.
package pmm

import (
	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/kfmt"
	"github.com/peachsmith/osdev64-sub000/kernel/mem"
)

// MaxRegions bounds the conventional-memory region pool (spec.md §4.1).
const MaxRegions = 32

// MaxReservations bounds the page reservation ledger (spec.md §3).
const MaxReservations = 1000

// rootLedgerPages is the number of pages the ledger's own bookkeeping
// occupies; the root reservation at ledger index 0 reserves exactly this
// many pages starting at the chosen region's base, mirroring
// k_memory_init's "look for a region that contains at least 8 pages".
const rootLedgerPages = 8

var (
	// ErrOutOfMemory is returned when no conventional region can satisfy
	// a page request, or the ledger has no free slot to record one.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	// errNoRootRegion is returned by Init when no region in the pool
	// has at least rootLedgerPages pages to host the ledger itself.
	errNoRootRegion = &kernel.Error{Module: "pmm", Message: "no region large enough to host the page ledger"}
)

// reservation is spec.md's PageReservation: a contiguous run of pages
// inside the region named by regionIndex.
type reservation struct {
	regionIndex int
	base        uint64
	pages       uint64
	available   bool
}

// Allocator owns the conventional memory pool and the page reservation
// ledger. It is the single owner of all page frames (spec.md §3's
// ownership rule); every subsystem above it (heap, paging, tasks, sync)
// obtains pages through AllocPages and must explicitly FreePages them.
type Allocator struct {
	regions     [MaxRegions]mem.Region
	regionCount int

	ledger [MaxReservations]reservation
}

// Init ingests the firmware memory map (already filtered to conventional
// regions by the caller — cmd/kernel's mapFromHAL does the UEFI
// descriptor-type check), copies up to MaxRegions of them into the pool,
// then seeds the ledger's root reservation inside the first region with
// at least rootLedgerPages pages.
func (a *Allocator) Init(regions []mem.Region) *kernel.Error {
	a.regionCount = 0
	for _, r := range regions {
		if a.regionCount >= MaxRegions {
			break
		}
		a.regions[a.regionCount] = r
		a.regionCount++
	}

	for i := 1; i < MaxReservations; i++ {
		a.ledger[i].available = true
	}

	for i := 0; i < a.regionCount; i++ {
		if a.regions[i].PageCount >= rootLedgerPages {
			a.ledger[0] = reservation{
				regionIndex: i,
				base:        a.regions[i].PhysicalBase,
				pages:       rootLedgerPages,
				available:   false,
			}
			kfmt.Printf("[pmm] %d region(s), ledger rooted at region %d (0x%x)\n", a.regionCount, i, a.regions[i].PhysicalBase)
			return nil
		}
	}

	return errNoRootRegion
}

// AllocPages scans the pool in region order; within the first region whose
// page count is >= n it finds the lowest free run of n contiguous pages by
// sliding a candidate window past every overlapping live reservation in
// that region, exactly as k_memory_alloc_pages does. Ties are broken by
// lowest region index, then lowest base address.
func (a *Allocator) AllocPages(n uint64) (uintptr, *kernel.Error) {
	for i := 0; i < a.regionCount; i++ {
		region := a.regions[i]
		if region.PageCount < n {
			continue
		}

		reqStart := region.PhysicalBase
		reqEnd := reqStart + n*uint64(mem.PageSize) - 1
		regionEnd := region.PhysicalBase + region.PageCount*uint64(mem.PageSize) - 1

		for j := 0; j < MaxReservations; j++ {
			res := &a.ledger[j]
			if res.available || res.regionIndex != i {
				continue
			}
			resStart := res.base
			resEnd := resStart + res.pages*uint64(mem.PageSize) - 1

			if overlaps(reqStart, reqEnd, resStart, resEnd) {
				reqStart = resEnd + 1
				reqEnd = reqStart + n*uint64(mem.PageSize) - 1
			}
		}

		if reqEnd > regionEnd {
			continue
		}

		for j := 0; j < MaxReservations; j++ {
			if a.ledger[j].available {
				a.ledger[j] = reservation{
					regionIndex: i,
					base:        reqStart,
					pages:       n,
					available:   false,
				}
				return uintptr(reqStart), nil
			}
		}
	}

	return 0, ErrOutOfMemory
}

// overlaps reports whether [aStart, aEnd] and [bStart, bEnd] share any
// address.
func overlaps(aStart, aEnd, bStart, bEnd uint64) bool {
	return (aStart >= bStart && aStart <= bEnd) || (bStart >= aStart && bStart <= aEnd)
}

// FreePages marks the first non-root, non-available reservation whose base
// equals addr as available again. Unknown addresses (including the root,
// and already-free entries) are silently ignored — double-free is a
// deliberate no-op per spec.md §4.1.
func (a *Allocator) FreePages(addr uintptr) {
	target := uint64(addr)
	for i := 1; i < MaxReservations; i++ {
		if !a.ledger[i].available && a.ledger[i].base == target {
			a.ledger[i].available = true
			return
		}
	}
}

// PageAllocatorFn matches the signature higher subsystems (heap, vmm, gdt,
// tasks, sync) depend on, decoupling them from a concrete *Allocator.
type PageAllocatorFn func(n uint64) (uintptr, *kernel.Error)

// TotalPages returns the sum of page counts across every region in the
// pool; used by the conservation property in spec.md §8.
func (a *Allocator) TotalPages() uint64 {
	var total uint64
	for i := 0; i < a.regionCount; i++ {
		total += a.regions[i].PageCount
	}
	return total
}

// LiveReservedPages returns the sum of page counts across every
// non-available ledger entry, including the root.
func (a *Allocator) LiveReservedPages() uint64 {
	var total uint64
	for i := 0; i < MaxReservations; i++ {
		if !a.ledger[i].available {
			total += a.ledger[i].pages
		}
	}
	return total
}
