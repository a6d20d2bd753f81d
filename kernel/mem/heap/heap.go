// Package heap implements the byte-granularity allocator of spec.md §4.2,
// layered on a single contiguous page run obtained from kernel/mem/pmm. It
// mirrors the freelist-walk algorithm of the original heap.c, generalized
// with the minimal free() behavior spec.md §9 calls for (the original
// k_heap_free was empty).
package heap

import (
	"unsafe"

	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/mem"
	"github.com/peachsmith/osdev64-sub000/kernel/mem/pmm"
)

// heapPages is the 128 KiB run (32 × 4 KiB pages) spec.md §4.2 mandates.
const heapPages = 32

// header is spec.md's HeapHeader: a singly-linked freelist node embedded
// directly in the managed span. Because this repo models physical memory
// as ordinary Go-addressable bytes (see SPEC_FULL.md's hosting model), the
// header is placed with unsafe.Pointer arithmetic over a byte slice backing
// the page run, exactly mirroring the original's raw-pointer layout.
type header struct {
	next      *header
	sizeBytes uintptr
	available bool
}

const headerSize = unsafe.Sizeof(header{})

var (
	// ErrOutOfMemory is returned when no freelist entry is large enough
	// and available to satisfy an Alloc request.
	ErrOutOfMemory = &kernel.Error{Module: "heap", Message: "out of memory"}

	errAllocFailed = &kernel.Error{Module: "heap", Message: "failed to allocate backing page run"}
)

// Heap owns a single 128 KiB page run exclusively (spec.md §3's ownership
// rule) and manages it as a freelist of sized regions.
type Heap struct {
	base  uintptr
	end   uintptr
	ready bool
}

// Init allocates the 32-page run from allocPages and writes the first
// header: size = run size - sizeof(header), available, no next.
func (h *Heap) Init(allocPages pmm.PageAllocatorFn) *kernel.Error {
	base, err := allocPages(heapPages)
	if err != nil {
		return errAllocFailed
	}
	h.base = base
	span := uintptr(heapPages) * uintptr(mem.PageSize)
	h.end = base + span - 1

	first := h.headerAt(base)
	first.next = nil
	first.sizeBytes = span - headerSize
	first.available = true
	h.ready = true

	return nil
}

func (h *Heap) headerAt(addr uintptr) *header {
	return (*header)(unsafe.Pointer(addr))
}

// Alloc walks the freelist for the first header with available &&
// size >= n. If the remainder after carving out n bytes is strictly
// larger than sizeof(header)+1 bytes, the remainder is split off into a
// new header linked in after the returning one, exactly as spec.md §4.2
// describes.
func (h *Heap) Alloc(n uintptr) (uintptr, *kernel.Error) {
	if !h.ready {
		return 0, ErrOutOfMemory
	}

	cur := h.headerAt(h.base)
	for {
		if cur.available && cur.sizeBytes >= n {
			break
		}
		if cur.next == nil {
			return 0, ErrOutOfMemory
		}
		cur = cur.next
	}

	dataStart := uintptr(unsafe.Pointer(cur)) + headerSize

	if cur.sizeBytes > n+headerSize+1 {
		newHeaderAddr := dataStart + n
		newHeader := h.headerAt(newHeaderAddr)
		newHeader.next = cur.next
		newHeader.sizeBytes = cur.sizeBytes - n - headerSize
		newHeader.available = true

		cur.sizeBytes = n
		cur.next = newHeader
	}

	cur.available = false
	return dataStart, nil
}

// Free recomputes the owning header by subtracting sizeof(header) from ptr
// and marks it available. Coalescing with neighbors is permitted but not
// required (spec.md §4.2); this implementation does not coalesce, so the
// test corpus must not assume it does.
func (h *Heap) Free(ptr uintptr) {
	hdr := h.headerAt(ptr - headerSize)
	hdr.available = true
}

// Walk visits every header in freelist order, reporting its data range and
// availability, used by spec.md §8's split-correctness property and by
// diagnostics (grounded on k_heap_print).
func (h *Heap) Walk(visit func(start, end uintptr, size uintptr, available bool)) {
	if !h.ready {
		return
	}
	cur := h.headerAt(h.base)
	for {
		start := uintptr(unsafe.Pointer(cur)) + headerSize
		end := start + cur.sizeBytes - 1
		visit(start, end, cur.sizeBytes, cur.available)
		if cur.next == nil {
			return
		}
		cur = cur.next
	}
}

// Span returns the heap's base and byte length, used by tests that check
// the split-correctness invariant (sizes sum to the span minus header
// overhead).
func (h *Heap) Span() (base uintptr, length uintptr) {
	return h.base, h.end - h.base + 1
}
