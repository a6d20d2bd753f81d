// Package acpi walks the ACPI root table chain spec.md §6 names as a
// collaborator: starting from the firmware-reported hal.RSDP, follow the
// RSDT or XSDT (whichever the revision selects) and return the header of
// every table it points to, without interpreting any AML. Grounded on
// gopheros's device/acpi driver, which performs the same walk over real
// physical memory via unsafe pointer casts; this package operates over a
// []byte view of that memory instead so the walk is exercisable without a
// live address space.
package acpi

import (
	"encoding/binary"

	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/hal"
)

var (
	errShortRead    = &kernel.Error{Module: "acpi", Message: "table read runs past the end of memory"}
	errBadSignature = &kernel.Error{Module: "acpi", Message: "RSDP signature mismatch"}
	errChecksum     = &kernel.Error{Module: "acpi", Message: "table checksum mismatch"}
)

// sdtHeaderSize is sizeof(table.SDTHeader) in gopheros: 4+4+1+1+6+8+4+4+4.
const sdtHeaderSize = 36

// Header is the common prefix of every ACPI table, read out of memory
// without requiring the table's own struct layout.
type Header struct {
	Signature  [4]byte
	Length     uint32
	Revision   uint8
	OEMID      [6]byte
	OEMTableID [8]byte
	Addr       uint32
}

func readHeader(mem []byte, addr uint32) (Header, *kernel.Error) {
	var h Header
	start := int(addr)
	if start < 0 || start+sdtHeaderSize > len(mem) {
		return h, errShortRead
	}
	copy(h.Signature[:], mem[start:start+4])
	h.Length = binary.LittleEndian.Uint32(mem[start+4 : start+8])
	h.Revision = mem[start+8]
	copy(h.OEMID[:], mem[start+10:start+16])
	copy(h.OEMTableID[:], mem[start+16:start+24])
	h.Addr = addr

	if int(addr)+int(h.Length) > len(mem) || h.Length < sdtHeaderSize {
		return h, errShortRead
	}
	var sum byte
	for _, b := range mem[start : start+int(h.Length)] {
		sum += b
	}
	if sum != 0 {
		return h, errChecksum
	}
	return h, nil
}

// Walk locates the RSDT/XSDT named by rsdp within mem (a flat view of
// physical memory starting at address 0) and returns the header of every
// table the root table references, plus the root table's own header.
func Walk(mem []byte, rsdp hal.RSDP) ([]Header, *kernel.Error) {
	rsdpOff := int(rsdp.Pointer)
	if rsdpOff < 0 || rsdpOff+8 > len(mem) {
		return nil, errShortRead
	}
	if string(mem[rsdpOff:rsdpOff+8]) != "RSD PTR " {
		return nil, errBadSignature
	}

	var rootAddr uint32
	if rsdp.Revision >= hal.ACPIRevision2 {
		if rsdpOff+32+8 > len(mem) {
			return nil, errShortRead
		}
		xsdtAddr := binary.LittleEndian.Uint64(mem[rsdpOff+24 : rsdpOff+32])
		rootAddr = uint32(xsdtAddr)
	} else {
		if rsdpOff+16 > len(mem) {
			return nil, errShortRead
		}
		rootAddr = binary.LittleEndian.Uint32(mem[rsdpOff+16 : rsdpOff+20])
	}

	root, err := readHeader(mem, rootAddr)
	if err != nil {
		return nil, err
	}

	entryWidth := 4
	if rsdp.Revision >= hal.ACPIRevision2 {
		entryWidth = 8
	}
	payload := int(root.Length) - sdtHeaderSize
	count := payload / entryWidth

	headers := []Header{root}
	base := int(rootAddr) + sdtHeaderSize
	for i := 0; i < count; i++ {
		off := base + i*entryWidth
		var entryAddr uint32
		if entryWidth == 8 {
			entryAddr = uint32(binary.LittleEndian.Uint64(mem[off : off+8]))
		} else {
			entryAddr = binary.LittleEndian.Uint32(mem[off : off+4])
		}
		h, err := readHeader(mem, entryAddr)
		if err != nil {
			continue
		}
		headers = append(headers, h)
	}
	return headers, nil
}
