package pci

import "testing"

type fakeDevice struct {
	vendor, device uint16
	class, sub     uint8
	headerType     uint8
	multiFunc      bool
}

func withFakeConfigSpace(t *testing.T, devices map[[3]uint8]fakeDevice) {
	t.Helper()
	var lastAddr uint32
	origWrite, origRead := writeAddress, readData
	writeAddress = func(addr uint32) { lastAddr = addr }
	readData = func() uint32 {
		bus := uint8(lastAddr >> 16)
		dev := uint8(lastAddr>>11) & 0x1F
		fn := uint8(lastAddr>>8) & 0x7
		offset := uint8(lastAddr & 0xFC)

		d, ok := devices[[3]uint8{bus, dev, fn}]
		if !ok {
			return 0xFFFFFFFF
		}
		switch offset {
		case 0x00:
			return uint32(d.device)<<16 | uint32(d.vendor)
		case 0x08:
			return uint32(d.class)<<24 | uint32(d.sub)<<16
		case 0x0C:
			ht := d.headerType
			if d.multiFunc {
				ht |= 0x80
			}
			return uint32(ht) << 16
		default:
			return 0
		}
	}
	t.Cleanup(func() { writeAddress, readData = origWrite, origRead })
}

func TestProbeFindsConfiguredDevices(t *testing.T) {
	withFakeConfigSpace(t, map[[3]uint8]fakeDevice{
		{0, 0, 0}: {vendor: 0x8086, device: 0x1234, class: 0x06, sub: 0x00},
		{0, 1, 0}: {vendor: 0x10DE, device: 0x5678, class: 0x03, sub: 0x00},
	})

	found := Probe()
	if len(found) != 2 {
		t.Fatalf("got %d functions, want 2 (%+v)", len(found), found)
	}
	if found[0].VendorID != 0x8086 || found[0].DeviceID != 0x1234 {
		t.Fatalf("unexpected first function: %+v", found[0])
	}
	if found[1].VendorID != 0x10DE || found[1].Class != 0x03 {
		t.Fatalf("unexpected second function: %+v", found[1])
	}
}

func TestProbeSkipsEmptySlots(t *testing.T) {
	withFakeConfigSpace(t, map[[3]uint8]fakeDevice{})
	if found := Probe(); len(found) != 0 {
		t.Fatalf("expected no functions on an empty bus, got %d", len(found))
	}
}

func TestProbeDescendsIntoMultiFunctionDevices(t *testing.T) {
	withFakeConfigSpace(t, map[[3]uint8]fakeDevice{
		{0, 2, 0}: {vendor: 0x1AF4, device: 0x1000, multiFunc: true},
		{0, 2, 1}: {vendor: 0x1AF4, device: 0x1001},
	})

	found := Probe()
	if len(found) != 2 {
		t.Fatalf("got %d functions, want 2 (%+v)", len(found), found)
	}
	if found[1].Func != 1 || found[1].DeviceID != 0x1001 {
		t.Fatalf("expected function 1 to be discovered, got %+v", found[1])
	}
}
