package mtrr

import "testing"

func withFakeMSRs(t *testing.T, msrs map[uint32]uint64) {
	t.Helper()
	orig := readMSR
	readMSR = func(id uint32) uint64 { return msrs[id] }
	t.Cleanup(func() { readMSR = orig })
}

func TestReadCapabilitiesDecodesVCNTAndFlags(t *testing.T) {
	withFakeMSRs(t, map[uint32]uint64{
		iaMTRRCap: 8 | 1<<8 | 1<<10,
	})
	c := ReadCapabilities()
	if c.VariableCount != 8 || !c.HasFixed || !c.HasWriteComb {
		t.Fatalf("got %+v", c)
	}
}

func TestReadDefaultTypeDecodesTypeAndEnableBits(t *testing.T) {
	withFakeMSRs(t, map[uint32]uint64{
		iaMTRRDefType: uint64(WriteBack) | 1<<10 | 1<<11,
	})
	d := ReadDefaultType()
	if d.Type != WriteBack || !d.FixedEnabled || !d.MTRREnabled {
		t.Fatalf("got %+v", d)
	}
}

func TestReadFixedRegionsDecodesEightEntriesPerRegister(t *testing.T) {
	var packed uint64
	for i := 0; i < 8; i++ {
		packed |= uint64(WriteThrough) << uint(i*8)
	}
	withFakeMSRs(t, map[uint32]uint64{fixedMSRs[0]: packed})

	regions := ReadFixedRegions()
	for i, typ := range regions[0] {
		if typ != WriteThrough {
			t.Fatalf("entry %d: got %s, want WT", i, typ)
		}
	}
}

func TestReadVariableRegionsSkipsDisabledEntries(t *testing.T) {
	const physAddrBits = 36
	addrMask := uint64(1)<<physAddrBits - 1
	fullResMask := (addrMask &^ 0xFFF) | 1<<11 // every mask bit set: smallest (4KiB) region

	withFakeMSRs(t, map[uint32]uint64{
		iaMTRRPhysBase0 + 0: uint64(WriteBack) | 0x100000,
		iaMTRRPhysBase0 + 1: fullResMask,
		iaMTRRPhysBase0 + 2: 0,
		iaMTRRPhysBase0 + 3: 0,
	})

	regions := ReadVariableRegions(2, physAddrBits)
	if !regions[0].Enabled {
		t.Fatalf("expected region 0 to be enabled")
	}
	if regions[0].Size != 4096 {
		t.Fatalf("got size %d, want 4096", regions[0].Size)
	}
	if regions[1].Enabled {
		t.Fatalf("expected region 1 to be disabled")
	}
}

func TestReadPATDecodesEightEntries(t *testing.T) {
	withFakeMSRs(t, map[uint32]uint64{
		iaPAT: uint64(WriteBack) | uint64(Uncacheable)<<8,
	})
	p := ReadPAT()
	if p[0] != WriteBack || p[1] != Uncacheable {
		t.Fatalf("got %+v", p)
	}
}

func TestMemTypeStringMatchesOriginalAbbreviations(t *testing.T) {
	cases := map[MemType]string{
		Uncacheable: "UC", WriteCombining: "WC", WriteThrough: "WT",
		WriteProtected: "WP", WriteBack: "WB", MemType(2): "RS",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Fatalf("%d: got %q, want %q", typ, got, want)
		}
	}
}
