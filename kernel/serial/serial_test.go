package serial

import "testing"

func withFakePorts(t *testing.T) (outLog *[]struct{ port uint16; val uint8 }, setReady func(bool)) {
	t.Helper()
	var log []struct {
		port uint16
		val  uint8
	}
	ready := false

	origOut, origIn := portOut, portIn
	portOut = func(port uint16, val uint8) {
		log = append(log, struct {
			port uint16
			val  uint8
		}{port, val})
	}
	portIn = func(port uint16) uint8 {
		if port == com1+5 && ready {
			return 0x20
		}
		return 0x00
	}
	t.Cleanup(func() { portOut, portIn = origOut, origIn })

	return &log, func(v bool) { ready = v }
}

func TestInitProgramsExpectedSequence(t *testing.T) {
	log, _ := withFakePorts(t)
	Init()

	want := []uint8{0x00, 0x80, 0x03, 0x00, 0x03, 0xC7, 0x0B}
	if len(*log) != len(want) {
		t.Fatalf("got %d port writes, want %d", len(*log), len(want))
	}
	for i, v := range want {
		if (*log)[i].val != v {
			t.Fatalf("write %d: got 0x%x, want 0x%x", i, (*log)[i].val, v)
		}
	}
}

func TestPutcWaitsForTransmitEmpty(t *testing.T) {
	log, setReady := withFakePorts(t)
	setReady(true)

	Putc('x')

	found := false
	for _, e := range *log {
		if e.port == com1 && e.val == 'x' {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a write of 'x' to the COM1 data port")
	}
}
