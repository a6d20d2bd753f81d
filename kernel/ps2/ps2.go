// Package ps2 implements the scancode-set-1 decoder and key-event ring of
// spec.md §4.8: a small pending-byte state machine that classifies single,
// E0-prefixed, and E1-prefixed (Pause) sequences into KeyEvents, each
// pushed to a lock-free SPSC ring alongside a parallel key-state array.
// Grounded on the original keyboard.c's scancode table and on
// kernel/fstream's ring-capacity-check style for the event ring.
package ps2

// EventType is whether a key transitioned down or up.
type EventType uint8

const (
	Pressed EventType = iota
	Released
)

// KeyIndex count: the 103-entry key-state space spec.md §3 names.
const KeyStateCount = 103

// KeyEvent is spec.md's (index, type) pair.
type KeyEvent struct {
	Index int
	Type  EventType
}

// extendedTable resolves the 14 fixed E0-prefixed two-byte sequences
// (arrows, navigation keys, right-alt/ctrl, keypad enter and slash) to a
// key-state index. The example in spec.md §8 property 10 fixes Up
// (0x48) at index 91; the rest of the table's indices are this repo's
// own assignment within the 0..102 key-state space, since spec.md does
// not enumerate them individually.
var extendedTable = map[byte]int{
	0x48: 91, // Up
	0x50: 92, // Down
	0x4B: 93, // Left
	0x4D: 94, // Right
	0x47: 95, // Home
	0x4F: 96, // End
	0x49: 97, // PageUp
	0x51: 98, // PageDown
	0x52: 99, // Insert
	0x53: 100, // Delete
	0x1D: 101, // RightCtrl
	0x38: 102, // RightAlt
	0x1C: 30, // KeypadEnter
	0x35: 31, // KeypadSlash
}

const (
	printScreenIndex = 70
	pauseIndex       = 71
)

// Decoder holds the pending-byte buffer of a single in-progress scancode
// sequence. One Decoder exists per keyboard; it is not safe for
// concurrent use; the PS/2 IRQ handler is its single caller.
type Decoder struct {
	pending []byte
}

// Handle feeds one scancode byte into the state machine. It reports a
// resolved KeyEvent and true once a complete sequence is recognized, or
// (zero value, false) while still accumulating a multi-byte sequence or
// upon encountering a malformed tail (which is dropped silently, per
// spec.md §7's no-unwind-across-a-task-boundary policy).
func (d *Decoder) Handle(sc byte) (KeyEvent, bool) {
	if len(d.pending) == 0 {
		if sc == 0xE0 || sc == 0xE1 {
			d.pending = append(d.pending, sc)
			return KeyEvent{}, false
		}
		index := int(sc&0x7F) - 1
		typ := Pressed
		if sc&0x80 != 0 {
			typ = Released
		}
		return KeyEvent{Index: index, Type: typ}, true
	}

	d.pending = append(d.pending, sc)

	switch d.pending[0] {
	case 0xE0:
		return d.handleE0()
	case 0xE1:
		return d.handleE1()
	}

	d.pending = d.pending[:0]
	return KeyEvent{}, false
}

func (d *Decoder) handleE0() (KeyEvent, bool) {
	switch len(d.pending) {
	case 2:
		tail := d.pending[1]
		if tail == 0xB7 || tail == 0x2A {
			// Print Screen's 4-byte sequence; keep accumulating.
			return KeyEvent{}, false
		}
		idx, ok := extendedTable[tail&0x7F]
		d.pending = d.pending[:0]
		if !ok {
			return KeyEvent{}, false
		}
		typ := Pressed
		if tail&0x80 != 0 {
			typ = Released
		}
		return KeyEvent{Index: idx, Type: typ}, true

	case 4:
		last := d.pending[3]
		d.pending = d.pending[:0]
		switch last {
		case 0x37:
			return KeyEvent{Index: printScreenIndex, Type: Pressed}, true
		case 0xAA:
			return KeyEvent{Index: printScreenIndex, Type: Released}, true
		default:
			return KeyEvent{}, false
		}
	}

	return KeyEvent{}, false
}

func (d *Decoder) handleE1() (KeyEvent, bool) {
	if len(d.pending) != 6 {
		return KeyEvent{}, false
	}
	d.pending = d.pending[:0]
	// Pause has no release sequence.
	return KeyEvent{Index: pauseIndex, Type: Pressed}, true
}
