package ps2

// RingSize is the 1024-entry capacity of the key-event ring spec.md §3
// names. As with kernel/fstream, one slot is always kept empty so
// writer+1==reader can distinguish full from empty.
const RingSize = 1024

// Ring is the PS/2 driver's lock-free SPSC event queue: the IRQ handler
// is the sole producer, the TTY task the sole consumer.
type Ring struct {
	buf    [RingSize]KeyEvent
	writer int
	reader int
}

// Push appends an event, refusing (returning false) when the ring is
// full rather than overwriting the oldest entry, matching spec.md §4.8's
// "it never overwrites".
func (r *Ring) Push(ev KeyEvent) bool {
	next := (r.writer + 1) % RingSize
	if next == r.reader {
		return false
	}
	r.buf[r.writer] = ev
	r.writer = next
	return true
}

// Pop removes and returns the oldest pending event. ok is false when the
// ring is empty.
func (r *Ring) Pop() (KeyEvent, bool) {
	if r.reader == r.writer {
		return KeyEvent{}, false
	}
	ev := r.buf[r.reader]
	r.reader = (r.reader + 1) % RingSize
	return ev, true
}

// KeyStates is the 103-byte parallel array spec.md §3 names, tracking the
// most recently observed pressed/released state for every key index.
type KeyStates [KeyStateCount]bool

// Apply updates the state array with ev, marking the index pressed (true)
// or released (false).
func (k *KeyStates) Apply(ev KeyEvent) {
	if ev.Index < 0 || ev.Index >= KeyStateCount {
		return
	}
	k[ev.Index] = ev.Type == Pressed
}
