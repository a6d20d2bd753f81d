// Package tty implements the key-event-consuming terminal loop of
// spec.md §4.8: an output buffer, a command buffer, shift-aware printable
// character handling, ENTER/BACKSPACE editing, and a render step that
// redraws glyphs and a cursor into the framebuffer. Grounded on the TTY
// loop described in spec.md §4.8 and the original tty.c/console.c pair,
// adapted to read events from kernel/ps2's ring and to render through the
// kernel/video/console collaborator instead of writing VRAM directly.
package tty

import (
	"github.com/peachsmith/osdev64-sub000/kernel/fstream"
	"github.com/peachsmith/osdev64-sub000/kernel/ps2"
)

const (
	outputBufSize  = 4096
	commandBufSize = 1024
)

// Scancode indices for the editing keys the TTY loop special-cases. These
// follow the same "(byte & 0x7F) - 1" index space ps2.Decoder produces:
// ENTER (0x1C), BACKSPACE (0x0E), and the two shift keys (0x2A, 0x36).
const (
	indexEnter     = (0x1C & 0x7F) - 1
	indexBackspace = (0x0E & 0x7F) - 1
	indexLShift    = (0x2A & 0x7F) - 1
	indexRShift    = (0x36 & 0x7F) - 1
)

// Renderer is the graphics collaborator the TTY draws through; satisfied
// by kernel/video/console.Console.
type Renderer interface {
	DrawGlyphs(text []byte)
	DrawCursor(col, row int)
}

// printable maps a key-state index to its unshifted/shifted ASCII byte.
// An index absent from printableTable has no printable mapping (arrows,
// function keys, etc.).
type printable struct {
	lower, upper byte
}

// printableTable covers the letter row and common punctuation using
// scancode-set-1 index positions; entries not present are not printable.
// Grounded on the standard set-1 layout the original console.c's
// translation table uses.
var printableTable = map[int]printable{
	15: {'q', 'Q'}, 16: {'w', 'W'}, 17: {'e', 'E'}, 18: {'r', 'R'},
	19: {'t', 'T'}, 20: {'y', 'Y'}, 21: {'u', 'U'}, 22: {'i', 'I'},
	23: {'o', 'O'}, 24: {'p', 'P'},
	29: {'a', 'A'}, 30: {'s', 'S'}, 31: {'d', 'D'}, 32: {'f', 'F'},
	33: {'g', 'G'}, 34: {'h', 'H'}, 35: {'j', 'J'}, 36: {'k', 'K'},
	37: {'l', 'L'},
	43: {'z', 'Z'}, 44: {'x', 'X'}, 45: {'c', 'C'}, 46: {'v', 'V'},
	47: {'b', 'B'}, 48: {'n', 'N'}, 49: {'m', 'M'},
	56: {' ', ' '},
}

// Task holds the TTY's editing state. Construct with NewTask; call Tick
// once per scheduler pass to drain pending key events and the shell's
// output stream.
type Task struct {
	in       *ps2.Ring
	keys     ps2.KeyStates
	shellOut *fstream.Stream
	render   Renderer

	output  []byte
	command []byte

	lshift, rshift bool
	dirty          bool
}

// NewTask constructs a TTY task reading key events from in and the
// shell's stdout stream, rendering through r.
func NewTask(in *ps2.Ring, shellOut *fstream.Stream, r Renderer) *Task {
	return &Task{in: in, shellOut: shellOut, render: r}
}

// Output returns the current contents of the output buffer (for tests and
// diagnostics; production rendering goes through Renderer instead).
func (t *Task) Output() []byte {
	return t.output
}

// Command returns the current contents of the command buffer.
func (t *Task) Command() []byte {
	return t.command
}

// Tick runs one pass of the TTY loop: drain every pending key event,
// then drain the shell's stdout stream, then render if anything changed.
func (t *Task) Tick() {
	t.dirty = false

	for {
		ev, ok := t.in.Pop()
		if !ok {
			break
		}
		t.handleEvent(ev)
	}

	buf := make([]byte, 256)
	for {
		n := t.shellOut.Read(buf)
		if n == 0 {
			break
		}
		t.appendOutput(buf[:n]...)
		t.dirty = true
	}

	if t.dirty && t.render != nil {
		t.render.DrawGlyphs(t.output)
		t.render.DrawCursor(len(t.command)%80, len(t.command)/80)
	}
}

func (t *Task) handleEvent(ev ps2.KeyEvent) {
	t.keys.Apply(ev)

	switch ev.Index {
	case indexLShift:
		t.lshift = ev.Type == ps2.Pressed
		return
	case indexRShift:
		t.rshift = ev.Type == ps2.Pressed
		return
	}

	if ev.Type != ps2.Pressed {
		return
	}

	switch ev.Index {
	case indexEnter:
		t.appendOutput('\n')
		t.dirty = true
		return
	case indexBackspace:
		if len(t.command) > 0 {
			t.command = t.command[:len(t.command)-1]
		}
		if len(t.output) > 0 {
			t.output = t.output[:len(t.output)-1]
		}
		t.dirty = true
		return
	}

	p, ok := printableTable[ev.Index]
	if !ok {
		return
	}
	ch := p.lower
	if t.lshift || t.rshift {
		ch = p.upper
	}
	t.command = append(t.command, ch)
	t.appendOutput(ch)
	t.dirty = true
}

func (t *Task) appendOutput(b ...byte) {
	t.output = append(t.output, b...)
	if len(t.output) > outputBufSize {
		t.output = t.output[len(t.output)-outputBufSize:]
	}
	if len(t.command) > commandBufSize {
		t.command = t.command[len(t.command)-commandBufSize:]
	}
}
