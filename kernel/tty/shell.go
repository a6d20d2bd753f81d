package tty

import "github.com/peachsmith/osdev64-sub000/kernel/fstream"

// Shell is the symmetric demo task spec.md §4.8 describes: it reads its
// own stdout stream (so anything written there becomes visible to a
// reader of the same stream) and can write back to it, demonstrating the
// pipe semantics without a dedicated input stream. Grounded on the
// original task_demo.c/app_demo.c pairing.
type Shell struct {
	stdout *fstream.Stream
}

// NewShell constructs a Shell writing to and reading from stdout.
func NewShell(stdout *fstream.Stream) *Shell {
	return &Shell{stdout: stdout}
}

// Emit writes a line (without a trailing newline; callers add one if they
// want a new TTY line) to the shell's stdout stream, returning the count
// actually written per the non-blocking WRITE semantics of spec.md §4.7.
func (s *Shell) Emit(line string) int {
	return s.stdout.Write([]byte(line))
}

// Drain reads back whatever the shell itself (or the TTY, via the same
// pointer) has written, up to len(buf) bytes.
func (s *Shell) Drain(buf []byte) int {
	return s.stdout.Read(buf)
}
