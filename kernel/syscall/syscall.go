// Package syscall implements the dispatcher of spec.md §4.7: a single
// software-interrupt vector receiving (id, d1, d2, d3, d4) and acting on
// the current task, the lock/semaphore pool, and FILE streams. Grounded
// on the original syscall.c's switch-on-id dispatch table.
package syscall

import (
	"unsafe"

	"github.com/peachsmith/osdev64-sub000/kernel/fstream"
	"github.com/peachsmith/osdev64-sub000/kernel/irq"
	syncprim "github.com/peachsmith/osdev64-sub000/kernel/sync"
	"github.com/peachsmith/osdev64-sub000/kernel/task"
)

// ID names the recognized syscall numbers of spec.md §4.7's table.
type ID uint64

const (
	Start ID = iota + 1
	Stop
	SleepSync
	SleepTick
	Write
	Read
)

// Dispatcher wires the scheduler, the sync pool, and the stream table
// together so ISR 0x40 can resolve a syscall without reaching into
// package internals. One Dispatcher exists per kernel instance.
type Dispatcher struct {
	Scheduler *task.Scheduler
	Pool      *syncprim.Pool
	Streams   map[uint64]*fstream.Stream
}

// NewDispatcher builds a Dispatcher over the given collaborators.
func NewDispatcher(sched *task.Scheduler, pool *syncprim.Pool) *Dispatcher {
	return &Dispatcher{Scheduler: sched, Pool: pool, Streams: make(map[uint64]*fstream.Stream)}
}

// RegisterStream makes a stream addressable by its handle for WRITE/READ,
// matching spec.md §4.9's "stream identity is by pointer" model: the
// handle is the stream's own address.
func (d *Dispatcher) RegisterStream(s *fstream.Stream) uint64 {
	h := uint64(uintptr(unsafe.Pointer(s)))
	d.Streams[h] = s
	return h
}

// Dispatch executes the syscall named by id against the current task and
// returns the value to place in the return-value register (RAX in the
// real ABI): the written/read byte count for WRITE/READ, 0 otherwise.
// current must be the task that trapped into this syscall.
func (d *Dispatcher) Dispatch(id ID, d1, d2, d3, d4 uint64, current *task.Task) uint64 {
	switch id {
	case Start:
		// Reserved for future task bring-up, per spec.md §4.7's table.
		return 0

	case Stop:
		d.Scheduler.Stop(current)
		return 0

	case SleepSync:
		kind := task.SyncKind(d2)
		value := (*int64)(unsafe.Pointer(uintptr(d3)))
		d.Scheduler.SleepSync(current, kind, value)
		return 0

	case SleepTick:
		deadline := d.Scheduler.GlobalTicks() + d2
		d.Scheduler.SleepTicks(current, deadline)
		return 0

	case Write:
		return d.write(d1, d2, d3)

	case Read:
		return d.read(d1, d2, d3)

	default:
		return 0
	}
}

func (d *Dispatcher) write(handle, srcPtr, n uint64) uint64 {
	s, ok := d.Streams[handle]
	if !ok {
		return 0
	}
	src := (*[fstream.BufSize]byte)(unsafe.Pointer(uintptr(srcPtr)))
	count := int(n)
	if count > fstream.BufSize {
		count = fstream.BufSize
	}
	return uint64(s.Write(src[:count]))
}

func (d *Dispatcher) read(handle, dstPtr, n uint64) uint64 {
	s, ok := d.Streams[handle]
	if !ok {
		return 0
	}
	dst := (*[fstream.BufSize]byte)(unsafe.Pointer(uintptr(dstPtr)))
	count := int(n)
	if count > fstream.BufSize {
		count = fstream.BufSize
	}
	return uint64(s.Read(dst[:count]))
}

// HandlerFrom adapts a Dispatcher into an irq.Handler for installation at
// irq.VectorSoftSleep (0x40), reading the syscall ABI's five registers
// from regs and writing the result back into RAX.
func HandlerFrom(d *Dispatcher, idOf func(*irq.Regs) (id, d1, d2, d3, d4 uint64), current func() *task.Task) irq.Handler {
	return func(vector uint8, frame *irq.Frame, regs *irq.Regs) *irq.Regs {
		id, d1, d2, d3, d4 := idOf(regs)
		regs.RAX = d.Dispatch(ID(id), d1, d2, d3, d4, current())
		return regs
	}
}
