package syscall

import (
	"testing"
	"unsafe"

	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/fstream"
	syncprim "github.com/peachsmith/osdev64-sub000/kernel/sync"
	"github.com/peachsmith/osdev64-sub000/kernel/task"
)

func fakeAllocator(base uintptr) func(n uint64) (uintptr, *kernel.Error) {
	next := base
	return func(n uint64) (uintptr, *kernel.Error) {
		ret := next
		next += uintptr(n) * 0x1000
		return ret, nil
	}
}

func newDispatcher(t *testing.T) (*Dispatcher, *task.Scheduler, *task.Task) {
	t.Helper()
	sched := task.NewScheduler()
	var pool syncprim.Pool
	d := NewDispatcher(sched, &pool)

	alloc := fakeAllocator(0x900000)
	tk, err := sched.Create(0x401000, alloc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sched.Schedule(tk)
	return d, sched, tk
}

func TestWriteAndRead(t *testing.T) {
	d, _, tk := newDispatcher(t)

	stream := fstream.New(fstream.KindStdout)
	handle := d.RegisterStream(stream)

	src := []byte("hi there")
	srcAddr := uint64(uintptr(unsafe.Pointer(&src[0])))

	n := d.Dispatch(Write, handle, srcAddr, uint64(len(src)), 0, tk)
	if n != uint64(len(src)) {
		t.Fatalf("WRITE returned %d, want %d", n, len(src))
	}

	dst := make([]byte, len(src))
	dstAddr := uint64(uintptr(unsafe.Pointer(&dst[0])))
	n = d.Dispatch(Read, handle, dstAddr, uint64(len(dst)), 0, tk)
	if n != uint64(len(dst)) || string(dst) != "hi there" {
		t.Fatalf("READ returned %q (n=%d)", dst[:n], n)
	}
}

func TestReadFromUnknownStreamReturnsZero(t *testing.T) {
	d, _, tk := newDispatcher(t)
	dst := make([]byte, 8)
	dstAddr := uint64(uintptr(unsafe.Pointer(&dst[0])))
	if n := d.Dispatch(Read, 0xdeadbeef, dstAddr, 8, 0, tk); n != 0 {
		t.Fatalf("expected 0 for an unregistered stream handle, got %d", n)
	}
}

func TestStopMarksTaskStopped(t *testing.T) {
	d, _, tk := newDispatcher(t)
	d.Dispatch(Stop, 0, 0, 0, 0, tk)
	if tk.Status() != task.StatusStopped {
		t.Fatalf("expected STOPPED after the STOP syscall, got %v", tk.Status())
	}
}

func TestSleepTickSetsDeadlineRelativeToNow(t *testing.T) {
	d, sched, tk := newDispatcher(t)
	sched.Tick()
	sched.Tick()

	d.Dispatch(SleepTick, 0, 5, 0, 0, tk)
	if tk.Status() != task.StatusSleeping {
		t.Fatalf("expected SLEEPING after SLEEP_TICK, got %v", tk.Status())
	}

	// wake deadline is global_tick_count (2) + d2 (5) = 7
	for i := 0; i < 4; i++ {
		sched.Tick()
	}
	// still short of the deadline at tick 6
	if sched.GlobalTicks() != 6 {
		t.Fatalf("tick bookkeeping drifted: got %d", sched.GlobalTicks())
	}

	// a second task gives Switch somewhere to go, so the wake predicate is
	// evaluated for tk on the way back round the list
	b, _ := sched.Create(0x402000, fakeAllocator(0xA00000))
	sched.Schedule(b)
	frame, regs := sched.Switch(tk.Frame(), tk.Regs())
	frame, regs = sched.Switch(frame, regs)
	if tk.Status() != task.StatusSleeping {
		t.Fatalf("expected the task still SLEEPING at tick 6, got %v", tk.Status())
	}
	sched.Tick()
	sched.Switch(frame, regs)
	if tk.Status() != task.StatusRunning {
		t.Fatalf("expected the task to wake at tick 7, got %v", tk.Status())
	}
}

func TestSleepSyncWiresIntoSchedulerWakePredicate(t *testing.T) {
	d, sched, a := newDispatcher(t)

	alloc := fakeAllocator(0xA00000)
	b, _ := sched.Create(0x402000, alloc)
	sched.Schedule(b)

	var lockWord int64 = 1
	d.Dispatch(SleepSync, 0, uint64(task.SyncLock), uint64(uintptr(unsafe.Pointer(&lockWord))), 0, b)
	if b.Status() != task.StatusSleeping {
		t.Fatalf("expected B SLEEPING after SLEEP_SYNC, got %v", b.Status())
	}

	lockWord = 0
	if _, _ = sched.Switch(a.Frame(), a.Regs()); sched.Current().ID() != b.ID() {
		t.Fatalf("expected B to wake once the lock value cleared, got task %d", sched.Current().ID())
	}
}
