package task

import (
	"testing"

	"github.com/peachsmith/osdev64-sub000/kernel"
)

func fakeAllocator(base uintptr) func(n uint64) (uintptr, *kernel.Error) {
	next := base
	return func(n uint64) (uintptr, *kernel.Error) {
		ret := next
		next += uintptr(n) * 0x1000
		return ret, nil
	}
}

// TestScenarioS3 is spec.md §8 S3: two RUNNING tasks must be selected
// A,B,A (or B,A,B) across three consecutive timer ticks.
func TestScenarioS3(t *testing.T) {
	s := NewScheduler()
	alloc := fakeAllocator(0x200000)

	a, err := s.Create(0x401000, alloc)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	s.Schedule(a)

	b, err := s.Create(0x402000, alloc)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	s.Schedule(b)

	first := s.Current().ID()
	var frame = &a.frame
	var regs = &a.regs

	var seq []uint64
	for i := 0; i < 3; i++ {
		frame, regs = s.Switch(frame, regs)
		seq = append(seq, s.Current().ID())
	}

	want := []uint64{b.ID(), a.ID(), b.ID()}
	if first == b.ID() {
		want = []uint64{a.ID(), b.ID(), a.ID()}
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("tick %d: got task %d, want %d (sequence %v)", i, seq[i], want[i], seq)
		}
	}
}

// TestSchedulerLiveness is spec.md §8 property 6: with N RUNNING tasks,
// task_switch eventually selects each one within N ticks.
func TestSchedulerLiveness(t *testing.T) {
	s := NewScheduler()
	alloc := fakeAllocator(0x300000)

	const n = 5
	ids := make(map[uint64]bool)
	for i := 0; i < n; i++ {
		tk, err := s.Create(uintptr(0x401000+i*0x10), alloc)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		s.Schedule(tk)
		ids[tk.ID()] = false
	}

	frame := &s.Current().frame
	regs := &s.Current().regs
	ids[s.Current().ID()] = true

	for i := 0; i < n; i++ {
		frame, regs = s.Switch(frame, regs)
		ids[s.Current().ID()] = true
	}

	for id, seen := range ids {
		if !seen {
			t.Fatalf("task %d never selected within %d ticks", id, n)
		}
	}
}

// TestSleepWakeOnLock is spec.md §8 property 7 (lock half): a task
// sleeping on SLEEP_SYNC(lock, &L) resumes once L becomes free.
func TestSleepWakeOnLock(t *testing.T) {
	s := NewScheduler()
	alloc := fakeAllocator(0x400000)

	a, _ := s.Create(0x401000, alloc)
	s.Schedule(a)
	b, _ := s.Create(0x402000, alloc)
	s.Schedule(b)

	var lockHeld int64 = 1
	s.SleepSync(b, SyncLock, &lockHeld)

	frame := &a.frame
	regs := &a.regs
	frame, regs = s.Switch(frame, regs)
	if s.Current().ID() != a.ID() {
		t.Fatalf("expected A to keep running while B sleeps, got task %d", s.Current().ID())
	}

	lockHeld = 0
	frame, regs = s.Switch(frame, regs)
	if s.Current().ID() != b.ID() {
		t.Fatalf("expected B to wake once the lock freed, got task %d", s.Current().ID())
	}
	if b.Status() != StatusRunning {
		t.Fatalf("expected B to be RUNNING after waking, got %v", b.Status())
	}
}

// TestSleepWakeOnTick is spec.md §8 property 7 (tick half): a task
// sleeping on SLEEP_TICK(k) does not resume until global_tick_count >= k.
func TestSleepWakeOnTick(t *testing.T) {
	s := NewScheduler()
	alloc := fakeAllocator(0x500000)

	a, _ := s.Create(0x401000, alloc)
	s.Schedule(a)
	b, _ := s.Create(0x402000, alloc)
	s.Schedule(b)

	s.SleepTicks(b, 3)

	frame := &a.frame
	regs := &a.regs
	for i := 0; i < 2; i++ {
		s.Tick()
		frame, regs = s.Switch(frame, regs)
		if s.Current().ID() != a.ID() {
			t.Fatalf("tick %d: expected B still asleep (deadline 3, now %d), got task %d", i, s.GlobalTicks(), s.Current().ID())
		}
	}

	s.Tick()
	frame, regs = s.Switch(frame, regs)
	if s.Current().ID() != b.ID() {
		t.Fatalf("expected B to wake once global_tick_count >= 3, got task %d", s.Current().ID())
	}
}

// TestStopIsReclaimedOnSwitch verifies a STOPPED task is removed from the
// run list rather than scheduled again.
func TestStopIsReclaimedOnSwitch(t *testing.T) {
	s := NewScheduler()
	alloc := fakeAllocator(0x600000)

	a, _ := s.Create(0x401000, alloc)
	s.Schedule(a)
	b, _ := s.Create(0x402000, alloc)
	s.Schedule(b)
	c, _ := s.Create(0x403000, alloc)
	s.Schedule(c)

	s.Stop(b)

	frame := &a.frame
	regs := &a.regs
	frame, regs = s.Switch(frame, regs)
	if s.Current().ID() != c.ID() {
		t.Fatalf("expected stopped B to be skipped in favor of C, got task %d", s.Current().ID())
	}

	frame, regs = s.Switch(frame, regs)
	if s.Current().ID() != a.ID() {
		t.Fatalf("expected the list to cycle back to A (length 2 after reclaiming B), got task %d", s.Current().ID())
	}
}
