// Package task implements the preemptive round-robin scheduler of
// spec.md §4.5: per-task register frames, a status lifecycle, and a
// synchronization-aware wake predicate. Grounded on the circular-list
// algorithm of the original task.c, adapted per spec.md §9's Design Note
// to use arena-indexed next links instead of raw pointers, so the arena
// remains the scheduler's sole owner of task memory.
package task

import (
	"unsafe"

	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/irq"
	"github.com/peachsmith/osdev64-sub000/kernel/mem/pmm"
)

// Status is a Task's position in its lifecycle (spec.md §3).
type Status uint8

const (
	StatusNew Status = iota
	StatusRunning
	StatusSleeping
	StatusStopped
	StatusRemoved
)

// SyncKind resolves the Open Question in spec.md §9: the original source
// carried two conflicting numeric taxonomies (TASK_SYNC_LOCK=1/
// TASK_SYNC_SEMAPHORE=2 in task.c vs SYNC_SLEEP=0/SYNC_SPIN=1 in sync.h).
// This repo keeps one coherent enum for "what a sleeping task is waiting
// on"; the separate spin-vs-sleep choice lives on sync.Lock/Semaphore's
// Acquire/Wait as a plain bool.
type SyncKind uint8

const (
	SyncNone SyncKind = iota
	SyncLock
	SyncSemaphore
	SyncTick
)

// MaxTasks bounds the scheduler's task arena. Not named explicitly in
// spec.md; sized generously above the handful of tasks (TTY, shell,
// keyboard-adjacent housekeeping) this kernel actually creates.
const MaxTasks = 64

// taskPages is the five contiguous pages (stack + task state + register
// frame) spec.md §3 assigns to each task.
const taskPages = 5

// stackTop is the per-task stack size in bytes (four of the five pages),
// used as the initial RSP/RBP offset from the task's memory base.
const stackTop = 0x4000

var (
	// ErrOutOfMemory is returned by Create when the backing page
	// allocator cannot provide five pages.
	ErrOutOfMemory = &kernel.Error{Module: "task", Message: "out of memory"}

	// ErrNoFreeSlot is returned by Create when the task arena is full.
	ErrNoFreeSlot = &kernel.Error{Module: "task", Message: "task arena exhausted"}
)

// Task is spec.md's Task record. next is an index into Scheduler.arena, or
// -1 until Schedule links the task into the run list; a task that is the
// sole member of the list links to itself.
type Task struct {
	memBase   uintptr
	frame     irq.Frame
	regs      irq.Regs
	id        uint64
	status    Status
	syncValue *int64
	syncKind  SyncKind
	wakeTick  uint64
	next      int
	inUse     bool
}

// ID returns the task's identifier.
func (t *Task) ID() uint64 { return t.id }

// Status returns the task's current lifecycle status.
func (t *Task) Status() Status { return t.status }

// Frame returns the task's saved interrupt-return frame. The IRQ
// dispatcher and test harnesses use this to drive Scheduler.Switch.
func (t *Task) Frame() *irq.Frame { return &t.frame }

// Regs returns the task's saved general-purpose registers.
func (t *Task) Regs() *irq.Regs { return &t.regs }

// Scheduler owns the task arena and the circular run list, constructed
// once during init per spec.md §9's single-owner rule.
type Scheduler struct {
	arena       [MaxTasks]Task
	current     int // index of the current task, -1 if no tasks exist
	nextID      uint64
	globalTicks uint64
}

// NewScheduler returns a Scheduler ready to create and run tasks. Task IDs
// start at 2: id 1 is reserved for the primer task that seeds "current"
// before any real task exists, matching task.c's g_task_count = 1 plus its
// pre-increment on first Create.
func NewScheduler() *Scheduler {
	return &Scheduler{current: -1, nextID: 2}
}

// Create allocates five pages for stack + task state + register frame,
// fabricates the initial interrupt-return frame (SS=0x10, RFLAGS with
// IF=1, CS=0x08, RIP=entry), and marks the task NEW. It does not insert
// the task into the run list; call Schedule for that.
func (s *Scheduler) Create(entry uintptr, allocPages pmm.PageAllocatorFn) (*Task, *kernel.Error) {
	base, err := allocPages(taskPages)
	if err != nil {
		return nil, ErrOutOfMemory
	}

	slot := -1
	for i := range s.arena {
		if !s.arena[i].inUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		return nil, ErrNoFreeSlot
	}

	t := &s.arena[slot]
	*t = Task{}
	t.memBase = base
	t.inUse = true
	t.status = StatusNew
	t.id = s.nextID
	s.nextID++
	t.next = -1

	t.frame = irq.Frame{
		SS:     0x10,
		RSP:    uint64(base) + stackTop,
		RFlags: 0x200, // IF
		CS:     0x08,
		RIP:    uint64(entry),
	}
	t.regs = irq.Regs{RBP: uint64(base) + stackTop}

	return t, nil
}

// Schedule inserts t as current.next, yielding a circular list; if the
// list was empty, t becomes both current and the (single-element) list.
// Matches k_task_schedule.
func (s *Scheduler) Schedule(t *Task) {
	idx := s.indexOf(t)

	if s.current == -1 {
		s.current = idx
		t.next = idx
		t.status = StatusRunning
		return
	}

	cur := &s.arena[s.current]
	t.next = cur.next
	cur.next = idx
	t.status = StatusRunning
}

// indexOf recovers t's position in the arena by pointer arithmetic, since
// Task itself carries no back-reference to its slot.
func (s *Scheduler) indexOf(t *Task) int {
	base := uintptr(unsafe.Pointer(&s.arena[0]))
	addr := uintptr(unsafe.Pointer(t))
	stride := unsafe.Sizeof(s.arena[0])
	return int((addr - base) / stride)
}

// Current returns the currently running task, or nil if none has been
// scheduled yet.
func (s *Scheduler) Current() *Task {
	if s.current == -1 {
		return nil
	}
	return &s.arena[s.current]
}

// Tick advances the global tick counter; cmd/kernel's IRQ0 timer handler
// calls this once per interrupt before invoking Switch, so SleepTicks deadlines are evaluated
// against up-to-date state even in the degenerate all-tasks-sleeping case
// spec.md §4.5 describes.
func (s *Scheduler) Tick() {
	s.globalTicks++
}

// GlobalTicks returns the tick counter driven by Tick.
func (s *Scheduler) GlobalTicks() uint64 {
	return s.globalTicks
}

// Switch is the timer ISR's hook: it stores frame/regs into the current
// task, reclaims STOPPED successors, advances to the next runnable task
// per the wake predicate of spec.md §4.5, and returns that task's saved
// frame/regs. If no task has ever been scheduled, frame/regs pass through
// unchanged.
func (s *Scheduler) Switch(frame *irq.Frame, regs *irq.Regs) (*irq.Frame, *irq.Regs) {
	if s.current == -1 {
		return frame, regs
	}

	cur := &s.arena[s.current]
	cur.frame = *frame
	cur.regs = *regs
	start := s.current

	// Walk forward looking for a task ready to run: RUNNING outright, or
	// SLEEPING with a satisfied wake predicate. Stopped tasks found along
	// the way are unlinked from their actual predecessor. If a full
	// revolution finds none, the original task (still RUNNING, since it
	// was never put to sleep) keeps the CPU, matching k_task_switch's
	// behavior when every other task is blocked.
	prev := start
	candidate := s.arena[start].next
	for i := 0; i < MaxTasks; i++ {
		if candidate == start {
			break
		}
		t := &s.arena[candidate]
		if t.status == StatusStopped {
			s.arena[prev].next = t.next
			stopped := candidate
			candidate = t.next
			s.arena[stopped].status = StatusRemoved
			s.arena[stopped].inUse = false
			continue
		}
		if t.status == StatusRunning {
			s.current = candidate
			break
		}
		if t.status == StatusSleeping && s.evaluateWake(t) {
			s.current = candidate
			break
		}
		prev = candidate
		candidate = t.next
	}

	// A task that stopped itself (e.g. via the STOP syscall) is still
	// "start" at this point; if we moved off of it, unlink it from its
	// predecessor, found by following next from the new current task.
	if s.arena[start].status == StatusStopped && s.current != start {
		p := s.current
		for s.arena[p].next != start {
			p = s.arena[p].next
		}
		s.arena[p].next = s.arena[start].next
		s.arena[start].status = StatusRemoved
		s.arena[start].inUse = false
	}

	next := &s.arena[s.current]
	return &next.frame, &next.regs
}

// evaluateWake applies spec.md §4.5 step 5's wake predicate to t, flipping
// it to RUNNING if satisfied. It reports whether t woke.
func (s *Scheduler) evaluateWake(t *Task) bool {
	switch t.syncKind {
	case SyncLock:
		if *t.syncValue == 0 {
			t.status = StatusRunning
			return true
		}
	case SyncSemaphore:
		if *t.syncValue > 0 {
			t.status = StatusRunning
			return true
		}
	case SyncTick:
		if s.globalTicks >= t.wakeTick {
			t.status = StatusRunning
			return true
		}
	default:
		return false
	}
	return false
}

// Stop marks t STOPPED; it is reclaimed by the next Switch. Matches
// k_task_stop. A task reaches STOP by issuing the stop syscall itself
// (kernel/syscall's Stop case); k_task_end's other path in the original —
// a task falling off the end of its entry point and transitioning itself
// via a sentinel return address planted atop its stack — has no analogue
// here, since Create's entry is a bare RIP value no Go code ever actually
// jumps to or returns from without the out-of-scope asm trampoline.
func (s *Scheduler) Stop(t *Task) {
	t.status = StatusStopped
}

// SleepSync sets t's sync value/kind and marks it SLEEPING, matching
// k_task_sleep's (val, typ) form for SYSCALL_SLEEP_SYNC.
func (s *Scheduler) SleepSync(t *Task, kind SyncKind, value *int64) {
	t.syncValue = value
	t.syncKind = kind
	t.status = StatusSleeping
}

// SleepTicks sets t's wake deadline and marks it SLEEPING, matching
// k_task_sleep's SYSCALL_SLEEP_TICK form.
func (s *Scheduler) SleepTicks(t *Task, deadline uint64) {
	t.syncKind = SyncTick
	t.wakeTick = deadline
	t.status = StatusSleeping
}
