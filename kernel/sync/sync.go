// Package syncprim implements the lock and counting-semaphore primitives
// of spec.md §4.6: both are backed by a shared 4 KiB pool of up to 512
// 64-bit words, tracked by a parallel occupancy bitmap, and both hand off
// to the task scheduler's sleep/wake path when a waiter chooses to sleep
// rather than spin. Named syncprim (not sync) so importers can still pull
// in the standard library's sync package without a name collision.
// Grounded on original sync.c/sync.h's pool-of-words design and on
// gopheros's style of small, directly-tested primitive types.
package syncprim

import (
	"unsafe"

	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/cpu"
	"github.com/peachsmith/osdev64-sub000/kernel/task"
)

// poolWords is the pool size spec.md §3 names: a 4 KiB backing array of
// 64-bit words (4096 / 8 = 512).
const poolWords = 512

const occupancyWords = poolWords / 64

var errPoolExhausted = &kernel.Error{Module: "sync", Message: "lock/semaphore pool exhausted"}

// Pool owns the shared word array and occupancy bitmap. One Pool exists
// per kernel instance, constructed during init per spec.md §9's
// single-owner rule.
type Pool struct {
	words    [poolWords]uint64
	occupied [occupancyWords]uint64
}

func (p *Pool) alloc() (int, *kernel.Error) {
	for w := 0; w < occupancyWords; w++ {
		if p.occupied[w] == ^uint64(0) {
			continue
		}
		for b := 0; b < 64; b++ {
			if p.occupied[w]&(1<<uint(b)) == 0 {
				p.occupied[w] |= 1 << uint(b)
				idx := w*64 + b
				p.words[idx] = 0
				return idx, nil
			}
		}
	}
	return 0, errPoolExhausted
}

func (p *Pool) free(idx int) {
	w, b := idx/64, idx%64
	p.occupied[w] &^= 1 << uint(b)
}

func (p *Pool) wordPtr(idx int) *uint64 {
	return &p.words[idx]
}

// Lock is a binary lock word: bit 0 clear means free, set means held.
type Lock struct {
	pool *Pool
	idx  int
}

// NewLock allocates a Lock from the pool, initialized free.
func (p *Pool) NewLock() (*Lock, *kernel.Error) {
	idx, err := p.alloc()
	if err != nil {
		return nil, err
	}
	return &Lock{pool: p, idx: idx}, nil
}

// Destroy returns l's slot to the pool. Callers must not use l afterward.
func (l *Lock) Destroy() {
	l.pool.free(l.idx)
}

// TryAcquire attempts a single atomic test-and-set of bit 0, reporting
// whether the lock was acquired.
func (l *Lock) TryAcquire() bool {
	return !cpu.AtomicTestAndSet(l.pool.wordPtr(l.idx), 0)
}

// Acquire implements spec.md §4.6's acquire(spin): when spin is true it
// busy-loops TryAcquire until it succeeds; when spin is false, a single
// failed attempt parks self on the scheduler via SleepSync keyed to this
// lock's word, matching acquire's "sleep until the bit is seen clear"
// semantics. A parked task is expected to retry Acquire once the
// scheduler resumes it — the wake predicate only promises the bit looked
// clear at that moment, not that it still is, mirroring the original's
// non-atomic wake-then-retry pattern.
func (l *Lock) Acquire(sched *task.Scheduler, self *task.Task, spin bool) {
	for {
		if l.TryAcquire() {
			return
		}
		if spin {
			continue
		}
		sched.SleepSync(self, task.SyncLock, l.syncValue())
		return
	}
}

// Release clears bit 0, freeing the lock for the next acquirer.
func (l *Lock) Release() {
	cpu.AtomicClear(l.pool.wordPtr(l.idx), 0)
}

// syncValue exposes the lock's word as the *int64 the scheduler's wake
// predicate reads (0 == free), matching Task.syncValue's type.
func (l *Lock) syncValue() *int64 {
	return (*int64)(unsafe.Pointer(l.pool.wordPtr(l.idx)))
}

// Semaphore is a signed counting semaphore: positive means permits
// available.
type Semaphore struct {
	pool *Pool
	idx  int
}

// NewSemaphore allocates a Semaphore from the pool with the given initial
// count.
func (p *Pool) NewSemaphore(initial int64) (*Semaphore, *kernel.Error) {
	idx, err := p.alloc()
	if err != nil {
		return nil, err
	}
	*(*int64)(unsafe.Pointer(p.wordPtr(idx))) = initial
	return &Semaphore{pool: p, idx: idx}, nil
}

// Destroy returns s's slot to the pool.
func (s *Semaphore) Destroy() {
	s.pool.free(s.idx)
}

func (s *Semaphore) counter() *int64 {
	return (*int64)(unsafe.Pointer(s.pool.wordPtr(s.idx)))
}

// TryWait atomically decrements the counter and reports whether it stayed
// non-negative, i.e. whether a permit was available; when the decrement
// takes the counter below zero it is undone and TryWait reports false.
func (s *Semaphore) TryWait() bool {
	if cpu.AtomicAddInt64(s.counter(), -1) >= 0 {
		return true
	}
	cpu.AtomicAddInt64(s.counter(), 1)
	return false
}

// Wait implements wait(spin): spins on TryWait when spin is true, or
// parks self asleep keyed to the counter's address otherwise.
func (s *Semaphore) Wait(sched *task.Scheduler, self *task.Task, spin bool) {
	for {
		if s.TryWait() {
			return
		}
		if spin {
			continue
		}
		sched.SleepSync(self, task.SyncSemaphore, s.counter())
		return
	}
}

// Signal atomically increments the counter; the scheduler's wake
// predicate (task.SyncSemaphore) resumes sleeping waiters once it goes
// positive.
func (s *Semaphore) Signal() {
	cpu.AtomicAddInt64(s.counter(), 1)
}
