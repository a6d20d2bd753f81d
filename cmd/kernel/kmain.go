// Command kernel is the rt0 entry point: the single Go symbol handed
// control once the bootloader's assembly stub has set up a GDT, a
// minimal stack and jumped to Go code. Grounded on gopher-os's
// kernel/kmain package, which performs the same allocator -> vmm ->
// runtime bring-up sequence before falling into its idle loop; this
// version additionally brings up the interrupt/task/sync/syscall/tty
// stack SPEC_FULL.md's component design adds on top of that baseline.
package main

import (
	"unsafe"

	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/acpi"
	"github.com/peachsmith/osdev64-sub000/kernel/cpu"
	"github.com/peachsmith/osdev64-sub000/kernel/cpuid"
	"github.com/peachsmith/osdev64-sub000/kernel/fstream"
	"github.com/peachsmith/osdev64-sub000/kernel/hal"
	"github.com/peachsmith/osdev64-sub000/kernel/ide"
	"github.com/peachsmith/osdev64-sub000/kernel/irq"
	"github.com/peachsmith/osdev64-sub000/kernel/kfmt"
	"github.com/peachsmith/osdev64-sub000/kernel/mem"
	"github.com/peachsmith/osdev64-sub000/kernel/mem/heap"
	"github.com/peachsmith/osdev64-sub000/kernel/mem/pmm"
	"github.com/peachsmith/osdev64-sub000/kernel/mem/vmm"
	"github.com/peachsmith/osdev64-sub000/kernel/mtrr"
	"github.com/peachsmith/osdev64-sub000/kernel/pci"
	"github.com/peachsmith/osdev64-sub000/kernel/pit"
	"github.com/peachsmith/osdev64-sub000/kernel/ps2"
	"github.com/peachsmith/osdev64-sub000/kernel/serial"
	syncprim "github.com/peachsmith/osdev64-sub000/kernel/sync"
	"github.com/peachsmith/osdev64-sub000/kernel/syscall"
	"github.com/peachsmith/osdev64-sub000/kernel/task"
	"github.com/peachsmith/osdev64-sub000/kernel/tty"
	"github.com/peachsmith/osdev64-sub000/kernel/video/console"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// system bundles the bring-up state Kmain wires up, so boot steps can be
// read top-to-bottom as one function.
type system struct {
	pmm       pmm.Allocator
	paging    vmm.Paging
	gdt       cpu.GDT
	idt       irq.IDT
	heap      heap.Heap
	scheduler *task.Scheduler
	pool      *syncprim.Pool
	dispatch  *syscall.Dispatcher
	con       *console.Console
	ps2dec    ps2.Decoder
	keyRing   ps2.Ring
	ttyTask   *tty.Task
	shell     *tty.Shell
}

// Kmain is invoked by the rt0 assembly stub with the firmware-provided
// collaborators spec.md §6 names. It is not expected to return; if it
// does, main reports errKmainReturned through kernel.Panic, which halts.
//
//go:noinline
func Kmain(memMap hal.MemoryMap, fb hal.Framebuffer, font *hal.Font, rsdp hal.RSDP, fbBytes []byte) {
	serial.Init()
	kfmt.SetOutputSink(serialWriter{})
	kfmt.Printf("booting\n")

	var sys system
	if err := sys.pmm.Init(mapFromHAL(memMap)); err != nil {
		kernel.Panic(err)
	}
	if err := sys.paging.Init(); err != nil {
		kernel.Panic(err)
	}
	if err := sys.gdt.Init(sys.pmm.AllocPages); err != nil {
		kernel.Panic(err)
	}
	sys.gdt.Load()
	if err := sys.idt.Init(); err != nil {
		kernel.Panic(err)
	}
	irq.RemapPIC(0x20, 0x28)
	sys.idt.Load()
	if err := sys.heap.Init(sys.pmm.AllocPages); err != nil {
		kernel.Panic(err)
	}

	var err *kernel.Error
	sys.con, err = console.New(fb, fbBytes, font)
	if err != nil {
		kernel.Panic(err)
	}

	sys.scheduler = task.NewScheduler()
	sys.pool = &syncprim.Pool{}
	sys.dispatch = syscall.NewDispatcher(sys.scheduler, sys.pool)

	stddbg := fstream.NewDebug(serial.Putc)
	sys.dispatch.RegisterStream(stddbg)

	shellOut := fstream.New(fstream.KindStdout)
	sys.shell = tty.NewShell(shellOut)
	sys.dispatch.RegisterStream(shellOut)

	sys.ttyTask = tty.NewTask(&sys.keyRing, shellOut, sys.con)

	sys.idt.Install(irq.VectorPICBase, sys.timerHandler())
	sys.idt.Install(irq.VectorPICBase+1, sys.keyboardHandler())
	sys.idt.Install(irq.VectorSoftSleep, syscall.HandlerFrom(sys.dispatch, decodeSyscallRegs, func() *task.Task { return sys.scheduler.Current() }))

	if entries := acpiEntries(rsdp); len(entries) > 0 {
		kfmt.Printf("acpi: found %d tables\n", len(entries))
	}
	for _, fn := range pci.Probe() {
		kfmt.Printf("pci: %02x:%02x.%x %04x:%04x\n", fn.Bus, fn.Device, fn.Func, fn.VendorID, fn.DeviceID)
	}
	for _, d := range ide.ProbeAll() {
		kfmt.Printf("ide: %s\n", d.Model)
	}
	kfmt.Printf("cpu: %s\n", cpuid.Vendor())
	_ = mtrr.ReadCapabilities()

	pit.Init(60)
	cpu.EnableInterrupts()

	for {
		cpu.Halt()
	}
}

// timerHandler answers IRQ0 (vector 0x20): advance the global tick count,
// let the scheduler pick the next runnable task, and acknowledge the PIC.
func (sys *system) timerHandler() irq.Handler {
	return func(vector uint8, frame *irq.Frame, regs *irq.Regs) *irq.Regs {
		sys.scheduler.Tick()
		nextFrame, nextRegs := sys.scheduler.Switch(frame, regs)
		irq.SendEOI(0)
		*frame = *nextFrame
		return nextRegs
	}
}

// keyboardHandler answers IRQ1 (vector 0x21): read the scancode from the
// PS/2 data port, decode it, and push the resulting key event onto the
// TTY's event ring; the TTY applies it to its key-state table on pop.
func (sys *system) keyboardHandler() irq.Handler {
	const ps2DataPort = 0x60
	return func(vector uint8, frame *irq.Frame, regs *irq.Regs) *irq.Regs {
		sc := cpu.Inb(ps2DataPort)
		if ev, ok := sys.ps2dec.Handle(sc); ok {
			sys.keyRing.Push(ev)
		}
		irq.SendEOI(1)
		return regs
	}
}

// decodeSyscallRegs reads the 5-register syscall ABI this repo adopts:
// id in RDI, then d1-d4 in RSI, RDX, RCX, R8, mirroring the original
// k_syscall's SysV-ABI argument order (id, data1, data2, data3, data4).
func decodeSyscallRegs(regs *irq.Regs) (id, d1, d2, d3, d4 uint64) {
	return regs.RDI, regs.RSI, regs.RDX, regs.RCX, regs.R8
}

// uefiConventionalMemory is the EFI_CONVENTIONAL_MEMORY descriptor type;
// only regions of this type are usable RAM and handed to the allocator.
const uefiConventionalMemory = 7

func mapFromHAL(m hal.MemoryMap) []mem.Region {
	regions := make([]mem.Region, 0, len(m))
	for _, r := range m {
		if r.Type != uefiConventionalMemory {
			continue
		}
		regions = append(regions, mem.Region{
			PhysicalBase: r.PhysicalStart,
			PageCount:    r.Pages,
		})
	}
	return regions
}

// lowMemoryWindow is the size of the identity-mapped low physical memory
// region acpi.Walk needs to follow table pointers; both the RSDP itself
// (0xE0000-0xFFFFF per the ACPI spec) and most RSDT/XSDT entries fall
// within the first megabyte on the firmware targets this boots on.
const lowMemoryWindow = 0x100000

func acpiEntries(rsdp hal.RSDP) []acpi.Header {
	physMem := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(0))), lowMemoryWindow)
	headers, err := acpi.Walk(physMem, rsdp)
	if err != nil {
		return nil
	}
	return headers
}

// serialWriter adapts serial.Putc to kfmt's io.Writer sink.
type serialWriter struct{}

func (serialWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		serial.Putc(b)
	}
	return len(p), nil
}

// These globals stand in for the firmware-provided collaborators the rt0
// assembly stub would normally populate before jumping here; they exist
// so main can call Kmain without the compiler inlining (and eliminating)
// the call, mirroring gopher-os's boot.go/stub.go trampoline pattern.
var (
	bootMemoryMap   hal.MemoryMap
	bootFramebuffer hal.Framebuffer
	bootFont        *hal.Font
	bootRSDP        hal.RSDP
	bootFBBytes     []byte
)

// main is the only Go symbol visible to the rt0 initialization code. It
// is not expected to return; if Kmain does return, main reports
// errKmainReturned through kernel.Panic, which halts the CPU.
func main() {
	Kmain(bootMemoryMap, bootFramebuffer, bootFont, bootRSDP, bootFBBytes)
	kernel.Panic(errKmainReturned)
}
