package kernel

import (
	"github.com/peachsmith/osdev64-sub000/kernel/cpu"
	"github.com/peachsmith/osdev64-sub000/kernel/kfmt"
)

// cpuHaltFn is substituted by tests so Panic can be exercised without
// actually stopping the test binary. The default halts in a loop, since
// cpu.Halt returns when the next interrupt arrives.
var cpuHaltFn = func() {
	for {
		cpu.Halt()
	}
}

var errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}

// Panic prints the supplied error (or string, or error value) to whatever
// sink kfmt is currently attached to, then halts the CPU. Panic never
// returns. Grounded on gopheros's kernel.Panic/kfmt.Panic pair, collapsed
// into one function since this repo keeps only one kfmt package.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	kfmt.Printf("\n-----------------------------------\n")
	if err != nil {
		kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	kfmt.Printf("*** kernel panic: system halted ***")
	kfmt.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
