// Package kernel provides the types shared by every kernel subsystem: the
// error representation used before the Go allocator is available, and the
// panic/halt path invoked on unrecoverable bring-up failures.
package kernel

// Error describes a kernel error. All kernel errors are defined as package
// -level variables that are pointers to Error; this avoids relying on
// errors.New, which is unsafe to call before the heap (kernel/mem/heap) is
// initialized.
type Error struct {
	// Module names the subsystem that raised the error.
	Module string

	// Message is a short, human readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}
