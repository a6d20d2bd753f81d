package kfmt

import "io"

// earlyBufferSize buffers early Printf output (before a TTY or stddbg sink
// is attached) at the size of a standard 80x25 text console; must stay a
// power of 2. Grounded on gopheros's kfmt ringBuffer.
const earlyBufferSize = 2048

// earlyBuffer captures Printf output emitted before SetOutputSink is
// called for the first time.
var earlyBuffer ringBuffer

type ringBuffer struct {
	buffer         [earlyBufferSize]byte
	rIndex, wIndex int
}

func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (earlyBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (earlyBufferSize - 1)
		}
	}
	return len(p), nil
}

func (rb *ringBuffer) Read(p []byte) (int, error) {
	var n int
	switch {
	case rb.rIndex < rb.wIndex:
		n = rb.wIndex - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}
		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n
		return n, nil
	case rb.rIndex > rb.wIndex:
		n = len(rb.buffer) - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}
		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n
		if rb.rIndex == len(rb.buffer) {
			rb.rIndex = 0
		}
		return n, nil
	default:
		return 0, io.EOF
	}
}
