package kfmt

import (
	"io"
	"strconv"
)

// render writes the formatted representation of arg according to t to w.
// %b (binary, non-standard) requires precision in {8,16,32,64} per
// spec.md §4.9 and zero-pads to that width; all other numeric verbs fall
// back to a width-only pad.
func render(w io.Writer, t token, arg interface{}) {
	switch t.verb {
	case 'c':
		renderChar(w, t, arg)
	case 's':
		renderString(w, t, arg)
	case 'd', 'i':
		renderSigned(w, t, arg, 10)
	case 'u':
		renderUnsigned(w, t, arg, 10, false)
	case 'o':
		renderUnsigned(w, t, arg, 8, false)
	case 'x':
		renderUnsigned(w, t, arg, 16, false)
	case 'X':
		renderUnsigned(w, t, arg, 16, true)
	case 'p':
		renderPointer(w, arg)
	case 'b':
		renderBinary(w, t, arg)
	case 'f', 'e', 'E', 'g', 'G':
		io.WriteString(w, "(unsupported)")
	default:
		io.WriteString(w, "%!(NOVERB)")
	}
}

func toUint64(arg interface{}) (uint64, bool) {
	switch v := arg.(type) {
	case int:
		return uint64(v), true
	case int8:
		return uint64(v), true
	case int16:
		return uint64(v), true
	case int32:
		return uint64(v), true
	case int64:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case uintptr:
		return uint64(v), true
	}
	return 0, false
}

func toInt64(arg interface{}) (int64, bool) {
	switch v := arg.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uintptr:
		return int64(v), true
	}
	return 0, false
}

func pad(w io.Writer, s string, width int, left bool, zero bool) {
	if len(s) >= width {
		io.WriteString(w, s)
		return
	}
	fill := byte(' ')
	if zero && !left {
		fill = '0'
	}
	padding := make([]byte, width-len(s))
	for i := range padding {
		padding[i] = fill
	}
	if left {
		io.WriteString(w, s)
		w.Write(padding)
	} else {
		w.Write(padding)
		io.WriteString(w, s)
	}
}

func renderChar(w io.Writer, t token, arg interface{}) {
	var b byte
	switch v := arg.(type) {
	case byte:
		b = v
	case rune:
		b = byte(v)
	case int:
		b = byte(v)
	default:
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}
	s := string([]byte{b})
	width := 0
	if t.hasWidth {
		width = t.width
	}
	pad(w, s, width, t.flags&flagLeft != 0, false)
}

func renderString(w io.Writer, t token, arg interface{}) {
	var s string
	switch v := arg.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}
	if t.hasPrec && t.prec < len(s) {
		s = s[:t.prec]
	}
	width := 0
	if t.hasWidth {
		width = t.width
	}
	pad(w, s, width, t.flags&flagLeft != 0, false)
}

func renderSigned(w io.Writer, t token, arg interface{}, base int) {
	v, ok := toInt64(arg)
	if !ok {
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}
	s := strconv.FormatInt(v, base)
	if v >= 0 {
		if t.flags&flagSign != 0 {
			s = "+" + s
		} else if t.flags&flagSpace != 0 {
			s = " " + s
		}
	}
	width := 0
	if t.hasWidth {
		width = t.width
	}
	pad(w, s, width, t.flags&flagLeft != 0, t.flags&flagZero != 0)
}

func renderUnsigned(w io.Writer, t token, arg interface{}, base int, upper bool) {
	v, ok := toUint64(arg)
	if !ok {
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}
	s := strconv.FormatUint(v, base)
	if upper {
		s = upperHex(s)
	}
	if t.flags&flagAlt != 0 && base == 16 {
		if upper {
			s = "0X" + s
		} else {
			s = "0x" + s
		}
	}
	width := 0
	if t.hasWidth {
		width = t.width
	}
	pad(w, s, width, t.flags&flagLeft != 0, t.flags&flagZero != 0)
}

func renderPointer(w io.Writer, arg interface{}) {
	v, ok := toUint64(arg)
	if !ok {
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}
	io.WriteString(w, "0x"+strconv.FormatUint(v, 16))
}

// renderBinary implements the non-standard %b verb: precision must be one
// of {8,16,32,64} and the value is zero-padded to that width, per
// spec.md §4.9.
func renderBinary(w io.Writer, t token, arg interface{}) {
	v, ok := toUint64(arg)
	if !ok {
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}
	width := 64
	if t.hasPrec {
		switch t.prec {
		case 8, 16, 32, 64:
			width = t.prec
		default:
			io.WriteString(w, "%!(BADPREC)")
			return
		}
	}
	s := strconv.FormatUint(v, 2)
	for len(s) < width {
		s = "0" + s
	}
	io.WriteString(w, s)
}

func upperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
