// Package kfmt implements the printf/fprintf/vfprintf family spec.md §4.9
// requires: a pure state machine over the format string (spec.md §9's
// Design Note) that emits literal runs and specifier tokens consumed by a
// renderer, generalized from gopheros's kfmt.Printf (which only supported
// %s %d %x %o %t) up to the full verb set the original klibc/format.c
// parses: %c %s %d %i %u %o %x %X %p %b %%, flags -+ #0*, width,
// precision, and the ll length modifier.
package kfmt

import "io"

var outputSink io.Writer

// SetOutputSink directs future Printf output at w, flushing anything
// accumulated in earlyBuffer first — mirrors gopheros's
// kfmt.SetOutputSink/earlyPrintBuffer handoff from boot-time buffering to
// the real console/TTY.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyBuffer)
	}
}

// Printf writes to the current output sink, or to the early ring buffer if
// no sink has been attached yet.
func Printf(format string, args ...interface{}) {
	if outputSink != nil {
		Fprintf(outputSink, format, args...)
		return
	}
	Fprintf(&earlyBuffer, format, args...)
}

// flag bits, matching FMT_LEFT/FMT_SIGN/FMT_SPACE/FMT_POINT/FMT_ZERO in the
// original klibc/format.c.
type flags uint8

const (
	flagLeft flags = 1 << iota
	flagSign
	flagSpace
	flagAlt
	flagZero
)

// token is either a literal run of bytes or a parsed specifier, the
// "tokens (literal / specifier)" spec.md §9 calls for.
type token struct {
	literal   []byte
	verb      byte
	flags     flags
	width     int
	hasWidth  bool
	prec      int
	hasPrec   bool
	lengthLL  bool
}

// Fprintf parses format into tokens and renders each one against args, in
// order, writing the result to w. Unknown verbs, missing arguments, and
// type mismatches degrade to Go's own diagnostic markers
// ("%!(NOVERB)" etc.) rather than panicking, matching the steady-state
// "no-op on malformed input" policy of spec.md §7.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	toks := parse(format)
	argIndex := 0
	for _, t := range toks {
		if t.literal != nil {
			w.Write(t.literal)
			continue
		}
		if t.verb == '%' {
			w.Write([]byte{'%'})
			continue
		}
		if t.hasWidth && t.width < 0 {
			if argIndex >= len(args) {
				w.Write([]byte("%!(MISSING)"))
				continue
			}
			if iv, ok := toInt64(args[argIndex]); ok {
				t.width = int(iv)
			}
			argIndex++
		}
		if t.hasPrec && t.prec < 0 {
			if argIndex >= len(args) {
				w.Write([]byte("%!(MISSING)"))
				continue
			}
			if iv, ok := toInt64(args[argIndex]); ok {
				t.prec = int(iv)
			}
			argIndex++
		}
		if argIndex >= len(args) {
			w.Write([]byte("%!(MISSING)"))
			continue
		}
		render(w, t, args[argIndex])
		argIndex++
	}
	for ; argIndex < len(args); argIndex++ {
		w.Write([]byte("%!(EXTRA)"))
	}
}

// parse scans format into a token slice. It never allocates per-rune; each
// literal run is copied once into its own byte slice.
func parse(format string) []token {
	var toks []token
	i, n := 0, len(format)

	for i < n {
		if format[i] != '%' {
			start := i
			for i < n && format[i] != '%' {
				i++
			}
			toks = append(toks, token{literal: []byte(format[start:i])})
			continue
		}

		// format[i] == '%'
		j := i + 1
		if j >= n {
			toks = append(toks, token{literal: []byte("%!(NOVERB)")})
			break
		}
		if format[j] == '%' {
			toks = append(toks, token{verb: '%'})
			i = j + 1
			continue
		}

		var t token
		// flags
		for j < n {
			switch format[j] {
			case '-':
				t.flags |= flagLeft
			case '+':
				t.flags |= flagSign
			case ' ':
				t.flags |= flagSpace
			case '#':
				t.flags |= flagAlt
			case '0':
				t.flags |= flagZero
			default:
				goto widthState
			}
			j++
		}
	widthState:
		if j < n && format[j] == '*' {
			t.hasWidth = true
			t.width = -1 // sentinel: Fprintf consumes an int arg for the real width
			j++
		} else {
			w, k := scanInt(format, j)
			if k > j {
				t.hasWidth = true
				t.width = w
				j = k
			}
		}
		if j < n && format[j] == '.' {
			j++
			t.hasPrec = true
			if j < n && format[j] == '*' {
				t.prec = -1 // sentinel: Fprintf consumes an int arg for the real precision
				j++
			} else {
				p, k := scanInt(format, j)
				t.prec = p
				j = k
			}
		}
		// length modifier: only "ll" is meaningful (64-bit); others are
		// accepted and ignored since every Go integer kind already
		// carries its own width.
		if j+1 < n && format[j] == 'l' && format[j+1] == 'l' {
			t.lengthLL = true
			j += 2
		} else if j < n && (format[j] == 'l' || format[j] == 'h' || format[j] == 'L') {
			j++
		}

		if j >= n {
			toks = append(toks, token{literal: []byte("%!(NOVERB)")})
			break
		}
		t.verb = format[j]
		toks = append(toks, t)
		i = j + 1
	}

	return toks
}

// scanInt reads a run of decimal digits starting at i, returning the value
// and the index just past the run (equal to i if there were no digits).
func scanInt(s string, i int) (int, int) {
	start := i
	v := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		v = v*10 + int(s[i]-'0')
		i++
	}
	if i == start {
		return 0, i
	}
	return v, i
}
