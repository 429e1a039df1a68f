package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/tracewave/wavedbg/internal/termio"
)

// errNotATerminal signals that fd isn't a real tty, so the caller should
// fall back to a plain line-buffered reader.
var errNotATerminal = errors.New("wavedbg-tui: stdin is not a terminal")

const maxHistory = 500

// lineEditor reads commands from a raw-mode terminal, echoing keystrokes
// itself and supporting Up/Down history recall, Ctrl-L screen clear, and
// Ctrl-D end-of-input, in place of the scan-a-line loop the source REPL
// used (that shape never had to run the terminal itself in raw mode).
type lineEditor struct {
	fd      int
	state   *termio.State
	in      *bufio.Reader
	out     io.Writer
	history []string
}

func newLineEditor(fd int, in io.Reader, out io.Writer) (*lineEditor, error) {
	state, err := termio.MakeRaw(fd)
	if err != nil {
		return nil, errNotATerminal
	}

	return &lineEditor{fd: fd, state: state, in: bufio.NewReader(in), out: out}, nil
}

func (e *lineEditor) Close() error {
	return termio.Restore(e.state)
}

// ReadLine prints prompt, then reads one edited line. Returns io.EOF when
// the user presses Ctrl-D on an empty line.
func (e *lineEditor) ReadLine(prompt string) (string, error) {
	fmt.Fprint(e.out, prompt)

	buf := []rune{}
	histIdx := len(e.history)

	redraw := func() {
		fmt.Fprint(e.out, "\r\033[K", prompt, string(buf))
	}

	for {
		r, _, err := e.in.ReadRune()
		if err != nil {
			return "", err
		}

		switch r {
		case '\r', '\n':
			fmt.Fprint(e.out, "\r\n")
			line := string(buf)

			if line != "" {
				e.pushHistory(line)
			}

			return line, nil

		case 4: // Ctrl-D
			if len(buf) == 0 {
				fmt.Fprint(e.out, "\r\n")

				return "", io.EOF
			}

		case 12: // Ctrl-L
			fmt.Fprint(e.out, "\033[2J\033[H")
			redraw()

		case 127, 8: // Backspace
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				redraw()
			}

		case 27: // ESC: possible arrow-key escape sequence
			seq, ok := e.readEscapeSequence()
			if !ok {
				continue
			}

			switch seq {
			case "[A": // Up
				if histIdx > 0 {
					histIdx--
					buf = []rune(e.history[histIdx])
					redraw()
				}
			case "[B": // Down
				switch {
				case histIdx < len(e.history)-1:
					histIdx++
					buf = []rune(e.history[histIdx])
				default:
					histIdx = len(e.history)
					buf = nil
				}

				redraw()
			}

		default:
			buf = append(buf, r)
			fmt.Fprintf(e.out, "%c", r)
		}
	}
}

// readEscapeSequence consumes the two bytes following an ESC that start a
// CSI sequence (arrow keys send ESC '[' <letter>). ok is false if the
// escape didn't resolve into one of those within the read.
func (e *lineEditor) readEscapeSequence() (string, bool) {
	r1, _, err := e.in.ReadRune()
	if err != nil || r1 != '[' {
		return "", false
	}

	r2, _, err := e.in.ReadRune()
	if err != nil {
		return "", false
	}

	return "[" + string(r2), true
}

func (e *lineEditor) pushHistory(line string) {
	e.history = append(e.history, line)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}
