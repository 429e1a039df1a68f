// Package wavefile loads a waveform trace from disk into the in-memory
// Signal representation the rest of this module consumes. Full VCD/FST/GHW
// coverage is explicitly out of scope (see internal/waveform.Signal's doc
// comment): this package implements a practical VCD subset — scalar and
// vector wires, single- and multi-character identifier codes, `$scope`/
// `$upscope` hierarchy, and `#<time>` plus bit-valued `$dumpvars`/value
// sections — sufficient to drive the bundled examples and tests.
package wavefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tracewave/wavedbg/internal/waveform"
)

// variable is one declared VCD signal: its full hierarchical path and bit
// width (its identifier code is the key it is stored under).
type variable struct {
	path  string
	width int
}

// Handle is a loaded VCD trace, implementing signalmap.WaveformHandle.
type Handle struct {
	byPath map[string]*waveform.SliceSignal
	paths  []string
}

// Signal looks up a loaded signal by its full hierarchical path
// (e.g. "top.cpu.pc").
func (h *Handle) Signal(path string) (waveform.Signal, bool) {
	s, ok := h.byPath[path]

	return s, ok
}

// Hierarchy returns every declared signal path, in declaration order.
func (h *Handle) Hierarchy() []string {
	out := make([]string, len(h.paths))
	copy(out, h.paths)

	return out
}

// Load parses the VCD file at path into a Handle.
func Load(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavefile: open %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a VCD stream from r into a Handle.
func Parse(r io.Reader) (*Handle, error) {
	vars := make(map[string]variable) // id code -> variable
	var declOrder []string            // id codes, in declaration order
	changes := make(map[string][]waveform.ChangePoint)
	var scope []string
	var curTime uint64

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "$scope"):
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				scope = append(scope, fields[2])
			}
		case strings.HasPrefix(line, "$upscope"):
			if len(scope) > 0 {
				scope = scope[:len(scope)-1]
			}
		case strings.HasPrefix(line, "$var"):
			v, code, err := parseVarDecl(line, scope)
			if err != nil {
				return nil, err
			}

			if _, dup := vars[code]; !dup {
				declOrder = append(declOrder, code)
			}

			vars[code] = v
		case strings.HasPrefix(line, "$"):
			// $date, $version, $timescale, $enddefinitions, $dumpvars,
			// $end, $comment, etc.: no further state to track here.
		case strings.HasPrefix(line, "#"):
			t, err := strconv.ParseUint(line[1:], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("wavefile: bad time marker %q: %w", line, err)
			}

			curTime = t
		default:
			code, bits, ok := parseValueChange(line)
			if !ok {
				continue
			}

			v, known := vars[code]
			if !known {
				continue
			}

			changes[v.path] = append(changes[v.path], waveform.ChangePoint{
				Index: uint32(curTime),
				Value: packBits(bits, v.width),
			})
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("wavefile: scanning: %w", err)
	}

	h := &Handle{byPath: make(map[string]*waveform.SliceSignal, len(vars))}

	seen := make(map[string]bool, len(vars))
	for _, code := range declOrder {
		v := vars[code]
		if seen[v.path] {
			continue
		}

		seen[v.path] = true
		h.byPath[v.path] = waveform.NewSliceSignal(v.width, changes[v.path])
		h.paths = append(h.paths, v.path)
	}

	return h, nil
}

// parseVarDecl parses "$var <type> <width> <id> <name> [[msb:lsb]] $end".
func parseVarDecl(line string, scope []string) (variable, string, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return variable{}, "", fmt.Errorf("wavefile: malformed $var line: %q", line)
	}

	width, err := strconv.Atoi(fields[2])
	if err != nil {
		return variable{}, "", fmt.Errorf("wavefile: bad width in %q: %w", line, err)
	}

	code := fields[3]
	name := fields[4]

	path := name
	if len(scope) > 0 {
		path = strings.Join(scope, ".") + "." + name
	}

	return variable{path: path, width: width}, code, nil
}

// parseValueChange recognizes the two VCD value-change forms: scalar
// ("0!", "1\"", "x#") and vector ("b1010 $"). Real-valued ("r1.5 $")
// changes are not supported and are skipped by the caller.
func parseValueChange(line string) (code string, bits string, ok bool) {
	switch line[0] {
	case 'b', 'B':
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return "", "", false
		}

		return parts[1], parts[0][1:], true
	case '0', '1', 'x', 'X', 'z', 'Z':
		if len(line) < 2 {
			return "", "", false
		}

		return line[1:], line[:1], true
	default:
		return "", "", false
	}
}

// packBits left-pads an ASCII bit string (MSB-first, '0'/'1'/'x'/'z') to
// width bits (unknown states read as 0) and packs it into a big-endian
// byte slice of ceil(width/8) bytes, the representation
// waveform.ChangePoint.Value expects.
func packBits(bits string, width int) []byte {
	if width <= 0 {
		width = len(bits)
	}

	if len(bits) > width {
		bits = bits[len(bits)-width:]
	} else if len(bits) < width {
		bits = strings.Repeat("0", width-len(bits)) + bits
	}

	nbytes := (width + 7) / 8
	total := nbytes * 8

	if len(bits) < total {
		bits = strings.Repeat("0", total-len(bits)) + bits
	}

	out := make([]byte, nbytes)

	for i := 0; i < nbytes; i++ {
		var b byte

		for j := 0; j < 8; j++ {
			b <<= 1

			if bits[i*8+j] == '1' {
				b |= 1
			}
		}

		out[i] = b
	}

	return out
}
