// Package dwarfstep provides bidirectional PC↔(file,line) mapping over a
// statically-linked ELF's DWARF line tables, plus cached source-line
// retrieval. Built directly on debug/dwarf's own LineReader, which is the
// standard library's version of the exact line-table state machine the
// reference corpus's own dwarfx package implements by hand — there is no
// reason to reimplement it a third time. See DESIGN.md.
package dwarfstep

import (
	"bufio"
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SourceLine is one resolved (file, line) pair, with lazily-loaded text.
type SourceLine struct {
	Path string
	Line int
	Text string
	Have bool // Text is meaningful only if Have is true
}

type row struct {
	addr uint64
	file string
	line int
}

// Context is the constructed, queryable view over one binary's DWARF line
// programs. Built once at startup; dropped at process exit.
type Context struct {
	rows     []row // sorted by addr
	files    []string
	loadBias uint64

	mu          sync.Mutex
	sourceCache map[string][]string
	pathCache   map[string]string
}

// Load parses path's DWARF sections and flattens every compilation unit's
// line program into one address-sorted table. loadBias normalizes runtime
// addresses before lookup (0 for statically linked ET_EXEC binaries).
func Load(path string, loadBias uint64) (*Context, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dwarfstep: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("dwarfstep: %s has no usable DWARF data: %w", path, err)
	}

	ctx := &Context{
		loadBias:    loadBias,
		sourceCache: make(map[string][]string),
		pathCache:   make(map[string]string),
	}

	fileSet := make(map[string]struct{})

	reader := data.Reader()

	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("dwarfstep: walking compile units: %w", err)
		}

		if entry == nil {
			break
		}

		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		lr, err := data.LineReader(entry)
		if err != nil {
			return nil, fmt.Errorf("dwarfstep: line reader for unit: %w", err)
		}

		if lr == nil {
			continue
		}

		var le dwarf.LineEntry

		for {
			err := lr.Next(&le)
			if err != nil {
				break // end of this unit's line program
			}

			if le.EndSequence {
				continue
			}

			fname := ""
			if le.File != nil {
				fname = le.File.Name
			}

			ctx.rows = append(ctx.rows, row{addr: le.Address, file: fname, line: le.Line})

			if fname != "" {
				fileSet[fname] = struct{}{}
			}
		}

		reader.SkipChildren()
	}

	sort.Slice(ctx.rows, func(i, j int) bool { return ctx.rows[i].addr < ctx.rows[j].addr })

	for f := range fileSet {
		ctx.files = append(ctx.files, f)
	}

	sort.Strings(ctx.files)

	return ctx, nil
}

func (c *Context) fileAddr(runtimePC uint64) uint64 { return runtimePC - c.loadBias }

// CurrentLine returns the source line owning runtimePC: the row with the
// largest address <= file_addr(runtimePC).
func (c *Context) CurrentLine(runtimePC uint64) (SourceLine, bool) {
	fa := c.fileAddr(runtimePC)

	idx := sort.Search(len(c.rows), func(i int) bool { return c.rows[i].addr > fa }) - 1
	if idx < 0 {
		return SourceLine{}, false
	}

	r := c.rows[idx]
	if r.file == "" || r.line == 0 {
		return SourceLine{}, false
	}

	return c.resolve(r.file, r.line), true
}

// NextLinesFromInstructions yields up to n (file,line) pairs found at
// the given addresses (typically decoded instruction targets following pc),
// skipping the line pc itself is on and suppressing consecutive duplicates.
func (c *Context) NextLinesFromInstructions(pc uint64, nextPCs []uint64, n int) []SourceLine {
	cur, haveCur := c.CurrentLine(pc)

	out := make([]SourceLine, 0, n)

	var lastKey string

	for _, addr := range nextPCs {
		if len(out) >= n {
			break
		}

		sl, ok := c.CurrentLine(addr)
		if !ok {
			continue
		}

		if haveCur && sl.Path == cur.Path && sl.Line == cur.Line {
			continue
		}

		key := sl.Path + ":" + fmt.Sprint(sl.Line)
		if key == lastKey {
			continue
		}

		lastKey = key
		out = append(out, sl)
	}

	return out
}

// FindAddressesForLine returns every runtime address whose resolved line
// matches (file, line): exact path equality if file is absolute, suffix
// match otherwise. Results are sorted ascending and deduplicated.
func (c *Context) FindAddressesForLine(file string, line int) []uint64 {
	absolute := filepath.IsAbs(file)

	seen := make(map[uint64]struct{})

	var out []uint64

	for _, r := range c.rows {
		if r.line != line {
			continue
		}

		match := r.file == file
		if !absolute {
			match = strings.HasSuffix(r.file, file)
		}

		if !match {
			continue
		}

		addr := r.addr + c.loadBias
		if _, dup := seen[addr]; dup {
			continue
		}

		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// ListDwarfFiles returns the union of file-table entries across every
// compilation unit, sorted.
func (c *Context) ListDwarfFiles() []string {
	out := make([]string, len(c.files))
	copy(out, c.files)

	return out
}

// resolve attaches cached source text to a (file, line) pair. A read
// failure degrades silently: Have is false and Text is empty.
func (c *Context) resolve(file string, line int) SourceLine {
	sl := SourceLine{Path: file, Line: line}

	lines, ok := c.loadSource(file)
	if !ok || line < 1 || line > len(lines) {
		return sl
	}

	sl.Text = lines[line-1]
	sl.Have = true

	return sl
}

func (c *Context) loadSource(file string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lines, ok := c.sourceCache[file]; ok {
		return lines, lines != nil
	}

	resolved, ok := c.pathCache[file]
	if !ok {
		resolved = c.findOnDisk(file)
		c.pathCache[file] = resolved
	}

	if resolved == "" {
		c.sourceCache[file] = nil

		return nil, false
	}

	f, err := os.Open(resolved)
	if err != nil {
		c.sourceCache[file] = nil

		return nil, false
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	c.sourceCache[file] = lines

	return lines, true
}

// findOnDisk tries the path as recorded, then its basename in the current
// directory; returns "" if neither exists.
func (c *Context) findOnDisk(file string) string {
	if _, err := os.Stat(file); err == nil {
		return file
	}

	base := path.Base(filepath.ToSlash(file))
	if _, err := os.Stat(base); err == nil {
		return base
	}

	return ""
}
