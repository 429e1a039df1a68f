package dwarfstep

import (
	"os"
	"path/filepath"
	"testing"
)

func testContext() *Context {
	return &Context{
		rows: []row{
			{addr: 0x1000, file: "/src/hello_test.c", line: 10},
			{addr: 0x1004, file: "/src/hello_test.c", line: 12},
			{addr: 0x1008, file: "/src/hello_test.c", line: 12},
			{addr: 0x100c, file: "/src/hello_test.c", line: 13},
			{addr: 0x2000, file: "/src/util.c", line: 5},
		},
		files:       []string{"/src/hello_test.c", "/src/util.c"},
		sourceCache: make(map[string][]string),
		pathCache:   make(map[string]string),
	}
}

func TestCurrentLineFindsOwningRow(t *testing.T) {
	c := testContext()

	sl, ok := c.CurrentLine(0x1005)
	if !ok || sl.Line != 12 {
		t.Fatalf("CurrentLine(0x1005) = (%+v,%v), want line 12", sl, ok)
	}

	if _, ok := c.CurrentLine(0x0fff); ok {
		t.Fatal("CurrentLine before the first row should miss")
	}
}

func TestFindAddressesForLineSuffixAndAbsolute(t *testing.T) {
	c := testContext()

	addrs := c.FindAddressesForLine("hello_test.c", 12)
	if len(addrs) != 2 || addrs[0] != 0x1004 || addrs[1] != 0x1008 {
		t.Fatalf("got %v, want [0x1004 0x1008]", addrs)
	}

	addrs = c.FindAddressesForLine("/src/hello_test.c", 12)
	if len(addrs) != 2 {
		t.Fatalf("absolute match got %v, want 2 addresses", addrs)
	}

	if got := c.FindAddressesForLine("nonexistent.c", 12); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestNextLinesFromInstructionsDedupesConsecutive(t *testing.T) {
	c := testContext()

	// pc sits on line 10; next_pcs walk: 12, 12 (dup, dropped), 13, 12 (not
	// consecutive anymore, kept), in another CU's line 5.
	out := c.NextLinesFromInstructions(0x1000, []uint64{0x1004, 0x1008, 0x100c, 0x1004, 0x2000}, 10)

	if len(out) != 4 {
		t.Fatalf("got %d lines, want 4: %+v", len(out), out)
	}

	if out[0].Line != 12 || out[1].Line != 13 || out[2].Line != 12 || out[3].Line != 5 {
		t.Fatalf("unexpected sequence: %+v", out)
	}
}

func TestNextLinesFromInstructionsRespectsLimit(t *testing.T) {
	c := testContext()

	out := c.NextLinesFromInstructions(0x1000, []uint64{0x1004, 0x1008, 0x100c, 0x2000}, 2)
	if len(out) != 2 {
		t.Fatalf("got %d lines, want 2 (limit)", len(out))
	}
}

func TestListDwarfFilesReturnsSortedUnion(t *testing.T) {
	c := testContext()

	got := c.ListDwarfFiles()
	if len(got) != 2 || got[0] != "/src/hello_test.c" || got[1] != "/src/util.c" {
		t.Fatalf("got %v", got)
	}
}

func TestResolveCachesSourceTextAndDegradesSilently(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "hello_test.c")

	if err := os.WriteFile(p, []byte("line1\nline2\nline3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := testContext()
	c.rows = []row{{addr: 0x1000, file: p, line: 2}}

	sl, ok := c.CurrentLine(0x1000)
	if !ok {
		t.Fatal("CurrentLine should find the row")
	}

	if !sl.Have || sl.Text != "line2" {
		t.Fatalf("got %+v, want cached text 'line2'", sl)
	}

	missing := testContext()
	missing.rows = []row{{addr: 0x1000, file: "/does/not/exist.c", line: 1}}

	sl, ok = missing.CurrentLine(0x1000)
	if !ok {
		t.Fatal("CurrentLine should still resolve the row even if source text is unavailable")
	}

	if sl.Have {
		t.Fatal("Have should be false when the source file cannot be read")
	}
}
