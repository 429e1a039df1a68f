package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tracewave/wavedbg/internal/dwarfstep"
	"github.com/tracewave/wavedbg/internal/elfinfo"
	"github.com/tracewave/wavedbg/internal/rsp/client"
	"github.com/tracewave/wavedbg/internal/rsp/proto"
	"github.com/tracewave/wavedbg/internal/signalmap"
	"github.com/tracewave/wavedbg/internal/viewer"
	"github.com/tracewave/wavedbg/internal/wavetracker"
)

// waveSource adapts a signalmap.WaveformHandle to wavetracker.Source by
// resolving a tracked name to its Signal once, then rendering its bits at
// the requested time index.
type waveSource struct {
	handle signalmap.WaveformHandle
}

func (s waveSource) BitsAt(name string, idx uint32) (string, bool) {
	sig, ok := s.handle.Signal(name)
	if !ok {
		return "", false
	}

	off, ok := sig.At(idx)
	if !ok {
		return "", false
	}

	var b strings.Builder
	for _, byt := range off.Current.Value {
		b.WriteString(fmt.Sprintf("%08b", byt))
	}

	return b.String(), true
}

// session holds every piece of state the TUI's command loop touches: the
// RSP control connection, the local ELF/DWARF view used for symbolization
// and breakpoint-by-line resolution, and the wave tracker used by addsig.
type session struct {
	rsp     *client.Client
	elf     *elfinfo.Info
	dwarf   *dwarfstep.Context
	wave    signalmap.WaveformHandle
	tracker *wavetracker.Tracker
	view    *viewer.Client

	splitView bool
	lastCmd   string
}

func newSession(rsp *client.Client, elf *elfinfo.Info, dwarf *dwarfstep.Context, wave signalmap.WaveformHandle) *session {
	s := &session{rsp: rsp, elf: elf, dwarf: dwarf, wave: wave}

	if wave != nil {
		s.tracker = wavetracker.New(waveSource{handle: wave})
	}

	return s
}

// dispatch runs one TUI command line, printing its result to stdout.
// Returns true if the session should exit.
func (s *session) dispatch(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		line = s.lastCmd
	}

	if line == "" {
		return false
	}

	s.lastCmd = line

	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "step", "s", "next", "n":
		s.doStep()
	case "continue", "c":
		s.doContinue()
	case "breakpoint", "b":
		s.doBreakpoint(args)
	case "quit", "q":
		s.doQuit()

		return true
	case "clear", "cl":
		fmt.Print("\033[2J\033[H")
	case "help", "h":
		s.printHelp(args)
	case "toggle", "t":
		s.splitView = !s.splitView
		fmt.Println("split view:", s.splitView)
	case "addsig", "as":
		s.doAddSig(args)
	case "debug", "d":
		fmt.Println("log panel is not rendered in this session; see server-side logs")
	case "surfer", "sf":
		fmt.Println("launch the external waveform viewer, then surferconnect to it")
	case "surferconnect", "sfc":
		s.doSurferConnect(args)
	default:
		fmt.Printf("unknown command: %s (try help)\n", cmd)
	}

	return false
}

func (s *session) doStep() {
	if err := s.rsp.SendCommand("s"); err != nil {
		fmt.Println("error:", err)

		return
	}

	s.printStopReply()
}

func (s *session) doContinue() {
	if err := s.rsp.SendCommand("c"); err != nil {
		fmt.Println("error:", err)

		return
	}

	s.printStopReply()
}

func (s *session) printStopReply() {
	resp, err := s.rsp.ReadResponse(proto.ExpectGeneric)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	switch resp.Kind {
	case proto.KindStopReply:
		fmt.Printf("stopped: signal=%d reason=%s\n", resp.StopSignal, resp.StopReason)
		s.printCurrentLocation()
	case proto.KindRaw:
		if string(resp.Raw) == "W00" {
			fmt.Println("program halted (end of trace)")
		} else {
			fmt.Printf("reply: %s\n", resp.Raw)
		}
	default:
		fmt.Printf("unexpected reply kind: %v\n", resp.Kind)
	}
}

func (s *session) printCurrentLocation() {
	if err := s.rsp.SendCommand("p20"); err != nil {
		return
	}

	resp, err := s.rsp.ReadResponse(proto.ExpectGeneric)
	if err != nil || resp.Kind != proto.KindRaw {
		return
	}

	// Register replies carry the target's little-endian byte order.
	raw, err := proto.HexDecode(string(resp.Raw))
	if err != nil || len(raw) != 4 {
		return
	}

	pc := uint64(raw[0]) | uint64(raw[1])<<8 | uint64(raw[2])<<16 | uint64(raw[3])<<24

	fmt.Printf("pc = %#08x\n", pc)

	if s.elf != nil {
		if sym, ok := s.elf.Symbolize(pc); ok {
			fmt.Printf("  in %s\n", sym.Name)
		}
	}

	if s.dwarf != nil {
		if line, ok := s.dwarf.CurrentLine(pc); ok {
			fmt.Printf("  at %s:%d\n", line.Path, line.Line)
		}
	}
}

func (s *session) doBreakpoint(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: breakpoint <hex-addr | file:line>")

		return
	}

	addr, ok := s.resolveBreakpointTarget(args[0])
	if !ok {
		return
	}

	if err := s.rsp.SendCommand(fmt.Sprintf("Z0,%x,1", addr)); err != nil {
		fmt.Println("error:", err)

		return
	}

	resp, err := s.rsp.ReadResponse(proto.ExpectGeneric)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	if resp.Kind == proto.KindOK {
		fmt.Printf("breakpoint set at %#08x\n", addr)
	} else {
		fmt.Println("breakpoint rejected")
	}
}

func (s *session) resolveBreakpointTarget(spec string) (uint32, bool) {
	if strings.Contains(spec, ":") {
		parts := strings.SplitN(spec, ":", 2)

		line, err := strconv.Atoi(parts[1])
		if err != nil {
			fmt.Println("error: bad line number:", parts[1])

			return 0, false
		}

		if s.dwarf == nil {
			fmt.Println("error: no DWARF info loaded, cannot resolve file:line")

			return 0, false
		}

		addrs := s.dwarf.FindAddressesForLine(parts[0], line)
		if len(addrs) == 0 {
			fmt.Printf("error: no address found for %s:%d\n", parts[0], line)

			return 0, false
		}

		return uint32(addrs[0]), true
	}

	hexStr := strings.TrimPrefix(strings.TrimPrefix(spec, "0x"), "0X")

	addr, err := strconv.ParseUint(hexStr, 16, 32)
	if err != nil {
		fmt.Println("error: bad address:", spec)

		return 0, false
	}

	return uint32(addr), true
}

func (s *session) doQuit() {
	_ = s.rsp.SendCommand("vKill;1")
	fmt.Println("goodbye")
}

func (s *session) doAddSig(args []string) {
	if s.tracker == nil {
		fmt.Println("no waveform loaded, addsig is unavailable")

		return
	}

	if len(args) == 0 {
		fmt.Println("usage: addsig <fuzzy query>")

		return
	}

	query := strings.Join(args, " ")
	matches := wavetracker.FuzzySearch(query, s.wave.Hierarchy())

	if len(matches) == 0 {
		fmt.Println("no matching signals")

		return
	}

	s.tracker.Select(matches[0], wavetracker.FormatHex)
	fmt.Println("tracking:", matches[0])
}

func (s *session) doSurferConnect(args []string) {
	addr := "127.0.0.1:8765"
	if len(args) > 0 {
		addr = args[0]
	}

	v, greeting, err := viewer.Dial(addr)
	if err != nil {
		fmt.Println("error connecting to viewer:", err)

		return
	}

	s.view = v
	fmt.Printf("connected to viewer %s (version %s)\n", addr, greeting.Version)
}

func (s *session) printHelp(args []string) {
	topics := map[string]string{
		"step":           "advance one retired instruction",
		"continue":       "run until breakpoint or halt",
		"breakpoint":     "set a breakpoint: breakpoint <hex-addr | file:line>",
		"quit":           "disconnect and exit",
		"clear":          "clear the screen",
		"help":           "show this help, or help <command>",
		"toggle":         "toggle the split trace/source view",
		"addsig":         "fuzzy-pick a signal to track: addsig <query>",
		"debug":          "report that no log panel is rendered (see server-side logs)",
		"surfer":         "print instructions for launching the external viewer",
		"surferconnect":  "connect to a running external viewer: surferconnect [host:port]",
	}

	if len(args) > 0 {
		if text, ok := topics[args[0]]; ok {
			fmt.Printf("%s: %s\n", args[0], text)
		} else {
			fmt.Println("no such command:", args[0])
		}

		return
	}

	fmt.Println("commands: step|s|next|n, continue|c, breakpoint|b, quit|q, clear|cl,")
	fmt.Println("          help|h, toggle|t, addsig|as, debug|d, surfer|sf, surferconnect|sfc")
}
