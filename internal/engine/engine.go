// Package engine drives the waveform cursor one retired instruction at a
// time and exposes the PC/GPR/memory view the RSP server speaks from.
package engine

import "github.com/tracewave/wavedbg/internal/waveform"

// StopEvent is the outcome of a single Step call.
type StopEvent int

const (
	StopNone StopEvent = iota
	StopBreak
	StopHalted
)

// RunEventKind tags the variant returned by Run.
type RunEventKind int

const (
	RunIncomingData RunEventKind = iota
	RunHalted
	RunBreak
	RunDoneStep
)

// RunEvent is the outcome of a Run call.
type RunEvent struct {
	Kind RunEventKind
}

// Engine owns the wave cursor, the ELF-synthesized memory image, the
// breakpoint set, and the current execution mode. It is the only mutator
// of cursor.TimeIdx.
type Engine struct {
	cursor *waveform.Cursor
	mem    *waveform.Memory
	bp     *waveform.Breakpoints
	mode   waveform.ExecMode

	haltReported bool
}

// New constructs an Engine. Fails only if the signal map is incomplete
// (waveform.NewCursor validates RequiredWaves); an empty trace is not a
// construction error — it yields an immediate Halted on the first step.
func New(rw waveform.RequiredWaves, allTimes map[uint32]uint64, mem *waveform.Memory) (*Engine, error) {
	cursor, err := waveform.NewCursor(rw, allTimes)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cursor: cursor,
		mem:    mem,
		bp:     waveform.NewBreakpoints(),
		mode:   waveform.Step(),
	}, nil
}

// CurrentPC interprets the pc signal's value at the cursor's time index as
// big-endian, truncated to u32.
func (e *Engine) CurrentPC() uint32 { return e.cursor.CurrentPC() }

// CurrentGPR interprets register i (0..31) likewise.
func (e *Engine) CurrentGPR(i int) uint32 { return e.cursor.CurrentGPR(i) }

// TimeIdx returns the cursor's current time index, for the `monitor
// time_idx` RSP extension.
func (e *Engine) TimeIdx() uint32 { return e.cursor.TimeIdx }

// ReadMemory fills buf from the ELF-synthesized image starting at addr.
func (e *Engine) ReadMemory(addr uint32, buf []byte) { e.mem.Read(addr, buf) }

// Breakpoints exposes the mutable breakpoint set for the Z0/z0 handlers.
func (e *Engine) Breakpoints() *waveform.Breakpoints { return e.bp }

// SetMode installs the ExecMode the next Run call should drive (set by the
// RSP server's resume/step handlers before control returns to the run loop).
func (e *Engine) SetMode(m waveform.ExecMode) { e.mode = m }

// ModeName reports the installed ExecMode as a short diagnostic string,
// for the read-only /status side channel.
func (e *Engine) ModeName() string {
	switch e.mode.Kind {
	case waveform.ExecStep:
		return "step"
	case waveform.ExecContinue:
		return "continue"
	case waveform.ExecRangeStep:
		return "range-step"
	default:
		return "unknown"
	}
}

// NextPC advances the cursor to the next time index at which the pc signal
// takes on a value different from the current one, skipping over any
// intervening change points where every other signal moved but pc held
// (a captured stall). Returns false only once the chain is exhausted
// without ever finding a distinct pc — a genuine halt, not a single
// no-progress step (the stricter rule from SPEC_FULL.md §9).
func (e *Engine) NextPC() (uint32, bool) {
	cur := e.cursor.CurrentPC()

	for {
		next, ok := e.cursor.NextIndex()
		if !ok {
			return 0, false
		}

		e.cursor.Seek(next)

		pc := e.cursor.CurrentPC()
		if pc != cur {
			return pc, true
		}
	}
}

// Step advances exactly one retired instruction. Breakpoints fire on the
// arrival PC (after the step), not before. A halted trace reports Halted
// on every subsequent call, not just the first (though by construction
// NextPC already returns false forever once the chain is exhausted).
func (e *Engine) Step() StopEvent {
	pc, ok := e.NextPC()
	if !ok {
		e.haltReported = true

		return StopHalted
	}

	if e.bp.Has(pc) {
		return StopBreak
	}

	return StopNone
}

// Run drives Step repeatedly per the installed ExecMode, polling poll()
// every 1024 iterations so the caller (the RSP server) can check for a
// newly arrived client packet. RangeStep additionally exits with DoneStep
// once the PC leaves [Start, End).
func (e *Engine) Run(poll func() bool) RunEvent {
	iterations := 0

	for {
		ev := e.Step()

		switch ev {
		case StopHalted:
			return RunEvent{Kind: RunHalted}
		case StopBreak:
			return RunEvent{Kind: RunBreak}
		}

		switch e.mode.Kind {
		case waveform.ExecStep:
			return RunEvent{Kind: RunDoneStep}
		case waveform.ExecRangeStep:
			pc := e.CurrentPC()
			if pc < e.mode.Start || pc >= e.mode.End {
				return RunEvent{Kind: RunDoneStep}
			}
		case waveform.ExecContinue:
			// keep going
		}

		iterations++

		if iterations%1024 == 0 && poll() {
			return RunEvent{Kind: RunIncomingData}
		}
	}
}
