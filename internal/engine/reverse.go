package engine

// PrevPC walks the cursor backward to the previous time index at which pc
// took on a distinct value, skipping stall cycles the same way NextPC does
// going forward. This is the proper reverse-execution primitive the design
// note in SPEC_FULL.md §9 calls for, rather than forwarding reverse
// commands as forward steps.
func (e *Engine) PrevPC() (uint32, bool) {
	cur := e.cursor.CurrentPC()

	for {
		prev, ok := e.cursor.PrevIndex()
		if !ok {
			return 0, false
		}

		e.cursor.Seek(prev)

		pc := e.cursor.CurrentPC()
		if pc != cur {
			return pc, true
		}
	}
}

// StepBack is the reverse analogue of Step.
func (e *Engine) StepBack() StopEvent {
	pc, ok := e.PrevPC()
	if !ok {
		return StopHalted
	}

	if e.bp.Has(pc) {
		return StopBreak
	}

	return StopNone
}

// RunBack drives StepBack repeatedly until a breakpoint, the start of the
// trace, or incoming data, polling every 1024 iterations like Run.
func (e *Engine) RunBack(poll func() bool) RunEvent {
	iterations := 0

	for {
		ev := e.StepBack()

		switch ev {
		case StopHalted:
			return RunEvent{Kind: RunHalted}
		case StopBreak:
			return RunEvent{Kind: RunBreak}
		}

		iterations++

		if iterations%1024 == 0 && poll() {
			return RunEvent{Kind: RunIncomingData}
		}
	}
}
