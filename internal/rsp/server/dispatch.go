package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tracewave/wavedbg/internal/engine"
	"github.com/tracewave/wavedbg/internal/rsp/proto"
	"github.com/tracewave/wavedbg/internal/waveform"
)

// dispatch maps one command string (RSP packet content, already
// ack'd/validated) to the reply packet(s) to send back (unframed — run
// wraps each in turn). Every case but qRcmd replies with exactly one packet.
func (h *connHandler) dispatch(cmd string) []string {
	switch {
	case cmd == "?":
		return one("S05")
	case cmd == "QStartNoAckMode":
		h.noAck = true

		return one("OK")
	case strings.HasPrefix(cmd, "qSupported"):
		return one(fmt.Sprintf("PacketSize=%x;swbreak+;qXfer:exec-file:read+", PacketSize))
	case cmd == "qfThreadInfo":
		return one("m1")
	case cmd == "qsThreadInfo":
		return one("l")
	case strings.HasPrefix(cmd, "qAttached"):
		return one("1")
	case cmd == "g":
		return one(h.readAllRegisters())
	case strings.HasPrefix(cmd, "G"):
		return one("E01")
	case strings.HasPrefix(cmd, "p"):
		return one(h.readRegister(cmd))
	case strings.HasPrefix(cmd, "P"):
		return one("E01")
	case strings.HasPrefix(cmd, "m"):
		return one(h.readMemory(cmd))
	case strings.HasPrefix(cmd, "M"):
		return one("E01")
	case strings.HasPrefix(cmd, "Z0,"):
		return one(h.setBreakpoint(cmd, true))
	case strings.HasPrefix(cmd, "z0,"):
		return one(h.setBreakpoint(cmd, false))
	case cmd == "s":
		h.eng.SetMode(waveform.Step())

		return one(h.runAndStopReply())
	case cmd == "c":
		h.eng.SetMode(waveform.Continue())

		return one(h.runAndStopReply())
	case strings.HasPrefix(cmd, "vCont;r"):
		return one(h.rangeStep(cmd))
	case cmd == "bs":
		return one(h.stepBackAndStopReply())
	case cmd == "bc":
		return one(h.runBackAndStopReply())
	case strings.HasPrefix(cmd, "qRcmd,"):
		return h.monitor(cmd)
	case strings.HasPrefix(cmd, "qXfer:exec-file:read::"):
		return one(h.execFileChunk(cmd))
	case cmd == "vKill" || strings.HasPrefix(cmd, "vKill;") || cmd == "k":
		return one("OK")
	default:
		return one("E01")
	}
}

func one(pkt string) []string { return []string{pkt} }

func (h *connHandler) runAndStopReply() string {
	ev := h.eng.Run(h.poll)

	switch ev.Kind {
	case engine.RunBreak, engine.RunDoneStep:
		return "S05"
	case engine.RunHalted:
		return "W00"
	case engine.RunIncomingData:
		return "S02"
	default:
		return "E01"
	}
}

func (h *connHandler) stepBackAndStopReply() string {
	switch h.eng.StepBack() {
	case engine.StopHalted:
		return "W00"
	default:
		return "S05"
	}
}

func (h *connHandler) runBackAndStopReply() string {
	ev := h.eng.RunBack(h.poll)

	switch ev.Kind {
	case engine.RunHalted:
		return "W00"
	case engine.RunIncomingData:
		return "S02"
	default:
		return "S05"
	}
}

// rangeStep parses "vCont;r<start>,<end>[:<thread-id>]" and installs RangeStep.
func (h *connHandler) rangeStep(cmd string) string {
	rest := strings.TrimPrefix(cmd, "vCont;r")
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}

	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return "E01"
	}

	start, err1 := strconv.ParseUint(parts[0], 16, 32)
	end, err2 := strconv.ParseUint(parts[1], 16, 32)

	if err1 != nil || err2 != nil {
		return "E01"
	}

	h.eng.SetMode(waveform.RangeStep(uint32(start), uint32(end)))

	return h.runAndStopReply()
}

// readAllRegisters implements 'g': x0..x31 then pc, each 4 bytes in
// RISC-V's little-endian target byte order, hex-encoded (132 bytes total
// for RV32). This is the wire direction; signal parsing off the trace
// stays big-endian (waveform.BitsToU32BE) since that's a property of how
// the trace tool recorded the bits, not of the target's byte order.
func (h *connHandler) readAllRegisters() string {
	buf := make([]byte, 0, 33*4)

	for i := 0; i < waveform.GPRCount; i++ {
		buf = append(buf, le32(h.eng.CurrentGPR(i))...)
	}

	buf = append(buf, le32(h.eng.CurrentPC())...)

	return proto.HexEncode(buf)
}

// readRegister implements 'p<n>': n=32 is PC, n=0..31 is the GPR.
func (h *connHandler) readRegister(cmd string) string {
	n, err := strconv.ParseUint(strings.TrimPrefix(cmd, "p"), 16, 32)
	if err != nil {
		return "E01"
	}

	switch {
	case n == waveform.GPRCount:
		return proto.HexEncode(le32(h.eng.CurrentPC()))
	case int(n) < waveform.GPRCount:
		return proto.HexEncode(le32(h.eng.CurrentGPR(int(n))))
	default:
		return "E01"
	}
}

// readMemory implements 'm<addr>,<len>'.
func (h *connHandler) readMemory(cmd string) string {
	body := strings.TrimPrefix(cmd, "m")

	parts := strings.SplitN(body, ",", 2)
	if len(parts) != 2 {
		return "E01"
	}

	addr, err1 := strconv.ParseUint(parts[0], 16, 32)
	n, err2 := strconv.ParseUint(parts[1], 16, 32)

	if err1 != nil || err2 != nil {
		return "E01"
	}

	buf := make([]byte, n)
	h.eng.ReadMemory(uint32(addr), buf)

	return proto.HexEncode(buf)
}

// setBreakpoint implements Z0,<addr>,<kind> / z0,<addr>,<kind>.
func (h *connHandler) setBreakpoint(cmd string, add bool) string {
	parts := strings.Split(cmd, ",")
	if len(parts) < 2 {
		return "E01"
	}

	addr, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return "E01"
	}

	if add {
		h.eng.Breakpoints().Add(uint32(addr))
	} else {
		h.eng.Breakpoints().Remove(uint32(addr))
	}

	return "OK"
}

// le32 encodes v in RISC-V's little-endian target byte order, the order
// GDB RSP register-dump replies always use regardless of host byte order.
func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
