package server

import (
	"strconv"
	"strings"

	"github.com/tracewave/wavedbg/internal/rsp/proto"
)

// monitor implements 'qRcmd,<hex>': decode the hex-encoded command text,
// run it, and return its output as an O<hex> console packet followed by a
// separate OK packet, per §4.2.
func (h *connHandler) monitor(cmd string) []string {
	hexCmd := strings.TrimPrefix(cmd, "qRcmd,")

	raw, err := proto.HexDecode(hexCmd)
	if err != nil {
		return one("E01")
	}

	text := string(raw)

	var out string

	switch text {
	case "time_idx":
		out = strconv.FormatUint(uint64(h.eng.TimeIdx()), 10)
	case "":
		out = "wavedbg monitor: nothing to report, as usual"
	default:
		out = "I don't know how to handle '" + text + "'"
	}

	return []string{"O" + proto.HexEncode([]byte(out)), "OK"}
}

// execFileChunk implements qXfer:exec-file:read::<off>,<len>, serving
// chunks of the loaded ELF's path string (not its bytes).
func (h *connHandler) execFileChunk(cmd string) string {
	tail := strings.TrimPrefix(cmd, "qXfer:exec-file:read::")

	parts := strings.SplitN(tail, ",", 2)
	if len(parts) != 2 {
		return "E01"
	}

	off, err1 := strconv.ParseUint(parts[0], 16, 64)
	ln, err2 := strconv.ParseUint(parts[1], 16, 64)

	if err1 != nil || err2 != nil {
		return "E01"
	}

	data := []byte(h.elfPath)
	if off >= uint64(len(data)) {
		return "l"
	}

	end := off + ln
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}

	marker := byte('m')
	if end == uint64(len(data)) {
		marker = 'l'
	}

	return string(marker) + string(data[off:end])
}
