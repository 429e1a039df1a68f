package proto

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Response.
type Kind int

const (
	KindAck Kind = iota
	KindNack
	KindOK
	KindEmpty
	KindError
	KindStopReply
	KindMemoryData
	KindRegisterData
	KindThreadInfo
	KindSupported
	KindQXferData
	KindMonitorOutput
	KindRaw
)

// Expect tells Classify what the command that elicited this response was,
// resolving the thread-info/qXfer-more ambiguity explicitly (design note in
// SPEC_FULL.md §9) rather than falling back to content sniffing except when
// no expectation was recorded at all.
type Expect int

const (
	ExpectGeneric Expect = iota
	ExpectRegisterData
	ExpectMemoryData
	ExpectThreadInfo
	ExpectQXfer
)

// Response is the tagged union over every packet payload this module's
// client needs to act on. Only the fields relevant to Kind are meaningful.
type Response struct {
	Kind Kind

	ErrorCode byte // KindError

	StopSignal int    // KindStopReply
	StopReason string // KindStopReply: "trap", "interrupt", "stopped", "signal"

	Bytes []byte // KindMemoryData, KindRegisterData

	Threads []string // KindThreadInfo
	More    bool      // KindThreadInfo: more entries follow

	Features string // KindSupported

	QXferChunk []byte // KindQXferData
	QXferFinal bool    // KindQXferData: true if this was the 'l' terminator

	MonitorText string // KindMonitorOutput

	Raw []byte // KindRaw: anything unrecognized, passed through verbatim
}

// Classify turns decoded packet content (post run-length decode, for
// payloads that carry one) into a typed Response. expect disambiguates the
// thread-info/qXfer-more collision per §4.3; pass ExpectGeneric when no
// outstanding request context is tracked.
func Classify(content []byte, expect Expect) (Response, error) {
	s := string(content)

	switch {
	case s == "":
		return Response{Kind: KindEmpty}, nil

	case s == "OK":
		return Response{Kind: KindOK}, nil

	case len(s) == 3 && s[0] == 'E':
		code, err := hexByte(s[1:3])
		if err != nil {
			return Response{}, fmt.Errorf("%w: error code: %v", ErrInvalidFormat, err)
		}

		return Response{Kind: KindError, ErrorCode: code}, nil

	case len(s) >= 3 && (s[0] == 'S' || s[0] == 'T'):
		return classifyStopReply(s)

	case strings.HasPrefix(s, "PacketSize=") || strings.Contains(s, "swbreak"):
		return Response{Kind: KindSupported, Features: s}, nil

	case strings.HasPrefix(s, "O"):
		return classifyMonitorOutput(s)

	case s == "l":
		// Bare 'l': ThreadInfo-terminal per §4.3, regardless of expectation.
		return Response{Kind: KindThreadInfo, More: false}, nil

	case strings.HasPrefix(s, "l"):
		return Response{Kind: KindQXferData, QXferChunk: []byte(s[1:]), QXferFinal: true}, nil

	case strings.HasPrefix(s, "m"):
		return classifyMPrefixed(s, expect)

	default:
		return Response{Kind: KindRaw, Raw: content}, nil
	}
}

func classifyStopReply(s string) (Response, error) {
	sig, err := hexByte(s[1:3])
	if err != nil {
		return Response{}, fmt.Errorf("%w: stop-reply signal: %v", ErrInvalidFormat, err)
	}

	reason := reasonFor(sig)

	return Response{Kind: KindStopReply, StopSignal: int(sig), StopReason: reason}, nil
}

func reasonFor(sig byte) string {
	switch sig {
	case 0x05:
		return "trap"
	case 0x02:
		return "interrupt"
	case 0x13:
		return "stopped"
	default:
		return "signal"
	}
}

func classifyMonitorOutput(s string) (Response, error) {
	rest := s[1:]

	decoded, err := HexDecode(rest)
	if err != nil {
		return Response{}, fmt.Errorf("%w: monitor output: %v", ErrInvalidHex, err)
	}

	return Response{Kind: KindMonitorOutput, MonitorText: string(decoded)}, nil
}

// classifyMPrefixed resolves the ambiguity between a qXfer-more chunk and a
// thread-info reply, both of which can start with 'm'. When expect pins the
// context explicitly (ExpectThreadInfo / ExpectQXfer), that wins outright;
// otherwise fall back to the heuristic from §4.3: comma-separated tokens
// that are all "0", "-1", or pure hex look like thread IDs.
func classifyMPrefixed(s string, expect Expect) (Response, error) {
	rest := s[1:]

	switch expect {
	case ExpectThreadInfo:
		return Response{Kind: KindThreadInfo, Threads: splitThreads(rest), More: true}, nil
	case ExpectQXfer:
		return Response{Kind: KindQXferData, QXferChunk: []byte(rest), QXferFinal: false}, nil
	}

	if looksLikeThreadIDs(rest) {
		return Response{Kind: KindThreadInfo, Threads: splitThreads(rest), More: true}, nil
	}

	return Response{Kind: KindQXferData, QXferChunk: []byte(rest), QXferFinal: false}, nil
}

func splitThreads(rest string) []string {
	if rest == "" {
		return nil
	}

	return strings.Split(rest, ",")
}

func looksLikeThreadIDs(rest string) bool {
	if rest == "" {
		return true
	}

	for _, tok := range strings.Split(rest, ",") {
		if tok == "0" || tok == "-1" {
			continue
		}

		if !isHexToken(tok) {
			return false
		}
	}

	return true
}

func isHexToken(tok string) bool {
	if tok == "" {
		return false
	}

	for _, r := range tok {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}

	return true
}

func hexByte(s string) (byte, error) {
	b, err := HexDecode(s)
	if err != nil || len(b) != 1 {
		return 0, fmt.Errorf("%w: expected 1 hex byte, got %q", ErrInvalidFormat, s)
	}

	return b[0], nil
}

// ClassifyRegisterData and ClassifyMemoryData wrap Classify's generic path
// for the two command-disambiguated cases in §4.3: the response to `g` is
// always RegisterData (hex, length >= 132 and a multiple of 4 for RV32) and
// the response to `m<addr>,<len>` is always MemoryData, regardless of what
// the bytes would otherwise look like.
func ClassifyRegisterData(content []byte) (Response, error) {
	b, err := decodeHexPayload(content)
	if err != nil {
		return Response{}, err
	}

	if len(b) < 132 || len(b)%4 != 0 {
		return Response{}, fmt.Errorf("%w: register data length %d invalid for RV32", ErrInvalidFormat, len(b))
	}

	return Response{Kind: KindRegisterData, Bytes: b}, nil
}

func ClassifyMemoryData(content []byte) (Response, error) {
	b, err := decodeHexPayload(content)
	if err != nil {
		return Response{}, err
	}

	return Response{Kind: KindMemoryData, Bytes: b}, nil
}

func decodeHexPayload(content []byte) ([]byte, error) {
	decoded, err := RunLengthDecode(content)
	if err != nil {
		return nil, err
	}

	return HexDecode(string(decoded))
}
