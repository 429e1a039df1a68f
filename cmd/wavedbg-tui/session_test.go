package main

import (
	"net"
	"strings"
	"testing"

	"github.com/tracewave/wavedbg/internal/rsp/client"
	"github.com/tracewave/wavedbg/internal/rsp/proto"
)

// startFakeServer accepts exactly one connection and answers every command
// packet by looking it up (by exact string, or by prefix if the script key
// ends in "*") in script, acking first like the real server does.
func startFakeServer(t *testing.T, script map[string]string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var buf []byte

		tmp := make([]byte, 4096)

		for {
			body, checksumHex, rest, ok := proto.ExtractPacket(buf)
			if ok {
				buf = rest

				if len(body) == 1 && (body[0] == '+' || body[0] == '-') {
					continue
				}

				if checksumHex != nil {
					if proto.ValidateChecksum(body, checksumHex) != nil {
						continue
					}
				}

				cmd := string(body)

				reply, found := script[cmd]
				if !found {
					for key, v := range script {
						if strings.HasSuffix(key, "*") && strings.HasPrefix(cmd, strings.TrimSuffix(key, "*")) {
							reply, found = v, true

							break
						}
					}
				}

				if !found {
					reply = "E01"
				}

				conn.Write([]byte("+"))
				conn.Write([]byte(proto.EncodePacket(reply)))

				continue
			}

			n, err := conn.Read(tmp)
			if n > 0 {
				buf = append(buf, tmp[:n]...)
			}

			if err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func dialFake(t *testing.T, script map[string]string) *client.Client {
	t.Helper()

	addr := startFakeServer(t, script)

	c, err := client.Dial(addr)
	if err != nil {
		t.Fatalf("client.Dial: %v", err)
	}

	t.Cleanup(func() { c.Close() })

	return c
}

func TestDispatchStepPrintsStopReply(t *testing.T) {
	rsp := dialFake(t, map[string]string{
		"s":    "S05",
		"p20*": "00001000",
	})

	sess := newSession(rsp, nil, nil, nil)

	if quit := sess.dispatch("step"); quit {
		t.Fatal("step should not quit the session")
	}
}

func TestDispatchContinueHandlesHalted(t *testing.T) {
	rsp := dialFake(t, map[string]string{
		"c": "W00",
	})

	sess := newSession(rsp, nil, nil, nil)

	if quit := sess.dispatch("c"); quit {
		t.Fatal("continue should not quit the session")
	}
}

func TestDispatchBreakpointSendsHexAddress(t *testing.T) {
	rsp := dialFake(t, map[string]string{
		"Z0,1000,1*": "OK",
	})

	sess := newSession(rsp, nil, nil, nil)

	if quit := sess.dispatch("breakpoint 0x1000"); quit {
		t.Fatal("breakpoint should not quit the session")
	}
}

func TestDispatchQuitReturnsTrue(t *testing.T) {
	rsp := dialFake(t, map[string]string{
		"vKill;1*": "OK",
	})

	sess := newSession(rsp, nil, nil, nil)

	if quit := sess.dispatch("quit"); !quit {
		t.Fatal("quit should return true")
	}
}

func TestDispatchEmptyLineRepeatsLastCommand(t *testing.T) {
	rsp := dialFake(t, map[string]string{
		"s":    "S05",
		"p20*": "00001000",
	})

	sess := newSession(rsp, nil, nil, nil)
	sess.dispatch("step")
	sess.dispatch("")

	if sess.lastCmd != "step" {
		t.Fatalf("lastCmd = %q, want step", sess.lastCmd)
	}
}

func TestDispatchUnknownCommandDoesNotQuit(t *testing.T) {
	sess := newSession(nil, nil, nil, nil)

	if quit := sess.dispatch("bogus"); quit {
		t.Fatal("unknown command should not quit")
	}
}

func TestDispatchToggleFlipsSplitView(t *testing.T) {
	sess := newSession(nil, nil, nil, nil)

	sess.dispatch("toggle")

	if !sess.splitView {
		t.Fatal("toggle should flip splitView to true")
	}

	sess.dispatch("t")

	if sess.splitView {
		t.Fatal("second toggle should flip splitView back to false")
	}
}

func TestDispatchAddSigWithoutWaveformReportsUnavailable(t *testing.T) {
	sess := newSession(nil, nil, nil, nil)

	// Should not panic even with no tracker configured.
	sess.dispatch("addsig top.cpu.pc")
}
