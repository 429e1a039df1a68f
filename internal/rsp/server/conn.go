package server

import (
	"fmt"
	"net"

	"github.com/tracewave/wavedbg/internal/engine"
	"github.com/tracewave/wavedbg/internal/rsp/proto"
)

// connHandler owns one client connection: the background byte reader, the
// framing buffer, and the ack-mode state machine.
type connHandler struct {
	conn    net.Conn
	eng     *engine.Engine
	elfPath string

	noAck bool
	buf   []byte

	bytesCh   chan byte
	readErrCh chan error
}

func newConnHandler(conn net.Conn, eng *engine.Engine, elfPath string) *connHandler {
	h := &connHandler{
		conn:      conn,
		eng:       eng,
		elfPath:   elfPath,
		bytesCh:   make(chan byte, 4096),
		readErrCh: make(chan error, 1),
	}

	go h.readLoop()

	return h
}

// readLoop feeds every byte read off the socket into bytesCh so the main
// dispatch loop and the engine's poll-for-BREAK callback can both consume
// from the same stream without racing on conn.Read.
func (h *connHandler) readLoop() {
	tmp := make([]byte, 4096)

	for {
		n, err := h.conn.Read(tmp)

		for i := 0; i < n; i++ {
			h.bytesCh <- tmp[i]
		}

		if err != nil {
			h.readErrCh <- err

			return
		}
	}
}

// recvByte blocks for the next byte off the wire, or reports EOF/error.
func (h *connHandler) recvByte() (byte, bool) {
	select {
	case b := <-h.bytesCh:
		return b, true
	case <-h.readErrCh:
		return 0, false
	}
}

// poll is the engine's IncomingData callback: a non-blocking peek for any
// byte arriving mid-run (a BREAK byte, most commonly). Bytes picked up here
// are retained in buf so the next nextPacket call still sees them.
func (h *connHandler) poll() bool {
	select {
	case b := <-h.bytesCh:
		h.buf = append(h.buf, b)

		return true
	default:
		return false
	}
}

// run is the connection's blocking event loop: read a packet, ack it if
// ack-mode requires one, dispatch it, write the reply.
func (h *connHandler) run() error {
	for {
		content, ok, err := h.nextPacket()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		if !h.noAck {
			if _, err := h.conn.Write([]byte("+")); err != nil {
				return fmt.Errorf("rsp/server: write ack: %w", err)
			}
		}

		for _, pkt := range h.dispatch(content) {
			if _, err := h.conn.Write([]byte(proto.EncodePacket(pkt))); err != nil {
				return fmt.Errorf("rsp/server: write reply: %w", err)
			}
		}
	}
}

// nextPacket blocks until a complete, checksum-valid packet is framed,
// tolerating stray ack/nack bytes and, in ack mode, requesting retransmit
// on checksum mismatch. In no-ack mode a mismatched packet is silently
// dropped instead, per §4.2's failure semantics.
func (h *connHandler) nextPacket() (content string, ok bool, err error) {
	for {
		body, checksumHex, rest, extracted := proto.ExtractPacket(h.buf)
		if extracted {
			h.buf = rest

			if len(body) == 1 && (body[0] == '+' || body[0] == '-') {
				continue
			}

			if checksumHex != nil {
				if verr := proto.ValidateChecksum(body, checksumHex); verr != nil {
					if !h.noAck {
						_, _ = h.conn.Write([]byte("-"))
					}

					continue
				}
			}

			return string(body), true, nil
		}

		b, more := h.recvByte()
		if !more {
			return "", false, nil
		}

		h.buf = append(h.buf, b)
	}
}
