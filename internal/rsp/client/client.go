// Package client implements the RSP client half: a buffered reader over a
// TCP connection that frames, validates, and classifies responses. The
// caller passes each ReadResponse the proto.Expect hint for the command it
// sent, which disambiguates otherwise-identical hex payloads; the Client
// itself keeps no record of outstanding requests. The teacher repo has no
// client side of its own gdbserver to ground this against (see
// DESIGN.md); this package generalizes the teacher's framing helpers
// (readPacket/writePacket, hex codec) into the fuller typed response
// model spec.md §4.3-§4.4 describe.
package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/tracewave/wavedbg/internal/rsp/proto"
)

// ErrTimedOut is returned when a read deadline elapses with buffered bytes
// that never resolved into a complete packet.
var ErrTimedOut = errors.New("rsp/client: timed out waiting for packet")

const (
	perReadTimeout = 500 * time.Millisecond
	overallTimeout = 2 * time.Second
)

// Client is a connected RSP peer: it sends command packets and reads back
// framed, checksum-validated, classified responses.
type Client struct {
	conn net.Conn
	buf  []byte
}

// Dial connects to addr and returns a ready Client.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rsp/client: dial %s: %w", addr, err)
	}

	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// SendCommand writes cmd as a framed packet.
func (c *Client) SendCommand(cmd string) error {
	_, err := c.conn.Write([]byte(proto.EncodePacket(cmd)))
	if err != nil {
		return fmt.Errorf("rsp/client: write command: %w", err)
	}

	return nil
}

// ReadResponse reads one complete packet and classifies it according to
// expect, the disambiguation hint set by whichever command elicited it.
// Stray ack/nack bytes are consumed and skipped transparently.
func (c *Client) ReadResponse(expect proto.Expect) (proto.Response, error) {
	content, err := c.readPacket()
	if err != nil {
		return proto.Response{}, err
	}

	switch expect {
	case proto.ExpectRegisterData:
		return proto.ClassifyRegisterData(content)
	case proto.ExpectMemoryData:
		return proto.ClassifyMemoryData(content)
	default:
		return proto.Classify(content, expect)
	}
}

// readPacket implements the buffered-reader algorithm of §4.3: extract a
// complete packet from the buffer if one is already present; otherwise
// read more with a per-read timeout, bounded by an overall deadline.
func (c *Client) readPacket() ([]byte, error) {
	deadline := time.Now().Add(overallTimeout)

	for {
		body, checksumHex, rest, ok := proto.ExtractPacket(c.buf)
		if ok {
			c.buf = rest

			// Both ack and nack are swallowed here rather than surfaced as
			// KindAck/KindNack: this client only ever talks to our own
			// server over a reliable loopback/TCP link, so a '-' requesting
			// retransmit is not expected in practice and there is no
			// resend path to drive off of it.
			if len(body) == 1 && (body[0] == '+' || body[0] == '-') {
				continue
			}

			if checksumHex != nil {
				if err := proto.ValidateChecksum(body, checksumHex); err != nil {
					return nil, err
				}
			}

			return body, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrTimedOut
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(perReadTimeout)); err != nil {
			return nil, fmt.Errorf("rsp/client: set deadline: %w", err)
		}

		tmp := make([]byte, 4096)

		n, err := c.conn.Read(tmp)
		if n > 0 {
			c.buf = append(c.buf, tmp[:n]...)
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if len(c.buf) == 0 {
					continue
				}

				if time.Now().After(deadline) {
					return nil, ErrTimedOut
				}

				continue
			}

			return nil, fmt.Errorf("rsp/client: read: %w", err)
		}
	}
}
