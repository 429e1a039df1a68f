package client

import (
	"net"
	"testing"
	"time"

	"github.com/tracewave/wavedbg/internal/rsp/proto"
)

func encodeRSP(payload string) []byte {
	return []byte(proto.EncodePacket(payload))
}

func newTestClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()

	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })

	return &Client{conn: c1}, c2
}

func TestSendCommandFramesPacket(t *testing.T) {
	c, srv := newTestClient(t)

	done := make(chan []byte, 1)

	go func() {
		buf := make([]byte, 64)
		n, _ := srv.Read(buf)
		done <- buf[:n]
	}()

	if err := c.SendCommand("qSupported"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	got := <-done
	if string(got) != "$qSupported#37" {
		t.Fatalf("wrote %q, want $qSupported#37", got)
	}
}

func TestReadResponseClassifiesOK(t *testing.T) {
	c, srv := newTestClient(t)

	go func() { _, _ = srv.Write(encodeRSP("OK")) }()

	resp, err := c.ReadResponse(proto.ExpectGeneric)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}

	if resp.Kind != proto.KindOK {
		t.Fatalf("Kind = %v, want KindOK", resp.Kind)
	}
}

func TestReadResponseSkipsLeadingAck(t *testing.T) {
	c, srv := newTestClient(t)

	go func() {
		_, _ = srv.Write([]byte("+"))
		_, _ = srv.Write(encodeRSP("S05"))
	}()

	resp, err := c.ReadResponse(proto.ExpectGeneric)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}

	if resp.Kind != proto.KindStopReply || resp.StopSignal != 5 {
		t.Fatalf("resp = %+v, want StopReply signal 5", resp)
	}
}

func TestReadResponseRegisterData(t *testing.T) {
	c, srv := newTestClient(t)

	payload := proto.HexEncode(make([]byte, 132))

	go func() { _, _ = srv.Write(encodeRSP(payload)) }()

	resp, err := c.ReadResponse(proto.ExpectRegisterData)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}

	if resp.Kind != proto.KindRegisterData || len(resp.Bytes) != 132 {
		t.Fatalf("resp = %+v, want RegisterData of 132 bytes", resp)
	}
}

func TestReadResponseChecksumMismatchReturnsError(t *testing.T) {
	c, srv := newTestClient(t)

	go func() { _, _ = srv.Write([]byte("$OK#00")) }()

	if _, err := c.ReadResponse(proto.ExpectGeneric); err == nil {
		t.Fatal("expected checksum validation error")
	}
}

func TestReadResponseTimesOutWithNoData(t *testing.T) {
	c, srv := newTestClient(t)
	_ = srv

	start := time.Now()

	_, err := c.ReadResponse(proto.ExpectGeneric)
	if err != ErrTimedOut {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}

	if elapsed := time.Since(start); elapsed > overallTimeout+time.Second {
		t.Fatalf("took %v, want close to overallTimeout", elapsed)
	}
}

func TestReadResponseThreadInfoWithExpectQXfer(t *testing.T) {
	c, srv := newTestClient(t)

	go func() { _, _ = srv.Write(encodeRSP("m48656c6c6f")) }()

	resp, err := c.ReadResponse(proto.ExpectQXfer)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}

	if resp.Kind != proto.KindQXferData || resp.QXferFinal {
		t.Fatalf("resp = %+v, want non-final QXferData", resp)
	}

	if string(resp.QXferChunk) != "48656c6c6f" {
		t.Fatalf("chunk = %q", resp.QXferChunk)
	}
}
