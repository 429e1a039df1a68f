package diag

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/tracewave/wavedbg/internal/engine"
	"github.com/tracewave/wavedbg/internal/waveform"
)

func u32be(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	pc := waveform.NewSliceSignal(32, []waveform.ChangePoint{{Index: 0, Value: u32be(0x1000)}})

	var gprs [waveform.GPRCount]waveform.Signal
	for i := range gprs {
		gprs[i] = waveform.NewSliceSignal(32, []waveform.ChangePoint{{Index: 0, Value: u32be(uint32(i))}})
	}

	rw := waveform.RequiredWaves{PC: pc, GPRs: gprs}

	e, err := engine.New(rw, nil, waveform.NewMemory())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	return e
}

func httpsClient() *http.Client {
	tr := &http3.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}

	return &http.Client{Transport: tr, Timeout: 5 * time.Second}
}

func TestStatusEndpointReportsSnapshot(t *testing.T) {
	eng := newTestEngine(t)
	eng.Breakpoints().Add(0x2000)

	srv, err := New("127.0.0.1:0", eng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	client := httpsClient()

	resp, err := client.Get(fmt.Sprintf("https://%s/status", addr))
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}

	if status.PC != 0x1000 {
		t.Fatalf("PC = %#x, want 0x1000", status.PC)
	}

	if status.TimeIndex != 0 {
		t.Fatalf("TimeIndex = %d, want 0", status.TimeIndex)
	}

	if len(status.Breakpoints) != 1 || status.Breakpoints[0] != 0x2000 {
		t.Fatalf("Breakpoints = %v, want [0x2000]", status.Breakpoints)
	}

	if status.ExecMode != "step" {
		t.Fatalf("ExecMode = %q, want step", status.ExecMode)
	}

	for i, v := range status.Registers {
		if v != uint32(i) {
			t.Fatalf("Registers[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestStatusEndpointRejectsNonGET(t *testing.T) {
	eng := newTestEngine(t)

	srv, err := New("127.0.0.1:0", eng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	client := httpsClient()

	resp, err := client.Post(fmt.Sprintf("https://%s/status", addr), "application/json", nil)
	if err != nil {
		t.Fatalf("POST /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
