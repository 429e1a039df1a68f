// Package diag exposes a read-only diagnostics side channel over
// HTTP/3: a single /status endpoint reporting the engine's current time
// index, PC, register snapshot, breakpoint list, and execution mode.
// It never accepts a mutating request and has no bearing on RSP
// correctness; it exists purely so an operator or dashboard can observe
// a running server without speaking RSP themselves.
package diag

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/tracewave/wavedbg/internal/engine"
)

// Status is the JSON body served at /status.
type Status struct {
	TimeIndex   uint32   `json:"time_index"`
	PC          uint32   `json:"pc"`
	Registers   [32]uint32 `json:"registers"`
	Breakpoints []uint32 `json:"breakpoints"`
	ExecMode    string   `json:"exec_mode"`
}

// Server serves the diagnostics endpoint over HTTP/3.
type Server struct {
	eng  *engine.Engine
	addr string
	pc   net.PacketConn
	srv  *http3.Server
}

// New builds a diagnostics server bound to addr (":0" for an ephemeral
// port) with an in-process self-signed TLS 1.3 certificate. It does not
// start listening until Start is called.
func New(addr string, eng *engine.Engine) (*Server, error) {
	cert, err := selfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("diag: generating certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3"},
		Certificates: []tls.Certificate{cert},
	}

	mux := http.NewServeMux()
	s := &Server{eng: eng, addr: addr}
	mux.HandleFunc("/status", s.handleStatus)

	s.srv = &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: mux}

	return s, nil
}

// Start begins serving on the UDP socket bound to the address given to
// New and returns the address it actually bound to.
func (s *Server) Start() (string, error) {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", fmt.Errorf("diag: listen: %w", err)
	}

	s.pc = pc

	go s.srv.Serve(pc)

	return pc.LocalAddr().String(), nil
}

// Stop closes the underlying UDP socket, terminating the HTTP/3 server.
func (s *Server) Stop() error {
	if s.pc == nil {
		return nil
	}

	return s.pc.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	status := Status{
		TimeIndex:   s.eng.TimeIdx(),
		PC:          s.eng.CurrentPC(),
		Breakpoints: s.eng.Breakpoints().List(),
		ExecMode:    s.eng.ModeName(),
	}

	for i := range status.Registers {
		status.Registers[i] = s.eng.CurrentGPR(i)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// selfSignedCert generates an ephemeral RSA certificate valid for the
// lifetime of the process; nothing about it is persisted to disk.
func selfSignedCert() (tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "wavedbg-diag"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	return tls.X509KeyPair(certPEM, keyPEM)
}
