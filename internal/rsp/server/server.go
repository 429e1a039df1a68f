// Package server implements the GDB Remote Serial Protocol endpoint that
// drives the waveform engine: a single-connection TCP listener translating
// RSP commands into engine calls and emitting stop-replies.
package server

import (
	"fmt"
	"net"

	"github.com/tracewave/wavedbg/internal/engine"
)

// PacketSize is advertised to clients via qSupported.
const PacketSize = 4096

// Server binds a TCP listener and serves a single RSP connection at a
// time, per the "accept one client, blocking event loop" model.
type Server struct {
	ln      net.Listener
	eng     *engine.Engine
	elfPath string
}

// New binds addr (":9001" for the default port, ":0" for an ephemeral one
// whose actual value is then observable via Addr).
func New(addr string, eng *engine.Engine, elfPath string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rsp/server: listen %s: %w", addr, err)
	}

	return &Server{ln: ln, eng: eng, elfPath: elfPath}, nil
}

// Addr returns the bound address, useful when New was given an ephemeral port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting new connections.
func (s *Server) Close() error { return s.ln.Close() }

// Serve accepts one client connection and services it until the client
// disconnects or a fatal I/O error occurs, then returns.
func (s *Server) Serve() error {
	conn, err := s.ln.Accept()
	if err != nil {
		return fmt.Errorf("rsp/server: accept: %w", err)
	}
	defer conn.Close()

	h := newConnHandler(conn, s.eng, s.elfPath)

	return h.run()
}
