// Package viewer implements the client side of the external
// waveform-viewer side channel: NUL-terminated JSON messages exchanged
// over a TCP connection, used to keep an external viewer's cursor in
// sync with this debugger's. Only the client contract is implemented;
// the viewer itself is an external collaborator.
package viewer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
)

// Greeting is the first message a viewer sends on connect.
type Greeting struct {
	Type     string   `json:"type"`
	Version  string   `json:"version"`
	Commands []string `json:"commands"`
}

// Command is a single instruction sent to the viewer.
type Command struct {
	AddVariables  *AddVariables  `json:"add_variables,omitempty"`
	SetViewportTo *SetViewportTo `json:"set_viewport_to,omitempty"`
}

// AddVariables asks the viewer to display the named signal paths.
type AddVariables struct {
	Variables []string `json:"variables"`
}

// SetViewportTo asks the viewer to move its cursor to timestamp.
type SetViewportTo struct {
	Timestamp uint64 `json:"timestamp"`
}

type envelope struct {
	Type    string  `json:"type"`
	Command Command `json:"command"`
}

// Client is a connected waveform-viewer peer.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to addr, reads the viewer's greeting, and returns a
// ready Client along with the greeting it announced.
func Dial(addr string) (*Client, Greeting, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, Greeting{}, fmt.Errorf("viewer: dial %s: %w", addr, err)
	}

	c := &Client{conn: conn, r: bufio.NewReader(conn)}

	raw, err := c.readMessage()
	if err != nil {
		conn.Close()

		return nil, Greeting{}, fmt.Errorf("viewer: reading greeting: %w", err)
	}

	var g Greeting
	if err := json.Unmarshal(raw, &g); err != nil {
		conn.Close()

		return nil, Greeting{}, fmt.Errorf("viewer: decoding greeting: %w", err)
	}

	return c, g, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// AddVariables sends an add_variables command for the given signal paths.
func (c *Client) AddVariables(paths []string) error {
	return c.sendCommand(Command{AddVariables: &AddVariables{Variables: paths}})
}

// SetViewportTo sends a set_viewport_to command moving the viewer's cursor.
func (c *Client) SetViewportTo(timestamp uint64) error {
	return c.sendCommand(Command{SetViewportTo: &SetViewportTo{Timestamp: timestamp}})
}

func (c *Client) sendCommand(cmd Command) error {
	return c.send(envelope{Type: "command", Command: cmd})
}

// send marshals v to JSON and writes it followed by a single NUL byte.
func (c *Client) send(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("viewer: encoding message: %w", err)
	}

	body = append(body, 0x00)

	if _, err := c.conn.Write(body); err != nil {
		return fmt.Errorf("viewer: writing message: %w", err)
	}

	return nil
}

// ReadResponse reads and decodes the next NUL-terminated JSON response
// the viewer sends, e.g. an acknowledgement after a command.
func (c *Client) ReadResponse(v any) error {
	raw, err := c.readMessage()
	if err != nil {
		return fmt.Errorf("viewer: reading response: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("viewer: decoding response: %w", err)
	}

	return nil
}

// readMessage reads bytes up to and including the next NUL, returning
// everything before it.
func (c *Client) readMessage() ([]byte, error) {
	raw, err := c.r.ReadBytes(0x00)
	if err != nil {
		return nil, err
	}

	return raw[:len(raw)-1], nil
}

// Encode frames cmd as a command envelope followed by a NUL byte, the
// same wire form sendCommand writes to a live connection.
func Encode(cmd Command) ([]byte, error) {
	body, err := json.Marshal(envelope{Type: "command", Command: cmd})
	if err != nil {
		return nil, fmt.Errorf("viewer: encoding command: %w", err)
	}

	return append(body, 0x00), nil
}

// Decode parses a single NUL-terminated command envelope previously
// produced by Encode, returning the decoded Command.
func Decode(raw []byte) (Command, error) {
	if n := len(raw); n > 0 && raw[n-1] == 0x00 {
		raw = raw[:n-1]
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, fmt.Errorf("viewer: decoding command: %w", err)
	}

	return env.Command, nil
}
