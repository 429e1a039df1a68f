// Package termio puts the controlling terminal into raw mode for the
// TUI's line editor (which reads command lines byte by byte, with no
// canonical line buffering or local echo) and restores the saved
// terminal state on exit.
package termio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// State holds the terminal settings MakeRaw captured, for Restore.
type State struct {
	fd   int
	orig unix.Termios
}

// MakeRaw puts fd (normally os.Stdin.Fd()) into raw mode: no canonical
// line buffering, no echo, no signal-generating control characters.
// The returned State must be passed to Restore before the process exits.
func MakeRaw(fd int) (*State, error) {
	orig, err := getTermios(fd)
	if err != nil {
		return nil, fmt.Errorf("termio: get termios: %w", err)
	}

	raw := *orig
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := setTermios(fd, &raw); err != nil {
		return nil, fmt.Errorf("termio: set termios: %w", err)
	}

	return &State{fd: fd, orig: *orig}, nil
}

// Restore reinstates the terminal settings MakeRaw saved.
func Restore(s *State) error {
	if s == nil {
		return nil
	}

	if err := setTermios(s.fd, &s.orig); err != nil {
		return fmt.Errorf("termio: restore: %w", err)
	}

	return nil
}
