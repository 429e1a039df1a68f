//go:build !linux && !darwin

package main

import (
	"fmt"

	"github.com/tracewave/wavedbg/internal/signalmap"
)

// loadPlugin is unavailable outside linux/darwin: Go's plugin package only
// supports ELF- and Mach-O-based dynamic loading. -mapping-path is the
// only mapper source on other platforms.
func loadPlugin(path string) (signalmap.SignalMapper, error) {
	return nil, fmt.Errorf("mapping plugins are not supported on this platform; use -mapping-path instead")
}
