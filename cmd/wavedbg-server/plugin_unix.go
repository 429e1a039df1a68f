//go:build linux || darwin

package main

import (
	"fmt"
	"plugin"

	"github.com/tracewave/wavedbg/internal/signalmap"
)

// loadPlugin opens a compiled SignalMapper .so and resolves its exported
// "Mapper" variable, per SPEC_FULL.md §6's plugin ABI
// (var Mapper wavedbg.SignalMapper).
func loadPlugin(path string) (signalmap.SignalMapper, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading mapper plugin %s: %w", path, err)
	}

	sym, err := p.Lookup("Mapper")
	if err != nil {
		return nil, fmt.Errorf("plugin %s: missing exported Mapper symbol: %w", path, err)
	}

	mapperPtr, ok := sym.(*signalmap.SignalMapper)
	if !ok {
		return nil, fmt.Errorf("plugin %s: exported Mapper is not a *signalmap.SignalMapper", path)
	}

	return *mapperPtr, nil
}
