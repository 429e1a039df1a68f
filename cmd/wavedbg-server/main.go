// Command wavedbg-server serves a waveform trace and its companion ELF
// over the GDB Remote Serial Protocol, replaying captured execution
// instead of running it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tracewave/wavedbg/internal/config"
	"github.com/tracewave/wavedbg/internal/diag"
	"github.com/tracewave/wavedbg/internal/elfinfo"
	"github.com/tracewave/wavedbg/internal/engine"
	"github.com/tracewave/wavedbg/internal/rsp/server"
	"github.com/tracewave/wavedbg/internal/signalmap"
	"github.com/tracewave/wavedbg/internal/watch"
	"github.com/tracewave/wavedbg/internal/wavefile"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "wavedbg-server:", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "wavedbg-server:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	info, mem, err := elfinfo.Load(cfg.ElfPath)
	if err != nil {
		return fmt.Errorf("loading elf: %w", err)
	}

	handle, err := wavefile.Load(cfg.WavePath)
	if err != nil {
		return fmt.Errorf("loading waveform: %w", err)
	}

	mapper, err := resolveMapper(cfg)
	if err != nil {
		return err
	}

	result, err := signalmap.Load(handle, mapper)
	if err != nil {
		return fmt.Errorf("resolving signal map: %w", err)
	}

	eng, err := engine.New(result.Required, nil, mem)
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}

	watched := []string{cfg.WavePath, cfg.ElfPath}
	if cfg.MappingPath != "" {
		watched = append(watched, cfg.MappingPath)
	}

	w, err := watch.New(watched...)
	if err != nil {
		return fmt.Errorf("starting input watcher: %w", err)
	}
	defer w.Close()

	go logWatchEvents(w)

	var diagSrv *diag.Server
	if cfg.DiagHTTPAddr != "" {
		diagSrv, err = diag.New(cfg.DiagHTTPAddr, eng)
		if err != nil {
			return fmt.Errorf("constructing diagnostics server: %w", err)
		}

		addr, err := diagSrv.Start()
		if err != nil {
			return fmt.Errorf("starting diagnostics server: %w", err)
		}

		log.Println("diagnostics HTTP/3 listening on", addr)
		defer diagSrv.Stop()
	}

	srv, err := server.New(cfg.Addr, eng, cfg.ElfPath)
	if err != nil {
		return fmt.Errorf("binding rsp server: %w", err)
	}
	defer srv.Close()

	log.Printf("loaded %d pc/gpr signals, %d extra, entry=%#x", 1+len(result.Required.GPRs), len(result.Extra), info.Entry)
	log.Println("rsp server listening on", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() { errCh <- srv.Serve() }()

	select {
	case <-ctx.Done():
		log.Println("shutting down")

		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving rsp: %w", err)
		}

		return nil
	}
}

func resolveMapper(cfg config.Config) (signalmap.SignalMapper, error) {
	registry, err := signalmap.NewRegistry("1.0.0")
	if err != nil {
		return nil, fmt.Errorf("constructing signal-map registry: %w", err)
	}

	if cfg.MappingPath != "" {
		mapper := signalmap.NewJSONSignalMapper(cfg.MappingPath)
		registry.Register(mapper)

		return registry.Resolve(mapper.Name(), cfg.APIConstraint)
	}

	mapper, err := loadPlugin(cfg.MappingPlugin)
	if err != nil {
		return nil, err
	}

	registry.Register(mapper)
	name := cfg.MapperName

	if name == "" {
		name = mapper.Name()
	}

	return registry.Resolve(name, cfg.APIConstraint)
}

func logWatchEvents(w *watch.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return
			}

			log.Printf("input changed on disk: %s (op=%d), restart to pick up the new file", ev.Path, ev.Op)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}

			log.Printf("input watcher error: %v", err)
		}
	}
}
