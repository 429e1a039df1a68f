// Command wavedbg-tui is the interactive front end: it dials a running
// wavedbg-server over the GDB Remote Serial Protocol and drives it through
// a small command line, symbolizing replies against its own local copy of
// the ELF and DWARF line tables.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/tracewave/wavedbg/internal/dwarfstep"
	"github.com/tracewave/wavedbg/internal/elfinfo"
	"github.com/tracewave/wavedbg/internal/rsp/client"
	"github.com/tracewave/wavedbg/internal/signalmap"
	"github.com/tracewave/wavedbg/internal/wavefile"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "wavedbg-tui:", err)
		os.Exit(1)
	}
}

type options struct {
	addr     string
	elfPath  string
	wavePath string
}

func parseArgs(args []string) (options, error) {
	fs := flag.NewFlagSet("wavedbg-tui", flag.ContinueOnError)

	opt := options{}
	fs.StringVar(&opt.addr, "addr", "127.0.0.1:9001", "address of the running wavedbg-server")
	fs.StringVar(&opt.elfPath, "elf", "", "path to the companion ELF (for symbolization and breakpoint-by-line)")
	fs.StringVar(&opt.wavePath, "wave-path", "", "path to the waveform file (for the addsig signal browser)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if opt.elfPath == "" {
		return options{}, fmt.Errorf("wavedbg-tui: -elf is required")
	}

	return opt, nil
}

func run(args []string) error {
	opt, err := parseArgs(args)
	if err != nil {
		return err
	}

	rsp, err := client.Dial(opt.addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", opt.addr, err)
	}
	defer rsp.Close()

	fmt.Println("connected to", opt.addr)

	info, _, err := elfinfo.Load(opt.elfPath)
	if err != nil {
		return fmt.Errorf("loading elf: %w", err)
	}

	dwarf, err := dwarfstep.Load(opt.elfPath, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wavedbg-tui: no dwarf line info available:", err)

		dwarf = nil
	}

	var wave signalmap.WaveformHandle
	if opt.wavePath != "" {
		handle, err := wavefile.Load(opt.wavePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "wavedbg-tui: failed to load waveform, addsig disabled:", err)
		} else {
			wave = handle
		}
	}

	sess := newSession(rsp, info, dwarf, wave)

	return runLoop(sess)
}

// runLoop drives the raw-mode line editor against stdin/stdout, falling
// back to a plain bufio.Scanner when stdin is not a terminal (e.g. piped
// input in tests or non-interactive use).
func runLoop(sess *session) error {
	fd := int(os.Stdin.Fd())

	ed, err := newLineEditor(fd, os.Stdin, os.Stdout)
	if err != nil {
		return scanLoop(sess)
	}
	defer ed.Close()

	for {
		line, err := ed.ReadLine("wavedbg> ")
		if err != nil {
			return nil
		}

		if sess.dispatch(line) {
			return nil
		}
	}
}

func scanLoop(sess *session) error {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("wavedbg> ")

	for scanner.Scan() {
		if sess.dispatch(scanner.Text()) {
			return nil
		}

		fmt.Print("wavedbg> ")
	}

	return scanner.Err()
}
