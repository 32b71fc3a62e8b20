// Package main provides the entry point for ppcemu, a multi-core 32-bit
// PowerPC CPU emulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/ppcemu/config"
	"github.com/sarchlab/ppcemu/hle"
	"github.com/sarchlab/ppcemu/loader"
	"github.com/sarchlab/ppcemu/machine"
	"github.com/sarchlab/ppcemu/mem"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	engine     string
	cores      int
	verbosity  int
	traceHLE   bool
	listHLE    bool
	stats      bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	var o options

	fs := flag.NewFlagSet("ppcemu", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to configuration file (JSON, or YAML with a .yaml/.yml extension)")
	fs.StringVar(&o.engine, "engine", "", "Execution engine: interpreter or jit")
	fs.IntVar(&o.cores, "cores", 0, "Number of guest cores")
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (1: compiles, 2: every dispatcher exit)")
	fs.BoolVar(&o.traceHLE, "trace-hle", false, "Log every host function call")
	fs.BoolVar(&o.listHLE, "list-hle", false, "List host function call IDs and exit")
	fs.BoolVar(&o.stats, "stats", false, "Print execution statistics")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ppcemu [options] <program.elf>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &o, fs.Args(), nil
}

func loadConfig(o *options) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}

	if o.engine != "" {
		cfg.Engine = o.engine
	}
	if o.cores > 0 {
		cfg.Cores = o.cores
	}
	if o.traceHLE {
		cfg.TraceHLE = true
	}

	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(w, args)
		}
	}, funcr.Options{Verbosity: verbosity})
}

// run executes the command line and returns the process exit status.
// Program exit codes come from the guest: the status passed to exit, or
// GPR3 of core 0 when the entry point returns.
func run(args []string, stdout, stderr io.Writer) int {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	log := newLogger(stderr, o.verbosity)

	if o.listHLE {
		registry := hle.NewRegistry(nil)
		hle.NewConsole(stdout).Register(registry)
		for _, f := range registry.Functions() {
			fmt.Fprintf(stdout, "%4d  %s\n", f.ID, f.Name)
		}
		return 0
	}

	if len(rest) < 1 {
		fmt.Fprintf(stderr, "Usage: ppcemu [options] <program.elf>\n")
		return 2
	}
	programPath := rest[0]

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	space, err := mem.NewSpace(mem.WithLogger(log.WithName("mem")))
	if err != nil {
		fmt.Fprintf(stderr, "Error reserving guest memory: %v\n", err)
		return 1
	}
	defer func() { _ = space.Close() }()

	if err := prog.Install(space); err != nil {
		fmt.Fprintf(stderr, "Error installing program: %v\n", err)
		return 1
	}

	registry := hle.NewRegistry(space,
		hle.WithLogger(log.WithName("hle")),
		hle.WithTrace(cfg.TraceHLE))
	console := hle.NewConsole(stdout)
	console.Register(registry)

	m, err := machine.New(cfg, space,
		machine.WithLogger(log.WithName("machine")),
		machine.WithRegistry(registry))
	if err != nil {
		fmt.Fprintf(stderr, "Error creating machine: %v\n", err)
		return 1
	}
	defer func() { _ = m.Close() }()

	boot := m.Processor(0)
	boot.SetEntry(prog.EntryPoint, prog.InitialSP)

	log.V(1).Info("program loaded", "path", programPath,
		"entry", fmt.Sprintf("0x%08X", prog.EntryPoint), "segments", len(prog.Segments))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := m.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if o.stats {
		printStats(stdout, programPath, m)
	}

	if code, exited := console.ExitCode(); exited {
		return int(code)
	}
	return int(int32(boot.State.GPR[3]))
}

func printStats(w io.Writer, programPath string, m *machine.Machine) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Program: %s\n", programPath)
	for _, p := range m.Processors() {
		s := p.Stats()
		fmt.Fprintf(w, "Core %d:\n", p.State.ID)
		fmt.Fprintf(w, "  Interpreted instructions: %d\n", s.Instructions)
		if p.Runtime() != nil {
			fmt.Fprintf(w, "  Blocks compiled:  %d\n", s.JIT.Compiled)
			fmt.Fprintf(w, "  Blocks entered:   %d\n", s.JIT.Entered)
			fmt.Fprintf(w, "  Fallbacks:        %d\n", s.JIT.Fallbacks)
			fmt.Fprintf(w, "  Interrupts:       %d\n", s.JIT.Interrupts)
			fmt.Fprintf(w, "  Flushes:          %d\n", s.JIT.Flushes)
		}
	}
}
