// Package main provides the entry point for RIPSim, a cycle-accurate RV32IM
// 5-stage pipeline simulator.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/ripsim/config"
	"github.com/sarchlab/ripsim/loader"
	"github.com/sarchlab/ripsim/timing/core"
)

// addrFlag is an optional 32-bit address given in hex, with or without 0x.
type addrFlag struct {
	value uint32
	set   bool
}

func (a *addrFlag) String() string {
	if a == nil || !a.set {
		return ""
	}
	return fmt.Sprintf("0x%x", a.value)
}

func (a *addrFlag) Set(s string) error {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("invalid hex address %q", s)
	}
	a.value = uint32(v)
	a.set = true
	return nil
}

// sizeFlag is a byte count in decimal, or hex with a 0x prefix.
type sizeFlag struct {
	value uint32
	set   bool
}

func (f *sizeFlag) String() string {
	if f == nil || !f.set {
		return ""
	}
	return strconv.FormatUint(uint64(f.value), 10)
}

func (f *sizeFlag) Set(s string) error {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid size %q", s)
	}
	f.value = uint32(v)
	f.set = true
	return nil
}

type options struct {
	predictor   string
	interactive bool
	stats       bool
	singleCycle bool
	verbose     bool
	strict      bool
	maxCycles   uint64
	configPath  string
	logLevel    string
	cpuProfile  string
	memProfile  string

	dramSize sizeFlag
	dramBase addrFlag
	sp       addrFlag
	start    addrFlag
	end      addrFlag
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("ripsim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.predictor, "b", "no", "Branch predictor: no, none, onebit, twobit or gshare")
	fs.BoolVar(&opts.interactive, "i", false, "Interactive cycle-level stepping")
	fs.BoolVar(&opts.stats, "stats", false, "Print statistics")
	fs.BoolVar(&opts.singleCycle, "single-cycle", false, "Run the single-cycle reference engine")
	fs.BoolVar(&opts.verbose, "v", false, "Dump the pipeline state every cycle")
	fs.BoolVar(&opts.strict, "strict", false, "Fail on undecodable instructions")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = no limit)")
	fs.StringVar(&opts.configPath, "config", "", "Path to a JSON or YAML configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to file")
	fs.StringVar(&opts.memProfile, "memprofile", "", "Write a memory profile to file")

	fs.Var(&opts.dramSize, "dram-size", "Memory size in bytes")
	fs.Var(&opts.dramBase, "dram-base", "Memory base address (hex)")
	fs.Var(&opts.sp, "sp", "Initial stack pointer (hex)")
	fs.Var(&opts.start, "start-address", "First fetch address (hex)")
	fs.Var(&opts.end, "end-address", "Stop fetching at this address (hex)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ripsim [options] <program>\n")
		fmt.Fprintf(stderr, "\nThe program is a flat RV32 image or an RV32 ELF executable.\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	return fs
}

// parseArgs parses flags that may appear before and after the program path.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// buildConfig starts from the config file, if any, and applies the flags
// given on the command line over it.
func buildConfig(fs *flag.FlagSet, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b":
			cfg.Predictor = opts.predictor
		case "single-cycle":
			cfg.SingleCycle = opts.singleCycle
		case "strict":
			cfg.StrictDecode = opts.strict
		case "max-cycles":
			cfg.MaxCycles = opts.maxCycles
		case "dram-size":
			cfg.MemorySize = opts.dramSize.value
		case "dram-base":
			cfg.MemoryBase = opts.dramBase.value
		case "sp":
			cfg.StackPointer = config.Uint32(opts.sp.value)
		case "start-address":
			cfg.StartAddress = config.Uint32(opts.start.value)
		case "end-address":
			cfg.EndAddress = config.Uint32(opts.end.value)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	return logger, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := &options{}
	fs := newFlagSet(opts, stderr)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	programPath := positional[0]

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error in configuration: %v\n", err)
		return 1
	}

	logger, err := newLogger(opts.logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	prog, err := loader.LoadFile(programPath, cfg.MemoryBase)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	coreOpts := []core.Option{core.WithLogger(logger)}
	if opts.verbose {
		coreOpts = append(coreOpts, core.WithTrace(stdout))
	}

	c, err := core.New(cfg, prog, coreOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.cpuProfile != "" {
		stop, err := startCPUProfile(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer stop()
	}

	if opts.interactive {
		err = newREPL(c, stdin, stdout).run()
	} else {
		err = c.Run()
	}

	fmt.Fprintf(stdout, "\nProgram: %s\n", programPath)
	c.DumpRegisters(stdout)
	if opts.stats {
		fmt.Fprintf(stdout, "\n")
		c.Stats().Print(stdout)
	}

	if opts.memProfile != "" {
		if perr := writeMemProfile(opts.memProfile); perr != nil {
			fmt.Fprintf(stderr, "Error: %v\n", perr)
		}
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func writeMemProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	return nil
}
