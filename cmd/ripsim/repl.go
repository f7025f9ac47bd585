package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/ripsim/timing/core"
)

// repl drives a core one step at a time from text commands.
type repl struct {
	core *core.Core
	in   *bufio.Scanner
	out  io.Writer
}

func newREPL(c *core.Core, in io.Reader, out io.Writer) *repl {
	return &repl{core: c, in: bufio.NewScanner(in), out: out}
}

const replHelp = `Commands:
  s [n]  step n cycles (default 1)
  r      print registers
  p      print pipeline stages
  c      continue to the end
  q      quit
`

// run reads commands until quit, continue or end of input. A fatal
// simulation error ends the session and is returned.
func (r *repl) run() error {
	for {
		fmt.Fprint(r.out, "(ripsim) ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}

		fields := strings.Fields(r.in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "s", "step":
			if err := r.step(fields[1:]); err != nil {
				return err
			}
		case "r", "regs":
			r.core.DumpRegisters(r.out)
		case "p", "pipeline":
			if err := r.core.DumpPipeline(r.out); err != nil {
				fmt.Fprintf(r.out, "%v\n", err)
			}
		case "c", "continue":
			return r.core.Run()
		case "q", "quit":
			return nil
		case "h", "help", "?":
			fmt.Fprint(r.out, replHelp)
		default:
			fmt.Fprintf(r.out, "unknown command %q, type h for help\n", fields[0])
		}
	}
}

func (r *repl) step(args []string) error {
	n := uint64(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || v == 0 {
			fmt.Fprintf(r.out, "invalid step count %q\n", args[0])
			return nil
		}
		n = v
	}

	if r.core.Halted() {
		fmt.Fprintln(r.out, "program finished")
		return nil
	}

	running, err := r.core.RunCycles(n)
	if err != nil {
		return err
	}

	stats := r.core.Stats()
	fmt.Fprintf(r.out, "cycle %d pc 0x%08x\n", stats.Cycles, r.core.PC())
	if !running {
		fmt.Fprintln(r.out, "program finished")
	}
	return nil
}
