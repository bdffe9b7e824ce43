// Command amortize runs the amortization engine on loans described in JSON
// files, without a database or server.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/google/subcommands"
)

// Overridden in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&scheduleCmd{}, "loans")
	c.Register(&calendarCmd{}, "loans")
	c.Register(&impactCmd{}, "loans")
	c.Register(&stressCmd{}, "loans")
	c.Register(&simulateCmd{}, "what-if")
}

func main() {
	register(subcommands.DefaultCommander)
	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
