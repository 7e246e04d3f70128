// Command rvemu is a RISC-V instruction set emulator: it loads a RISC-V
// ELF binary and runs it, either as a Linux user-mode process or, with the
// monitor attached, as a bare-metal guest under interactive control.
package main

import (
	"context"
	"fmt"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/wkrp/rvemu/internal/cli"
	"github.com/wkrp/rvemu/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Run(),
	cmd.Info(),
	cmd.Monitor(),
}

func main() {
	optVersion := getopt.BoolLong("version", 'V', "print version and exit")
	optHelp := getopt.BoolLong("help", 'h', "print usage and exit")
	getopt.Parse()

	if *optVersion {
		fmt.Println("rvemu", version)
		os.Exit(0)
	}

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	result := cli.New(context.Background()).
		WithLogger(os.Stderr).
		WithCommands(commands).
		WithHelp(cmd.Help(commands)).
		Execute(getopt.Args())

	os.Exit(result)
}

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"
