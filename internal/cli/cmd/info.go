package cmd

import (
	"context"
	"debug/elf"
	"flag"
	"fmt"
	"io"

	"github.com/wkrp/rvemu/internal/cli"
	"github.com/wkrp/rvemu/internal/log"
)

// Info returns the command that prints the ELF header and program headers
// of a RISC-V binary without running it.
func Info() cli.Command {
	return new(info)
}

type info struct{}

func (info) Description() string {
	return "print information about a RISC-V ELF binary"
}

func (info) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `info program

Prints the entry point, class, and program headers of a RISC-V ELF binary.`)

	return err
}

func (info) FlagSet() *cli.FlagSet {
	return flag.NewFlagSet("info", flag.ExitOnError)
}

func (info) Run(_ context.Context, args []string, out io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(out, "info: missing program")
		return 1
	}

	f, err := elf.Open(args[0])
	if err != nil {
		logger.Error("error opening program", "err", err)
		return 2
	}
	defer f.Close()

	fmt.Fprintf(out, "class:   %s\n", f.Class)
	fmt.Fprintf(out, "machine: %s\n", f.Machine)
	fmt.Fprintf(out, "type:    %s\n", f.Type)
	fmt.Fprintf(out, "entry:   %#x\n", f.Entry)
	fmt.Fprintln(out, "\nprogram headers:")

	for _, prog := range f.Progs {
		fmt.Fprintf(out, "  %-10s vaddr=%#010x filesz=%#x memsz=%#x flags=%s\n",
			prog.Type, prog.Vaddr, prog.Filesz, prog.Memsz, prog.Flags)
	}

	return 0
}
