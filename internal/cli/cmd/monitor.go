package cmd

import (
	"context"
	"debug/elf"
	"flag"
	"fmt"
	"io"

	"github.com/wkrp/rvemu/internal/cli"
	"github.com/wkrp/rvemu/internal/log"
	"github.com/wkrp/rvemu/internal/monitor"
	"github.com/wkrp/rvemu/internal/riscv"
	"github.com/wkrp/rvemu/internal/riscv/device/clint"
	"github.com/wkrp/rvemu/internal/riscv/device/plic"
	"github.com/wkrp/rvemu/internal/riscv/device/uart"
	"github.com/wkrp/rvemu/internal/riscv/loader"
)

const (
	uartBase  = 0x10000000
	clintBase = 0x02000000
	plicBase  = 0x0c000000
	ramBase   = 0x80000000
	ramSize   = 128 * 1024 * 1024
)

// Monitor returns the command that loads a bare-metal RISC-V ELF image and
// drops into the interactive debug console instead of running it to
// completion.
func Monitor() cli.Command {
	return new(monitorCmd)
}

type monitorCmd struct{}

func (monitorCmd) Description() string {
	return "load a program and start the interactive monitor"
}

func (monitorCmd) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `monitor program

Loads a bare-metal RISC-V ELF image onto a machine with a UART, CLINT, and
PLIC, and starts an interactive console for inspecting and single-stepping
it.`)

	return err
}

func (monitorCmd) FlagSet() *cli.FlagSet {
	return flag.NewFlagSet("monitor", flag.ExitOnError)
}

func (monitorCmd) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(out, "monitor: missing program")
		return 1
	}

	f, err := elf.Open(args[0])
	if err != nil {
		logger.Error("error opening program", "err", err)
		return 2
	}
	defer f.Close()

	bus := riscv.NewBus()
	bus.Map("ram", ramBase, ramSize, riscv.NewRAM(ramSize))

	u := uart.New()
	bus.Map("uart", uartBase, 0x100, u)

	c := clint.New(1)
	bus.Map("clint", clintBase, 0x10000, c)

	p := plic.New(1)
	bus.Map("plic", plicBase, 0x4000000, p)

	c.SetMTIP = func(hart int, pending bool) {}
	p.NotifyContext = func(context int, pending bool) {}

	img, err := loader.Load(bus, f)
	if err != nil {
		logger.Error("error loading program", "err", err)
		return 2
	}

	machine := riscv.NewMachine(bus, []riscv.Option{
		riscv.WithXLEN(img.XLEN),
		riscv.WithMode(riscv.ModeBare),
		riscv.WithLogger(logger),
		riscv.WithEntry(img.Entry),
	}, riscv.WithMachineLogger(logger))

	mon := monitor.New(machine, logger)

	if err := mon.Run(ctx); err != nil {
		logger.Error("monitor error", "err", err)
		return 2
	}

	return 0
}
