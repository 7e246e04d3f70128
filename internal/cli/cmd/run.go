package cmd

import (
	"context"
	"debug/elf"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/wkrp/rvemu/internal/cli"
	"github.com/wkrp/rvemu/internal/log"
	"github.com/wkrp/rvemu/internal/riscv"
	"github.com/wkrp/rvemu/internal/riscv/loader"
	"github.com/wkrp/rvemu/internal/riscv/syscall"
)

// Run returns the command that loads and executes a RISC-V ELF binary as a
// Linux user-mode process.
func Run() cli.Command {
	return &runner{log: log.DefaultLogger()}
}

type runner struct {
	logLevel slog.Level
	timeout  time.Duration
	log      *log.Logger
}

func (runner) Description() string {
	return "run a RISC-V ELF binary"
}

func (runner) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run program [args]...

Loads a RISC-V ELF binary and executes it as a Linux user-mode process,
forwarding system calls to the host.`)

	return err
}

func (r *runner) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Func("loglevel", "set log `level`", func(s string) error {
		return r.logLevel.UnmarshalText([]byte(s))
	})
	fs.DurationVar(&r.timeout, "timeout", 30*time.Second, "maximum run duration")

	return fs
}

// Run executes the program named by args[0], passing the remaining
// arguments through as argv.
func (r *runner) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(stdout, "run: missing program")
		return 1
	}

	log.LogLevel.Set(r.logLevel)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	machine, entry, err := r.load(args[0], logger)
	if err != nil {
		logger.Error("error loading program", "err", err)
		return 2
	}

	logger.Debug("loaded program", "file", args[0], "entry", fmt.Sprintf("%#x", entry))
	logger.Info("starting machine")

	err = machine.Run(ctx)

	handler, _ := machine.Hart.Syscall.(*syscall.Handler)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("run timeout")
		return 2
	case err != nil:
		logger.Error("run error", "err", err)
		return 2
	case handler != nil && handler.Exited:
		return handler.ExitCode
	default:
		return 0
	}
}

func (r *runner) load(path string, logger *log.Logger) (*riscv.Machine, uint64, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("run: %w", err)
	}
	defer f.Close()

	bus := riscv.NewBus()

	const ramSize = 256 * 1024 * 1024
	bus.Map("ram", 0, ramSize, riscv.NewRAM(ramSize))

	img, err := loader.Load(bus, f)
	if err != nil {
		return nil, 0, fmt.Errorf("run: %w", err)
	}

	handler := syscall.NewHandler(logger, img.BreakAt)

	sp, err := loader.BuildStack(bus, uint64(ramSize)-4096, img.XLEN, img, f, []string{path}, os.Environ())
	if err != nil {
		return nil, 0, fmt.Errorf("run: building stack: %w", err)
	}

	machine := riscv.NewMachine(bus, []riscv.Option{
		riscv.WithXLEN(img.XLEN),
		riscv.WithMode(riscv.ModeUser),
		riscv.WithPrivilege(riscv.User),
		riscv.WithLogger(logger),
		riscv.WithSyscallHandler(handler),
		riscv.WithEntry(img.Entry),
	}, riscv.WithMachineLogger(logger))

	machine.Hart.SetGPR(2, sp)

	return machine, img.Entry, nil
}
