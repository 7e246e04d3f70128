// Package monitor implements an interactive command console for inspecting
// and single-stepping a running Machine, in the style of a bare-metal
// debug monitor: register and memory dumps, breakpoints, and single-step.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/wkrp/rvemu/internal/riscv"
)

// Monitor drives a Machine interactively from a line-editing console.
type Monitor struct {
	Machine *riscv.Machine
	log     *slog.Logger

	breakpoints map[uint64]bool
}

// New returns a Monitor attached to machine.
func New(machine *riscv.Machine, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}

	return &Monitor{
		Machine:     machine,
		log:         log,
		breakpoints: make(map[uint64]bool),
	}
}

type command struct {
	name    string
	min     int
	process func(*Monitor, []string) (quit bool, err error)
}

var commandList = []command{
	{name: "continue", min: 1, process: (*Monitor).cmdContinue},
	{name: "step", min: 2, process: (*Monitor).cmdStep},
	{name: "registers", min: 3, process: (*Monitor).cmdRegisters},
	{name: "memory", min: 3, process: (*Monitor).cmdMemory},
	{name: "break", min: 2, process: (*Monitor).cmdBreak},
	{name: "delete", min: 1, process: (*Monitor).cmdDelete},
	{name: "quit", min: 1, process: (*Monitor).cmdQuit},
}

func matchCommand(name string) []command {
	if name == "" {
		return nil
	}

	var matches []command

	for _, c := range commandList {
		if len(name) < c.min {
			continue
		}

		if strings.HasPrefix(c.name, name) {
			matches = append(matches, c)
		}
	}

	return matches
}

// Run starts the console, reading commands until the user quits, ctx is
// cancelled, or the input stream closes.
func (m *Monitor) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var names []string

		for _, c := range matchCommand(prefix) {
			names = append(names, c.name)
		}

		return names
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		input, err := line.Prompt(fmt.Sprintf("rvemu[%#x]> ", m.Machine.Hart.PC))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		line.AppendHistory(input)

		quit, err := m.dispatch(ctx, input)
		if err != nil {
			fmt.Println("error:", err)
		}

		if quit {
			return nil
		}
	}
}

func (m *Monitor) dispatch(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false, nil
	}

	matches := matchCommand(fields[0])

	switch len(matches) {
	case 0:
		return false, fmt.Errorf("unknown command: %s", fields[0])
	case 1:
		return matches[0].process(m, fields[1:])
	default:
		return false, fmt.Errorf("ambiguous command: %s", fields[0])
	}
}

func (m *Monitor) cmdContinue(_ []string) (bool, error) {
	ctx := context.Background()

	for {
		if err := m.Machine.Hart.Step(ctx); err != nil {
			if errors.Is(err, riscv.ErrHalted) {
				fmt.Println("halted")
				return false, nil
			}

			return false, err
		}

		if m.breakpoints[m.Machine.Hart.PC] {
			fmt.Printf("breakpoint at %#x\n", m.Machine.Hart.PC)
			return false, nil
		}
	}
}

func (m *Monitor) cmdStep(args []string) (bool, error) {
	n := 1

	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("step: %w", err)
		}

		n = v
	}

	ctx := context.Background()

	for i := 0; i < n; i++ {
		if err := m.Machine.Hart.Step(ctx); err != nil {
			if errors.Is(err, riscv.ErrHalted) {
				fmt.Println("halted")
				return false, nil
			}

			return false, err
		}
	}

	fmt.Printf("pc=%#x\n", m.Machine.Hart.PC)

	return false, nil
}

func (m *Monitor) cmdRegisters(_ []string) (bool, error) {
	h := m.Machine.Hart

	for i := 0; i < riscv.NumGPR; i += 4 {
		for j := i; j < i+4 && j < riscv.NumGPR; j++ {
			fmt.Printf("x%-2d=%#018x ", j, h.GPR(riscv.GPR(j)))
		}

		fmt.Println()
	}

	fmt.Printf("pc =%#018x priv=%s\n", h.PC, h.Priv)

	return false, nil
}

func (m *Monitor) cmdMemory(args []string) (bool, error) {
	if len(args) == 0 {
		return false, errors.New("memory: missing address")
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return false, fmt.Errorf("memory: %w", err)
	}

	count := uint64(16)

	if len(args) > 1 {
		c, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("memory: %w", err)
		}

		count = c
	}

	for i := uint64(0); i < count; i += 8 {
		fmt.Printf("%#010x: ", addr+i)

		for j := i; j < i+8 && j < count; j++ {
			v, err := m.Machine.Hart.ReadMem(addr+j, riscv.Byte)
			if err != nil {
				fmt.Printf("?? ")
				continue
			}

			fmt.Printf("%02x ", v)
		}

		fmt.Println()
	}

	return false, nil
}

func (m *Monitor) cmdBreak(args []string) (bool, error) {
	if len(args) == 0 {
		return false, errors.New("break: missing address")
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return false, fmt.Errorf("break: %w", err)
	}

	m.breakpoints[addr] = true
	fmt.Printf("breakpoint set at %#x\n", addr)

	return false, nil
}

func (m *Monitor) cmdDelete(args []string) (bool, error) {
	if len(args) == 0 {
		m.breakpoints = make(map[uint64]bool)
		return false, nil
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	delete(m.breakpoints, addr)

	return false, nil
}

func (m *Monitor) cmdQuit(_ []string) (bool, error) {
	return true, nil
}
