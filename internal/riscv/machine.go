package riscv

import (
	"context"
	"log/slog"
)

// machine.go bundles a Hart with the bus and devices it runs against into a
// single value a command-line entry point or a test can construct, run, and
// inspect, mirroring the teacher's LC3 struct that bundled CPU, memory, and
// devices behind one name.

// Machine is a complete, runnable system: one hart, its physical bus, and
// whatever MMIO devices have been mapped onto it.
type Machine struct {
	Hart *Hart
	Bus  *Bus

	log *slog.Logger
}

// MachineOption configures a Machine during NewMachine.
type MachineOption func(*Machine)

// WithMachineLogger attaches a structured logger used for machine-level
// events (halts, unmapped accesses surfaced as warnings).
func WithMachineLogger(log *slog.Logger) MachineOption {
	return func(m *Machine) { m.log = log }
}

// NewMachine wires a bus and a hart built from hartOpts into a Machine. The
// bus is constructed first so hartOpts can reference it via WithBus.
func NewMachine(bus *Bus, hartOpts []Option, opts ...MachineOption) *Machine {
	m := &Machine{Bus: bus}

	for _, opt := range opts {
		opt(m)
	}

	if m.log == nil {
		m.log = slog.Default()
	}

	m.Hart = New(append([]Option{WithBus(bus)}, hartOpts...)...)

	return m
}

// Run drives the hart until it halts or ctx is cancelled.
func (m *Machine) Run(ctx context.Context) error {
	m.log.Info("machine: starting", "entry", m.Hart.PC, "xlen", m.Hart.XLEN, "mode", m.Hart.Mode)

	err := m.Hart.Run(ctx)

	m.log.Info("machine: stopped", "retired", m.Hart.Retired(), "pc", m.Hart.PC, "err", err)

	return err
}
