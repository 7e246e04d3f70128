// Package tty_test tries to test ttys.
//
// The test is skipped when stdin is not a terminal (ErrNoTTY). Notably, this includes when run with
// "go test" because it redirects tests' standard input/output streams. You can test it by building
// a test binary and running it directly:
//
//	$ go test -c && ./tty.test
package tty_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wkrp/rvemu/cmd/internal/tty"
	"github.com/wkrp/rvemu/internal/riscv"
	"github.com/wkrp/rvemu/internal/riscv/device/uart"
)

type testHarness struct {
	*testing.T
}

const timeout = 100 * time.Millisecond

func (testHarness) Context() (context.Context, context.CancelCauseFunc) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, context.DeadlineExceeded)

	return ctx, func(err error) {
		cancel()
	}
}

func TestTerminal(tt *testing.T) {
	t := testHarness{tt}
	u := uart.New()

	ctx, cancel := t.Context()
	defer cancel(nil)

	ctx, console, done := tty.WithConsole(ctx, u)
	defer done()

	if err := context.Cause(ctx); errors.Is(err, tty.ErrNoTTY) {
		t.Skipf("error: %s", context.Cause(ctx))
		t.SkipNow()
	}

	pressed := make(chan struct{})

	go func() {
		defer close(pressed)

		for {
			lsr, err := u.Load(5, riscv.Byte) // LSR
			if err != nil {
				cancel(err)
				return
			}

			if lsr&0x01 != 0 { // data ready
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()

	go func() {
		console.Press('!')
	}()

	select {
	case <-ctx.Done(): // Just wait.
	case <-pressed:
	}

	cancel(nil)

	if err := context.Cause(ctx); err != nil {
		t.Errorf("cause: %s", err)
	}
}
