// Package gpio drives the board-clear signal: a single digital output line
// wired to the drawing surface's erase mechanism. A pulse is logical high
// for a fixed short interval, then low.
//
// The line is written through the sysfs GPIO value file. None of the
// reference hardware stacks in this project carry a GPIO library, and the
// whole protocol is two one-byte writes, so the file interface is used
// directly.
package gpio

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Line is a single digital output.
type Line interface {
	// Pulse sets the line high, holds it for width, then sets it low. The
	// low write runs even when the context is cancelled mid-hold.
	Pulse(ctx context.Context, width time.Duration) error
}

// SysfsLine is a Line backed by a sysfs GPIO value file
// (e.g. /sys/class/gpio/gpio17/value). The pin must already be exported and
// configured as an output by the provisioning scripts.
type SysfsLine struct {
	Path string
}

func (l *SysfsLine) write(v byte) error {
	f, err := os.OpenFile(l.Path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open gpio line %s: %w", l.Path, err)
	}
	defer f.Close()
	if _, err := f.Write([]byte{v}); err != nil {
		return fmt.Errorf("write gpio line %s: %w", l.Path, err)
	}
	return nil
}

// Pulse implements Line.
func (l *SysfsLine) Pulse(ctx context.Context, width time.Duration) error {
	if err := l.write('1'); err != nil {
		return err
	}
	// Always drop the line again, even on cancellation: leaving the clear
	// signal high would hold the surface in its erased state.
	var held error
	select {
	case <-time.After(width):
	case <-ctx.Done():
		held = ctx.Err()
	}
	if err := l.write('0'); err != nil {
		return err
	}
	return held
}

// NopLine is a Line that does nothing, for dev mode without the board.
type NopLine struct{}

func (NopLine) Pulse(context.Context, time.Duration) error { return nil }
