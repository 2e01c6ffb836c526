// Package plotter drives the pen-plotter firmware over a serial port.
//
// The wire protocol is line-oriented ASCII: "U" lifts the pen, "D" lowers
// it, "M <x> <y>" moves the head to an absolute position in machine
// coordinates. The firmware emits status lines ("ok", fault reports) which
// are fanned out to subscribers for the admin tail view.
package plotter

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/inkworks/plotbot/internal/monitoring"
	"github.com/inkworks/plotbot/internal/path"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// HardwareError reports a plotter fault during a drive operation. It is the
// only error class the draw stage of a job may produce.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("plotter %s: %v", e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// Plotter multiplexes a single serial plotter: commands are serialized
// through one writer, and firmware status lines are broadcast to any number
// of subscribers.
type Plotter[T Porter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// Driver is the interface the job pipeline needs from the plotter.
type Driver interface {
	// Drive hands a normalized path set to the firmware, stroke by stroke.
	Drive(context.Context, path.PathSet) error
	// Park lifts the pen and returns the head to the origin. It runs once at
	// startup and again at the end of every job, success or failure.
	Park(context.Context) error
}

// Interface is the full plotter surface the daemon wires up: driving,
// firmware line fan-out, raw command access for the admin console, and
// lifecycle management.
type Interface interface {
	Driver
	// Subscribe creates a channel receiving firmware status lines; the ID
	// identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a subscriber.
	Unsubscribe(string)
	// SendCommand writes a raw command line to the firmware.
	SendCommand(string) error
	// Monitor reads firmware lines and fans them out to subscribers.
	Monitor(context.Context) error
	// AttachAdminRoutes attaches debugging endpoints under /debug/.
	AttachAdminRoutes(*http.ServeMux)
	// Close closes all subscriber channels and the port.
	Close() error
}

// New creates a Plotter backed by the given port.
func New[T Porter](port T) *Plotter[T] {
	return &Plotter[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a channel receiving firmware status lines. The returned
// ID identifies the channel when unsubscribing.
func (p *Plotter[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	p.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Plotter[T]) Unsubscribe(id string) {
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

// SendCommand writes one command line to the firmware.
func (p *Plotter[T]) SendCommand(command string) error {
	p.commandMu.Lock()
	defer p.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n"
	}
	n, err := p.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

func formatMove(pt path.Point) string {
	buf := []byte("M")
	for _, v := range pt {
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, v, 'f', 3, 64)
	}
	return string(buf)
}

// Drive draws every stroke of every turtle in order: pen up, travel to the
// stroke's first point, pen down, trace the stroke. The pen is lifted again
// on the way out even when a write fails mid-stroke.
func (p *Plotter[T]) Drive(ctx context.Context, ps path.PathSet) error {
	send := func(op, command string) error {
		if err := ctx.Err(); err != nil {
			return &HardwareError{Op: op, Err: err}
		}
		if err := p.SendCommand(command); err != nil {
			return &HardwareError{Op: op, Err: err}
		}
		return nil
	}

	for _, t := range ps {
		for _, s := range t.Strokes {
			if len(s) == 0 {
				continue
			}
			if err := send("pen up", "U"); err != nil {
				return err
			}
			if err := send("travel", formatMove(s[0])); err != nil {
				return err
			}
			if err := send("pen down", "D"); err != nil {
				return err
			}
			for _, pt := range s[1:] {
				if err := send("draw", formatMove(pt)); err != nil {
					// best effort: leave the pen up rather than dragging ink
					if lerr := p.SendCommand("U"); lerr != nil {
						monitoring.Logf("failed to lift pen after fault: %v", lerr)
					}
					return err
				}
			}
		}
	}
	return send("pen up", "U")
}

// Park lifts the pen and drives a trivial single-point path to the origin,
// leaving the head at a known position.
func (p *Plotter[T]) Park(ctx context.Context) error {
	for _, step := range []struct{ op, command string }{
		{"pen up", "U"},
		{"park", "M 0.000 0.000"},
	} {
		if err := ctx.Err(); err != nil {
			return &HardwareError{Op: step.op, Err: err}
		}
		if err := p.SendCommand(step.command); err != nil {
			return &HardwareError{Op: step.op, Err: err}
		}
	}
	return nil
}

// Monitor reads firmware status lines and fans them out to subscribers. It
// returns when the context is cancelled or the port errors out.
func (p *Plotter[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(p.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan lives in its own goroutine so it cannot
	// interfere with the outer loop awaiting lines and cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return scan.Err()
			}
			p.closingMu.Lock()
			if p.closing {
				p.closingMu.Unlock()
				return nil
			}
			p.closingMu.Unlock()

			p.subscriberMu.Lock()
			for _, ch := range p.subscribers {
				select {
				case ch <- line:
				default:
					// skip slow subscribers rather than stall the reader
				}
			}
			p.subscriberMu.Unlock()
		}
	}
}

// Close closes all subscriber channels and the underlying port.
func (p *Plotter[T]) Close() error {
	p.closingMu.Lock()
	p.closing = true
	p.closingMu.Unlock()

	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
	return p.port.Close()
}
