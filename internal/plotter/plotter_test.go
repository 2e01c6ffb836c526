package plotter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inkworks/plotbot/internal/path"
)

// fakePort implements Porter for driving tests without hardware.
type fakePort struct {
	mu          sync.Mutex
	readData    []byte
	readIndex   int
	writtenData bytes.Buffer
	writeErr    error
	failAfter   int // fail writes after this many successful ones; 0 = per writeErr
	writes      int
	closed      bool
}

func newFakePort(data string) *fakePort {
	return &fakePort{readData: []byte(data)}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.EOF
	}
	if p.readIndex >= len(p.readData) {
		p.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		p.mu.Lock()
		if p.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(buf, p.readData[p.readIndex:])
	p.readIndex += n
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if p.writeErr != nil && (p.failAfter == 0 || p.writes > p.failAfter) {
		return 0, p.writeErr
	}
	return p.writtenData.Write(data)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writtenData.String()
}

func TestSendCommandAppendsNewline(t *testing.T) {
	port := newFakePort("")
	p := New(port)

	if err := p.SendCommand("U"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got := port.written(); got != "U\n" {
		t.Errorf("wrote %q, want %q", got, "U\n")
	}
}

func TestDriveCommandStream(t *testing.T) {
	port := newFakePort("")
	p := New(port)

	ps := path.PathSet{{
		Name: "line",
		Strokes: []path.Stroke{
			{{0, 0}, {120, 0}},
			{{10, 10}},
		},
	}}
	if err := p.Drive(context.Background(), ps); err != nil {
		t.Fatalf("Drive: %v", err)
	}

	want := strings.Join([]string{
		"U",
		"M 0.000 0.000",
		"D",
		"M 120.000 0.000",
		"U",
		"M 10.000 10.000",
		"D",
		"U",
		"",
	}, "\n")
	if got := port.written(); got != want {
		t.Errorf("command stream:\n got %q\nwant %q", got, want)
	}
}

func TestDriveSkipsEmptyStrokes(t *testing.T) {
	port := newFakePort("")
	p := New(port)

	ps := path.PathSet{{Name: "empty", Strokes: []path.Stroke{{}}}}
	if err := p.Drive(context.Background(), ps); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if got := port.written(); got != "U\n" {
		t.Errorf("wrote %q, want trailing pen-up only", got)
	}
}

func TestDriveWriteErrorIsHardwareError(t *testing.T) {
	port := newFakePort("")
	port.writeErr = errors.New("device gone")
	port.failAfter = 3 // let pen-up, travel, pen-down through, fail mid-stroke
	p := New(port)

	ps := path.PathSet{{
		Name:    "line",
		Strokes: []path.Stroke{{{0, 0}, {50, 50}, {100, 100}}},
	}}
	err := p.Drive(context.Background(), ps)

	var hwErr *HardwareError
	if !errors.As(err, &hwErr) {
		t.Fatalf("error = %v, want *HardwareError", err)
	}
	if hwErr.Op != "draw" {
		t.Errorf("Op = %q, want %q", hwErr.Op, "draw")
	}
}

func TestDriveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(newFakePort(""))
	err := p.Drive(ctx, path.PathSet{{Name: "x", Strokes: []path.Stroke{{{0, 0}}}}})

	var hwErr *HardwareError
	if !errors.As(err, &hwErr) {
		t.Fatalf("error = %v, want *HardwareError", err)
	}
}

func TestPark(t *testing.T) {
	port := newFakePort("")
	p := New(port)

	if err := p.Park(context.Background()); err != nil {
		t.Fatalf("Park: %v", err)
	}
	if got := port.written(); got != "U\nM 0.000 0.000\n" {
		t.Errorf("wrote %q", got)
	}
}

func TestMonitorFansOutLines(t *testing.T) {
	port := newFakePort("ok\nfault: limit switch\n")
	p := New(port)

	id, c := p.Subscribe()
	defer p.Unsubscribe(id)

	// drain into a buffer before Monitor starts: fan-out drops lines for
	// subscribers that are not actively receiving
	lines := make(chan string, 16)
	go func() {
		for line := range c {
			lines <- line
		}
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Monitor(ctx) }()

	for _, want := range []string{"ok", "fault: limit switch"} {
		select {
		case got := <-lines:
			if got != want {
				t.Errorf("line = %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for line %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop on cancellation")
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	port := newFakePort("")
	p := New(port)

	_, c := p.Subscribe()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, ok := <-c; ok {
		t.Error("subscriber channel still open after Close")
	}
	if !port.closed {
		t.Error("underlying port not closed")
	}
}

func TestUnsubscribeUnknownIDIsNoop(t *testing.T) {
	p := New(newFakePort(""))
	p.Unsubscribe("does-not-exist")
}
