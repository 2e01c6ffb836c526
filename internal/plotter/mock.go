package plotter

import (
	"io"
	"time"

	"github.com/inkworks/plotbot/internal/monitoring"
)

// MockPort implements Porter without hardware: writes are discarded after
// counting, and the read side emits a periodic "ok" heartbeat so the monitor
// loop and admin tail view have something to show in dev mode.
type MockPort struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	done   chan struct{}
}

// NewMockPort creates a MockPort emitting one status line per interval.
func NewMockPort(interval time.Duration) *MockPort {
	r, w := io.Pipe()
	m := &MockPort{reader: r, writer: w, done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.Write([]byte("ok\n")); err != nil {
					return
				}
			case <-m.done:
				return
			}
		}
	}()

	return m
}

func (m *MockPort) Read(p []byte) (int, error) { return m.reader.Read(p) }

func (m *MockPort) Write(p []byte) (int, error) {
	monitoring.Logf("mock plotter rx: %q", string(p))
	return len(p), nil
}

func (m *MockPort) Close() error {
	close(m.done)
	m.writer.Close()
	return m.reader.Close()
}

// NewMock creates a Plotter backed by a MockPort, for running the daemon
// without a machine attached.
func NewMock() *Plotter[*MockPort] {
	return New(NewMockPort(500 * time.Millisecond))
}
