package gpio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newLine(t *testing.T) *SysfsLine {
	t.Helper()
	p := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(p, []byte{'0'}, 0o644); err != nil {
		t.Fatal(err)
	}
	return &SysfsLine{Path: p}
}

func lineValue(t *testing.T, l *SysfsLine) byte {
	t.Helper()
	data, err := os.ReadFile(l.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("value file is empty")
	}
	return data[0]
}

func TestPulseEndsLow(t *testing.T) {
	l := newLine(t)
	if err := l.Pulse(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	if got := lineValue(t, l); got != '0' {
		t.Errorf("line = %q after pulse, want low", got)
	}
}

func TestPulseHoldsForWidth(t *testing.T) {
	l := newLine(t)
	start := time.Now()
	if err := l.Pulse(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	if held := time.Since(start); held < 50*time.Millisecond {
		t.Errorf("pulse returned after %v, want >= 50ms", held)
	}
}

func TestPulseDropsLineOnCancellation(t *testing.T) {
	l := newLine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Pulse(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Pulse = %v, want context.Canceled", err)
	}
	if got := lineValue(t, l); got != '0' {
		t.Errorf("line = %q after cancelled pulse, want low", got)
	}
}

func TestPulseMissingFile(t *testing.T) {
	l := &SysfsLine{Path: filepath.Join(t.TempDir(), "absent")}
	if err := l.Pulse(context.Background(), time.Millisecond); err == nil {
		t.Error("Pulse on missing value file succeeded")
	}
}

func TestNopLine(t *testing.T) {
	if err := (NopLine{}).Pulse(context.Background(), time.Minute); err != nil {
		t.Errorf("NopLine.Pulse: %v", err)
	}
}
