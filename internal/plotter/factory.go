package plotter

import (
	"go.bug.st/serial"
)

// Open creates a Plotter backed by a real serial port at the given path
// using the provided options.
func Open(path string, opts PortOptions) (*Plotter[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return New[serial.Port](port), nil
}
