package sensor

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Source is the byte transport the acquisition loop reads from. The real
// implementation is a UART; tests and hostless runs use the simulator.
type Source interface {
	io.ReadCloser
}

// OpenPort opens the sensor UART. Reads are given a short timeout so the
// acquisition loop stays responsive to cancellation instead of parking
// inside a blocking read.
func OpenPort(name string, baudRate int) (Source, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(20 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}
