package thermocouple

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the bridge firmware.
	DefaultBaudRate   = 115200
	serialReadTimeout = 200 * time.Millisecond
)

// SerialBridge talks to a small MCU that owns the MAX31855 chips on its SPI bus.
//
// Request:  "T<channel>\n"            e.g. "TA\n"
// Response: "<channel>,<probe>,<internal>,<status>\n"
//
// status is OK, OC (open circuit), INT (internal reference failure) or
// SCG/SCV/ERR (probe faults).
type SerialBridge struct {
	port     string
	baudRate int

	mu      sync.Mutex
	conn    serial.Port
	rd      *bufio.Reader
	pending chan lineResult // response still owed by an abandoned read
}

// NewSerialBridge opens the bridge port.
func NewSerialBridge(port string, baudRate int) (*SerialBridge, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	conn, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	if err := conn.SetReadTimeout(serialReadTimeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", port, err)
	}
	return &SerialBridge{
		port:     port,
		baudRate: baudRate,
		conn:     conn,
		rd:       bufio.NewReader(conn),
	}, nil
}

type lineResult struct {
	line string
	err  error
}

// Read performs one request/response exchange for ch.
func (b *SerialBridge) Read(ctx context.Context, ch Channel) (Reading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return Reading{}, fmt.Errorf("serial bridge %s closed", b.port)
	}
	if b.pending != nil {
		select {
		case <-b.pending:
			b.pending = nil
		case <-ctx.Done():
			return Reading{}, fmt.Errorf("%w: bridge busy: %v", ErrProbe, ctx.Err())
		}
	}
	if _, err := b.conn.Write([]byte("T" + ch.String() + "\n")); err != nil {
		return Reading{}, fmt.Errorf("write request: %w", err)
	}

	done := make(chan lineResult, 1)
	go func() {
		line, err := b.rd.ReadString('\n')
		done <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		b.pending = done
		return Reading{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return Reading{}, fmt.Errorf("read response: %w", res.err)
		}
		return parseLine(ch, strings.TrimSpace(res.line))
	}
}

// Close releases the port.
func (b *SerialBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// parseLine parses "<channel>,<probe>,<internal>,<status>".
func parseLine(ch Channel, line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return Reading{}, fmt.Errorf("%w: expected 4 fields, got %d in %q", ErrProbe, len(parts), line)
	}
	if parts[0] != ch.String() {
		return Reading{}, fmt.Errorf("%w: response for channel %q, want %s", ErrProbe, parts[0], ch)
	}

	switch parts[3] {
	case "OK":
	case "OC":
		return Reading{}, ErrDisconnected
	case "INT":
		return Reading{}, ErrInternal
	default:
		return Reading{}, fmt.Errorf("%w: status %s", ErrProbe, parts[3])
	}

	probe, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: probe value: %v", ErrProbe, err)
	}
	internal, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: internal value: %v", ErrInternal, err)
	}
	return Reading{ProbeC: probe, InternalC: internal}, nil
}
