// Package serial opens the UART an XBee module in API mode is attached to.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the baud rate XBee modules are configured with.
const DefaultBaud = 115200

// Config specifies the serial port.
type Config struct {
	Port string
	Baud int
	// ReadTimeout makes Read return a timeout error when no byte arrives
	// in time. Zero blocks forever.
	ReadTimeout time.Duration
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "serial read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ErrTimeout is returned by Read when ReadTimeout expires.
var ErrTimeout error = timeoutError{}

// Port is an opened serial port.
type Port struct {
	port    io.ReadWriteCloser
	timeout bool
}

// Open opens the serial port.
func Open(conf Config) (*Port, error) {
	if conf.Port == "" {
		return nil, fmt.Errorf("serial port not specified")
	}
	baud := conf.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        conf.Port,
		Baud:        baud,
		ReadTimeout: conf.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Port, err)
	}
	return NewPort(port, conf.ReadTimeout > 0), nil
}

// NewPort wraps an opened port. With timeout set, an empty read is
// reported as ErrTimeout.
func NewPort(port io.ReadWriteCloser, timeout bool) *Port {
	return &Port{port: port, timeout: timeout}
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if p.timeout && n == 0 && (err == nil || err == io.EOF) {
		return 0, ErrTimeout
	}
	return n, err
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	return p.port.Close()
}

// HasReadTimeout tells whether Read returns ErrTimeout when idle.
func (p *Port) HasReadTimeout() bool {
	return p.timeout
}
