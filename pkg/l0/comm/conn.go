package comm

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
)

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame Frame) {
	f(ctx, frame)
}

// FrameHandlers dispatches a frame to each handler in order.
type FrameHandlers []FrameHandler

// HandleFrame implements FrameHandler.
func (h FrameHandlers) HandleFrame(ctx context.Context, frame Frame) {
	for _, handler := range h {
		handler.HandleFrame(ctx, frame)
	}
}

const readBufferSize = 64

// Conn sends and receives frames over a serial link.
type Conn struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler
	// IdleTimeout drops a partially received frame when no more bytes
	// arrive in time. Zero waits forever.
	IdleTimeout time.Duration
	ReadTimeout bool // set to true if ReadWriter already supports timeout with Read

	sendLock  sync.Mutex
	statsLock sync.Mutex
	stats     Stats

	decoder   Decoder
	idleTimer <-chan time.Time
}

// NewConn creates a Conn.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{ReadWriter: rw}
}

// Send writes a transmit request.
func (c *Conn) Send(req *TransmitRequest) error {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()
	if _, err := req.WriteTo(c.ReadWriter); err != nil {
		return err
	}
	glog.V(2).Infof("SND %s id=%d len=%d", req.Destination, req.FrameID, len(req.Data))
	return nil
}

// Stats gets the decoder counters.
func (c *Conn) Stats() Stats {
	c.statsLock.Lock()
	defer c.statsLock.Unlock()
	return c.stats
}

// Run receives frames in the background until the context is done
// or the ReadWriter fails.
func (c *Conn) Run(ctx context.Context) error {
	if c.ReadTimeout {
		buf := make([]byte, readBufferSize)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.idleTimer:
				c.expire()
			default:
				n, err := c.ReadWriter.Read(buf)
				if err != nil && !os.IsTimeout(err) {
					return err
				}
				if n > 0 {
					c.feed(ctx, buf[:n])
				}
			}
		}
	}

	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, chunkCh, errCh)
	for {
		select {
		case p := <-chunkCh:
			c.feed(ctx, p)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-c.idleTimer:
			c.expire()
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, readBufferSize)
		n, err := c.ReadWriter.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		select {
		case chunkCh <- buf[:n]:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) feed(ctx context.Context, p []byte) {
	var frames []Frame
	for _, b := range p {
		for f := c.decoder.Parse(b); f != nil; f = c.decoder.Next() {
			frames = append(frames, f)
		}
	}
	c.updateStats()
	if c.IdleTimeout > 0 && c.decoder.Pending() {
		c.idleTimer = time.After(c.IdleTimeout)
	} else {
		c.idleTimer = nil
	}
	for _, f := range frames {
		glog.V(2).Infof("RCV %s", f.FrameType())
		if h := c.Handler; h != nil {
			h.HandleFrame(ctx, f)
		}
	}
}

func (c *Conn) expire() {
	c.idleTimer = nil
	if c.decoder.Pending() {
		glog.Warningf("partial frame timed out in %s", c.decoder.State())
		c.decoder.Reset()
		c.updateStats()
		if c.decoder.Pending() {
			c.idleTimer = time.After(c.IdleTimeout)
		}
	}
}

func (c *Conn) updateStats() {
	c.statsLock.Lock()
	c.stats = c.decoder.Stats()
	c.statsLock.Unlock()
}
