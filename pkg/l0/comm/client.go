package comm

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Result is the result of a transmit request using Do.
type Result struct {
	Err    error
	Status *TxStatus
}

// Client provides request/status correlation over Conn.
type Client struct {
	conn     *Conn
	rxCh     chan *RxPacket
	frameID  FrameID
	cmdsHead *Command
	cmdsTail *Command
	cmdsLock sync.Mutex
}

// Command represents a transmit request waiting for its status.
type Command struct {
	frameID  FrameID
	resultCh chan Result
	next     *Command
}

// FrameID returns the frame ID assigned to the request.
func (c *Command) FrameID() FrameID {
	return c.frameID
}

// ResultChan returns the chan to retrieve result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// NewClient creates client and wraps the conn.
func NewClient(conn *Conn) *Client {
	c := &Client{
		conn: conn,
		rxCh: make(chan *RxPacket, 16),
	}
	c.conn.Handler = c
	return c
}

// Conn gets wrapped Conn.
func (c *Client) Conn() *Conn {
	return c.conn
}

// RxChan retrieves received packets.
func (c *Client) RxChan() <-chan *RxPacket {
	return c.rxCh
}

// DoWith sends a request and expects a result in the provided chan.
// The frame ID of the request is assigned by the client.
func (c *Client) DoWith(req *TransmitRequest, ch chan Result) *Command {
	cmd := &Command{resultCh: ch}

	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	c.frameID = c.frameID.Next()
	req.FrameID, cmd.frameID = c.frameID, c.frameID
	if err := c.conn.Send(req); err != nil {
		cmd.resultCh <- Result{Err: err}
		return cmd
	}
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	return cmd
}

// Do sends a request and returns a Command for result.
func (c *Client) Do(req *TransmitRequest) *Command {
	return c.DoWith(req, make(chan Result, 1))
}

// Send sends data and returns a Command for the delivery result.
func (c *Client) Send(dest Address, data []byte) *Command {
	return c.Do(NewTransmitRequest(dest, data))
}

// SendNoAck sends data without asking for a transmit status.
func (c *Client) SendNoAck(dest Address, data []byte) error {
	req := NewTransmitRequest(dest, data)
	req.FrameID = FrameIDNoStatus
	return c.conn.Send(req)
}

// HandleFrame implements FrameHandler.
func (c *Client) HandleFrame(ctx context.Context, f Frame) {
	switch frame := f.(type) {
	case *RxPacket:
		select {
		case c.rxCh <- frame:
		case <-ctx.Done():
		}
	case *TxStatus:
		c.resolve(frame)
	}
}

func (c *Client) resolve(status *TxStatus) {
	c.cmdsLock.Lock()
	head := c.cmdsHead
	curr := c.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.frameID == status.FrameID {
			if c.cmdsHead = curr.next; c.cmdsHead == nil {
				c.cmdsTail = nil
			}
			curr.next = nil
			break
		}
	}
	c.cmdsLock.Unlock()
	if curr == nil {
		glog.V(2).Infof("status for unknown frame %d: %s", status.FrameID, status.Delivery)
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoStatus}
	}
	if status.Delivered() {
		curr.resultCh <- Result{Status: status}
	} else {
		curr.resultCh <- Result{Err: &DeliveryError{Status: status.Delivery}, Status: status}
	}
}

// Cancel stops waiting for the status of cmd, e.g. after a timeout, and
// no result is sent to it afterwards. It returns false if cmd already
// has a result.
func (c *Client) Cancel(cmd *Command) bool {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	var prev *Command
	for curr := c.cmdsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != cmd {
			continue
		}
		if prev == nil {
			c.cmdsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.cmdsTail == curr {
			c.cmdsTail = prev
		}
		curr.next = nil
		return true
	}
	return false
}

func (c *Client) failAll(err error) {
	c.cmdsLock.Lock()
	head := c.cmdsHead
	c.cmdsHead, c.cmdsTail = nil, nil
	c.cmdsLock.Unlock()
	for ; head != nil; head = head.next {
		head.resultCh <- Result{Err: err}
	}
}

// Run wraps Conn.Run to implement Runnable. Pending commands fail
// with ErrClosed when it returns.
func (c *Client) Run(ctx context.Context) error {
	err := c.conn.Run(ctx)
	c.failAll(ErrClosed)
	return err
}
