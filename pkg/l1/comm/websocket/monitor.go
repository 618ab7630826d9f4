// Package websocket streams decoded frames to browsers.
package websocket

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/xbee.go/pkg/l0/comm"
	"github.com/robotalks/xbee.go/pkg/l1/msgs"
)

// Event kinds.
const (
	EventRx     = "rx"
	EventStatus = "status"
	EventStats  = "stats"
)

// Event is sent to clients as JSON.
type Event struct {
	Kind   string         `json:"kind"`
	Rx     *msgs.RxPacket `json:"rx,omitempty"`
	Status *msgs.TxStatus `json:"status,omitempty"`
	Stats  *comm.Stats    `json:"stats,omitempty"`
}

// DefaultBacklog is the number of events queued per client.
const DefaultBacklog = 32

// Monitor fans out frames to websocket clients. Slow clients lose events
// instead of blocking the radio.
type Monitor struct {
	Backlog int

	// Conn, when set, has its stats published every StatsInterval.
	Conn          *comm.Conn
	StatsInterval time.Duration

	lock    sync.Mutex
	clients map[chan *Event]struct{}
	closed  bool
}

// NewMonitor creates a Monitor.
func NewMonitor() *Monitor {
	return &Monitor{Backlog: DefaultBacklog, clients: make(map[chan *Event]struct{})}
}

// Handler serves websocket connections.
func (m *Monitor) Handler() http.Handler {
	return websocket.Handler(m.serve)
}

// Clients returns the number of connected clients.
func (m *Monitor) Clients() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.clients)
}

// HandleFrame implements comm.FrameHandler.
func (m *Monitor) HandleFrame(ctx context.Context, f comm.Frame) {
	switch frame := f.(type) {
	case *comm.RxPacket:
		m.Publish(&Event{Kind: EventRx, Rx: msgs.NewRxPacket(frame, time.Now())})
	case *comm.TxStatus:
		m.Publish(&Event{Kind: EventStatus, Status: &msgs.TxStatus{
			FrameId:   uint32(frame.FrameID),
			Delivered: frame.Delivered(),
			Delivery:  uint32(frame.Delivery),
			Retries:   uint32(frame.Retries),
			Discovery: uint32(frame.Discovery),
		}})
	}
}

// Publish sends an event to all clients.
func (m *Monitor) Publish(ev *Event) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for ch := range m.clients {
		select {
		case ch <- ev:
		default:
			glog.V(2).Infof("monitor client lagging, %s event dropped", ev.Kind)
		}
	}
}

// Run implements Runnable. All clients are disconnected when ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if m.Conn != nil && m.StatsInterval > 0 {
		ticker := time.NewTicker(m.StatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			m.close()
			return ctx.Err()
		case <-tick:
			stats := m.Conn.Stats()
			m.Publish(&Event{Kind: EventStats, Stats: &stats})
		}
	}
}

func (m *Monitor) close() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	for ch := range m.clients {
		close(ch)
		delete(m.clients, ch)
	}
}

func (m *Monitor) add() chan *Event {
	backlog := m.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	ch := make(chan *Event, backlog)
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		close(ch)
		return ch
	}
	m.clients[ch] = struct{}{}
	return ch
}

func (m *Monitor) remove(ch chan *Event) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.clients[ch]; ok {
		delete(m.clients, ch)
		close(ch)
	}
}

func (m *Monitor) serve(ws *websocket.Conn) {
	defer ws.Close()
	ch := m.add()
	defer m.remove(ch)
	glog.V(1).Infof("monitor client %s connected", ws.Request().RemoteAddr)

	doneCh := make(chan struct{})
	go func() {
		io.Copy(io.Discard, ws)
		close(doneCh)
	}()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, ev); err != nil {
				glog.V(1).Infof("monitor client %s: %v", ws.Request().RemoteAddr, err)
				return
			}
		case <-doneCh:
			glog.V(1).Infof("monitor client %s disconnected", ws.Request().RemoteAddr)
			return
		}
	}
}
