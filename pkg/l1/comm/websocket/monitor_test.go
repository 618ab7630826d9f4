package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/xbee.go/pkg/l0/comm"
)

func dialMonitor(t *testing.T, m *Monitor) *websocket.Conn {
	server := httptest.NewServer(m.Handler())
	t.Cleanup(server.Close)
	ws, err := websocket.Dial("ws"+strings.TrimPrefix(server.URL, "http"), "", server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func receiveEvent(t *testing.T, ws *websocket.Conn) *Event {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	var ev Event
	require.NoError(t, websocket.JSON.Receive(ws, &ev))
	return &ev
}

func TestMonitorFrames(t *testing.T) {
	m := NewMonitor()
	ws := dialMonitor(t, m)
	require.Eventually(t, func() bool { return m.Clients() == 1 }, time.Second, 5*time.Millisecond)

	m.HandleFrame(context.Background(), &comm.RxPacket{
		Source:  0x0013A200424974A1,
		Network: 0xFFFE,
		Data:    []byte("ok"),
	})
	ev := receiveEvent(t, ws)
	require.Equal(t, EventRx, ev.Kind)
	require.NotNil(t, ev.Rx)
	require.Equal(t, "0013A200424974A1", ev.Rx.Source)
	require.Equal(t, []byte("ok"), ev.Rx.Data)

	m.HandleFrame(context.Background(), &comm.TxStatus{FrameID: 7, Retries: 2, Delivery: comm.DeliveryRouteNotFound})
	ev = receiveEvent(t, ws)
	require.Equal(t, EventStatus, ev.Kind)
	require.Equal(t, uint32(7), ev.Status.FrameId)
	require.False(t, ev.Status.Delivered)
	require.Equal(t, uint32(comm.DeliveryRouteNotFound), ev.Status.Delivery)

	ws.Close()
	require.Eventually(t, func() bool { return m.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMonitorRun(t *testing.T) {
	m := NewMonitor()
	m.Conn = comm.NewConn(nil)
	m.StatsInterval = 10 * time.Millisecond
	ws := dialMonitor(t, m)
	require.Eventually(t, func() bool { return m.Clients() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	ev := receiveEvent(t, ws)
	require.Equal(t, EventStats, ev.Kind)
	require.Equal(t, comm.Stats{}, *ev.Stats)

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Zero(t, m.Clients())
	m.Publish(&Event{Kind: EventRx})
}

func TestMonitorLaggingClient(t *testing.T) {
	m := NewMonitor()
	m.Backlog = 1
	ch := m.add()
	m.Publish(&Event{Kind: EventRx})
	m.Publish(&Event{Kind: EventStatus})
	require.Len(t, ch, 1)
	require.Equal(t, EventRx, (<-ch).Kind)
	m.remove(ch)
	_, ok := <-ch
	require.False(t, ok)
}
