package comm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanReadWriter struct {
	readCh  <-chan byte
	writeCh chan byte
}

func (c *chanReadWriter) Read(p []byte) (int, error) {
	p[0] = <-c.readCh
	return 1, nil
}

func (c *chanReadWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		c.writeCh <- b
	}
	return len(p), nil
}

type clientTestEnv struct {
	t        *testing.T
	readCh   chan byte
	writeCh  chan byte
	client   *Client
	commands []*Command
	canceled []*Command
}

func newClientTestEnv(t *testing.T) *clientTestEnv {
	env := &clientTestEnv{
		t:       t,
		readCh:  make(chan byte, 1),
		writeCh: make(chan byte, 1),
	}
	env.client = NewClient(NewConn(&chanReadWriter{readCh: env.readCh, writeCh: env.writeCh}))
	return env
}

func (e *clientTestEnv) wrapFn(name string, fn func(string)) {
	e.t.Logf("START %s", name)
	fn(name)
	e.t.Logf("STOP %s", name)
}

func (e *clientTestEnv) run(fns ...func(string)) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go e.client.Run(ctx)
	for n, fn := range fns {
		e.wrapFn(fmt.Sprintf("step-%d", n), fn)
	}
}

func (e *clientTestEnv) sequential(fns ...func(string)) func(string) {
	return func(name string) {
		for n, fn := range fns {
			e.wrapFn(name+fmt.Sprintf(".%d", n), fn)
		}
	}
}

func (e *clientTestEnv) parallel(fns ...func(string)) func(string) {
	return func(name string) {
		var wg sync.WaitGroup
		for n, fn := range fns {
			wg.Add(1)
			go func(name string, fn func(string)) {
				defer wg.Done()
				e.wrapFn(name, fn)
			}(name+fmt.Sprintf(".%d", n), fn)
		}
		wg.Wait()
	}
}

func (e *clientTestEnv) expect(bs ...byte) func(string) {
	return func(name string) {
		for i, b := range bs {
			require.Equalf(e.t, b, <-e.writeCh, "%s.byte[%d] mismatch", name, i)
		}
	}
}

func (e *clientTestEnv) expectRequest(id FrameID, dest Address, data string) func(string) {
	return e.expect(requestBytes(e.t, id, dest, data)...)
}

func (e *clientTestEnv) inject(bs ...byte) func(string) {
	return func(name string) {
		for _, b := range bs {
			e.readCh <- b
		}
	}
}

func (e *clientTestEnv) clientSend(dest Address, data string) func(string) {
	return func(name string) {
		e.commands = append(e.commands, e.client.Send(dest, []byte(data)))
	}
}

func (e *clientTestEnv) nextResult(name string) (r Result) {
	require.NotEmptyf(e.t, e.commands, "%s commands empty", name)
	cmd := e.commands[0]
	e.commands = e.commands[1:]
	select {
	case r = <-cmd.ResultChan():
	case <-time.After(500 * time.Millisecond):
		e.t.Fatalf("%s: timeout", name)
	}
	return
}

func (e *clientTestEnv) clientDelivered(id FrameID) func(string) {
	return func(name string) {
		r := e.nextResult(name)
		require.NoErrorf(e.t, r.Err, "%s unexpected err", name)
		require.NotNilf(e.t, r.Status, "%s no status", name)
		require.Equalf(e.t, id, r.Status.FrameID, "%s frame id mismatch", name)
		require.True(e.t, r.Status.Delivered())
	}
}

func (e *clientTestEnv) clientResultErr(err error) func(string) {
	return func(name string) {
		r := e.nextResult(name)
		require.Equalf(e.t, err, r.Err, "%s mismatch", name)
	}
}

func (e *clientTestEnv) clientCancel(i int) func(string) {
	return func(name string) {
		require.Lessf(e.t, i, len(e.commands), "%s command missing", name)
		cmd := e.commands[i]
		e.commands = append(e.commands[:i:i], e.commands[i+1:]...)
		require.Truef(e.t, e.client.Cancel(cmd), "%s not pending", name)
		require.Falsef(e.t, e.client.Cancel(cmd), "%s canceled twice", name)
		e.canceled = append(e.canceled, cmd)
	}
}

func (e *clientTestEnv) clientNoResult() func(string) {
	return func(name string) {
		for _, cmd := range e.canceled {
			select {
			case r := <-cmd.ResultChan():
				e.t.Fatalf("%s: unexpected result for frame %d: %v", name, cmd.FrameID(), r)
			default:
			}
		}
	}
}

func (e *clientTestEnv) clientRx(src Address, data string) func(string) {
	return func(name string) {
		select {
		case pkt := <-e.client.RxChan():
			require.Equalf(e.t, src, pkt.Source, "%s source mismatch", name)
			require.Equalf(e.t, []byte(data), pkt.Data, "%s data mismatch", name)
		case <-time.After(500 * time.Millisecond):
			e.t.Fatalf("%s timeout", name)
		}
	}
}

func TestClient(t *testing.T) {
	testCases := []struct {
		name  string
		logic func(*clientTestEnv)
	}{
		{
			"delivered",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientSend(testSource, "hi"),
						env.expectRequest(1, testSource, "hi"),
					),
					env.parallel(
						env.inject(txStatusFrame(1, DeliverySuccess)...),
						env.clientDelivered(1),
					),
				)
			},
		},
		{
			"no status",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.sequential(
							env.clientSend(testSource, "a"),
							env.clientSend(BroadcastAddress, "b"),
						),
						env.expect(append(
							requestBytes(env.t, 1, testSource, "a"),
							requestBytes(env.t, 2, BroadcastAddress, "b")...)...),
					),
					env.inject(txStatusFrame(2, DeliverySuccess)...),
					env.clientResultErr(ErrNoStatus),
					env.clientDelivered(2),
				)
			},
		},
		{
			"delivery failure",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientSend(testSource, "x"),
						env.expectRequest(1, testSource, "x"),
					),
					env.inject(txStatusFrame(1, DeliveryAddressNotFound)...),
					env.clientResultErr(&DeliveryError{Status: DeliveryAddressNotFound}),
				)
			},
		},
		{
			"unknown status ignored",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientSend(testSource, "x"),
						env.expectRequest(1, testSource, "x"),
					),
					env.inject(txStatusFrame(7, DeliverySuccess)...),
					env.inject(txStatusFrame(1, DeliverySuccess)...),
					env.clientDelivered(1),
				)
			},
		},
		{
			"canceled",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.sequential(
							env.clientSend(testSource, "a"),
							env.clientSend(testSource, "b"),
							env.clientSend(testSource, "c"),
						),
						env.expect(append(append(
							requestBytes(env.t, 1, testSource, "a"),
							requestBytes(env.t, 2, testSource, "b")...),
							requestBytes(env.t, 3, testSource, "c")...)...),
					),
					env.clientCancel(1),
					env.inject(txStatusFrame(2, DeliverySuccess)...),
					env.inject(txStatusFrame(3, DeliverySuccess)...),
					env.clientResultErr(ErrNoStatus),
					env.clientDelivered(3),
					env.clientNoResult(),
					// the only pending command is both head and tail.
					env.parallel(
						env.clientSend(testSource, "d"),
						env.expectRequest(4, testSource, "d"),
					),
					env.clientCancel(0),
					env.parallel(
						env.clientSend(testSource, "e"),
						env.expectRequest(5, testSource, "e"),
					),
					env.inject(txStatusFrame(5, DeliverySuccess)...),
					env.clientDelivered(5),
					env.clientNoResult(),
				)
			},
		},
		{
			"rx packet",
			func(env *clientTestEnv) {
				env.run(
					env.inject(rxPacketFrame(testSource, 0, 'o', 'k')...),
					env.clientRx(testSource, "ok"),
				)
			},
		},
		{
			"rx packet and status",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientSend(testSource, "ping"),
						env.expectRequest(1, testSource, "ping"),
					),
					env.inject(rxPacketFrame(testSource, 0, 'p', 'o', 'n', 'g')...),
					env.clientRx(testSource, "pong"),
					env.inject(txStatusFrame(1, DeliverySuccess)...),
					env.clientDelivered(1),
				)
			},
		},
		{
			"no ack",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						func(string) { require.NoError(env.t, env.client.SendNoAck(testSource, []byte("q"))) },
						env.expectRequest(FrameIDNoStatus, testSource, "q"),
					),
				)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newClientTestEnv(t)
			tc.logic(env)
		})
	}
}

func requestBytes(t *testing.T, id FrameID, dest Address, data string) []byte {
	req := NewTransmitRequest(dest, []byte(data))
	req.FrameID = id
	b, err := req.Bytes()
	require.NoError(t, err)
	return b
}

func TestClientClosed(t *testing.T) {
	writeCh := make(chan byte, MaxFrameSize)
	client := NewClient(NewConn(&chanReadWriter{readCh: make(chan byte), writeCh: writeCh}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	cmd := client.Send(testSource, []byte("bye"))
	require.Equal(t, FrameID(1), cmd.FrameID())
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	select {
	case r := <-cmd.ResultChan():
		require.Equal(t, ErrClosed, r.Err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("result timeout")
	}
}

func TestClientPayloadTooLarge(t *testing.T) {
	client := NewClient(NewConn(&chanReadWriter{readCh: make(chan byte), writeCh: make(chan byte)}))
	r := <-client.Send(testSource, make([]byte, MaxPayloadSize+1)).ResultChan()
	require.Error(t, r.Err)
	require.Nil(t, r.Status)
}
