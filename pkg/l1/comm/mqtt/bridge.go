package mqtt

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/xbee.go/pkg/l0/comm"
	"github.com/robotalks/xbee.go/pkg/l1/msgs"
)

// Topics are relative to the queue prefix.

// RxTopic is where packets from source are published.
func RxTopic(gatewayID string, source comm.Address) string {
	return gatewayID + "/rx/" + source.String()
}

// TxTopic accepts msgs.TxRequest.
func TxTopic(gatewayID string) string { return gatewayID + "/tx" }

// StatusTopic is where msgs.TxStatus is published.
func StatusTopic(gatewayID string) string { return gatewayID + "/status" }

// OnlineTopic holds a retained marker while the gateway is running.
func OnlineTopic(gatewayID string) string { return gatewayID + "/online" }

// SetWill clears the online marker when the gateway disappears.
func SetWill(opts *paho.ClientOptions, topicPrefix, gatewayID string) {
	opts.SetBinaryWill(topicPrefix+OnlineTopic(gatewayID), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("xbee:" + gatewayID)
	}
}

// Bridge forwards received packets to MQTT and transmits requests
// published to the gateway.
type Bridge struct {
	Queue     *Queue
	Client    *comm.Client
	GatewayID string

	now func() time.Time
}

// NewBridge creates a Bridge.
func NewBridge(q *Queue, client *comm.Client, gatewayID string) *Bridge {
	return &Bridge{Queue: q, Client: client, GatewayID: gatewayID, now: time.Now}
}

// Run implements Runnable. The queue is expected to be connected.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(TxTopic(b.GatewayID), b.handleTx)
	defer sub.Close()
	b.Queue.PubWith(OnlineTopic(b.GatewayID), []byte("1"), 1, true)
	defer b.Queue.PubWith(OnlineTopic(b.GatewayID), nil, 1, true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt := <-b.Client.RxChan():
			b.publishRx(pkt)
		}
	}
}

func (b *Bridge) publishRx(pkt *comm.RxPacket) {
	data, err := msgs.Encode(msgs.NewRxPacket(pkt, b.now()))
	if err != nil {
		glog.Errorf("encode rx packet from %s: %v", pkt.Source, err)
		return
	}
	b.Queue.Pub(RxTopic(b.GatewayID, pkt.Source), data)
}

func (b *Bridge) handleTx(topic string, payload []byte) {
	var req msgs.TxRequest
	if err := msgs.Decode(payload, &req); err != nil {
		glog.Warningf("invalid tx request on %s: %v", topic, err)
		return
	}
	dest, err := req.Address()
	if err != nil {
		b.publishStatus(msgs.NewTxStatusErr(&req, err))
		return
	}
	if req.NoAck {
		if err := b.Client.SendNoAck(dest, req.Data); err != nil {
			b.publishStatus(msgs.NewTxStatusErr(&req, err))
		}
		return
	}
	cmd := b.Client.Send(dest, req.Data)
	go func() {
		result := <-cmd.ResultChan()
		if result.Err != nil {
			glog.V(1).Infof("tx %s id=%d: %v", dest, cmd.FrameID(), result.Err)
		}
		b.publishStatus(msgs.NewTxStatus(&req, cmd.FrameID(), result))
	}()
}

func (b *Bridge) publishStatus(status *msgs.TxStatus) {
	data, err := msgs.Encode(status)
	if err != nil {
		glog.Errorf("encode tx status: %v", err)
		return
	}
	b.Queue.Pub(StatusTopic(b.GatewayID), data)
}
