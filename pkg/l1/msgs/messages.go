package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/xbee.go/pkg/l0/comm"
)

// RxPacket is a packet received by the radio.
type RxPacket struct {
	Source    string `protobuf:"bytes,1,opt,name=source,proto3" json:"source,omitempty"`
	Network   uint32 `protobuf:"varint,2,opt,name=network,proto3" json:"network,omitempty"`
	Options   uint32 `protobuf:"varint,3,opt,name=options,proto3" json:"options,omitempty"`
	Data      []byte `protobuf:"bytes,4,opt,name=data,proto3" json:"data,omitempty"`
	Timestamp int64  `protobuf:"varint,5,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *RxPacket) ProtoMessage() {}

// Reset implements proto.Message.
func (m *RxPacket) Reset() { *m = RxPacket{} }

// String implements proto.Message.
func (m *RxPacket) String() string { return proto.CompactTextString(m) }

// NewRxPacket converts a received frame.
func NewRxPacket(pkt *comm.RxPacket, at time.Time) *RxPacket {
	return &RxPacket{
		Source:    pkt.Source.String(),
		Network:   uint32(pkt.Network),
		Options:   uint32(pkt.Options),
		Data:      pkt.Data,
		Timestamp: at.UnixNano(),
	}
}

// Broadcast tells whether the packet was sent as a broadcast.
func (m *RxPacket) Broadcast() bool {
	return m.Options&uint32(comm.RxOptionBroadcast) != 0
}

// TxRequest asks the gateway to transmit data.
type TxRequest struct {
	Destination string `protobuf:"bytes,1,opt,name=destination,proto3" json:"destination,omitempty"`
	Data        []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	// NoAck skips the transmit status.
	NoAck bool `protobuf:"varint,3,opt,name=no_ack,proto3" json:"no_ack,omitempty"`
	// Tag is echoed in the TxStatus.
	Tag string `protobuf:"bytes,4,opt,name=tag,proto3" json:"tag,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *TxRequest) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TxRequest) Reset() { *m = TxRequest{} }

// String implements proto.Message.
func (m *TxRequest) String() string { return proto.CompactTextString(m) }

// Address parses the destination. Empty means broadcast.
func (m *TxRequest) Address() (comm.Address, error) {
	if m.Destination == "" {
		return comm.BroadcastAddress, nil
	}
	return comm.ParseAddress(m.Destination)
}

// TxStatus reports the outcome of a TxRequest.
type TxStatus struct {
	Tag         string `protobuf:"bytes,1,opt,name=tag,proto3" json:"tag,omitempty"`
	FrameId     uint32 `protobuf:"varint,2,opt,name=frame_id,proto3" json:"frame_id,omitempty"`
	Destination string `protobuf:"bytes,3,opt,name=destination,proto3" json:"destination,omitempty"`
	Delivered   bool   `protobuf:"varint,4,opt,name=delivered,proto3" json:"delivered,omitempty"`
	Delivery    uint32 `protobuf:"varint,5,opt,name=delivery,proto3" json:"delivery,omitempty"`
	Retries     uint32 `protobuf:"varint,6,opt,name=retries,proto3" json:"retries,omitempty"`
	Discovery   uint32 `protobuf:"varint,7,opt,name=discovery,proto3" json:"discovery,omitempty"`
	Error       string `protobuf:"bytes,8,opt,name=error,proto3" json:"error,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *TxStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TxStatus) Reset() { *m = TxStatus{} }

// String implements proto.Message.
func (m *TxStatus) String() string { return proto.CompactTextString(m) }

// NewTxStatus converts the result of a transmit request.
func NewTxStatus(req *TxRequest, id comm.FrameID, result comm.Result) *TxStatus {
	m := &TxStatus{
		Tag:         req.Tag,
		FrameId:     uint32(id),
		Destination: req.Destination,
	}
	if s := result.Status; s != nil {
		m.Delivered = s.Delivered()
		m.Delivery = uint32(s.Delivery)
		m.Retries = uint32(s.Retries)
		m.Discovery = uint32(s.Discovery)
	}
	if result.Err != nil {
		m.Error = result.Err.Error()
	}
	return m
}

// NewTxStatusErr creates a TxStatus for a request which was not sent.
func NewTxStatusErr(req *TxRequest, err error) *TxStatus {
	return &TxStatus{
		Tag:         req.Tag,
		Destination: req.Destination,
		Error:       err.Error(),
	}
}

// Encode marshals a message.
func Encode(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

// Decode unmarshals data into a message.
func Decode(data []byte, m proto.Message) error {
	return proto.Unmarshal(data, m)
}
