package comm

import (
	"fmt"
	"io"
)

// Transmit options.
const (
	TxOptionNone       byte = 0x00
	TxOptionDisableAck byte = 0x01
)

// DefaultFrameID is used by Encode to request a transmit status.
const DefaultFrameID FrameID = 0x01

// TransmitRequest is an outgoing transmit request frame (0x10).
type TransmitRequest struct {
	FrameID     FrameID
	Destination Address
	Network     uint16
	Radius      byte // 0 means maximum hops.
	Options     byte
	Data        []byte
}

// NewTransmitRequest creates a request which asks for a transmit status.
func NewTransmitRequest(dest Address, data []byte) *TransmitRequest {
	return &TransmitRequest{
		FrameID:     DefaultFrameID,
		Destination: dest,
		Network:     UnknownNetworkAddress,
		Data:        data,
	}
}

// Encode builds a complete transmit request frame.
func Encode(dest Address, payload []byte) ([]byte, error) {
	return NewTransmitRequest(dest, payload).Bytes()
}

// Bytes returns the encoded frame for sending.
func (r *TransmitRequest) Bytes() ([]byte, error) {
	if l := len(r.Data); l > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, l, MaxPayloadSize)
	}
	bodyLen := txRequestHeaderSize + len(r.Data)
	b := make([]byte, bodyLen+frameOverhead)
	b[0] = StartDelimiter
	b[1], b[2] = byte(bodyLen>>8), byte(bodyLen)
	body := b[3 : 3+bodyLen]
	body[0], body[1] = byte(FrameTypeTransmitRequest), byte(r.FrameID)
	putAddress(body[2:10], r.Destination)
	body[10], body[11] = byte(r.Network>>8), byte(r.Network)
	body[12], body[13] = r.Radius, r.Options
	copy(body[txRequestHeaderSize:], r.Data)
	b[len(b)-1] = Checksum(body)
	return b, nil
}

// WriteTo writes the encoded frame with a single Write.
func (r *TransmitRequest) WriteTo(w io.Writer) (int64, error) {
	b, err := r.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}
