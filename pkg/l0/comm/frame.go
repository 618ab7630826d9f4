package comm

import (
	"fmt"
	"strconv"
	"strings"
)

// StartDelimiter marks the beginning of every frame.
const StartDelimiter byte = 0x7E

// FrameType is the first byte of a frame body.
type FrameType byte

// Supported frame types.
const (
	FrameTypeTransmitRequest FrameType = 0x10
	FrameTypeRxPacket        FrameType = 0x90
	FrameTypeTransmitStatus  FrameType = 0x8B
)

// String implements fmt.Stringer.
func (t FrameType) String() string {
	switch t {
	case FrameTypeTransmitRequest:
		return "TransmitRequest"
	case FrameTypeRxPacket:
		return "RxPacket"
	case FrameTypeTransmitStatus:
		return "TransmitStatus"
	}
	return fmt.Sprintf("FrameType(0x%02X)", byte(t))
}

// Frame size limits.
const (
	// MaxFrameSize is the largest frame on the wire, from the start
	// delimiter through the checksum.
	MaxFrameSize = 128
	// MaxBodySize is the largest declared length accepted.
	MaxBodySize = MaxFrameSize - frameOverhead
	// MaxPayloadSize is the largest payload of a transmit request.
	MaxPayloadSize = MaxBodySize - txRequestHeaderSize
	// MinBodySize is the smallest declared length accepted, which is the
	// size of a transmit status frame.
	MinBodySize = txStatusSize

	frameOverhead       = 4  // start delimiter, length, checksum
	txRequestHeaderSize = 14 // type, id, addr64, addr16, radius, options
	rxPacketHeaderSize  = 12 // type, addr64, addr16, options
	txStatusSize        = 7  // type, id, addr16, retries, delivery, discovery
)

// Address is the 64-bit IEEE address of a radio module.
type Address uint64

// Well-known addresses.
const (
	CoordinatorAddress Address = 0x0000000000000000
	BroadcastAddress   Address = 0x000000000000FFFF
)

// UnknownNetworkAddress is used when the 16-bit address of the
// destination isn't known.
const UnknownNetworkAddress uint16 = 0xFFFE

// String formats the address as 16 hex digits.
func (a Address) String() string {
	return fmt.Sprintf("%016X", uint64(a))
}

// ParseAddress parses an address in hex, optionally prefixed by 0x.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > 16 {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(n), nil
}

func putAddress(b []byte, a Address) {
	for i := 0; i < 8; i++ {
		b[i] = byte(a >> uint(56-8*i))
	}
}

func getAddress(b []byte) (a Address) {
	for i := 0; i < 8; i++ {
		a = a<<8 | Address(b[i])
	}
	return
}

// FrameID correlates a transmit request with its transmit status.
type FrameID byte

// FrameIDNoStatus suppresses the transmit status.
const FrameIDNoStatus FrameID = 0

// Next calculates the next frame ID, never FrameIDNoStatus.
func (id FrameID) Next() FrameID {
	n := byte(id) + 1
	if n == 0 {
		n = 1
	}
	return FrameID(n)
}

// WantsStatus indicates a transmit status is requested.
func (id FrameID) WantsStatus() bool {
	return id != FrameIDNoStatus
}

// Checksum calculates the checksum of a frame body.
func Checksum(body []byte) byte {
	return 0xFF - sum(body)
}

// VerifyChecksum checks the body against the received checksum.
func VerifyChecksum(body []byte, checksum byte) bool {
	return sum(body)+checksum == 0xFF
}

func sum(body []byte) (s byte) {
	for _, b := range body {
		s += b
	}
	return
}

// Frame is a decoded frame, either *RxPacket or *TxStatus.
type Frame interface {
	FrameType() FrameType
}

// RxPacket is a received data frame (0x90).
type RxPacket struct {
	Source  Address
	Network uint16
	Options byte
	Data    []byte
}

// Receive options.
const (
	RxOptionAcknowledged byte = 0x01
	RxOptionBroadcast    byte = 0x02
)

// FrameType implements Frame.
func (p *RxPacket) FrameType() FrameType { return FrameTypeRxPacket }

// IsBroadcast indicates the packet was sent as a broadcast.
func (p *RxPacket) IsBroadcast() bool {
	return p.Options&RxOptionBroadcast != 0
}

// TxStatus is a transmit status frame (0x8B).
type TxStatus struct {
	FrameID   FrameID
	Network   uint16
	Retries   byte
	Delivery  DeliveryStatus
	Discovery byte
}

// FrameType implements Frame.
func (s *TxStatus) FrameType() FrameType { return FrameTypeTransmitStatus }

// Delivered indicates the request was delivered.
func (s *TxStatus) Delivered() bool {
	return s.Delivery == DeliverySuccess
}

// DeliveryStatus is the delivery status byte of a transmit status.
type DeliveryStatus byte

// Delivery status codes reported by the module.
const (
	DeliverySuccess            DeliveryStatus = 0x00
	DeliveryMACAckFailure      DeliveryStatus = 0x01
	DeliveryCCAFailure         DeliveryStatus = 0x02
	DeliveryInvalidEndpoint    DeliveryStatus = 0x15
	DeliveryNetworkAckFailure  DeliveryStatus = 0x21
	DeliveryNotJoined          DeliveryStatus = 0x22
	DeliverySelfAddressed      DeliveryStatus = 0x23
	DeliveryAddressNotFound    DeliveryStatus = 0x24
	DeliveryRouteNotFound      DeliveryStatus = 0x25
	DeliveryPayloadTooLarge    DeliveryStatus = 0x74
	DeliveryIndirectNotRequest DeliveryStatus = 0x75
)

var deliveryStatusNames = map[DeliveryStatus]string{
	DeliverySuccess:            "success",
	DeliveryMACAckFailure:      "MAC ACK failure",
	DeliveryCCAFailure:         "CCA failure",
	DeliveryInvalidEndpoint:    "invalid destination endpoint",
	DeliveryNetworkAckFailure:  "network ACK failure",
	DeliveryNotJoined:          "not joined to network",
	DeliverySelfAddressed:      "self-addressed",
	DeliveryAddressNotFound:    "address not found",
	DeliveryRouteNotFound:      "route not found",
	DeliveryPayloadTooLarge:    "payload too large",
	DeliveryIndirectNotRequest: "indirect message unrequested",
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	if name, ok := deliveryStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status 0x%02X", byte(s))
}
