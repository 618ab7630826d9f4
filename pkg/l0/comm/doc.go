// Package comm provides XBee API frame support.
package comm

// XBee API mode (AP=1, unescaped) is communicated between the radio module
// and the host over a serial port. Every frame is
//
//	[0x7E][len_hi][len_lo][body ...][checksum]
//
// where the body starts with the frame type byte and len covers the body
// only. The checksum is 0xFF minus the 8-bit sum of the body.
//
// The encoder produces Transmit Request (0x10) frames. The decoder consumes
// the incoming stream one byte at a time and yields Receive Packet (0x90) and
// Transmit Status (0x8B) frames. Malformed or corrupted frames are dropped
// silently and the decoder resynchronizes on the next start delimiter.
//
// Producer: XBee module
// Consumer: host (gateway)
