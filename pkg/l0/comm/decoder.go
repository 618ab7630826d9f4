package comm

import (
	"io"

	"github.com/golang/glog"
)

// State is the state of the Decoder.
type State int

const (
	// StateAwaitingStart scans for the start delimiter.
	StateAwaitingStart State = iota
	// StateAwaitingLengthHigh waits for the high byte of the length.
	StateAwaitingLengthHigh
	// StateAwaitingLengthLow waits for the low byte of the length.
	StateAwaitingLengthLow
	// StateAccumulatingBody collects the body and the checksum.
	StateAccumulatingBody
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "AwaitingStart"
	case StateAwaitingLengthHigh:
		return "AwaitingLengthHigh"
	case StateAwaitingLengthLow:
		return "AwaitingLengthLow"
	case StateAccumulatingBody:
		return "AccumulatingBody"
	}
	return "Unknown"
}

// Stats counts decoded and dropped frames.
type Stats struct {
	Frames         uint64 `json:"frames"`
	LengthErrors   uint64 `json:"length_errors"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	ShortFrames    uint64 `json:"short_frames"`
	UnknownTypes   uint64 `json:"unknown_types"`
	Resets         uint64 `json:"resets"`
}

type stepResult int

const (
	stepPending stepResult = iota
	stepComplete
	stepBadLength
	stepBadChecksum
)

// framer splits a stream into checksummed bodies without interpreting them.
type framer struct {
	state    State
	length   int // declared length, excludes the checksum
	consumed int // bytes accumulated after the length field
	lenBytes [2]byte
	buf      [MaxBodySize + 1]byte
}

func (f *framer) step(b byte) stepResult {
	switch f.state {
	case StateAwaitingStart:
		f.awaitStart(b)
	case StateAwaitingLengthHigh:
		f.awaitLengthHigh(b)
	case StateAwaitingLengthLow:
		return f.awaitLengthLow(b)
	case StateAccumulatingBody:
		return f.accumulate(b)
	default:
		f.state = StateAwaitingStart
	}
	return stepPending
}

func (f *framer) awaitStart(b byte) {
	if b == StartDelimiter {
		f.length, f.consumed = 0, 0
		f.state = StateAwaitingLengthHigh
	}
}

func (f *framer) awaitLengthHigh(b byte) {
	f.lenBytes[0] = b
	f.length = int(b) << 8
	f.state = StateAwaitingLengthLow
}

func (f *framer) awaitLengthLow(b byte) stepResult {
	f.lenBytes[1] = b
	f.length |= int(b)
	if f.length > MaxBodySize || f.length < MinBodySize {
		f.state = StateAwaitingStart
		return stepBadLength
	}
	f.state = StateAccumulatingBody
	return stepPending
}

func (f *framer) accumulate(b byte) stepResult {
	f.buf[f.consumed] = b
	f.consumed++
	if f.consumed <= f.length {
		return stepPending
	}
	f.state = StateAwaitingStart
	if !VerifyChecksum(f.buf[:f.length], f.buf[f.length]) {
		return stepBadChecksum
	}
	return stepComplete
}

func (f *framer) body() []byte {
	return f.buf[:f.length]
}

// span copies the bytes received after the start delimiter.
func (f *framer) span() []byte {
	span := make([]byte, 0, len(f.lenBytes)+f.consumed)
	span = append(span, f.lenBytes[:]...)
	return append(span, f.buf[:f.consumed]...)
}

// boundaryFramer parses the stream from the end of a frame which failed
// its checksum while the decoder tries a resync point inside that frame.
type boundaryFramer struct {
	framer
	done bool
}

// Decoder reassembles frames from a byte stream.
// It is not safe for concurrent use.
type Decoder struct {
	framer

	// bytes to be parsed again, followed by bytes received while
	// draining them.
	replay   []byte
	// set while a resync point is tried, nil otherwise.
	boundary *boundaryFramer
	stats    Stats
}

// State gets the current state.
func (d *Decoder) State() State {
	return d.state
}

// Stats gets the counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Pending indicates a frame is partially assembled or bytes are queued.
func (d *Decoder) Pending() bool {
	return d.state != StateAwaitingStart || len(d.replay) > 0 || d.boundary != nil
}

// Reset drops any partial frame and waits for the next start delimiter.
// Bytes received after a frame which failed its checksum are kept.
func (d *Decoder) Reset() {
	if bf := d.boundary; bf != nil {
		d.framer = bf.framer
	} else {
		d.state = StateAwaitingStart
		d.length, d.consumed = 0, 0
	}
	d.boundary = nil
	d.replay = nil
	d.stats.Resets++
}

// Parse consumes one byte and returns a frame once complete.
// The returned frame doesn't reference the internal buffer.
func (d *Decoder) Parse(b byte) Frame {
	if bf := d.boundary; bf != nil && bf.step(b) == stepComplete {
		bf.done = true
	}
	if len(d.replay) > 0 {
		d.replay = append(d.replay, b)
		return d.Next()
	}
	if f := d.step(b); f != nil {
		return f
	}
	return d.Next()
}

// Next parses queued bytes without new input. It should be called
// until it returns nil when the stream ends after a frame.
func (d *Decoder) Next() Frame {
	for len(d.replay) > 0 {
		b := d.replay[0]
		if d.replay = d.replay[1:]; len(d.replay) == 0 {
			d.replay = nil
		}
		if f := d.step(b); f != nil {
			return f
		}
	}
	if bf := d.boundary; bf != nil && bf.done {
		return d.fallback()
	}
	return nil
}

func (d *Decoder) step(b byte) Frame {
	switch d.framer.step(b) {
	case stepComplete:
		d.boundary = nil
		return d.dispatch(d.body())
	case stepBadLength:
		if d.boundary != nil {
			return d.fallback()
		}
		d.stats.LengthErrors++
		glog.V(3).Infof("drop frame: invalid length %d", d.length)
		d.rescan(d.span())
	case stepBadChecksum:
		if d.boundary != nil {
			return d.fallback()
		}
		d.stats.ChecksumErrors++
		glog.V(3).Infof("drop frame: checksum mismatch, type 0x%02X len %d", d.buf[0], d.length)
		d.resync(d.span())
	}
	return nil
}

// rescan replays the bytes of a dropped length field from the next start
// delimiter, since the delimiter consumed before them may have been noise.
func (d *Decoder) rescan(span []byte) {
	for i, b := range span {
		if b == StartDelimiter {
			d.replay = append(span[i:], d.replay...)
			return
		}
	}
}

// resync handles a complete frame failing its checksum. Parsing resumes
// at the end of the frame unless a start delimiter inside it begins a
// frame running past its end, which happens when the failed frame was
// truncated by the one after it. That frame is tried while the stream
// after the end is parsed in parallel, and whichever completes first wins.
func (d *Decoder) resync(span []byte) {
	i := resyncPoint(span)
	if i < 0 {
		return
	}
	bf := &boundaryFramer{}
	for _, b := range d.replay {
		if bf.step(b) == stepComplete {
			return
		}
	}
	d.boundary = bf
	d.replay = append(span[i:], d.replay...)
}

// fallback abandons the frame tried by resync and continues from the end
// of the frame which failed its checksum.
func (d *Decoder) fallback() Frame {
	bf := d.boundary
	d.boundary = nil
	d.replay = nil
	d.framer = bf.framer
	if bf.done {
		return d.dispatch(d.body())
	}
	return nil
}

// resyncPoint finds the first start delimiter in span whose frame can't
// end inside span. Frames lying entirely inside span are part of the
// corrupted data and never decoded.
func resyncPoint(span []byte) int {
	for i, b := range span {
		if b != StartDelimiter {
			continue
		}
		if i+2 >= len(span) {
			if i+1 < len(span) && span[i+1] != 0 {
				continue
			}
			return i
		}
		length := int(span[i+1])<<8 | int(span[i+2])
		if length < MinBodySize || length > MaxBodySize {
			continue
		}
		if i+frameOverhead+length > len(span) {
			return i
		}
	}
	return -1
}

func (d *Decoder) dispatch(body []byte) Frame {
	switch FrameType(body[0]) {
	case FrameTypeRxPacket:
		if len(body) < rxPacketHeaderSize {
			d.stats.ShortFrames++
			return nil
		}
		pkt := &RxPacket{
			Source:  getAddress(body[1:9]),
			Network: uint16(body[9])<<8 | uint16(body[10]),
			Options: body[11],
			Data:    make([]byte, len(body)-rxPacketHeaderSize),
		}
		copy(pkt.Data, body[rxPacketHeaderSize:])
		d.stats.Frames++
		return pkt
	case FrameTypeTransmitStatus:
		if len(body) < txStatusSize {
			d.stats.ShortFrames++
			return nil
		}
		d.stats.Frames++
		return &TxStatus{
			FrameID:   FrameID(body[1]),
			Network:   uint16(body[2])<<8 | uint16(body[3]),
			Retries:   body[4],
			Delivery:  DeliveryStatus(body[5]),
			Discovery: body[6],
		}
	}
	d.stats.UnknownTypes++
	glog.V(3).Infof("ignore frame type 0x%02X", body[0])
	return nil
}

// ByteSource provides bytes already received from a transport.
type ByteSource interface {
	// Available indicates ReadByte won't block.
	Available() bool
	ReadByte() (byte, error)
}

// LenByteReader is implemented by *bytes.Reader and *bytes.Buffer.
type LenByteReader interface {
	io.ByteReader
	Len() int
}

type lenByteSource struct {
	LenByteReader
}

func (s lenByteSource) Available() bool {
	return s.Len() > 0
}

// NewByteSource wraps a reader which knows how many bytes are left.
func NewByteSource(r LenByteReader) ByteSource {
	return lenByteSource{r}
}

// Poll consumes available bytes until a frame is complete. It returns
// nil without error when no frame can be completed with the bytes
// available now.
func (d *Decoder) Poll(src ByteSource) (Frame, error) {
	if f := d.Next(); f != nil {
		return f, nil
	}
	for src.Available() {
		b, err := src.ReadByte()
		if err != nil {
			return nil, err
		}
		if f := d.Parse(b); f != nil {
			return f, nil
		}
	}
	return nil, nil
}
