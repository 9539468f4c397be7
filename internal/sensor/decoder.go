package sensor

// The distance sensor emits fixed 7-byte frames over UART: two sync bytes
// (0xAA 0xAA) followed by a 5-byte payload. The 16-bit distance sits at
// payload offsets 1 (low) and 2 (high); payload bytes 0, 3 and 4 carry
// signal strength / reserved data and are not validated.
const (
	SyncByte   = 0xAA
	payloadLen = 5
	frameLen   = 2 + payloadLen
)

// Status is the outcome of one Next call on a Decoder.
type Status int

const (
	// StatusPending means not enough buffered bytes for a full frame.
	StatusPending Status = iota
	// StatusResync means a sync byte mismatch; the buffer was flushed.
	StatusResync
	// StatusOutOfRange means a frame decoded cleanly but its distance is
	// implausible; the frame was dropped.
	StatusOutOfRange
	// StatusSample means a validated distance sample was produced.
	StatusSample
)

// Decoder turns an append-only byte stream into validated distance samples.
// It never blocks: callers Feed whatever the transport produced and drain
// with Next until StatusPending.
type Decoder struct {
	min uint16
	max uint16
	buf []byte
}

func NewDecoder(min, max uint16) *Decoder {
	return &Decoder{min: min, max: max, buf: make([]byte, 0, 4*frameLen)}
}

// Feed appends raw transport bytes to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of undecoded bytes.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next attempts to decode one frame. A sync mismatch flushes the whole
// buffer; realignment then costs at most one sensor frame, which beats
// scanning a corrupt stream byte by byte. An out-of-range distance drops
// only that frame, keeping the caller's last accepted value authoritative.
func (d *Decoder) Next() (uint16, Status) {
	if len(d.buf) < frameLen {
		return 0, StatusPending
	}
	if d.buf[0] != SyncByte || d.buf[1] != SyncByte {
		d.buf = d.buf[:0]
		return 0, StatusResync
	}
	payload := d.buf[2:frameLen]
	distance := uint16(payload[2])<<8 | uint16(payload[1])
	d.buf = append(d.buf[:0], d.buf[frameLen:]...)

	if distance < d.min || distance > d.max {
		return distance, StatusOutOfRange
	}
	return distance, StatusSample
}
