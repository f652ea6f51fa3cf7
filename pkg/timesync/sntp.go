package timesync

import (
	"encoding/binary"
	"errors"
	"time"
)

// The datagram query is a fixed 48-byte SNTP frame. Only the first
// byte carries information on the way out: no leap warning, version 3,
// client mode. The reply's transmit timestamp is a 32-bit seconds
// field anchored to the 1900 epoch.
const (
	queryFrameSize = 48
	querySettings  = 0x1B

	// Seconds between the 1900 epoch used on the wire and the Unix
	// epoch. A seconds field below this constant implies corrupt or
	// zeroed data.
	wireEpochOffset = 2208988800

	txSecondsOffset = 40
)

var (
	// ErrShortFrame indicates a reply shorter than the expected frame.
	ErrShortFrame = errors.New("timesync: short reply frame")
	// ErrBogusSeconds indicates an implausible transmit seconds field.
	ErrBogusSeconds = errors.New("timesync: implausible seconds field")
)

// BuildQuery returns the fixed query frame. The body is zero-filled.
func BuildQuery() []byte {
	frame := make([]byte, queryFrameSize)
	frame[0] = querySettings
	return frame
}

// ParseReply extracts the transmit timestamp from a reply frame and
// converts it to UTC on the Unix epoch.
func ParseReply(frame []byte) (time.Time, error) {
	if len(frame) < queryFrameSize {
		return time.Time{}, ErrShortFrame
	}
	secs := binary.BigEndian.Uint32(frame[txSecondsOffset : txSecondsOffset+4])
	if secs < wireEpochOffset {
		return time.Time{}, ErrBogusSeconds
	}
	return time.Unix(int64(secs)-wireEpochOffset, 0).UTC(), nil
}
