package timesync

import "errors"

// LinkStatus reports the state of the wireless link while a bring-up
// is in progress.
type LinkStatus int

const (
	// LinkDown means no bring-up has been requested.
	LinkDown LinkStatus = iota
	// LinkConnecting means bring-up is in progress.
	LinkConnecting
	// LinkUp means the link is usable.
	LinkUp
	// LinkFailed means bring-up failed; a new Begin is required.
	LinkFailed
)

// NetLink controls the wireless network link. Begin must not block:
// the orchestrator polls Status on every tick until LinkUp, LinkFailed
// or its own deadline. The link is exclusively owned by the
// orchestrator for the duration of one sync cycle and Down is called
// on every exit path.
type NetLink interface {
	Begin() error
	Status() LinkStatus
	// OpenDatagram opens the query socket. Valid only while LinkUp.
	OpenDatagram() (Datagram, error)
	Down()
}

// Datagram is a connectionless query socket.
type Datagram interface {
	// Send transmits one frame to addr ("host:port").
	Send(addr string, frame []byte) error
	// Recv polls for a received frame without blocking. It returns
	// (nil, nil) when no frame is pending.
	Recv() ([]byte, error)
	Close() error
}

// ErrLinkUnavailable indicates the link never came up within the
// bring-up deadline.
var ErrLinkUnavailable = errors.New("timesync: link unavailable")
