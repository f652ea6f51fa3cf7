package timesync

import (
	"net"
	"time"
)

// HostLink is a NetLink for host builds where the operating system
// manages the network: bring-up is immediate and Down is a no-op.
type HostLink struct{}

// Begin implements NetLink.
func (HostLink) Begin() error { return nil }

// Status implements NetLink.
func (HostLink) Status() LinkStatus { return LinkUp }

// OpenDatagram implements NetLink.
func (HostLink) OpenDatagram() (Datagram, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &udpSocket{conn: conn}, nil
}

// Down implements NetLink.
func (HostLink) Down() {}

type udpSocket struct {
	conn *net.UDPConn
	buf  [512]byte
}

func (s *udpSocket) Send(addr string, frame []byte) error {
	dst, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	_, err = s.conn.WriteToUDP(frame, dst)
	return err
}

// Recv polls without blocking by reading with an already-expired
// deadline.
func (s *udpSocket) Recv() ([]byte, error) {
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return nil, err
	}
	n, _, err := s.conn.ReadFromUDP(s.buf[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	frame := make([]byte, n)
	copy(frame, s.buf[:n])
	return frame, nil
}

func (s *udpSocket) Close() error {
	return s.conn.Close()
}
