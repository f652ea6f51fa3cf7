// Package ws adapts a websocket connection to the inter-core line
// transport, for browser monitors and host-side development rigs.
package ws

import (
	"strings"

	"golang.org/x/net/websocket"
)

// ReadWriter implements intercore.LineReadWriter over a websocket,
// one text frame per line.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Dial connects to a websocket line endpoint.
func Dial(url, origin string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadLine implements LineReader.
func (p *ReadWriter) ReadLine() (string, error) {
	var line string
	err := websocket.Message.Receive((*websocket.Conn)(p), &line)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine implements LineWriter.
func (p *ReadWriter) WriteLine(line string) error {
	return websocket.Message.Send((*websocket.Conn)(p), line)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}
