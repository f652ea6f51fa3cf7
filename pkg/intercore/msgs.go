// Package intercore implements the newline-terminated ASCII protocol
// spoken between the application core and the compute core, and the
// liveness tracking built on top of it.
package intercore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	fx "github.com/duetlab/dash.go/pkg/framework"
)

// Messages from the compute core.

// Status is the periodic load report: "M4,<load_pct>,<mhz>".
type Status struct {
	LoadPct int
	MHz     int
}

// NewMessage implements Message.
func (m *Status) NewMessage() fx.Message { return &Status{} }

// Heartbeat is the periodic liveness message: "M4:HB".
type Heartbeat struct{}

// NewMessage implements Message.
func (m *Heartbeat) NewMessage() fx.Message { return &Heartbeat{} }

// Ready announces the compute core finished booting: "M4:READY".
type Ready struct{}

// NewMessage implements Message.
func (m *Ready) NewMessage() fx.Message { return &Ready{} }

// Pong replies to a Ping: "M4:PONG".
type Pong struct{}

// NewMessage implements Message.
func (m *Pong) NewMessage() fx.Message { return &Pong{} }

// Messages to the compute core.

// Ping probes peer liveness: "PING".
type Ping struct{}

// NewMessage implements Message.
func (m *Ping) NewMessage() fx.Message { return &Ping{} }

// TestLoad toggles the synthetic busy load: "TESTLOAD,<0|1>".
type TestLoad struct {
	On bool
}

// NewMessage implements Message.
func (m *TestLoad) NewMessage() fx.Message { return &TestLoad{} }

// SyncRequest asks the peer to kick off a time sync: "SYNC". The
// compute core sends it once shortly after boot; the application core
// feeds it to the sync orchestrator as a scheduling trigger.
type SyncRequest struct{}

// NewMessage implements Message.
func (m *SyncRequest) NewMessage() fx.Message { return &SyncRequest{} }

// ErrUnknownLine indicates a line not recognized by the protocol.
var ErrUnknownLine = errors.New("intercore: unknown line")

// Parse decodes one wire line into a typed message.
func Parse(line string) (fx.Message, error) {
	switch line {
	case "M4:HB":
		return &Heartbeat{}, nil
	case "M4:READY":
		return &Ready{}, nil
	case "M4:PONG":
		return &Pong{}, nil
	case "PING":
		return &Ping{}, nil
	case "SYNC":
		return &SyncRequest{}, nil
	}
	if rest, ok := strings.CutPrefix(line, "M4,"); ok {
		parts := strings.Split(rest, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLine, line)
		}
		load, err1 := strconv.Atoi(parts[0])
		mhz, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || load < 0 || load > 100 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLine, line)
		}
		return &Status{LoadPct: load, MHz: mhz}, nil
	}
	if rest, ok := strings.CutPrefix(line, "TESTLOAD,"); ok {
		switch rest {
		case "0":
			return &TestLoad{}, nil
		case "1":
			return &TestLoad{On: true}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownLine, line)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLine, line)
}

// Line encodes a typed message into its wire line.
func Line(msg fx.Message) (string, error) {
	switch m := msg.(type) {
	case *Status:
		return fmt.Sprintf("M4,%d,%d", m.LoadPct, m.MHz), nil
	case *Heartbeat:
		return "M4:HB", nil
	case *Ready:
		return "M4:READY", nil
	case *Pong:
		return "M4:PONG", nil
	case *Ping:
		return "PING", nil
	case *TestLoad:
		if m.On {
			return "TESTLOAD,1", nil
		}
		return "TESTLOAD,0", nil
	case *SyncRequest:
		return "SYNC", nil
	}
	return "", fmt.Errorf("intercore: unencodable message %T", msg)
}
