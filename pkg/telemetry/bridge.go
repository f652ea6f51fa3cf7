package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"github.com/duetlab/dash.go/pkg/dash"
	fx "github.com/duetlab/dash.go/pkg/framework"
	"github.com/duetlab/dash.go/pkg/intercore"
)

// Bridge mirrors the board onto the broker. Inbound inter-core lines
// are republished verbatim on dash/<id>/m4, the dashboard model is
// published retained on dash/<id>/status, and wire-format command
// lines received on dash/<id>/cmd are executed on the loop thread.
type Bridge struct {
	Queue    *Queue
	DeviceID string

	// Sender forwards remote ping/testload commands to the peer core.
	Sender intercore.Sender
	// Requester receives remote sync commands.
	Requester intercore.Requester
	// StatusFn snapshots the dashboard model. Optional.
	StatusFn func() dash.Status
	// StatusInterval is the status publish period. Defaults to 1s.
	StatusInterval time.Duration

	cmdCh      chan string
	started    bool
	lastStatus time.Time
}

// NewBridge creates a Bridge for a device.
func NewBridge(q *Queue, deviceID string) *Bridge {
	return &Bridge{
		Queue:    q,
		DeviceID: deviceID,
		cmdCh:    make(chan string, 16),
	}
}

func (b *Bridge) topic(leaf string) string {
	return "dash/" + b.DeviceID + "/" + leaf
}

// TapLine republishes one raw inter-core line. Wire it as the link
// tap.
func (b *Bridge) TapLine(line string) {
	b.Queue.Pub(b.topic("m4"), []byte(line))
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, b)
}

// Run implements Runnable: it owns the broker-side subscription for
// the lifetime of the loop.
func (b *Bridge) Run(ctx context.Context) error {
	b.Queue.Sub(b.topic("cmd"), b.handleCmd)
	meta, _ := json.Marshal(map[string]string{"id": b.DeviceID, "kind": "dash"})
	b.Queue.PubWith(b.topic("meta"), meta, 0, true)
	<-ctx.Done()
	return ctx.Err()
}

func (b *Bridge) handleCmd(_ string, payload []byte) {
	select {
	case b.cmdCh <- string(payload):
	default:
		glog.Warning("command dropped, queue full")
	}
}

// Control implements Controller: it drains remote commands and
// publishes the periodic status snapshot.
func (b *Bridge) Control(cc fx.ControlContext) error {
	now := cc.Time()
	if !b.started {
		b.started = true
		b.lastStatus = now
	}

	for {
		select {
		case line := <-b.cmdCh:
			b.execute(line)
			continue
		default:
		}
		break
	}

	if b.StatusFn != nil {
		interval := b.StatusInterval
		if interval == 0 {
			interval = time.Second
		}
		if now.Sub(b.lastStatus) >= interval {
			b.lastStatus = now
			payload, err := json.Marshal(b.StatusFn())
			if err == nil {
				b.Queue.PubWith(b.topic("status"), payload, 0, true)
			}
		}
	}
	return nil
}

func (b *Bridge) execute(line string) {
	msg, err := intercore.Parse(line)
	if err != nil {
		glog.Warningf("remote command %q: %v", line, err)
		return
	}
	switch msg.(type) {
	case *intercore.SyncRequest:
		if b.Requester != nil {
			glog.Info("remote sync requested")
			b.Requester.Request(true)
		}
	case *intercore.Ping, *intercore.TestLoad:
		if b.Sender != nil {
			if err := b.Sender.Send(msg); err != nil {
				glog.Warningf("forward %q: %v", line, err)
			}
		}
	default:
		glog.Warningf("remote command %q not accepted", line)
	}
}
