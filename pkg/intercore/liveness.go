package intercore

import (
	"time"

	"github.com/golang/glog"

	fx "github.com/duetlab/dash.go/pkg/framework"
)

// Requester receives sync triggers. Implemented by the sync
// orchestrator on the application core.
type Requester interface {
	Request(manual bool)
}

// Liveness tracks peer heartbeats on the application core. It ages
// the last-heard timestamp against a staleness threshold, emits
// periodic pings, and forwards the peer's one-shot sync request to
// the orchestrator.
type Liveness struct {
	Sender    Sender
	Requester Requester

	// PingInterval is the probe period. Defaults to 1s.
	PingInterval time.Duration
	// StaleAfter marks the peer dead when nothing was heard for this
	// long. Defaults to 3500ms.
	StaleAfter time.Duration
	// SyncDelay fires one local sync trigger this long after start,
	// covering boards whose compute core never announces. Zero
	// disables it.
	SyncDelay time.Duration

	started   bool
	startAt   time.Time
	lastHeard time.Time
	lastPing  time.Time
	syncFired bool
	alive     bool
}

// Alive reports whether the peer core was heard recently.
func (l *Liveness) Alive() bool {
	return l.alive
}

// AddToLoop implements LoopAdder.
func (l *Liveness) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvPoll, l)
}

// Control implements Controller.
func (l *Liveness) Control(cc fx.ControlContext) error {
	now := cc.Time()
	if !l.started {
		l.started = true
		l.startAt, l.lastHeard, l.lastPing = now, now, now
	}

	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch mctx.CurrentMessage().(type) {
		case *Heartbeat:
			mctx.MessageTaken()
			l.lastHeard = now
		case *Pong:
			mctx.MessageTaken()
			l.lastHeard = now
		case *Ready:
			mctx.MessageTaken()
			l.lastHeard = now
			glog.Info("compute core ready")
		case *Status:
			// Left for the dashboard controller; any traffic counts
			// as liveness.
			l.lastHeard = now
		case *SyncRequest:
			mctx.MessageTaken()
			l.lastHeard = now
			if l.Requester != nil {
				glog.V(1).Info("peer sync request")
				l.Requester.Request(false)
			}
		}
	}))

	staleAfter := l.StaleAfter
	if staleAfter == 0 {
		staleAfter = 3500 * time.Millisecond
	}
	aliveNow := now.Sub(l.lastHeard) <= staleAfter
	if aliveNow != l.alive {
		l.alive = aliveNow
		if aliveNow {
			glog.Info("compute core alive")
		} else {
			glog.Warning("compute core heartbeat lost")
		}
	}

	pingInterval := l.PingInterval
	if pingInterval == 0 {
		pingInterval = time.Second
	}
	if now.Sub(l.lastPing) >= pingInterval {
		l.lastPing = now
		if err := l.Sender.Send(&Ping{}); err != nil {
			glog.V(1).Infof("ping: %v", err)
		}
	}

	if !l.syncFired && l.SyncDelay > 0 && now.Sub(l.startAt) >= l.SyncDelay {
		l.syncFired = true
		if l.Requester != nil {
			glog.V(1).Info("boot sync trigger")
			l.Requester.Request(false)
		}
	}
	return nil
}
