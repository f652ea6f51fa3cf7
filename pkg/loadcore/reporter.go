// Package loadcore implements the compute-core side of the inter-core
// protocol: synthetic CPU load reporting and liveness.
package loadcore

import (
	"math/rand"
	"time"

	"github.com/golang/glog"

	fx "github.com/duetlab/dash.go/pkg/framework"
	"github.com/duetlab/dash.go/pkg/intercore"
)

// Reporter periodically reports synthetic CPU utilization and
// heartbeats, answers pings, honors the test-load toggle, and asks
// the application core for one time sync shortly after boot.
type Reporter struct {
	Sender intercore.Sender

	// StatusInterval is the load report period. Defaults to 1s.
	StatusInterval time.Duration
	// HeartbeatInterval is the liveness period. Defaults to 500ms.
	HeartbeatInterval time.Duration
	// SyncDelay delays the one-shot sync request after boot.
	// Defaults to 10s; negative disables.
	SyncDelay time.Duration
	// MHz is the reported core clock. Defaults to 480.
	MHz int

	rng        *rand.Rand
	started    bool
	startAt    time.Time
	lastStatus time.Time
	lastHB     time.Time
	syncSent   bool
	testLoad   bool
	load       int
}

// AddToLoop implements LoopAdder.
func (r *Reporter) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, r)
}

// Control implements Controller.
func (r *Reporter) Control(cc fx.ControlContext) error {
	now := cc.Time()
	if !r.started {
		r.started = true
		r.startAt, r.lastStatus, r.lastHB = now, now, now
		r.rng = rand.New(rand.NewSource(now.UnixNano()))
		r.load = 10 + r.rng.Intn(10)
		if err := r.Sender.Send(&intercore.Ready{}); err != nil {
			glog.Warningf("ready: %v", err)
		}
	}

	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch m := mctx.CurrentMessage().(type) {
		case *intercore.Ping:
			mctx.MessageTaken()
			if err := r.Sender.Send(&intercore.Pong{}); err != nil {
				glog.V(1).Infof("pong: %v", err)
			}
		case *intercore.TestLoad:
			mctx.MessageTaken()
			r.testLoad = m.On
			glog.Infof("test load %v", m.On)
		}
	}))

	hbInterval := r.HeartbeatInterval
	if hbInterval == 0 {
		hbInterval = 500 * time.Millisecond
	}
	if now.Sub(r.lastHB) >= hbInterval {
		r.lastHB = now
		if err := r.Sender.Send(&intercore.Heartbeat{}); err != nil {
			glog.V(1).Infof("heartbeat: %v", err)
		}
	}

	statusInterval := r.StatusInterval
	if statusInterval == 0 {
		statusInterval = time.Second
	}
	if now.Sub(r.lastStatus) >= statusInterval {
		r.lastStatus = now
		mhz := r.MHz
		if mhz == 0 {
			mhz = 480
		}
		if err := r.Sender.Send(&intercore.Status{LoadPct: r.sample(), MHz: mhz}); err != nil {
			glog.V(1).Infof("status: %v", err)
		}
	}

	syncDelay := r.SyncDelay
	if syncDelay == 0 {
		syncDelay = 10 * time.Second
	}
	if !r.syncSent && syncDelay > 0 && now.Sub(r.startAt) >= syncDelay {
		r.syncSent = true
		if err := r.Sender.Send(&intercore.SyncRequest{}); err != nil {
			glog.V(1).Infof("sync request: %v", err)
		}
	}
	return nil
}

// sample walks the synthetic load toward its current target band.
func (r *Reporter) sample() int {
	lo, hi := 5, 40
	if r.testLoad {
		lo, hi = 80, 98
	}
	r.load += r.rng.Intn(11) - 5
	if r.load < lo {
		r.load = lo + r.rng.Intn(5)
	}
	if r.load > hi {
		r.load = hi - r.rng.Intn(5)
	}
	return r.load
}
