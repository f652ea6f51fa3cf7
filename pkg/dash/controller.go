package dash

import (
	"time"

	"github.com/golang/glog"

	fx "github.com/duetlab/dash.go/pkg/framework"
	"github.com/duetlab/dash.go/pkg/intercore"
	"github.com/duetlab/dash.go/pkg/timesync"
)

// PeerMonitor reports compute-core liveness.
type PeerMonitor interface {
	Alive() bool
}

// Controller consumes inter-core status messages, polls the board
// peripherals and renders the dashboard. Peripherals are optional:
// nil fields are skipped, so a host build can run with just a
// console display.
type Controller struct {
	Display   Display
	Backlight Backlight
	Haptics   Haptics
	Buttons   ButtonSource
	Temp      TempSensor

	Clock     timesync.Clock
	Peer      PeerMonitor
	Requester intercore.Requester
	Sender    intercore.Sender

	// TZOffset shifts the displayed clock from UTC.
	TZOffset time.Duration
	// RenderInterval is the minimum redraw period. Defaults to 250ms.
	RenderInterval time.Duration
	// TempInterval is the sensor poll period. Defaults to 2s.
	TempInterval time.Duration
	// BacklightTimeout dims the panel after inactivity. Defaults to 30s.
	BacklightTimeout time.Duration

	st         Status
	dirty      bool
	started    bool
	lastRender time.Time
	lastTemp   time.Time
	lastInput  time.Time
	lightOn    bool
}

// Status returns the current dashboard model.
func (d *Controller) Status() Status {
	return d.st
}

// AddToLoop implements LoopAdder.
func (d *Controller) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, d)
	loop.AddController(fx.PrLvRender, d)
}

// Control implements Controller.
func (d *Controller) Control(cc fx.ControlContext) error {
	if cc.PriorityLevel() == fx.PrLvRender {
		return d.render(cc.Time())
	}

	now := cc.Time()
	if !d.started {
		d.started = true
		d.lastRender, d.lastTemp, d.lastInput = now, now, now
		d.lightOn = true
		if d.Backlight != nil {
			d.Backlight.Set(true)
		}
		d.dirty = true
	}

	d.pollButtons(now)
	d.consumeMessages(cc)
	d.pollTemp(now)
	d.updateClock(now)
	d.updateBacklight(now)
	return nil
}

func (d *Controller) pollButtons(now time.Time) {
	if d.Buttons == nil {
		return
	}
	for _, ev := range d.Buttons.Poll() {
		d.lastInput = now
		if d.Haptics != nil {
			d.Haptics.Pulse()
		}
		if !d.lightOn {
			// First press on a dark panel only wakes it.
			continue
		}
		switch ev.Button {
		case ButtonLoad:
			d.st.TestLoad = !d.st.TestLoad
			d.dirty = true
			if d.Sender != nil {
				if err := d.Sender.Send(&intercore.TestLoad{On: d.st.TestLoad}); err != nil {
					glog.Warningf("test load toggle: %v", err)
				}
			}
		case ButtonSync:
			if d.Requester != nil {
				glog.Info("manual sync requested")
				d.Requester.Request(true)
			}
		}
	}
}

func (d *Controller) consumeMessages(cc fx.ControlContext) {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		if st, ok := mctx.CurrentMessage().(*intercore.Status); ok {
			mctx.MessageTaken()
			if st.LoadPct != d.st.LoadPct || st.MHz != d.st.MHz {
				d.st.LoadPct, d.st.MHz = st.LoadPct, st.MHz
				d.dirty = true
			}
		}
	}))
	if d.Peer != nil {
		if alive := d.Peer.Alive(); alive != d.st.PeerAlive {
			d.st.PeerAlive = alive
			d.dirty = true
		}
	}
}

func (d *Controller) pollTemp(now time.Time) {
	if d.Temp == nil {
		return
	}
	interval := d.TempInterval
	if interval == 0 {
		interval = 2 * time.Second
	}
	if now.Sub(d.lastTemp) < interval {
		return
	}
	d.lastTemp = now
	c, err := d.Temp.ReadC()
	if err != nil {
		if d.st.TempOK {
			d.st.TempOK = false
			d.dirty = true
		}
		glog.V(1).Infof("temp read: %v", err)
		return
	}
	if !d.st.TempOK || c != d.st.TempC {
		d.st.TempC, d.st.TempOK = c, true
		d.dirty = true
	}
}

func (d *Controller) updateClock(now time.Time) {
	if d.Clock == nil {
		return
	}
	t := d.Clock.Now()
	synced := timesync.Plausible(t)
	shown := t.Add(d.TZOffset)
	if synced != d.st.Synced || !shown.Truncate(time.Second).Equal(d.st.Clock.Truncate(time.Second)) {
		d.st.Clock, d.st.Synced = shown, synced
		d.dirty = true
	}
}

func (d *Controller) updateBacklight(now time.Time) {
	if d.Backlight == nil {
		return
	}
	timeout := d.BacklightTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	wantOn := now.Sub(d.lastInput) < timeout
	if wantOn != d.lightOn {
		d.lightOn = wantOn
		d.Backlight.Set(wantOn)
	}
}

func (d *Controller) render(now time.Time) error {
	if d.Display == nil {
		return nil
	}
	interval := d.RenderInterval
	if interval == 0 {
		interval = 250 * time.Millisecond
	}
	if !d.dirty || now.Sub(d.lastRender) < interval {
		return nil
	}
	d.dirty = false
	d.lastRender = now
	if err := d.Display.Render(d.st); err != nil {
		glog.Warningf("render: %v", err)
	}
	return nil
}
