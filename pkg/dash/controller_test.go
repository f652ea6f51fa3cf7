package dash

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/duetlab/dash.go/pkg/framework"
	"github.com/duetlab/dash.go/pkg/intercore"
)

type testCtl struct {
	now   time.Time
	level int
	msgs  []fx.Message
}

func (c *testCtl) Time() time.Time            { return c.now }
func (c *testCtl) Context() context.Context   { return context.Background() }
func (c *testCtl) PriorityLevel() int         { return c.level }
func (c *testCtl) Messages() fx.MessageStore  { return c }
func (c *testCtl) PostMessage(msg fx.Message) { c.msgs = append(c.msgs, msg) }
func (c *testCtl) TriggerNext()               {}
func (c *testCtl) AddMessages(msgs ...fx.Message) {
	c.msgs = append(c.msgs, msgs...)
}

func (c *testCtl) ProcessMessages(proc fx.MessageProcessor) {
	msgs := c.msgs
	c.msgs = nil
	var remains []fx.Message
	for _, msg := range msgs {
		mctx := &testMsgCtl{ctl: c, msg: msg}
		proc.ProcessMessage(mctx)
		if !mctx.taken {
			remains = append(remains, msg)
		}
	}
	c.msgs = append(remains, c.msgs...)
}

type testMsgCtl struct {
	ctl   *testCtl
	msg   fx.Message
	taken bool
}

func (c *testMsgCtl) CurrentMessage() fx.Message { return c.msg }
func (c *testMsgCtl) MessageTaken()              { c.taken = true }
func (c *testMsgCtl) StopProcessing()            {}
func (c *testMsgCtl) AddMessages(msgs ...fx.Message) {
	c.ctl.AddMessages(msgs...)
}

type fakeDisplay struct {
	renders []Status
}

func (f *fakeDisplay) Render(st Status) error {
	f.renders = append(f.renders, st)
	return nil
}

type fakeBacklight struct {
	sets []bool
}

func (f *fakeBacklight) Set(on bool) { f.sets = append(f.sets, on) }

type fakeHaptics struct {
	pulses int
}

func (f *fakeHaptics) Pulse() { f.pulses++ }

type fakeButtons struct {
	queue []ButtonEvent
}

func (f *fakeButtons) Poll() []ButtonEvent {
	evs := f.queue
	f.queue = nil
	return evs
}

type fakeTemp struct {
	c   float64
	err error
}

func (f *fakeTemp) ReadC() (float64, error) { return f.c, f.err }

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time  { return f.now }
func (f *fakeClock) Set(t time.Time) { f.now = t }

type fakePeer struct {
	alive bool
}

func (f *fakePeer) Alive() bool { return f.alive }

type recordingSender struct {
	sent []fx.Message
}

func (s *recordingSender) Send(msg fx.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

type recordingRequester struct {
	requests []bool
}

func (r *recordingRequester) Request(manual bool) {
	r.requests = append(r.requests, manual)
}

func TestControllerStatusAndRender(t *testing.T) {
	disp := &fakeDisplay{}
	peer := &fakePeer{alive: true}
	d := &Controller{
		Display: disp,
		Peer:    peer,
		Clock:   &fakeClock{now: time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC)},
	}
	cc := &testCtl{now: time.Unix(1000, 0)}

	require.NoError(t, d.Control(cc))
	cc.AddMessages(&intercore.Status{LoadPct: 55, MHz: 480})
	require.NoError(t, d.Control(cc))
	require.Empty(t, cc.msgs, "status message should be consumed")

	cc.level = fx.PrLvRender
	cc.now = cc.now.Add(300 * time.Millisecond)
	require.NoError(t, d.Control(cc))
	require.Len(t, disp.renders, 1)
	st := disp.renders[0]
	require.True(t, st.PeerAlive)
	require.Equal(t, 55, st.LoadPct)
	require.Equal(t, 480, st.MHz)
	require.True(t, st.Synced)

	// Nothing changed, nothing redrawn.
	cc.now = cc.now.Add(300 * time.Millisecond)
	require.NoError(t, d.Control(cc))
	require.Len(t, disp.renders, 1)
}

func TestControllerButtons(t *testing.T) {
	buttons := &fakeButtons{}
	haptics := &fakeHaptics{}
	sender := &recordingSender{}
	req := &recordingRequester{}
	d := &Controller{
		Buttons:   buttons,
		Haptics:   haptics,
		Sender:    sender,
		Requester: req,
	}
	cc := &testCtl{now: time.Unix(1000, 0)}
	require.NoError(t, d.Control(cc))

	buttons.queue = []ButtonEvent{{Button: ButtonLoad}}
	require.NoError(t, d.Control(cc))
	require.Equal(t, []fx.Message{&intercore.TestLoad{On: true}}, sender.sent)
	require.Equal(t, 1, haptics.pulses)
	require.True(t, d.Status().TestLoad)

	buttons.queue = []ButtonEvent{{Button: ButtonLoad}}
	require.NoError(t, d.Control(cc))
	require.Equal(t, fx.Message(&intercore.TestLoad{}), sender.sent[1])
	require.False(t, d.Status().TestLoad)

	buttons.queue = []ButtonEvent{{Button: ButtonSync}}
	require.NoError(t, d.Control(cc))
	require.Equal(t, []bool{true}, req.requests)
}

func TestControllerBacklightTimeout(t *testing.T) {
	light := &fakeBacklight{}
	buttons := &fakeButtons{}
	req := &recordingRequester{}
	d := &Controller{
		Backlight:        light,
		Buttons:          buttons,
		Requester:        req,
		BacklightTimeout: 5 * time.Second,
	}
	cc := &testCtl{now: time.Unix(1000, 0)}
	require.NoError(t, d.Control(cc))
	require.Equal(t, []bool{true}, light.sets)

	cc.now = cc.now.Add(6 * time.Second)
	require.NoError(t, d.Control(cc))
	require.Equal(t, []bool{true, false}, light.sets)

	// First press on a dark panel wakes it and does nothing else.
	buttons.queue = []ButtonEvent{{Button: ButtonSync}}
	require.NoError(t, d.Control(cc))
	require.Equal(t, []bool{true, false, true}, light.sets)
	require.Empty(t, req.requests)

	buttons.queue = []ButtonEvent{{Button: ButtonSync}}
	require.NoError(t, d.Control(cc))
	require.Equal(t, []bool{true}, req.requests)
}

func TestControllerTempSensor(t *testing.T) {
	temp := &fakeTemp{c: 41.5}
	d := &Controller{Temp: temp, TempInterval: time.Second}
	cc := &testCtl{now: time.Unix(1000, 0)}
	require.NoError(t, d.Control(cc))
	require.False(t, d.Status().TempOK)

	cc.now = cc.now.Add(time.Second)
	require.NoError(t, d.Control(cc))
	require.True(t, d.Status().TempOK)
	require.Equal(t, 41.5, d.Status().TempC)

	temp.err = errors.New("i2c nak")
	cc.now = cc.now.Add(time.Second)
	require.NoError(t, d.Control(cc))
	require.False(t, d.Status().TempOK)
}
