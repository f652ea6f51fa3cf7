package loadcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/duetlab/dash.go/pkg/framework"
	"github.com/duetlab/dash.go/pkg/intercore"
)

type testCtl struct {
	now  time.Time
	msgs []fx.Message
}

func (c *testCtl) Time() time.Time             { return c.now }
func (c *testCtl) Context() context.Context    { return context.Background() }
func (c *testCtl) PriorityLevel() int          { return fx.PrLvControl }
func (c *testCtl) Messages() fx.MessageStore   { return c }
func (c *testCtl) PostMessage(msg fx.Message)  { c.msgs = append(c.msgs, msg) }
func (c *testCtl) TriggerNext()                {}
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

type recordingSender struct {
	sent []fx.Message
}

func (s *recordingSender) Send(msg fx.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) statuses() []*intercore.Status {
	var out []*intercore.Status
	for _, msg := range s.sent {
		if st, ok := msg.(*intercore.Status); ok {
			out = append(out, st)
		}
	}
	return out
}

func TestReporterAnnouncesAndReports(t *testing.T) {
	sender := &recordingSender{}
	r := &Reporter{Sender: sender}
	cc := &testCtl{now: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, r.Control(cc))
	require.Equal(t, []fx.Message{&intercore.Ready{}}, sender.sent)

	cc.now = cc.now.Add(500 * time.Millisecond)
	require.NoError(t, r.Control(cc))
	require.Contains(t, sender.sent, fx.Message(&intercore.Heartbeat{}))
	require.Empty(t, sender.statuses())

	cc.now = cc.now.Add(500 * time.Millisecond)
	require.NoError(t, r.Control(cc))
	statuses := sender.statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, 480, statuses[0].MHz)
	require.GreaterOrEqual(t, statuses[0].LoadPct, 0)
	require.LessOrEqual(t, statuses[0].LoadPct, 100)
}

func TestReporterAnswersPing(t *testing.T) {
	sender := &recordingSender{}
	r := &Reporter{Sender: sender}
	cc := &testCtl{now: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, r.Control(cc))

	cc.AddMessages(&intercore.Ping{})
	require.NoError(t, r.Control(cc))
	require.Contains(t, sender.sent, fx.Message(&intercore.Pong{}))
	require.Empty(t, cc.msgs)
}

func TestReporterTestLoad(t *testing.T) {
	sender := &recordingSender{}
	r := &Reporter{Sender: sender}
	cc := &testCtl{now: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, r.Control(cc))

	cc.AddMessages(&intercore.TestLoad{On: true})
	for i := 0; i < 5; i++ {
		cc.now = cc.now.Add(time.Second)
		require.NoError(t, r.Control(cc))
	}
	statuses := sender.statuses()
	require.NotEmpty(t, statuses)
	last := statuses[len(statuses)-1]
	require.GreaterOrEqual(t, last.LoadPct, 75)

	cc.AddMessages(&intercore.TestLoad{})
	for i := 0; i < 10; i++ {
		cc.now = cc.now.Add(time.Second)
		require.NoError(t, r.Control(cc))
	}
	statuses = sender.statuses()
	last = statuses[len(statuses)-1]
	require.LessOrEqual(t, last.LoadPct, 45)
}

func TestReporterBootSyncOnce(t *testing.T) {
	sender := &recordingSender{}
	r := &Reporter{Sender: sender, SyncDelay: 10 * time.Second}
	cc := &testCtl{now: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, r.Control(cc))
	require.NotContains(t, sender.sent, fx.Message(&intercore.SyncRequest{}))

	cc.now = cc.now.Add(11 * time.Second)
	require.NoError(t, r.Control(cc))

	cc.now = cc.now.Add(time.Minute)
	require.NoError(t, r.Control(cc))

	var syncs int
	for _, msg := range sender.sent {
		if _, ok := msg.(*intercore.SyncRequest); ok {
			syncs++
		}
	}
	require.Equal(t, 1, syncs)
}
