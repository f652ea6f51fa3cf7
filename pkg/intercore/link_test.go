package intercore

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/duetlab/dash.go/pkg/framework"
)

type collectMsgs struct {
	lock sync.Mutex
	msgs []fx.Message
}

func (c *collectMsgs) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		mctx.MessageTaken()
		c.lock.Lock()
		c.msgs = append(c.msgs, mctx.CurrentMessage())
		c.lock.Unlock()
	}))
	return nil
}

func (c *collectMsgs) snapshot() []fx.Message {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]fx.Message(nil), c.msgs...)
}

func TestLinkPumpsLinesIntoLoop(t *testing.T) {
	here, there := net.Pipe()
	defer there.Close()

	link := NewLink(NewIOLines(here))
	var tapped []string
	var tapLock sync.Mutex
	link.Tap = func(line string) {
		tapLock.Lock()
		tapped = append(tapped, line)
		tapLock.Unlock()
	}
	sink := &collectMsgs{}

	loop := fx.NewLoop()
	loop.Interval = time.Millisecond
	loop.Add(link)
	loop.AddController(fx.PrLvControl, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	_, err := there.Write([]byte("M4:READY\nM4,42,480\nbogus line\nM4:HB\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 3
	}, 2*time.Second, time.Millisecond)

	msgs := sink.snapshot()
	require.Equal(t, &Ready{}, msgs[0])
	require.Equal(t, &Status{LoadPct: 42, MHz: 480}, msgs[1])
	require.Equal(t, &Heartbeat{}, msgs[2])

	tapLock.Lock()
	require.Equal(t, []string{"M4:READY", "M4,42,480", "bogus line", "M4:HB"}, tapped)
	tapLock.Unlock()

	cancel()
	<-done
}

func TestLinkSendWritesWireLine(t *testing.T) {
	here, there := net.Pipe()
	defer here.Close()
	defer there.Close()

	link := NewLink(NewIOLines(here))
	go func() {
		link.Send(&TestLoad{On: true})
		link.Send(&Ping{})
	}()

	peer := NewIOLines(there)
	line, err := peer.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "TESTLOAD,1", line)
	line, err = peer.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "PING", line)
}
