package intercore

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"

	fx "github.com/duetlab/dash.go/pkg/framework"
)

// LineReadWriter is the line-buffered inter-core transport (external
// collaborator). ReadLine blocks until a full line is available;
// WriteLine appends the terminator itself.
type LineReadWriter interface {
	ReadLine() (string, error)
	WriteLine(string) error
}

// Sender sends typed messages to the peer core.
type Sender interface {
	Send(fx.Message) error
}

// IOLines adapts a raw io.ReadWriter (serial device, socket pair) to
// LineReadWriter.
type IOLines struct {
	rw   io.ReadWriter
	r    *bufio.Reader
	lock sync.Mutex
}

// NewIOLines creates an IOLines over rw.
func NewIOLines(rw io.ReadWriter) *IOLines {
	return &IOLines{rw: rw, r: bufio.NewReader(rw)}
}

// ReadLine implements LineReadWriter.
func (l *IOLines) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine implements LineReadWriter.
func (l *IOLines) WriteLine(line string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	_, err := io.WriteString(l.rw, line+"\n")
	return err
}

// Close implements Closer when the underlying stream supports it.
func (l *IOLines) Close() error {
	if closer, ok := l.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Link pumps inbound peer lines into loop messages and sends typed
// messages out. Reads happen on the Link's own goroutine; all
// protocol decisions happen on the loop thread.
type Link struct {
	RW LineReadWriter

	// Tap observes every inbound wire line (telemetry wiretap).
	// Called from the Link goroutine; may be nil.
	Tap func(line string)
}

// NewLink creates a Link over rw.
func NewLink(rw LineReadWriter) *Link {
	return &Link{RW: rw}
}

// Send implements Sender.
func (l *Link) Send(msg fx.Message) error {
	line, err := Line(msg)
	if err != nil {
		return err
	}
	return l.RW.WriteLine(line)
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	fn := func() error {
		for {
			line, err := l.RW.ReadLine()
			if err != nil {
				return err
			}
			if tap := l.Tap; tap != nil {
				tap(line)
			}
			msg, err := Parse(line)
			if err != nil {
				glog.V(2).Infof("intercore: %v", err)
				continue
			}
			loopCtl := fx.LoopCtlFrom(ctx)
			loopCtl.PostMessage(msg)
			loopCtl.TriggerNext()
		}
	}
	if closer, ok := l.RW.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, fn)
	}
	return fx.RunWithContext(ctx, fn)
}

// AddToLoop implements LoopAdder.
func (l *Link) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("intercore-link", l))
}
