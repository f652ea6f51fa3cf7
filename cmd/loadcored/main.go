package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net"
	"os"

	"github.com/golang/glog"

	fx "github.com/duetlab/dash.go/pkg/framework"
	"github.com/duetlab/dash.go/pkg/intercore"
	"github.com/duetlab/dash.go/pkg/loadcore"
)

var (
	listenAddr = "127.0.0.1:5760"
	coreMHz    = 480
)

func init() {
	if val := os.Getenv("DASH_LISTEN"); val != "" {
		listenAddr = val
	}
	flag.StringVar(&listenAddr, "listen", listenAddr, "Address to accept the application core on.")
	flag.IntVar(&coreMHz, "mhz", coreMHz, "Reported core clock in MHz.")
}

// cancelOnExit ends the serving loop when the link goes away.
type cancelOnExit struct {
	fx.Runnable
	cancel func()
}

func (c cancelOnExit) Run(ctx context.Context) error {
	err := c.Runnable.Run(ctx)
	c.cancel()
	return err
}

func serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	glog.Infof("peer connected: %s", conn.RemoteAddr())

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	link := intercore.NewLink(intercore.NewIOLines(conn))
	loop := fx.NewLoop()
	loop.AddRunnable(fx.NamedRun("intercore-link", cancelOnExit{Runnable: link, cancel: cancel}))
	loop.AddController(fx.PrLvControl, &loadcore.Reporter{Sender: link, MHz: coreMHz})

	if err := loop.Run(connCtx); err != nil && err != context.Canceled {
		glog.Warningf("loop: %v", err)
	}
	glog.Infof("peer gone: %s", conn.RemoteAddr())
}

func main() {
	flag.Parse()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("listening on %s", listenAddr)

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("acceptor", acceptor{ln: ln}))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

type acceptor struct {
	ln net.Listener
}

func (a acceptor) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, a.ln, func() error {
		for {
			conn, err := a.ln.Accept()
			if err != nil {
				return err
			}
			serve(ctx, conn)
		}
	})
}
