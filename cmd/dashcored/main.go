package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"net"
	"os"
	"strings"

	"github.com/duetlab/dash.go/pkg/dash"
	fx "github.com/duetlab/dash.go/pkg/framework"
	"github.com/duetlab/dash.go/pkg/intercore"
	"github.com/duetlab/dash.go/pkg/telemetry"
	"github.com/duetlab/dash.go/pkg/telemetry/ws"
	"github.com/duetlab/dash.go/pkg/timesync"
)

var (
	peerAddr   = "127.0.0.1:5760"
	mqttURL    = ""
	recordPath = "dash-time.rec"
)

func init() {
	if val := os.Getenv("DASH_PEER"); val != "" {
		peerAddr = val
	}
	if val := os.Getenv("DASH_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&peerAddr, "peer", peerAddr, "Compute core endpoint: host:port, ws://..., or 'stdio'.")
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL, empty disables telemetry.")
	flag.StringVar(&recordPath, "record", recordPath, "Path of the persisted time record.")
	dash.SetupFlags()
}

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func dialPeer(addr string) (intercore.LineReadWriter, error) {
	switch {
	case addr == "stdio":
		return intercore.NewIOLines(stdio{}), nil
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return ws.Dial(addr, "http://localhost/")
	default:
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		return intercore.NewIOLines(conn), nil
	}
}

func main() {
	flag.Parse()

	profile, err := dash.NewConfig().Profile()
	if err != nil {
		log.Fatalln(err)
	}

	clock := timesync.NewOffsetClock()
	store := &timesync.Store{Clock: clock, Blob: &timesync.FileStore{Path: recordPath}}
	store.WarmStart()

	orch := timesync.New(
		timesync.HostLink{},
		&timesync.DNSResolver{Server: profile.DNSServer, Port: 123},
		&timesync.TextSource{Hosts: profile.DateHosts},
		store,
		timesync.Config{FastAddrs: profile.FastAddrs, PoolName: profile.PoolName},
	)

	rw, err := dialPeer(peerAddr)
	if err != nil {
		log.Fatalln(err)
	}
	link := intercore.NewLink(rw)
	live := &intercore.Liveness{Sender: link, Requester: orch}

	board := &dash.Controller{
		Clock:            clock,
		Peer:             live,
		Requester:        orch,
		Sender:           link,
		TZOffset:         profile.TZOffset(),
		BacklightTimeout: profile.BacklightTimeout(),
	}
	if dash.Default().Console {
		board.Display = &dash.ConsoleDisplay{Out: os.Stdout}
	}

	loop := fx.NewLoop().Add(link, live, orch, board)

	if mqttURL != "" {
		q, err := telemetry.NewQueueFromURL(mqttURL)
		if err != nil {
			log.Fatalln(err)
		}
		bridge := telemetry.NewBridge(q, telemetry.DeviceID())
		bridge.Sender = link
		bridge.Requester = orch
		bridge.StatusFn = board.Status
		link.Tap = bridge.TapLine
		q.Connect()
		defer q.Close()
		loop.Add(bridge)
	}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
