// Package board registers the board operation commands.
package board

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/duetlab/dash.go/pkg/cli/sh"
	"github.com/duetlab/dash.go/pkg/dash"
	"github.com/duetlab/dash.go/pkg/intercore"
)

var (
	// PingCmd probes the compute core through the board.
	PingCmd = ishell.Cmd{
		Name: "ping",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			start := time.Now()
			line, _ := intercore.Line(&intercore.Ping{})
			pong, _ := intercore.Line(&intercore.Pong{})
			if err := s.AwaitLine(line, pong, 2*time.Second); err != nil {
				c.Err(err)
				return
			}
			c.Printf("pong in %s\n", time.Since(start).Round(time.Millisecond))
		}),
	}

	// TestLoadCmd toggles the synthetic load on the compute core.
	TestLoadCmd = ishell.Cmd{
		Name:    "testload",
		Aliases: []string{"tl"},
		Help:    "on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 || (c.Args[0] != "on" && c.Args[0] != "off") {
				c.Err(fmt.Errorf("usage: testload on|off"))
				return
			}
			line, _ := intercore.Line(&intercore.TestLoad{On: c.Args[0] == "on"})
			if err := sh.ShellFrom(c).Command(line); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// SyncCmd requests an immediate time sync.
	SyncCmd = ishell.Cmd{
		Name: "sync",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			line, _ := intercore.Line(&intercore.SyncRequest{})
			if err := sh.ShellFrom(c).Command(line); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// StatusCmd prints the retained dashboard snapshot.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			payloadCh := make(chan []byte, 1)
			sub := s.Queue.Sub("dash/"+s.Device+"/status", func(_ string, payload []byte) {
				select {
				case payloadCh <- append([]byte(nil), payload...):
				default:
				}
			})
			defer sub.Close()
			select {
			case payload := <-payloadCh:
				if s.OutputJSON {
					c.Println(string(payload))
					return
				}
				var st dash.Status
				if err := json.Unmarshal(payload, &st); err != nil {
					c.Err(err)
					return
				}
				c.Println(st.Line())
			case <-time.After(2 * time.Second):
				c.Err(fmt.Errorf("no status from %s", s.Device))
			}
		}),
	}

	// WatchCmd tails raw inter-core lines for a while.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[SECONDS]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			wait := 5 * time.Second
			if len(c.Args) >= 1 {
				var secs int
				if _, err := fmt.Sscanf(c.Args[0], "%d", &secs); err != nil || secs <= 0 {
					c.Err(fmt.Errorf("usage: watch [SECONDS]"))
					return
				}
				wait = time.Duration(secs) * time.Second
			}
			sub := s.Queue.Sub("dash/"+s.Device+"/m4", func(_ string, payload []byte) {
				c.Println(string(payload))
			})
			defer sub.Close()
			time.Sleep(wait)
		}),
	}
)

func init() {
	sh.AddCmds(
		&PingCmd,
		&TestLoadCmd,
		&SyncCmd,
		&StatusCmd,
		&WatchCmd,
	)
}
