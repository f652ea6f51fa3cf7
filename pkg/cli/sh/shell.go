// Package sh provides the interactive shell for operating dashboard
// boards over the broker.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/duetlab/dash.go/pkg/telemetry"
)

// Shell provides an ishell backed interactive shell over the broker.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Queue  *telemetry.Queue
	Device string
}

// DeviceInfo is one discovered board.
type DeviceInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	brokerURL  = "mqtt://localhost:1883/"
	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	if val := os.Getenv("DASH_MQTT_URL"); val != "" {
		brokerURL = val
	}
	flag.StringVar(&brokerURL, "mqtt", brokerURL, "MQTT broker URL.")
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other command providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(q *telemetry.Queue) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell: ishell.New(),
		Queue: q,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps a command func that requires a selected
// device.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Device == "" {
			c.Err(fmt.Errorf("no device selected"))
			return
		}
		fn(c)
	}
}

// Discover collects retained device announcements for wait.
func (s *Shell) Discover(wait time.Duration) ([]DeviceInfo, error) {
	var lock sync.Mutex
	found := make(map[string]DeviceInfo)
	sub := s.Queue.Sub("dash/+/meta", func(_ string, payload []byte) {
		var info DeviceInfo
		if err := json.Unmarshal(payload, &info); err != nil || info.ID == "" {
			return
		}
		lock.Lock()
		found[info.ID] = info
		lock.Unlock()
	})
	defer sub.Close()
	time.Sleep(wait)

	lock.Lock()
	defer lock.Unlock()
	infos := make([]DeviceInfo, 0, len(found))
	for _, info := range found {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Select picks a device for subsequent commands.
func (s *Shell) Select(id string) {
	s.Device = id
	s.Shell.SetPrompt(id + " > ")
}

// Deselect clears the device selection.
func (s *Shell) Deselect() {
	s.Device = ""
	s.Shell.SetPrompt(unconnectedPrompt)
}

// Command publishes one wire-format command line to the selected
// device.
func (s *Shell) Command(line string) error {
	token := s.Queue.Pub("dash/"+s.Device+"/cmd", []byte(line))
	token.Wait()
	return token.Error()
}

// AwaitLine publishes a command and waits for a matching inter-core
// line from the device.
func (s *Shell) AwaitLine(cmd, want string, timeout time.Duration) error {
	lineCh := make(chan struct{}, 1)
	sub := s.Queue.Sub("dash/"+s.Device+"/m4", func(_ string, payload []byte) {
		if string(payload) == want {
			select {
			case lineCh <- struct{}{}:
			default:
			}
		}
	})
	defer sub.Close()
	if err := s.Command(cmd); err != nil {
		return err
	}
	select {
	case <-lineCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for %s", want)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers boards announced on the broker.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infos, err := s.Discover(700 * time.Millisecond)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				out, err := json.Marshal(infos)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infos) == 0 {
				c.Println("No boards found")
				return
			}
			for _, info := range infos {
				c.Printf("%s (%s)\n", info.ID, info.Kind)
			}
		},
	}

	// ConnectCmd selects a board.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "ID",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) >= 1 {
				s.Select(c.Args[0])
				return
			}
			infos, err := s.Discover(700 * time.Millisecond)
			if err != nil {
				c.Err(err)
				return
			}
			switch len(infos) {
			case 0:
				c.Err(fmt.Errorf("no board discovered"))
			case 1:
				s.Select(infos[0].ID)
			default:
				if !s.Interactive {
					c.Err(fmt.Errorf("more than 1 board discovered in non-interactive mode"))
					return
				}
				items := make([]string, len(infos))
				for n, info := range infos {
					items[n] = info.ID
				}
				index := s.Shell.MultiChoice(items, "Which one to connect?")
				s.Select(infos[index].ID)
			}
		},
	}

	// DisconnectCmd clears the board selection.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Deselect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	q, err := telemetry.NewQueueFromURL(brokerURL)
	if err != nil {
		log.Fatalln(err)
	}
	token := q.Connect()
	token.Wait()
	if err = token.Error(); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()
	New(q).Run(flag.Args()...)
}
