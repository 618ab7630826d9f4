package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/xbee.go/pkg/l0/comm"
	"github.com/robotalks/xbee.go/pkg/l1/env"
	"github.com/robotalks/xbee.go/pkg/l1/msgs"
	"github.com/robotalks/xbee.go/pkg/nerve"
)

// Shell provides ishell backed interactive shell over a radio.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Client *comm.Client

	echoLock  sync.Mutex
	echoUntil time.Time
	echoAll   bool
}

const (
	shellKey = "$shell"
	prompt   = "xbee > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	timeout    = 2 * time.Second

	// commands
	commands = []*ishell.Cmd{
		&SendCmd,
		&SendNoAckCmd,
		&BroadcastCmd,
		&ListenCmd,
		&StatsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Time to wait for transmit status.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     timeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// FormatRxPacket prints a received packet into friendly string for display.
func FormatRxPacket(pkt *comm.RxPacket) string {
	var w strings.Builder
	fmt.Fprintf(&w, "%s", pkt.Source)
	if pkt.IsBroadcast() {
		w.WriteString(" (broadcast)")
	}
	fmt.Fprintf(&w, ": %q", pkt.Data)
	if reading := nerve.ParseReading(string(pkt.Data)); !reading.Empty() {
		if o := reading.Orientation; o != nil {
			fmt.Fprintf(&w, " orientation=[w=%g x=%g y=%g z=%g]", o.W, o.X, o.Y, o.Z)
		}
		if e := reading.Environment; e != nil {
			fmt.Fprintf(&w, " temperature=%g pressure=%g", e.Temperature, e.Pressure)
		}
	}
	return w.String()
}

// FormatResult prints the outcome of a transmit request.
func FormatResult(id comm.FrameID, r comm.Result) string {
	if r.Err != nil {
		return fmt.Sprintf("frame %d: %v", id, r.Err)
	}
	return fmt.Sprintf("frame %d: delivered, retries=%d", id, r.Status.Retries)
}

func (s *Shell) print(v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			log.Println(err)
			return
		}
		s.Shell.Println(string(out))
		return
	}
	s.Shell.Println(text)
}

func (s *Shell) echoing() bool {
	s.echoLock.Lock()
	defer s.echoLock.Unlock()
	return s.echoAll || time.Now().Before(s.echoUntil)
}

func (s *Shell) receive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-s.Client.RxChan():
			if s.echoing() {
				s.print(msgs.NewRxPacket(pkt, time.Now()), FormatRxPacket(pkt))
			}
		}
	}
}

// Transmit sends data and waits for the transmit status.
func (s *Shell) Transmit(c *ishell.Context, dest comm.Address, data []byte) error {
	cmd := s.Client.Send(dest, data)
	r, ok := s.awaitResult(cmd)
	if !ok {
		c.Err(fmt.Errorf("frame %d: status timeout", cmd.FrameID()))
		return context.DeadlineExceeded
	}
	req := &msgs.TxRequest{Destination: dest.String(), Data: data}
	s.print(msgs.NewTxStatus(req, cmd.FrameID(), r), FormatResult(cmd.FrameID(), r))
	return r.Err
}

// awaitResult waits for the result of cmd until Timeout, then cancels it.
func (s *Shell) awaitResult(cmd *comm.Command) (comm.Result, bool) {
	select {
	case r := <-cmd.ResultChan():
		return r, true
	case <-time.After(s.Timeout):
		if s.Client.Cancel(cmd) {
			return comm.Result{}, false
		}
		// resolved while timing out.
		return <-cmd.ResultChan(), true
	}
}

// Run opens the radio and runs the shell.
func (s *Shell) Run(args ...string) {
	client, port := s.Config.MustOpenClient()
	defer port.Close()
	s.Client = client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := client.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("radio stopped: %v", err)
		}
	}()
	go s.receive(ctx)

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

func parseData(args []string) []byte {
	return []byte(strings.Join(args, " "))
}

func parseDest(c *ishell.Context) (comm.Address, []byte, bool) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("DEST required"))
		return 0, nil, false
	}
	dest, err := comm.ParseAddress(c.Args[0])
	if err != nil {
		c.Err(fmt.Errorf("Invalid DEST: %v", err))
		return 0, nil, false
	}
	return dest, parseData(c.Args[1:]), true
}

var (
	// SendCmd sends data and waits for the transmit status.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "DEST DATA...",
		Func: func(c *ishell.Context) {
			if dest, data, ok := parseDest(c); ok {
				ShellFrom(c).Transmit(c, dest, data)
			}
		},
	}

	// SendNoAckCmd sends data without transmit status.
	SendNoAckCmd = ishell.Cmd{
		Name:    "send-noack",
		Aliases: []string{"sn"},
		Help:    "DEST DATA...",
		Func: func(c *ishell.Context) {
			if dest, data, ok := parseDest(c); ok {
				if err := ShellFrom(c).Client.SendNoAck(dest, data); err != nil {
					c.Err(err)
				}
			}
		},
	}

	// BroadcastCmd sends data to all nodes.
	BroadcastCmd = ishell.Cmd{
		Name:    "broadcast",
		Aliases: []string{"b"},
		Help:    "DATA...",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Transmit(c, comm.BroadcastAddress, parseData(c.Args))
		},
	}

	// ListenCmd prints received packets.
	ListenCmd = ishell.Cmd{
		Name:    "listen",
		Aliases: []string{"l"},
		Help:    "[SECONDS|on|off]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var dur time.Duration
			if len(c.Args) > 0 {
				switch c.Args[0] {
				case "on", "off":
					s.echoLock.Lock()
					s.echoAll = c.Args[0] == "on"
					s.echoLock.Unlock()
					return
				}
				secs, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil {
					c.Err(fmt.Errorf("Invalid SECONDS: %v", err))
					return
				}
				dur = time.Duration(secs * float64(time.Second))
			} else {
				dur = 10 * time.Second
			}
			s.echoLock.Lock()
			s.echoUntil = time.Now().Add(dur)
			s.echoLock.Unlock()
			time.Sleep(dur)
		},
	}

	// StatsCmd prints decoder counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			stats := s.Client.Conn().Stats()
			s.print(stats, fmt.Sprintf("frames=%d checksum-errors=%d length-errors=%d short=%d unknown=%d resets=%d",
				stats.Frames, stats.ChecksumErrors, stats.LengthErrors, stats.ShortFrames, stats.UnknownTypes, stats.Resets))
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
