package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/jimsnab/go-cmdline"
	"github.com/jimsnab/go-lane"
	paper "github.com/jimsnab/go-paper-cmdline"
	"github.com/jimsnab/go-paper-cmdline/loopback"
	"golang.org/x/term"
)

const appVersion = 1

type (
	mainEngine struct {
		mu          sync.Mutex
		args        cmdline.Values
		l           lane.Lane
		srv         loopback.PaperServer
		terminating bool
	}
)

func main() {
	cl := cmdline.NewCommandLine()

	cl.RegisterCommand(
		mainHandler,
		"~ [<string-file>]?Runs a paper cache server for development and testing. Specify <file> to persist the cache to disk.",
		"[--trace]?Enable trace logging",
		"[--port <int-port>]?Specify the TCP port to listen on. The default is 3145.",
		"[--endpoint <string-interface>]?Specify the network interface to listen on. The default is all network interfaces.",
		"[--max-size <string-size>]?Cache capacity such as 512MB or 10GiB. The default is unlimited.",
		"[--token <string-token>]?Require clients to authenticate with this token.",
		"[--policy <string-policy>]?Initial eviction policy: "+policyNames()+". The default is lfu.",
	)

	args := os.Args[1:] // exclude executable name in os.Args[0]
	err := cl.Process(args)
	if err != nil {
		cl.Help(err, "paper-loopback", args)
	}
}

func policyNames() string {
	names := make([]string, 0, len(paper.Policies))
	for _, p := range paper.Policies {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

func mainHandler(args cmdline.Values) error {
	eng := mainEngine{args: args}

	if err := eng.start(); err != nil {
		return err
	}
	eng.srv.WaitForTermination()

	return nil
}

func (eng *mainEngine) start() (err error) {
	eng.l = lane.NewLogLane(context.Background())

	isTrace := eng.args["--trace"].(bool)
	if !isTrace {
		eng.l.SetLogLevel(lane.LogLevelInfo)
	}

	opts := loopback.ServerOptions{
		AppVersion: appVersion,
		Token:      eng.args["token"].(string),
	}

	if eng.args["--max-size"].(bool) {
		if opts.MaxSize, err = humanize.ParseBytes(eng.args["size"].(string)); err != nil {
			return fmt.Errorf("invalid --max-size: %w", err)
		}
	}

	if eng.args["--policy"].(bool) {
		if opts.Policy, err = paper.ParsePolicy(strings.ToLower(eng.args["policy"].(string))); err != nil {
			return fmt.Errorf("invalid --policy: %w", err)
		}
	}

	eng.srv = loopback.NewServer(eng.l)
	err = eng.srv.StartServer(
		eng.args["interface"].(string),
		eng.args["port"].(int),
		eng.args["file"].(string),
		opts,
	)
	if err != nil {
		return
	}

	fmt.Printf("\n\npaper loopback server is now running on %s\n\nPress any key to quit\n\n", eng.srv.ServerAddr())

	// launch termination monitiors
	eng.killSignalMonitor()
	eng.exitKeyMonitor()
	return
}

func (eng *mainEngine) startTermination() {
	// ensure only one termination
	eng.mu.Lock()
	isTerminating := eng.terminating
	eng.terminating = true
	eng.mu.Unlock()

	if isTerminating {
		return
	}

	eng.srv.StopServer()
}

func (eng *mainEngine) killSignalMonitor() {
	// register a graceful termination handler
	sigs := make(chan os.Signal, 10)
	signal.Notify(sigs, os.Interrupt)

	go func() {
		sig := <-sigs
		eng.l.Infof("termination %s signaled for %s", sig, eng.srv.ServerAddr())
		eng.startTermination()
	}()
}

func (eng *mainEngine) exitKeyMonitor() {
	// Start a go routine to detect a keypress. Upon termination
	// triggered another way, this goroutine will leak. Go does
	// not give a reasonable way to cancel a blocking I/O call.
	go func() {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return
		}

		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			fmt.Println(err)
			return
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)

		b := make([]byte, 1)
		_, err = os.Stdin.Read(b)
		if err == nil {
			eng.startTermination()
		}
	}()
}
