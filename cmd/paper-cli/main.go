package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jimsnab/go-cmdline"
	"github.com/jimsnab/go-lane"
	paper "github.com/jimsnab/go-paper-cmdline"
	"github.com/muesli/termenv"
)

var errConnect = errors.New("can't connect")

func main() {
	cl := cmdline.NewCommandLine()

	cl.RegisterCommand(
		mainHandler,
		"~?Opens an interactive shell on a paper cache server.",
		"[--host <string-host>]?Server host name or address. The default is 127.0.0.1.",
		"[--port <int-port>]?Server TCP port. The default is 3145.",
		"[--config <string-config>]?Path of the TOML config file. The default is config.toml in the paper-cli config directory.",
		"[--trace]?Enable trace logging",
	)

	args := os.Args[1:] // exclude executable name in os.Args[0]
	err := cl.Process(args)
	if err != nil {
		if errors.Is(err, errConnect) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cl.Help(err, "paper-cli", args)
	}
}

func mainHandler(args cmdline.Values) error {
	l := lane.NewLogLane(context.Background())

	isTrace := args["--trace"].(bool)
	if !isTrace {
		l.SetLogLevel(lane.LogLevelError)
	}

	cfg, err := paper.LoadConfig(args["config"].(string))
	if err != nil {
		return err
	}

	if args["--host"].(bool) {
		cfg.Host = args["host"].(string)
	}
	if args["--port"].(bool) {
		cfg.Port = args["port"].(int)
	}

	profile := termenv.Ascii
	if *cfg.Color {
		profile = termenv.ColorProfile()
	}

	sh := paper.NewShell(l, paper.NewTtyTerminal(os.Stdin, os.Stdout), cfg, profile)
	if err = sh.Connect(); err != nil {
		return fmt.Errorf("%w to %s: %s", errConnect, cfg.Addr(), err)
	}

	// the shell reports its own failures; a lost server is not a usage error
	if err = sh.Run(); err != nil {
		l.Debugf("session ended: %s", err)
	}
	return nil
}
