package paper_cmdline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jimsnab/go-lane"
	"github.com/muesli/termenv"
)

const defaultReconnectDelay = 250 * time.Millisecond

type (
	dialFn func(l lane.Lane, addr string, timeout time.Duration) (*CacheClient, error)

	// Shell runs one interactive session against a cache server: read a
	// line, parse it, run it locally or send it, print the result.
	Shell struct {
		l              lane.Lane
		cfg            *Config
		term           Terminal
		out            *termenv.Output
		parser         *Parser
		reader         *LineReader
		client         *CacheClient
		dial           dialFn
		reconnectDelay time.Duration
	}
)

func NewShell(l lane.Lane, t Terminal, cfg *Config, profile termenv.Profile) *Shell {
	out := termenv.NewOutput(t, termenv.WithProfile(profile))
	parser := NewParser()

	sh := &Shell{
		l:              l,
		cfg:            cfg,
		term:           t,
		out:            out,
		parser:         parser,
		dial:           Dial,
		reconnectDelay: defaultReconnectDelay,
	}

	sh.reader = NewLineReader(l, t, profile, sh.prompt(), parser.Hints()...)
	return sh
}

// prompt renders as "host:port> " with the port zero-padded to 4 digits.
func (sh *Shell) prompt() string {
	addr := fmt.Sprintf("%s:%04d", sh.cfg.Host, sh.cfg.Port)
	return sh.out.String(addr).Foreground(termenv.ANSIGreen).String() + "> "
}

// Connect opens the session's connection. The shell needs one before Run.
func (sh *Shell) Connect() (err error) {
	client, err := sh.dial(sh.l, sh.cfg.Addr(), sh.cfg.ConnectTimeout())
	if err != nil {
		return
	}
	sh.client = client
	return
}

func (sh *Shell) Close() {
	if sh.client != nil {
		sh.client.Close()
		sh.client = nil
	}
}

// Run is the read loop. It returns nil when the user quits or closes the
// terminal, ErrDisconnected when the server is gone and cannot be reached
// again, or ErrInternal when the terminal fails.
func (sh *Shell) Run() error {
	if sh.client == nil {
		if err := sh.Connect(); err != nil {
			return err
		}
	}
	defer sh.Close()

	for {
		line, err := sh.reader.ReadLine()
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				sh.println(ErrInterrupted.Error())
				return nil
			}
			sh.l.Errorf("terminal failure: %s", err)
			sh.printError(err)
			return err
		}

		quit, err := sh.Execute(line)
		if err != nil {
			return err
		}
		if quit {
			sh.println(ErrInterrupted.Error())
			return nil
		}
	}
}

// Execute runs one submitted line. Input and decode errors are printed and
// swallowed; quit is true when the line asks to end the session. A lost
// connection is re-established before returning. Without a connection,
// server commands fail with ErrDisconnected.
func (sh *Shell) Execute(line string) (quit bool, err error) {
	cmd, err := sh.parser.ParseLine(line)
	if err != nil {
		if !IsRecoverable(err) {
			return
		}
		sh.printError(err)
		return false, nil
	}

	if cmd.IsLocal() {
		return sh.runLocal(cmd)
	}

	if sh.client == nil {
		return true, ErrDisconnected
	}

	sh.l.Tracef("executing %s", cmd)

	resp, err := sh.client.Send(cmd)
	if err == nil {
		sh.printResponse(cmd, resp)
		return
	}

	sh.printError(err)
	if errors.Is(err, ErrDisconnected) || !sh.client.Connected() {
		if err = sh.reconnect(); err != nil {
			return true, err
		}
	}
	return false, nil
}

func (sh *Shell) runLocal(cmd Command) (quit bool, err error) {
	switch cmd.Op {
	case OpHelp:
		sh.printHelp(cmd.Key)

	case OpClear:
		sh.out.ClearScreen()
		sh.out.MoveCursor(1, 1)
		sh.flush()

	case OpQuit:
		quit = true
	}
	return
}

func (sh *Shell) printHelp(filter string) {
	shown := 0
	for _, template := range sh.parser.Hints() {
		name, _, _ := strings.Cut(template, " ")
		if filter != "" && name != filter {
			continue
		}
		sh.println("  " + template)
		shown++
	}

	if shown == 0 {
		sh.printError(ErrUnrecognizedCommand)
	}
}

// reconnect retries the server with doubling delays, up to the configured
// number of attempts.
func (sh *Shell) reconnect() error {
	sh.Close()

	delay := sh.reconnectDelay
	for attempt := 1; attempt <= sh.cfg.ReconnectAttempts; attempt++ {
		sh.println(fmt.Sprintf("reconnecting to %s (attempt %d of %d)", sh.cfg.Addr(), attempt, sh.cfg.ReconnectAttempts))
		time.Sleep(delay)
		delay *= 2

		if err := sh.Connect(); err != nil {
			sh.l.Debugf("reconnect attempt %d failed: %s", attempt, err)
			continue
		}

		sh.l.Infof("reconnected to %s", sh.cfg.Addr())
		return nil
	}

	return ErrDisconnected
}

func (sh *Shell) printResponse(cmd Command, resp *Response) {
	if !resp.OK {
		sh.printFailure(resp.Message)
		return
	}

	if cmd.Op == OpSize {
		sh.println(formatSize(resp.Message))
		return
	}
	sh.println(resp.Message)
}

// formatSize renders a byte count reply as "1.2 kB (1200 B)"; anything
// that is not a number is shown as is.
func formatSize(message string) string {
	size, err := strconv.ParseUint(message, 10, 64)
	if err != nil {
		return message
	}
	return fmt.Sprintf("%s (%d B)", humanize.Bytes(size), size)
}

func (sh *Shell) printError(err error) {
	sh.printFailure(err.Error())
}

func (sh *Shell) printFailure(message string) {
	label := sh.out.String("Err").Foreground(termenv.ANSIRed).String()
	sh.println(label + ": " + message)
}

func (sh *Shell) println(s string) {
	if _, err := sh.term.Write([]byte(s + "\n")); err != nil {
		sh.l.Debugf("terminal write: %s", err)
		return
	}
	sh.flush()
}

func (sh *Shell) flush() {
	if err := sh.term.Flush(); err != nil {
		sh.l.Debugf("terminal flush: %s", err)
	}
}
