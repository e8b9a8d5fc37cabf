package paper_cmdline

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jimsnab/go-lane"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

type (
	// fakeServer answers shell commands over in-memory pipes. reply returns
	// the raw response frame; nil drops the connection.
	fakeServer struct {
		mu       sync.Mutex
		reply    func(cmd Command) []byte
		received []Command
		dials    int
		refuse   bool
	}
)

func reply(cmd Command, ok bool, message string) []byte {
	return EncodeResponse(cmd, &Response{OK: ok, Message: message})
}

func (fs *fakeServer) dial(l lane.Lane, addr string, timeout time.Duration) (*CacheClient, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.dials++
	if fs.refuse {
		return nil, errors.New("connection refused")
	}

	client, server := net.Pipe()
	go fs.serve(server)
	return newCacheClient(l, client, addr, 5*time.Second), nil
}

func (fs *fakeServer) serve(cxn net.Conn) {
	defer cxn.Close()

	inbound := []byte{}
	buffer := make([]byte, 1024)
	for {
		cmd, n, err := DecodeCommand(inbound)
		if err == nil {
			inbound = inbound[n:]

			fs.mu.Lock()
			fs.received = append(fs.received, cmd)
			fs.mu.Unlock()

			frame := fs.reply(cmd)
			if frame == nil {
				return
			}
			if _, err = cxn.Write(frame); err != nil {
				return
			}
			continue
		}

		if !errors.Is(err, ErrIncompleteFrame) {
			return
		}

		n, err = cxn.Read(buffer)
		if err != nil {
			return
		}
		inbound = append(inbound, buffer[:n]...)
	}
}

func (fs *fakeServer) commands() []Command {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Command(nil), fs.received...)
}

func shellSetup(t *testing.T, replyFn func(cmd Command) []byte) (st *scriptedTerminal, fs *fakeServer, sh *Shell) {
	l := lane.NewTestingLane(context.Background())

	st = &scriptedTerminal{}
	fs = &fakeServer{reply: replyFn}

	cfg := DefaultConfig()
	cfg.ReconnectAttempts = 2

	sh = NewShell(l, st, cfg, termenv.Ascii)
	sh.dial = fs.dial
	sh.reconnectDelay = time.Millisecond
	return
}

// memoryCache is a tiny server behavior for session tests.
func memoryCache() func(cmd Command) []byte {
	values := map[string]string{}
	return func(cmd Command) []byte {
		switch cmd.Op {
		case OpPing:
			return reply(cmd, true, "pong")
		case OpSet:
			values[cmd.Key] = cmd.Value
			return reply(cmd, true, "done")
		case OpGet:
			if v, exists := values[cmd.Key]; exists {
				return reply(cmd, true, v)
			}
			return reply(cmd, false, "key not found")
		case OpSize:
			if v, exists := values[cmd.Key]; exists {
				return reply(cmd, true, strconv.Itoa(len(v)))
			}
			return reply(cmd, false, "key not found")
		case OpStats:
			return EncodeResponse(cmd, &Response{OK: true, Stats: &Stats{MaxSize: 1000, UsedSize: 5, Policy: "lru"}})
		}
		return reply(cmd, false, "unsupported")
	}
}

func TestShellSession(t *testing.T) {
	st, fs, sh := shellSetup(t, memoryCache())
	st.typeLine("ping")
	st.typeLine(`set greeting "hello world"`)
	st.typeLine("get greeting")
	st.typeLine("size greeting")
	st.typeLine("get missing")
	st.typeLine("frobnicate")
	st.typeLine("")
	st.typeLine("stats")
	st.typeLine("quit")

	require.NoError(t, sh.Run())

	out := st.out.String()
	require.Contains(t, out, "\npong\n")
	require.Contains(t, out, "\ndone\n")
	require.Contains(t, out, "\nhello world\n")
	require.Contains(t, out, "\n11 B (11 B)\n")
	require.Contains(t, out, "\nErr: key not found\n")
	require.Contains(t, out, "\nErr: command not recognized\n")
	require.Contains(t, out, "\nErr: please enter a command\n")
	require.Contains(t, out, "\npaper stats\nmax_size:\t1.0 kB (1000 B)\n")
	require.Contains(t, out, "policy:\t\tlru\n")
	require.Contains(t, out, "\nclosing connection\n")

	// rejected lines never reach the server
	ops := []Op{}
	for _, cmd := range fs.commands() {
		ops = append(ops, cmd.Op)
	}
	require.Equal(t, []Op{OpPing, OpSet, OpGet, OpSize, OpGet, OpStats}, ops)
	require.Equal(t, "hello world", fs.commands()[1].Value)
}

func TestShellPrompt(t *testing.T) {
	st, _, sh := shellSetup(t, memoryCache())
	sh.cfg.Host = "localhost"
	sh.cfg.Port = 80
	sh.reader = NewLineReader(sh.l, st, termenv.Ascii, sh.prompt())

	require.NoError(t, sh.Run())
	require.Contains(t, st.out.String(), "localhost:0080> ")
}

func TestShellEndOfInput(t *testing.T) {
	st, fs, sh := shellSetup(t, memoryCache())

	require.NoError(t, sh.Run())
	require.Contains(t, st.out.String(), "closing connection\n")
	require.NotContains(t, st.out.String(), "Err:")
	require.Empty(t, fs.commands())
}

func TestShellHelp(t *testing.T) {
	st, fs, sh := shellSetup(t, memoryCache())
	st.typeLine("help")
	st.typeLine("h ttl")
	st.typeLine("help nothing")

	require.NoError(t, sh.Run())

	out := st.out.String()
	require.Contains(t, out, "  set <key> <value> [ttl]\n")
	require.Contains(t, out, "  ttl <key> [ttl]\n")
	require.Contains(t, out, "Err: command not recognized\n")
	require.Empty(t, fs.commands())
}

func TestShellClear(t *testing.T) {
	st, _, sh := shellSetup(t, memoryCache())
	st.typeLine("clear")

	require.NoError(t, sh.Run())
	require.Contains(t, st.out.String(), "\x1b[2J")
}

func TestShellReconnect(t *testing.T) {
	dropped := false
	st, fs, sh := shellSetup(t, func(cmd Command) []byte {
		if cmd.Op == OpGet && !dropped {
			dropped = true
			return nil
		}
		return reply(cmd, true, "pong")
	})
	st.typeLine("get k")
	st.typeLine("ping")

	require.NoError(t, sh.Run())

	out := st.out.String()
	require.Contains(t, out, "Err: disconnected\n")
	require.Contains(t, out, "reconnecting to 127.0.0.1:3145 (attempt 1 of 2)\n")
	require.Contains(t, out, "\npong\n")

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Equal(t, 2, fs.dials)
}

func TestShellReconnectGivesUp(t *testing.T) {
	st, fs, sh := shellSetup(t, func(cmd Command) []byte {
		return nil
	})
	st.typeLine("ping")
	st.typeLine("ping")

	require.NoError(t, sh.Connect())
	fs.mu.Lock()
	fs.refuse = true
	fs.mu.Unlock()

	err := sh.Run()
	require.ErrorIs(t, err, ErrDisconnected)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Equal(t, 3, fs.dials)
	require.Len(t, fs.received, 1)
}

// badFlagFrame is a response with an invalid ok flag followed by an
// otherwise well-formed string payload.
func badFlagFrame(message string) []byte {
	frame := EncodeResponse(Command{Op: OpPing}, &Response{OK: true, Message: message})
	frame[0] = 0x02
	return frame
}

func TestShellBadResponseReconnects(t *testing.T) {
	first := true
	st, fs, sh := shellSetup(t, func(cmd Command) []byte {
		if first {
			first = false
			return badFlagFrame("pong")
		}
		return reply(cmd, true, "pong")
	})
	st.typeLine("ping")
	st.typeLine("ping")

	require.NoError(t, sh.Run())

	out := st.out.String()
	require.Contains(t, out, "Err: internal error: invalid response flag 2\n")
	require.Contains(t, out, "reconnecting to 127.0.0.1:3145 (attempt 1 of 2)\n")
	require.Contains(t, out, "\npong\n")
	require.NotContains(t, out, "invalid response flag 4")

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Equal(t, 2, fs.dials)
	require.Len(t, fs.received, 2)
}

func TestShellExecuteWithoutConnection(t *testing.T) {
	st, fs, sh := shellSetup(t, memoryCache())

	quit, err := sh.Execute("ping")
	require.True(t, quit)
	require.ErrorIs(t, err, ErrDisconnected)

	// session commands need no server
	quit, err = sh.Execute("help ping")
	require.False(t, quit)
	require.NoError(t, err)
	require.Contains(t, st.out.String(), "  ping\n")

	require.Empty(t, fs.commands())
}

func TestShellConnectFailure(t *testing.T) {
	_, fs, sh := shellSetup(t, memoryCache())
	fs.refuse = true

	require.Error(t, sh.Run())
}
