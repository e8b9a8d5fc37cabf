package paper_cmdline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jimsnab/go-lane"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

type (
	// scriptedTerminal replays key events and records what is drawn.
	// When the script runs out the input reports closed.
	scriptedTerminal struct {
		keys         []KeyEvent
		out          bytes.Buffer
		raw          bool
		enableCount  int
		disableCount int
		failRaw      bool
		failWrite    bool
		failRead     bool
	}
)

func (st *scriptedTerminal) EnableRawMode() error {
	if st.failRaw {
		return errors.New("not a terminal")
	}
	st.raw = true
	st.enableCount++
	return nil
}

func (st *scriptedTerminal) DisableRawMode() error {
	st.raw = false
	st.disableCount++
	return nil
}

func (st *scriptedTerminal) NextKey() (KeyEvent, error) {
	if st.failRead {
		return KeyEvent{}, errors.New("read failed")
	}
	if len(st.keys) == 0 {
		return KeyEvent{Kind: KeyClosed}, nil
	}
	ev := st.keys[0]
	st.keys = st.keys[1:]
	return ev, nil
}

func (st *scriptedTerminal) Write(p []byte) (int, error) {
	if st.failWrite {
		return 0, errors.New("write failed")
	}
	return st.out.Write(p)
}

func (st *scriptedTerminal) Flush() error {
	return nil
}

func (st *scriptedTerminal) script(events ...KeyEvent) {
	st.keys = append(st.keys, events...)
}

func (st *scriptedTerminal) typeLine(text string) {
	st.typeText(text)
	st.script(KeyEvent{Kind: KeyEnter})
}

func (st *scriptedTerminal) typeText(text string) {
	for i := 0; i < len(text); i++ {
		st.script(KeyEvent{Kind: KeyChar, Ch: text[i]})
	}
}

func key(kind keyKind) KeyEvent {
	return KeyEvent{Kind: kind}
}

func readerSetup(t *testing.T) (st *scriptedTerminal, lr *LineReader) {
	l := lane.NewTestingLane(context.Background())
	st = &scriptedTerminal{}
	lr = NewLineReader(l, st, termenv.Ascii, "> ", NewParser().Hints()...)
	return
}

func TestReadLineSubmit(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeLine("get mykey")

	text, err := lr.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "get mykey", text)
	require.Equal(t, []string{"get mykey"}, lr.History())
	require.False(t, st.raw, "raw mode should be disabled")
	require.Equal(t, 1, st.enableCount)
	require.Equal(t, 1, st.disableCount)
}

func TestReadLineInterrupt(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeText("set k")
	st.script(KeyEvent{Kind: KeyInterrupt, Mods: ModCtrl})

	_, err := lr.ReadLine()
	require.ErrorIs(t, err, ErrInterrupted)
	require.Empty(t, lr.History())
	require.False(t, st.raw)

	// end of input behaves the same
	_, err = lr.ReadLine()
	require.ErrorIs(t, err, ErrInterrupted)
}

func TestReadLineEditing(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeText("gt")
	st.script(key(KeyLeft))
	st.typeText("e")
	st.script(key(KeyEnd))
	st.typeText(" keyy")
	st.script(key(KeyBackspace), key(KeyHome), key(KeyDelete))
	st.typeText("G")
	st.script(key(KeyRight), key(KeyRight), key(KeyEnter))

	text, err := lr.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "Get key", text)
}

func TestReadLineHistoryRecall(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeLine("get a")
	st.typeLine("get b")
	st.script(key(KeyUp), key(KeyUp), key(KeyEnter))

	for _, want := range []string{"get a", "get b", "get a"} {
		text, err := lr.ReadLine()
		require.NoError(t, err)
		require.Equal(t, want, text)
	}

	require.Equal(t, []string{"get a", "get b", "get a"}, lr.History())
}

func TestReadLineHistoryDownClears(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeLine("stats")
	st.script(key(KeyUp), key(KeyDown))
	st.typeLine("ping")

	_, err := lr.ReadLine()
	require.NoError(t, err)

	text, err := lr.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "ping", text)
}

func TestReadLineTypingLeavesRecall(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeLine("one")
	st.typeLine("two")

	// recall "two", edit it, then up goes to the newest entry again
	st.script(key(KeyUp))
	st.typeText("x")
	st.script(key(KeyUp), key(KeyEnter))

	lr.ReadLine()
	lr.ReadLine()

	text, err := lr.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "two", text)
}

func TestReadLineTabCompletion(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeText("ve")
	st.script(key(KeyTab), key(KeyEnter))

	text, err := lr.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "version ", text)

	// nothing but a placeholder is left to complete
	st.typeText("get")
	st.script(key(KeyTab), key(KeyEnter))

	text, err = lr.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "get", text)
}

func TestReadLineIgnoresChords(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeText("ping")
	st.script(
		KeyEvent{Kind: KeyChar, Ch: 'u', Mods: ModCtrl},
		KeyEvent{Kind: KeyLeft, Mods: ModAlt},
		KeyEvent{Kind: KeyNone},
		key(KeyEnter),
	)

	text, err := lr.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "ping", text)
}

func TestReadLineRedraw(t *testing.T) {
	st, lr := readerSetup(t)
	st.typeLine("ge")

	_, err := lr.ReadLine()
	require.NoError(t, err)

	drawn := st.out.String()
	require.True(t, strings.HasPrefix(drawn, "\r\x1b[K> \x1b[3G"), "initial prompt: %q", drawn)
	require.Contains(t, drawn, "\r\x1b[K> g\x1b[4G")
	require.Contains(t, drawn, "\r\x1b[K> get <key>\x1b[5G")
	require.True(t, strings.HasSuffix(drawn, "\r\x1b[K> ge\x1b[5G\r\n"), "submitted row: %q", drawn)
}

func TestReadLinePromptWidthIgnoresColor(t *testing.T) {
	l := lane.NewTestingLane(context.Background())
	st := &scriptedTerminal{}
	lr := NewLineReader(l, st, termenv.Ascii, "\x1b[32mhost:3145\x1b[0m> ")
	st.typeLine("x")

	_, err := lr.ReadLine()
	require.NoError(t, err)
	require.Contains(t, st.out.String(), "> x\x1b[13G")
}

func TestReadLineTerminalFailures(t *testing.T) {
	st, lr := readerSetup(t)
	st.failRaw = true
	_, err := lr.ReadLine()
	require.ErrorIs(t, err, ErrInternal)

	st, lr = readerSetup(t)
	st.failWrite = true
	st.typeLine("ping")
	_, err = lr.ReadLine()
	require.ErrorIs(t, err, ErrInternal)
	require.False(t, st.raw, "raw mode must be restored after a failure")

	st, lr = readerSetup(t)
	st.failRead = true
	_, err = lr.ReadLine()
	require.ErrorIs(t, err, ErrInterrupted)
}
