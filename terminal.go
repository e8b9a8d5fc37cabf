package paper_cmdline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	KeyNone keyKind = iota
	KeyChar
	KeyBackspace
	KeyDelete
	KeyTab
	KeyEnter
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyInterrupt // Ctrl-C
	KeyClosed    // Ctrl-D or the input stream ended
)

const ModNone keyMod = 0

const (
	ModCtrl keyMod = 1 << iota
	ModAlt
)

type (
	keyKind int
	keyMod  int

	// KeyEvent is one decoded key press. Ch is set for KeyChar.
	KeyEvent struct {
		Kind keyKind
		Ch   byte
		Mods keyMod
	}

	// Terminal is the raw terminal the line reader drives. NextKey blocks
	// until a key arrives; a closed stream is reported as a KeyClosed event
	// rather than an error.
	Terminal interface {
		EnableRawMode() error
		DisableRawMode() error
		NextKey() (KeyEvent, error)
		Flush() error
		io.Writer
	}

	ttyTerminal struct {
		in       *os.File
		out      *bufio.Writer
		reader   *keyDecoder
		oldState *term.State
	}

	// keyDecoder turns the byte stream of a raw-mode terminal into key
	// events. It understands the common xterm/vt100 CSI sequences.
	keyDecoder struct {
		r *bufio.Reader
	}
)

// NewTtyTerminal wraps a terminal input and output. Output is buffered and
// flushed by Flush, which the line reader calls after each redraw.
func NewTtyTerminal(in, out *os.File) Terminal {
	return &ttyTerminal{
		in:     in,
		out:    bufio.NewWriter(out),
		reader: newKeyDecoder(in),
	}
}

func (tt *ttyTerminal) EnableRawMode() error {
	if tt.oldState != nil {
		return nil
	}

	old, err := term.MakeRaw(int(tt.in.Fd()))
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	tt.oldState = old
	return nil
}

func (tt *ttyTerminal) DisableRawMode() error {
	if tt.oldState == nil {
		return nil
	}

	err := term.Restore(int(tt.in.Fd()), tt.oldState)
	tt.oldState = nil
	return err
}

func (tt *ttyTerminal) NextKey() (KeyEvent, error) {
	return tt.reader.next()
}

func (tt *ttyTerminal) Write(p []byte) (int, error) {
	return tt.out.Write(p)
}

func (tt *ttyTerminal) Flush() error {
	return tt.out.Flush()
}

func newKeyDecoder(r io.Reader) *keyDecoder {
	return &keyDecoder{r: bufio.NewReader(r)}
}

func (kd *keyDecoder) next() (KeyEvent, error) {
	b, err := kd.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return KeyEvent{Kind: KeyClosed}, nil
		}
		return KeyEvent{}, err
	}

	switch {
	case b == 3:
		return KeyEvent{Kind: KeyInterrupt, Mods: ModCtrl}, nil
	case b == 4:
		return KeyEvent{Kind: KeyClosed, Mods: ModCtrl}, nil
	case b == '\t':
		return KeyEvent{Kind: KeyTab}, nil
	case b == '\r' || b == '\n':
		return KeyEvent{Kind: KeyEnter}, nil
	case b == 127 || b == 8:
		return KeyEvent{Kind: KeyBackspace}, nil
	case b == 27:
		return kd.escape()
	case b < 32:
		// other control chords, e.g. Ctrl-A is 1
		return KeyEvent{Kind: KeyChar, Ch: 'a' + b - 1, Mods: ModCtrl}, nil
	default:
		return KeyEvent{Kind: KeyChar, Ch: b}, nil
	}
}

func (kd *keyDecoder) escape() (KeyEvent, error) {
	// a lone escape is only distinguishable when nothing else is queued
	if kd.r.Buffered() == 0 {
		return KeyEvent{Kind: KeyNone}, nil
	}

	b, err := kd.r.ReadByte()
	if err != nil {
		return KeyEvent{Kind: KeyNone}, nil
	}

	if b != '[' && b != 'O' {
		return KeyEvent{Kind: KeyChar, Ch: b, Mods: ModAlt}, nil
	}

	// CSI: optional numeric parameters then a final byte in 0x40-0x7E
	params := make([]byte, 0, 4)
	for {
		c, err := kd.r.ReadByte()
		if err != nil {
			return KeyEvent{Kind: KeyNone}, nil
		}
		if c >= 0x40 && c <= 0x7E {
			return csiKey(params, c), nil
		}
		params = append(params, c)
	}
}

func csiKey(params []byte, final byte) KeyEvent {
	mods := ModNone
	// modified arrows arrive as ESC [ 1 ; <mod> <final>
	if len(params) >= 3 && params[1] == ';' {
		switch params[2] {
		case '2':
			// shift alone does not make a chord
		case '3':
			mods = ModAlt
		default:
			mods = ModCtrl
		}
	}

	switch final {
	case 'A':
		return KeyEvent{Kind: KeyUp, Mods: mods}
	case 'B':
		return KeyEvent{Kind: KeyDown, Mods: mods}
	case 'C':
		return KeyEvent{Kind: KeyRight, Mods: mods}
	case 'D':
		return KeyEvent{Kind: KeyLeft, Mods: mods}
	case 'H':
		return KeyEvent{Kind: KeyHome, Mods: mods}
	case 'F':
		return KeyEvent{Kind: KeyEnd, Mods: mods}
	case '~':
		switch string(params) {
		case "1", "7":
			return KeyEvent{Kind: KeyHome}
		case "4", "8":
			return KeyEvent{Kind: KeyEnd}
		case "3":
			return KeyEvent{Kind: KeyDelete}
		}
	}
	return KeyEvent{Kind: KeyNone}
}
