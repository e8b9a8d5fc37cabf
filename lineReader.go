package paper_cmdline

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"
	"github.com/jimsnab/go-lane"
	"github.com/muesli/termenv"
)

// The reader sits in rsEditing until the line is submitted or the input
// closes; both end states are terminal for one ReadLine call.
const (
	rsEditing   readerState = iota // can progress to rsSubmitted or rsClosed
	rsSubmitted                    // enter pressed, line handed off
	rsClosed                       // interrupt or end of input
)

type (
	readerState int

	// LineReader edits one line at a time on a raw terminal, with history
	// recall and ghost-text hints. A LineReader belongs to one shell
	// session; its history and hints are not shared.
	LineReader struct {
		l           lane.Lane
		term        Terminal
		out         *termenv.Output
		prompt      string
		promptWidth int
		history     *history
		hints       *hinter
		line        *lineBuffer
		state       readerState
	}
)

// NewLineReader creates a reader that draws prompt on t. The templates
// become the hint set, in the order given. profile selects how prompt and
// hint colors are rendered; termenv.Ascii renders no escapes.
func NewLineReader(l lane.Lane, t Terminal, profile termenv.Profile, prompt string, templates ...string) *LineReader {
	return &LineReader{
		l:           l,
		term:        t,
		out:         termenv.NewOutput(t, termenv.WithProfile(profile)),
		prompt:      prompt,
		promptWidth: len(ansi.Strip(prompt)),
		history:     newHistory(),
		hints:       newHinter(templates...),
		line:        newLineBuffer(),
	}
}

func (lr *LineReader) History() []string {
	return lr.history.Entries()
}

func (lr *LineReader) Hints() []string {
	return lr.hints.Templates()
}

// ReadLine blocks until the user submits a line, returning its text. An
// interrupt or the end of terminal input returns ErrInterrupted, which
// ends the caller's read loop. Terminal failures return ErrInternal.
func (lr *LineReader) ReadLine() (text string, err error) {
	if err = lr.term.EnableRawMode(); err != nil {
		lr.l.Debugf("enable raw mode: %s", err)
		return "", internalError("could not enable terminal raw mode")
	}

	lr.line = newLineBuffer()
	lr.state = rsEditing

	err = lr.redraw(true)
	for err == nil && lr.state == rsEditing {
		var ev KeyEvent
		ev, err = lr.term.NextKey()
		if err != nil {
			// the terminal is gone; treat it as the end of input
			lr.l.Debugf("key read failed: %s", err)
			ev = KeyEvent{Kind: KeyClosed}
			err = nil
		}

		lr.onKey(ev)

		switch lr.state {
		case rsEditing:
			err = lr.redraw(true)
		case rsSubmitted:
			if err = lr.redraw(false); err == nil {
				err = lr.write("\r\n")
			}
		case rsClosed:
			err = lr.write("\r\n")
		}
	}

	if rawErr := lr.term.DisableRawMode(); rawErr != nil {
		lr.l.Debugf("disable raw mode: %s", rawErr)
		if err == nil {
			err = internalError("could not disable terminal raw mode")
		}
	}

	if err != nil {
		return "", err
	}

	if lr.state == rsClosed {
		return "", ErrInterrupted
	}

	text = lr.line.String()
	lr.l.Tracef("line submitted: %q", text)
	return text, nil
}

func (lr *LineReader) onKey(ev KeyEvent) {
	switch ev.Kind {
	case KeyInterrupt, KeyClosed:
		lr.state = rsClosed
		return
	}

	if ev.Mods != ModNone {
		return
	}

	switch ev.Kind {
	case KeyChar:
		lr.line.Insert(ev.Ch)
		lr.history.MoveToEnd()

	case KeyBackspace:
		lr.line.EraseLeft()

	case KeyDelete:
		lr.line.EraseRight()

	case KeyLeft:
		lr.line.MoveLeft()

	case KeyRight:
		lr.line.MoveRight()

	case KeyHome:
		lr.line.MoveStart()

	case KeyEnd:
		lr.line.MoveEnd()

	case KeyUp:
		if entry, ok := lr.history.Prev(); ok {
			lr.line.Set(entry)
		}

	case KeyDown:
		if entry, ok := lr.history.Next(); ok {
			lr.line.Set(entry)
		} else {
			lr.line.Clear()
		}

	case KeyTab:
		if hint, ok := lr.hints.PartialHint(lr.line.String()); ok {
			lr.line.MoveEnd()
			lr.line.InsertString(hint + " ")
		}

	case KeyEnter:
		lr.history.MoveToEnd()
		lr.history.Push(lr.line.String())
		lr.state = rsSubmitted
	}
}

// redraw repaints the whole row: prompt, text, optional dimmed hint, then
// moves the cursor to its column.
func (lr *LineReader) redraw(withHint bool) error {
	hint := ""
	if withHint {
		if full, ok := lr.hints.FullHint(lr.line.String()); ok {
			hint = lr.out.String(full).Foreground(termenv.ANSIBrightBlack).String()
		}
	}

	row := fmt.Sprintf("\r\x1b[K%s%s%s\x1b[%dG", lr.prompt, lr.line.String(), hint, lr.promptWidth+lr.line.Pos()+1)
	return lr.write(row)
}

func (lr *LineReader) write(s string) error {
	if _, err := lr.term.Write([]byte(s)); err != nil {
		lr.l.Debugf("terminal write: %s", err)
		return internalError("could not write to terminal")
	}
	if err := lr.term.Flush(); err != nil {
		lr.l.Debugf("terminal flush: %s", err)
		return internalError("could not flush terminal")
	}
	return nil
}
