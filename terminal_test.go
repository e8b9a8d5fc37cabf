package paper_cmdline

import (
	"bytes"
	"testing"
)

func decodeAll(t *testing.T, input string) []KeyEvent {
	kd := newKeyDecoder(bytes.NewReader([]byte(input)))

	events := []KeyEvent{}
	for {
		ev, err := kd.next()
		if err != nil {
			t.Fatalf("decode error: %s", err)
		}
		if ev.Kind == KeyClosed && ev.Mods == ModNone {
			return events
		}
		events = append(events, ev)
	}
}

func TestKeyDecoderSequences(t *testing.T) {
	cases := []struct {
		input string
		ev    KeyEvent
	}{
		{"a", KeyEvent{Kind: KeyChar, Ch: 'a'}},
		{"\t", KeyEvent{Kind: KeyTab}},
		{"\r", KeyEvent{Kind: KeyEnter}},
		{"\n", KeyEvent{Kind: KeyEnter}},
		{"\x7f", KeyEvent{Kind: KeyBackspace}},
		{"\x08", KeyEvent{Kind: KeyBackspace}},
		{"\x03", KeyEvent{Kind: KeyInterrupt, Mods: ModCtrl}},
		{"\x04", KeyEvent{Kind: KeyClosed, Mods: ModCtrl}},
		{"\x01", KeyEvent{Kind: KeyChar, Ch: 'a', Mods: ModCtrl}},
		{"\x1b[A", KeyEvent{Kind: KeyUp}},
		{"\x1b[B", KeyEvent{Kind: KeyDown}},
		{"\x1b[C", KeyEvent{Kind: KeyRight}},
		{"\x1b[D", KeyEvent{Kind: KeyLeft}},
		{"\x1b[H", KeyEvent{Kind: KeyHome}},
		{"\x1b[F", KeyEvent{Kind: KeyEnd}},
		{"\x1bOH", KeyEvent{Kind: KeyHome}},
		{"\x1bOF", KeyEvent{Kind: KeyEnd}},
		{"\x1b[1~", KeyEvent{Kind: KeyHome}},
		{"\x1b[7~", KeyEvent{Kind: KeyHome}},
		{"\x1b[4~", KeyEvent{Kind: KeyEnd}},
		{"\x1b[8~", KeyEvent{Kind: KeyEnd}},
		{"\x1b[3~", KeyEvent{Kind: KeyDelete}},
		{"\x1b[1;5C", KeyEvent{Kind: KeyRight, Mods: ModCtrl}},
		{"\x1b[1;3D", KeyEvent{Kind: KeyLeft, Mods: ModAlt}},
		{"\x1b[1;2A", KeyEvent{Kind: KeyUp}},
		{"\x1bx", KeyEvent{Kind: KeyChar, Ch: 'x', Mods: ModAlt}},
		{"\x1b[5~", KeyEvent{Kind: KeyNone}},
		{"\x1b", KeyEvent{Kind: KeyNone}},
	}

	for _, c := range cases {
		events := decodeAll(t, c.input)
		if len(events) != 1 || events[0] != c.ev {
			t.Errorf("%q: expected %+v, got %+v", c.input, c.ev, events)
		}
	}
}

func TestKeyDecoderStream(t *testing.T) {
	events := decodeAll(t, "ge\x1b[Dt\x1b[3~\r")

	expected := []KeyEvent{
		{Kind: KeyChar, Ch: 'g'},
		{Kind: KeyChar, Ch: 'e'},
		{Kind: KeyLeft},
		{Kind: KeyChar, Ch: 't'},
		{Kind: KeyDelete},
		{Kind: KeyEnter},
	}

	if len(events) != len(expected) {
		t.Fatalf("expected %d events, got %+v", len(expected), events)
	}
	for i := range expected {
		if events[i] != expected[i] {
			t.Errorf("event %d: expected %+v, got %+v", i, expected[i], events[i])
		}
	}
}
