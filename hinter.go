package paper_cmdline

import (
	"strings"
)

const minHintInput = 2

type (
	// hinter holds the command templates shown as ghost text while typing.
	// Templates are registered once at startup; first registered match wins.
	hinter struct {
		templates []string
	}
)

func newHinter(templates ...string) *hinter {
	h := &hinter{templates: make([]string, 0, len(templates))}
	for _, t := range templates {
		h.Register(t)
	}
	return h
}

func (h *hinter) Register(template string) {
	h.templates = append(h.templates, template)
}

func (h *hinter) Templates() []string {
	return append([]string(nil), h.templates...)
}

// FullHint returns the rest of the first template that extends input.
func (h *hinter) FullHint(input string) (hint string, found bool) {
	if len(input) < minHintInput {
		return
	}

	lowered := strings.ToLower(input)
	for _, t := range h.templates {
		if len(t) > len(lowered) && strings.HasPrefix(t, lowered) {
			return t[len(lowered):], true
		}
	}
	return
}

// PartialHint returns only the next word of the full hint, for tab
// completion. When the hint starts at a word boundary the leading space is
// kept so the completed word stays separated from the input. Argument
// placeholders such as <key> or [ttl] are never completed.
func (h *hinter) PartialHint(input string) (hint string, found bool) {
	full, found := h.FullHint(input)
	if !found {
		return
	}

	lead := len(full) - len(strings.TrimLeft(full, " "))
	if end := strings.IndexByte(full[lead:], ' '); end >= 0 {
		full = full[:lead+end]
	}

	word := full[lead:]
	if word == "" || word[0] == '<' || word[0] == '[' {
		return "", false
	}
	return full, true
}
