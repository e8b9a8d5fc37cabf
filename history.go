package paper_cmdline

type (
	// history is the per-session log of submitted lines, oldest first.
	// index == len(lines) means the user is at the live edit rather than
	// recalling an entry.
	history struct {
		lines []string
		index int
	}
)

func newHistory() *history {
	return &history{lines: []string{}}
}

func (h *history) Len() int {
	return len(h.lines)
}

func (h *history) Entries() []string {
	return append([]string(nil), h.lines...)
}

// Push appends line unless it is empty or repeats the newest entry, and
// returns recall to the live edit either way.
func (h *history) Push(line string) {
	if line != "" && (len(h.lines) == 0 || h.lines[len(h.lines)-1] != line) {
		h.lines = append(h.lines, line)
	}
	h.index = len(h.lines)
}

func (h *history) Prev() (line string, ok bool) {
	if h.index == 0 {
		return
	}

	h.index--
	return h.lines[h.index], true
}

// Next moves toward the live edit. Stepping off the newest entry lands on
// the live edit and reports no entry, so the caller clears the line.
func (h *history) Next() (line string, ok bool) {
	if h.index >= len(h.lines) {
		return
	}

	h.index++
	if h.index == len(h.lines) {
		return
	}
	return h.lines[h.index], true
}

func (h *history) MoveToEnd() {
	h.index = len(h.lines)
}
