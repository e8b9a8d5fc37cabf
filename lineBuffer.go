package paper_cmdline

type (
	// lineBuffer is the text being edited plus a cursor byte offset. The
	// cursor is always within [0, len(buf)].
	lineBuffer struct {
		buf []byte
		pos int
	}
)

func newLineBuffer() *lineBuffer {
	return &lineBuffer{buf: make([]byte, 0, 64)}
}

func (lb *lineBuffer) String() string {
	return string(lb.buf)
}

func (lb *lineBuffer) Len() int {
	return len(lb.buf)
}

func (lb *lineBuffer) Pos() int {
	return lb.pos
}

func (lb *lineBuffer) IsEmpty() bool {
	return len(lb.buf) == 0
}

func (lb *lineBuffer) Insert(ch byte) {
	lb.buf = append(lb.buf, 0)
	copy(lb.buf[lb.pos+1:], lb.buf[lb.pos:len(lb.buf)-1])
	lb.buf[lb.pos] = ch
	lb.pos++
}

func (lb *lineBuffer) InsertString(s string) {
	if s == "" {
		return
	}

	tail := append([]byte(nil), lb.buf[lb.pos:]...)
	lb.buf = append(append(lb.buf[:lb.pos], s...), tail...)
	lb.pos += len(s)
}

func (lb *lineBuffer) EraseLeft() {
	if lb.pos == 0 {
		return
	}

	copy(lb.buf[lb.pos-1:], lb.buf[lb.pos:])
	lb.buf = lb.buf[:len(lb.buf)-1]
	lb.pos--
}

func (lb *lineBuffer) EraseRight() {
	if lb.pos == len(lb.buf) {
		return
	}

	copy(lb.buf[lb.pos:], lb.buf[lb.pos+1:])
	lb.buf = lb.buf[:len(lb.buf)-1]
}

func (lb *lineBuffer) MoveLeft() {
	if lb.pos > 0 {
		lb.pos--
	}
}

func (lb *lineBuffer) MoveRight() {
	if lb.pos < len(lb.buf) {
		lb.pos++
	}
}

func (lb *lineBuffer) MoveStart() {
	lb.pos = 0
}

func (lb *lineBuffer) MoveEnd() {
	lb.pos = len(lb.buf)
}

// Set replaces the content and places the cursor at the end.
func (lb *lineBuffer) Set(text string) {
	lb.buf = append(lb.buf[:0], text...)
	lb.pos = len(lb.buf)
}

func (lb *lineBuffer) Clear() {
	lb.buf = lb.buf[:0]
	lb.pos = 0
}
