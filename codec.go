package paper_cmdline

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

//
// Wire format, all integers little-endian:
//
//	request:  [u8 tag][args...]
//	response: [u8 ok-flag][payload]
//
// A string argument is [u32 length][bytes], with no terminator or escaping.
// Args by op:
//
//	auth                    token
//	get/del/has/peek/size   key
//	set                     key, value, u32 ttl (0 = no expiry)
//	ttl                     key, u32 ttl (0 = no expiry)
//	resize                  u64 size
//	policy                  policy id
//
// The response payload shape depends on the request op, not on a tag of
// its own. A successful stats response is u64 max_size, u64 used_size,
// u64 total_gets, f64 miss_ratio, policy id. Every other response,
// including every failure, is a single string.
//

const (
	respFailure byte = 0
	respSuccess byte = 1

	// maxFrameString bounds a single string so a corrupt length prefix
	// cannot trigger a huge allocation.
	maxFrameString = 64 * 1024 * 1024
)

var (
	ErrIncompleteFrame = errors.New("incomplete frame")
	ErrMalformedFrame  = errors.New("malformed frame")
)

type (
	// Response is the decoded reply to one command. For a failure, Message
	// is the server's error text.
	Response struct {
		OK      bool
		Message string
		Stats   *Stats
	}

	// frameReader reads frame fields from a stream, or from an in-memory
	// frame when sized is set, in which case every read is checked against
	// the bytes that remain before anything is allocated.
	frameReader struct {
		r     io.Reader
		sized *bytes.Reader
	}
)

// Encode serializes a wire command. Session commands (help, clear, quit)
// have no wire form and encode to nil.
func Encode(cmd Command) []byte {
	if !cmd.Op.IsWire() {
		return nil
	}

	buf := make([]byte, 0, 16+len(cmd.Key)+len(cmd.Value)+len(cmd.Token))
	buf = append(buf, byte(cmd.Op))

	switch cmd.Op {
	case OpAuth:
		buf = appendString(buf, cmd.Token)

	case OpGet, OpDel, OpHas, OpPeek, OpSize:
		buf = appendString(buf, cmd.Key)

	case OpSet:
		buf = appendString(buf, cmd.Key)
		buf = appendString(buf, cmd.Value)
		buf = binary.LittleEndian.AppendUint32(buf, cmd.Ttl)

	case OpTtl:
		buf = appendString(buf, cmd.Key)
		buf = binary.LittleEndian.AppendUint32(buf, cmd.Ttl)

	case OpResize:
		buf = binary.LittleEndian.AppendUint64(buf, cmd.Size)

	case OpPolicy:
		buf = appendString(buf, string(cmd.Policy))
	}

	return buf
}

// DecodeResponse decodes a complete response frame for cmd. Short, long or
// otherwise malformed frames fail with ErrInternal.
func DecodeResponse(cmd Command, data []byte) (resp *Response, err error) {
	rd := bytes.NewReader(data)
	fr := &frameReader{r: rd, sized: rd}

	resp, err = decodeResponse(fr, cmd)
	if err != nil {
		if !errors.Is(err, ErrInternal) {
			err = internalError("truncated %s response", cmd.Op)
		}
		return nil, err
	}

	if rd.Len() != 0 {
		return nil, internalError("%d unexpected bytes after %s response", rd.Len(), cmd.Op)
	}
	return
}

// ReadResponse reads one response frame for cmd from a stream. Stream
// failures are returned as they come from r (io.EOF, net errors), so the
// caller can tell a lost connection from a malformed frame, which fails
// with ErrInternal.
func ReadResponse(r io.Reader, cmd Command) (*Response, error) {
	return decodeResponse(&frameReader{r: r}, cmd)
}

func decodeResponse(fr *frameReader, cmd Command) (resp *Response, err error) {
	if !cmd.Op.IsWire() {
		return nil, internalError("%s has no response", cmd.Op)
	}

	flag, err := fr.u8()
	if err != nil {
		return
	}

	switch flag {
	case respSuccess, respFailure:
	default:
		return nil, internalError("invalid response flag %d", flag)
	}

	resp = &Response{OK: flag == respSuccess}

	if resp.OK && cmd.Op == OpStats {
		if resp.Stats, err = readStats(fr); err != nil {
			return nil, err
		}
		resp.Message = resp.Stats.Report()
		return
	}

	if resp.Message, err = fr.str(); err != nil {
		return nil, err
	}
	return
}

// DecodeCommand decodes one request frame from the front of data and
// returns the number of bytes it used. ErrIncompleteFrame means more data
// is needed; ErrMalformedFrame means the stream cannot be trusted.
func DecodeCommand(data []byte) (cmd Command, n int, err error) {
	rd := bytes.NewReader(data)
	fr := &frameReader{r: rd, sized: rd}

	if cmd, err = decodeCommand(fr); err != nil {
		switch {
		case errors.Is(err, ErrMalformedFrame):
		case errors.Is(err, ErrInternal):
			err = fmt.Errorf("%w: %s", ErrMalformedFrame, err)
		default:
			err = ErrIncompleteFrame
		}
		return Command{}, 0, err
	}

	n = len(data) - rd.Len()
	return
}

func decodeCommand(fr *frameReader) (cmd Command, err error) {
	tag, err := fr.u8()
	if err != nil {
		return
	}

	cmd.Op = Op(tag)
	if !cmd.Op.IsWire() {
		err = fmt.Errorf("%w: unknown tag %d", ErrMalformedFrame, tag)
		return
	}

	switch cmd.Op {
	case OpAuth:
		cmd.Token, err = fr.str()

	case OpGet, OpDel, OpHas, OpPeek, OpSize:
		cmd.Key, err = fr.str()

	case OpSet:
		if cmd.Key, err = fr.str(); err != nil {
			return
		}
		if cmd.Value, err = fr.str(); err != nil {
			return
		}
		cmd.Ttl, err = fr.u32()

	case OpTtl:
		if cmd.Key, err = fr.str(); err != nil {
			return
		}
		cmd.Ttl, err = fr.u32()

	case OpResize:
		cmd.Size, err = fr.u64()

	case OpPolicy:
		var name string
		if name, err = fr.str(); err != nil {
			return
		}
		if cmd.Policy, err = ParsePolicy(name); err != nil {
			err = fmt.Errorf("%w: unknown policy %q", ErrMalformedFrame, name)
		}
	}

	return
}

// EncodeResponse serializes the reply to cmd.
func EncodeResponse(cmd Command, resp *Response) []byte {
	if !resp.OK {
		return appendString([]byte{respFailure}, resp.Message)
	}

	buf := []byte{respSuccess}
	if cmd.Op == OpStats {
		stats := resp.Stats
		if stats == nil {
			stats = &Stats{}
		}
		return appendStats(buf, stats)
	}
	return appendString(buf, resp.Message)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func (fr *frameReader) read(n int) ([]byte, error) {
	if fr.sized != nil && n > fr.sized.Len() {
		return nil, io.ErrUnexpectedEOF
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (fr *frameReader) u8() (byte, error) {
	b, err := fr.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (fr *frameReader) u32() (uint32, error) {
	b, err := fr.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (fr *frameReader) u64() (uint64, error) {
	b, err := fr.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (fr *frameReader) f64() (float64, error) {
	bits, err := fr.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (fr *frameReader) str() (string, error) {
	length, err := fr.u32()
	if err != nil {
		return "", err
	}

	if length > maxFrameString {
		return "", internalError("string of %d bytes exceeds frame limit", length)
	}

	b, err := fr.read(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
