package paper_cmdline

import (
	"fmt"
)

// Wire ops carry their tag value on the wire. Session ops never leave the
// shell and have no wire form.
const (
	OpPing Op = iota
	OpVersion
	OpAuth
	OpGet
	OpSet
	OpDel
	OpHas
	OpPeek
	OpTtl
	OpSize
	OpWipe
	OpResize
	OpPolicy
	OpStats

	opLastWire = OpStats
)

const (
	OpHelp Op = 0x80 + iota
	OpClear
	OpQuit
)

type (
	Op uint8

	Policy string

	// Command is a parsed, validated command. Only the payload fields the
	// op uses are set. Ttl is in seconds; 0 means the entry never expires.
	Command struct {
		Op     Op
		Key    string
		Value  string
		Token  string
		Ttl    uint32
		Size   uint64
		Policy Policy
	}
)

var opNames = map[Op]string{
	OpPing:    "ping",
	OpVersion: "version",
	OpAuth:    "auth",
	OpGet:     "get",
	OpSet:     "set",
	OpDel:     "del",
	OpHas:     "has",
	OpPeek:    "peek",
	OpTtl:     "ttl",
	OpSize:    "size",
	OpWipe:    "wipe",
	OpResize:  "resize",
	OpPolicy:  "policy",
	OpStats:   "stats",
	OpHelp:    "help",
	OpClear:   "clear",
	OpQuit:    "quit",
}

// Policies lists the eviction policies a server can be switched to.
var Policies = []Policy{"lfu", "fifo", "clock", "sieve", "lru", "mru", "2q", "arc", "s3-fifo"}

func (op Op) String() string {
	if name, exists := opNames[op]; exists {
		return name
	}
	return "unknown"
}

// IsWire reports whether the op is sent to the server.
func (op Op) IsWire() bool {
	return op <= opLastWire
}

func ParsePolicy(name string) (Policy, error) {
	for _, p := range Policies {
		if string(p) == name {
			return p, nil
		}
	}
	return "", ErrInvalidPolicy
}

func (c Command) IsLocal() bool {
	return !c.Op.IsWire()
}

func (c Command) String() string {
	switch c.Op {
	case OpAuth:
		return "auth ****"
	case OpGet, OpDel, OpHas, OpPeek, OpSize:
		return fmt.Sprintf("%s %s", c.Op, c.Key)
	case OpSet:
		return fmt.Sprintf("set %s (%d bytes, ttl %d)", c.Key, len(c.Value), c.Ttl)
	case OpTtl:
		return fmt.Sprintf("ttl %s %d", c.Key, c.Ttl)
	case OpResize:
		return fmt.Sprintf("resize %d", c.Size)
	case OpPolicy:
		return fmt.Sprintf("policy %s", c.Policy)
	}
	return c.Op.String()
}
