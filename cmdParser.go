package paper_cmdline

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

type (
	// cmdValidator checks the tokens of one command (tokens[0] is the
	// command name) and builds the command.
	cmdValidator func(name string, tokens []string) (Command, error)

	cmdSpec struct {
		name     string
		template string
		validate cmdValidator
	}

	// Parser turns a command line into a validated Command. The set of
	// commands is fixed when the parser is created.
	Parser struct {
		specs  []*cmdSpec
		byName map[string]*cmdSpec
	}
)

func NewParser() *Parser {
	p := &Parser{
		specs:  []*cmdSpec{},
		byName: map[string]*cmdSpec{},
	}

	p.register(parsePing, "ping")
	p.register(parseVersion, "version")

	p.register(parseAuth, "auth <token>")

	p.register(parseGet, "get <key>")
	p.register(parseSet, "set <key> <value> [ttl]")
	p.register(parseDel, "del <key>")

	p.register(parseHas, "has <key>")
	p.register(parsePeek, "peek <key>")
	p.register(parseTtl, "ttl <key> [ttl]")
	p.register(parseSize, "size <key>")

	p.register(parseWipe, "wipe")

	p.register(parseResize, "resize <size>")
	p.register(parsePolicy, "policy <policy>")

	p.register(parseStats, "stats")
	p.alias("status", "stats")

	p.register(parseHelp, "help")
	p.alias("h", "help")
	p.register(parseClear, "clear")
	p.register(parseQuit, "quit")
	p.alias("q", "quit")
	p.register(parseQuit, "exit")

	return p
}

// register adds a command; the first word of template is its name, and the
// whole template becomes its hint.
func (p *Parser) register(validate cmdValidator, template string) {
	name, _, _ := strings.Cut(template, " ")
	spec := &cmdSpec{name: name, template: template, validate: validate}
	p.specs = append(p.specs, spec)
	p.byName[name] = spec
}

func (p *Parser) alias(alias, name string) {
	p.byName[alias] = p.byName[name]
}

// Hints returns the command templates in registration order.
func (p *Parser) Hints() []string {
	hints := make([]string, 0, len(p.specs))
	for _, spec := range p.specs {
		hints = append(hints, spec.template)
	}
	return hints
}

func (p *Parser) ParseLine(line string) (cmd Command, err error) {
	tokens, err := tokenize(line)
	if err != nil {
		return
	}
	return p.ParseTokens(tokens)
}

// ParseTokens dispatches on the (already lower-cased) command name.
func (p *Parser) ParseTokens(tokens []string) (cmd Command, err error) {
	if len(tokens) == 0 {
		err = ErrEmptyInput
		return
	}

	spec, exists := p.byName[tokens[0]]
	if !exists {
		err = ErrUnrecognizedCommand
		return
	}

	return spec.validate(spec.name, tokens)
}

func parseNoArgs(op Op) cmdValidator {
	return func(name string, tokens []string) (cmd Command, err error) {
		if len(tokens) != 1 {
			err = invalidArguments(name)
			return
		}
		cmd.Op = op
		return
	}
}

// parseKeyOnly handles the "<cmd> <key>" shape shared by several commands.
func parseKeyOnly(op Op) cmdValidator {
	return func(name string, tokens []string) (cmd Command, err error) {
		if len(tokens) != 2 || tokens[1] == "" {
			err = invalidArguments(name)
			return
		}
		cmd.Op = op
		cmd.Key = tokens[1]
		return
	}
}

var (
	parsePing    = parseNoArgs(OpPing)
	parseVersion = parseNoArgs(OpVersion)
	parseGet     = parseKeyOnly(OpGet)
	parseDel     = parseKeyOnly(OpDel)
	parseHas     = parseKeyOnly(OpHas)
	parsePeek    = parseKeyOnly(OpPeek)
	parseSize    = parseKeyOnly(OpSize)
	parseWipe    = parseNoArgs(OpWipe)
	parseStats   = parseNoArgs(OpStats)
	parseClear   = parseNoArgs(OpClear)
	parseQuit    = parseNoArgs(OpQuit)
)

func parseAuth(name string, tokens []string) (cmd Command, err error) {
	if len(tokens) != 2 {
		err = invalidArguments(name)
		return
	}
	cmd.Op = OpAuth
	cmd.Token = tokens[1]
	return
}

func parseSet(name string, tokens []string) (cmd Command, err error) {
	if len(tokens) < 3 || len(tokens) > 4 || tokens[1] == "" {
		err = invalidArguments(name)
		return
	}

	cmd.Op = OpSet
	cmd.Key = tokens[1]
	cmd.Value = tokens[2]

	if len(tokens) == 4 {
		cmd.Ttl, err = parseTtlToken(tokens[3])
	}
	return
}

func parseTtl(name string, tokens []string) (cmd Command, err error) {
	if len(tokens) < 2 || len(tokens) > 3 || tokens[1] == "" {
		err = invalidArguments(name)
		return
	}

	cmd.Op = OpTtl
	cmd.Key = tokens[1]

	if len(tokens) == 3 {
		cmd.Ttl, err = parseTtlToken(tokens[2])
	}
	return
}

// parseTtlToken accepts a non-negative number of seconds; 0 means no expiry.
func parseTtlToken(token string) (ttl uint32, err error) {
	v, parseErr := strconv.ParseUint(token, 10, 32)
	if parseErr != nil {
		err = ErrInvalidTtl
		return
	}
	return uint32(v), nil
}

// parseResize accepts a byte count with an optional magnitude suffix, which
// may be written as a separate word ("resize 10 mb").
func parseResize(name string, tokens []string) (cmd Command, err error) {
	if len(tokens) < 2 || len(tokens) > 3 {
		err = invalidArguments(name)
		return
	}

	size, parseErr := humanize.ParseBytes(strings.Join(tokens[1:], " "))
	if parseErr != nil {
		err = ErrInvalidCacheSize
		return
	}

	cmd.Op = OpResize
	cmd.Size = size
	return
}

func parsePolicy(name string, tokens []string) (cmd Command, err error) {
	if len(tokens) != 2 {
		err = invalidArguments(name)
		return
	}

	policy, err := ParsePolicy(strings.ToLower(tokens[1]))
	if err != nil {
		return
	}

	cmd.Op = OpPolicy
	cmd.Policy = policy
	return
}

// parseHelp takes an optional command name to narrow the listing.
func parseHelp(name string, tokens []string) (cmd Command, err error) {
	if len(tokens) > 2 {
		err = invalidArguments(name)
		return
	}

	cmd.Op = OpHelp
	if len(tokens) == 2 {
		cmd.Key = strings.ToLower(tokens[1])
	}
	return
}
