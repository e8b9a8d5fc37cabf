package paper_cmdline

import (
	"strings"
)

// tokenize splits a command line into arguments. A double-quoted run is one
// argument with the quotes removed and \" resolved to a quote; anything else
// splits on whitespace. The command name (first token) is lower-cased.
//
// A quote with no closing quote does not start a quoted run; the text is
// split on whitespace like any other, dropping the stray quote.
func tokenize(line string) (tokens []string, err error) {
	tokens = []string{}

	pos := 0
	for pos < len(line) {
		if isSpace(line[pos]) {
			pos++
			continue
		}

		if line[pos] == '"' {
			if end := closingQuote(line, pos+1); end >= 0 {
				tokens = append(tokens, unescapeQuotes(line[pos+1:end]))
				pos = end + 1
				continue
			}
		}

		start := pos
		for pos < len(line) && !isSpace(line[pos]) {
			pos++
		}
		tokens = append(tokens, bareToken(line[start:pos]))
	}

	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}

	tokens[0] = strings.ToLower(tokens[0])
	return
}

// closingQuote returns the index of the first unescaped quote at or after
// pos, or -1.
func closingQuote(line string, pos int) int {
	for pos < len(line) {
		switch line[pos] {
		case '\\':
			if pos+1 < len(line) && line[pos+1] == '"' {
				pos += 2
				continue
			}
		case '"':
			return pos
		}
		pos++
	}
	return -1
}

// bareToken trims stray quotes from the ends of a whitespace-delimited run;
// an escaped quote at the end is kept.
func bareToken(run string) string {
	run = strings.TrimLeft(run, `"`)
	for strings.HasSuffix(run, `"`) && !strings.HasSuffix(run, `\"`) {
		run = run[:len(run)-1]
	}
	return unescapeQuotes(run)
}

func unescapeQuotes(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}

func isSpace(by byte) bool {
	switch by {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
