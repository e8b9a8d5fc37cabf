package paper_cmdline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFullHint(t *testing.T) {
	h := newHinter("get <key>", "set <key> <value> [ttl]")

	hint, found := h.FullHint("ge")
	require.True(t, found)
	require.Equal(t, "t <key>", hint)

	_, found = h.FullHint("g")
	require.False(t, found, "single character input has no hint")

	hint, found = h.FullHint("SE")
	require.True(t, found)
	require.Equal(t, "t <key> <value> [ttl]", hint)

	_, found = h.FullHint("get <key>")
	require.False(t, found, "a complete template has no hint")

	_, found = h.FullHint("xyz")
	require.False(t, found)
}

func TestFullHintFirstRegisteredWins(t *testing.T) {
	h := newHinter("ping", "peek <key>", "policy <policy>", "ping extra")

	hint, found := h.FullHint("pi")
	require.True(t, found)
	require.Equal(t, "ng", hint)

	hint, found = h.FullHint("ping ")
	require.True(t, found)
	require.Equal(t, "extra", hint)

	h2 := newHinter("policy <policy>", "peek <key>")
	hint, found = h2.FullHint("po")
	require.True(t, found)
	require.Equal(t, "licy <policy>", hint)
}

func TestPartialHint(t *testing.T) {
	h := newHinter(NewParser().Hints()...)

	hint, found := h.PartialHint("st")
	require.True(t, found)
	require.Equal(t, "ats", hint)

	hint, found = h.PartialHint("ver")
	require.True(t, found)
	require.Equal(t, "sion", hint)

	// only placeholders remain
	_, found = h.PartialHint("get")
	require.False(t, found)

	_, found = h.PartialHint("set k")
	require.False(t, found)
}

func TestPartialHintNextWord(t *testing.T) {
	h := newHinter("config get <name>", "config set <name> <value>")

	hint, found := h.PartialHint("co")
	require.True(t, found)
	require.Equal(t, "nfig", hint)

	hint, found = h.PartialHint("config")
	require.True(t, found)
	require.Equal(t, " get", hint)

	hint, found = h.PartialHint("config s")
	require.True(t, found)
	require.Equal(t, "et", hint)
}

func TestHinterTemplatesCopy(t *testing.T) {
	h := newHinter("ping")
	h.Register("stats")

	templates := h.Templates()
	require.Equal(t, []string{"ping", "stats"}, templates)

	templates[0] = "changed"
	require.Equal(t, "ping", h.Templates()[0])
}
