package bot

import (
	"strings"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
)

const commandMarker = ":"

type commandKind int

const (
	commandNone commandKind = iota
	commandYes
	commandNo
	commandAccept
	commandCategory
	commandUnknown
)

type command struct {
	kind     commandKind
	category category.Category
}

var (
	yesAliases = map[string]struct{}{"yes": {}, "y": {}, "ja": {}, "j": {}}
	noAliases  = map[string]struct{}{"no": {}, "n": {}, "nein": {}}
)

// parseCommand recognizes consent answers ("yes", "nein", ...) and
// colon-prefixed commands (":yes", ":problem", ...). Anything else is
// commandNone and goes to the classifier.
func parseCommand(text string) command {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if _, ok := yesAliases[lower]; ok {
		return command{kind: commandYes}
	}
	if _, ok := noAliases[lower]; ok {
		return command{kind: commandNo}
	}

	word, ok := strings.CutPrefix(lower, commandMarker)
	if !ok {
		return command{kind: commandNone}
	}
	if word == "yes" {
		return command{kind: commandAccept}
	}
	if c, ok := category.ParseCommand(word); ok {
		return command{kind: commandCategory, category: c}
	}
	return command{kind: commandUnknown}
}
