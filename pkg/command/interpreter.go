// Package command maps free-text utterances to discrete vehicle commands.
//
// Speech recognition is noisy, so the vocabulary table carries known
// misrecognition variants alongside each canonical phrase ("write" for
// "right", "lef" for "left"). Interpretation is a pure function with no
// shared state.
package command

import "strings"

// Token is a recognized vehicle command.
type Token int

const (
	Unknown Token = iota
	TakeOff
	Land
	Forward
	Backward
	Left
	Right
	Up
	Down
	Hover
)

// String returns the token name for logs and status reports.
func (t Token) String() string {
	switch t {
	case TakeOff:
		return "take_off"
	case Land:
		return "land"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	case Hover:
		return "hover"
	default:
		return "unknown"
	}
}

// vocabulary maps tokens to their canonical phrase and known aliases, in
// priority order: when an utterance contains phrases for several tokens,
// the earliest entry here wins. Within an entry, aliases are ordered
// longest first so the most specific match is the one reported.
//
// The trailing short forms ("for", "lef", "righ") cover the recognizer
// truncating word endings.
var vocabulary = []struct {
	token   Token
	aliases []string
}{
	{TakeOff, []string{"take off", "takeoff", "lift off"}},
	{Land, []string{"landing", "land"}},
	{Hover, []string{"hover", "stop", "halt"}},
	{Forward, []string{"forward", "ahead"}},
	{Backward, []string{"backward", "back"}},
	{Left, []string{"left"}},
	{Right, []string{"right", "write"}},
	{Up, []string{"up"}},
	{Down, []string{"down"}},
	{Forward, []string{"for"}},
	{Left, []string{"lef"}},
	{Right, []string{"righ"}},
}

// Interpret maps an utterance to a command token. Matching is
// substring-tolerant: a known phrase occurring anywhere in the utterance
// triggers its token. Unmatched input yields Unknown.
func Interpret(utterance string) Token {
	text := normalize(utterance)
	if text == "" {
		return Unknown
	}

	for _, entry := range vocabulary {
		for _, alias := range entry.aliases {
			if strings.Contains(text, alias) {
				return entry.token
			}
		}
	}
	return Unknown
}

// normalize lowercases and collapses whitespace so that "Take   Off"
// matches "take off".
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
