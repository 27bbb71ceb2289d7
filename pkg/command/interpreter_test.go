package command

import "testing"

func TestInterpret_CanonicalPhrases(t *testing.T) {
	cases := []struct {
		utterance string
		want      Token
	}{
		{"take off", TakeOff},
		{"takeoff", TakeOff},
		{"lift off", TakeOff},
		{"land", Land},
		{"landing", Land},
		{"forward", Forward},
		{"ahead", Forward},
		{"back", Backward},
		{"backward", Backward},
		{"left", Left},
		{"right", Right},
		{"up", Up},
		{"down", Down},
		{"hover", Hover},
		{"stop", Hover},
		{"halt", Hover},
	}

	for _, tc := range cases {
		if got := Interpret(tc.utterance); got != tc.want {
			t.Errorf("Interpret(%q) = %v, want %v", tc.utterance, got, tc.want)
		}
	}
}

func TestInterpret_Misrecognitions(t *testing.T) {
	cases := []struct {
		utterance string
		want      Token
	}{
		{"write", Right},  // "right" heard as "write"
		{"lef", Left},     // truncated "left"
		{"righ", Right},   // truncated "right"
		{"for", Forward},  // truncated "forward"
		{"go ahead", Forward},
	}

	for _, tc := range cases {
		if got := Interpret(tc.utterance); got != tc.want {
			t.Errorf("Interpret(%q) = %v, want %v", tc.utterance, got, tc.want)
		}
	}
}

func TestInterpret_SubstringTolerant(t *testing.T) {
	cases := []struct {
		utterance string
		want      Token
	}{
		{"please take off now", TakeOff},
		{"drone go forward", Forward},
		{"uh turn left I think", Left},
		{"LAND", Land},
		{"Take   Off", TakeOff}, // whitespace collapsed
	}

	for _, tc := range cases {
		if got := Interpret(tc.utterance); got != tc.want {
			t.Errorf("Interpret(%q) = %v, want %v", tc.utterance, got, tc.want)
		}
	}
}

func TestInterpret_PriorityOrder(t *testing.T) {
	// When several phrases appear, the earliest vocabulary entry wins.
	cases := []struct {
		utterance string
		want      Token
	}{
		{"take off and go forward", TakeOff},
		{"back up", Backward}, // Backward outranks Up
		{"land forward", Land},
	}

	for _, tc := range cases {
		if got := Interpret(tc.utterance); got != tc.want {
			t.Errorf("Interpret(%q) = %v, want %v", tc.utterance, got, tc.want)
		}
	}
}

func TestInterpret_Unknown(t *testing.T) {
	for _, utterance := range []string{"", "   ", "banana", "fly to the moon", "słowo"} {
		if got := Interpret(utterance); got != Unknown {
			t.Errorf("Interpret(%q) = %v, want Unknown", utterance, got)
		}
	}
}

func TestToken_String(t *testing.T) {
	if got := TakeOff.String(); got != "take_off" {
		t.Errorf("TakeOff.String() = %q", got)
	}
	if got := Unknown.String(); got != "unknown" {
		t.Errorf("Unknown.String() = %q", got)
	}
	if got := Token(99).String(); got != "unknown" {
		t.Errorf("Token(99).String() = %q", got)
	}
}
