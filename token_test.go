package miditok

import (
	"reflect"
	"testing"
)

func TestTokenStringForm(t *testing.T) {
	for _, tc := range []struct {
		tok      Token
		expected string
	}{
		{pitchToken(60), "Pitch_60"},
		{durationToken(DurationValue{Beats: 1, Subdiv: 0, Resolution: 8}), "Duration_1.0.8"},
		{timeSigToken(3, 4), "TimeSig_3/4"},
		{tempoToken(121), "Tempo_121"},
		{posPosEncToken(-1), "PositionPosEnc_None"},
		{ignoreToken(), "Ignore_None"},
	} {
		if got := tc.tok.String(); got != tc.expected {
			t.Errorf("got %q, expected %q", got, tc.expected)
		}
		parsed, err := ParseToken(tc.expected)
		if err != nil {
			t.Errorf("parsing %q failed: %v", tc.expected, err)
		} else if parsed != tc.tok {
			t.Errorf("got %v parsing %q, expected %v", parsed, tc.expected, tc.tok)
		}
	}
}

func TestParseTokenErrors(t *testing.T) {
	if _, err := ParseToken("Pitch60"); err == nil {
		t.Fatalf("parsing Pitch60 should fail")
	}
	if _, err := ParseToken("Foo_1"); err == nil {
		t.Fatalf("parsing Foo_1 should fail")
	}
}

func TestTokenIsAbsent(t *testing.T) {
	if !ignoreToken().IsAbsent() {
		t.Fatalf("Ignore_None should be absent")
	}
	if !posPosEncToken(-1).IsAbsent() {
		t.Fatalf("PositionPosEnc_None should be absent")
	}
	if pitchToken(60).IsAbsent() {
		t.Fatalf("Pitch_60 should not be absent")
	}
}

func TestTokSequenceStrings(t *testing.T) {
	seq := TokSequence{Steps: []Step{
		{familyToken("Metric"), barToken(), ignoreToken()},
		{familyToken("Note"), pitchToken(60), velocityToken(80)},
	}}
	strs := seq.Strings()
	expected := [][]string{
		{"Family_Metric", "Bar_None", "Ignore_None"},
		{"Family_Note", "Pitch_60", "Velocity_80"},
	}
	if !reflect.DeepEqual(strs, expected) {
		t.Fatalf("got %v, expected %v", strs, expected)
	}
	parsed, err := ParseTokSequence(strs)
	if err != nil {
		t.Fatalf("parsing back failed: %v", err)
	}
	if !reflect.DeepEqual(parsed, seq) {
		t.Fatalf("got %v parsing back, expected %v", parsed, seq)
	}
	if seq.NumTokens() != 6 {
		t.Fatalf("got %d tokens, expected 6", seq.NumTokens())
	}
}

func TestParseTimeSigValue(t *testing.T) {
	num, den, err := parseTimeSigValue("6/8")
	if err != nil || num != 6 || den != 8 {
		t.Fatalf("got %d/%d (%v), expected 6/8", num, den, err)
	}
	if _, _, err := parseTimeSigValue("None"); err == nil {
		t.Fatalf("parsing None should fail")
	}
}
