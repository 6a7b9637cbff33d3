package miditok

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// TokenType tags what a token's value means. TypeIgnore is the explicit
	// "absent" variant filling unused sub-fields of pooled compound tokens.
	TokenType uint8

	// Token is one sub-field of a compound token. The value is kept in its
	// token spelling (what follows the underscore in "Type_Value"); typed
	// accessors parse it where numeric meaning is needed.
	Token struct {
		Type  TokenType
		Value string
	}

	// Step is one logical time step of a token stream: a fixed-width tuple
	// in the pooled scheme, a variable-length list in the interleaved one.
	Step []Token

	// TokSequence is an ordered sequence of steps, the unit encode produces
	// and decode consumes.
	TokSequence struct {
		Steps []Step
	}
)

const (
	TypeIgnore TokenType = iota
	TypeFamily
	TypeBar
	TypePosition
	TypePitch
	TypeDrumPitch
	TypeVelocity
	TypeDuration
	TypeProgram
	TypeChord
	TypeRest
	TypeTempo
	TypeTimeSig
	TypeBarPosEnc
	TypePositionPosEnc
)

var tokenTypeNames = [...]string{
	TypeIgnore:         "Ignore",
	TypeFamily:         "Family",
	TypeBar:            "Bar",
	TypePosition:       "Position",
	TypePitch:          "Pitch",
	TypeDrumPitch:      "DrumPitch",
	TypeVelocity:       "Velocity",
	TypeDuration:       "Duration",
	TypeProgram:        "Program",
	TypeChord:          "Chord",
	TypeRest:           "Rest",
	TypeTempo:          "Tempo",
	TypeTimeSig:        "TimeSig",
	TypeBarPosEnc:      "BarPosEnc",
	TypePositionPosEnc: "PositionPosEnc",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

func parseTokenType(s string) (TokenType, error) {
	for i, name := range tokenTypeNames {
		if name == s {
			return TokenType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown token type %q", s)
}

// String spells the token in its external "Type_Value" form.
func (t Token) String() string {
	return t.Type.String() + "_" + t.Value
}

// ParseToken parses the external "Type_Value" spelling.
func ParseToken(s string) (Token, error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return Token{}, fmt.Errorf("token %q is not of the Type_Value form", s)
	}
	typ, err := parseTokenType(parts[0])
	if err != nil {
		return Token{}, err
	}
	return Token{Type: typ, Value: parts[1]}, nil
}

// IsAbsent reports whether the token is the absent placeholder or carries no
// value ("None").
func (t Token) IsAbsent() bool {
	return t.Type == TypeIgnore || t.Value == "None"
}

// Int parses the token value as an integer; absent values return an error.
func (t Token) Int() (int, error) {
	return strconv.Atoi(t.Value)
}

func ignoreToken() Token            { return Token{Type: TypeIgnore, Value: "None"} }
func familyToken(f string) Token    { return Token{Type: TypeFamily, Value: f} }
func barToken() Token               { return Token{Type: TypeBar, Value: "None"} }
func positionToken(pos int) Token   { return Token{Type: TypePosition, Value: strconv.Itoa(pos)} }
func pitchToken(pitch int) Token    { return Token{Type: TypePitch, Value: strconv.Itoa(pitch)} }
func drumPitchToken(p int) Token    { return Token{Type: TypeDrumPitch, Value: strconv.Itoa(p)} }
func velocityToken(vel int) Token   { return Token{Type: TypeVelocity, Value: strconv.Itoa(vel)} }
func programToken(prog int) Token   { return Token{Type: TypeProgram, Value: strconv.Itoa(prog)} }
func chordToken(label string) Token { return Token{Type: TypeChord, Value: label} }
func tempoToken(bpm float64) Token  { return Token{Type: TypeTempo, Value: formatTempo(bpm)} }
func barPosEncToken(bar int) Token  { return Token{Type: TypeBarPosEnc, Value: strconv.Itoa(bar)} }

func durationToken(d DurationValue) Token {
	return Token{Type: TypeDuration, Value: d.String()}
}

func restToken(d DurationValue) Token {
	return Token{Type: TypeRest, Value: d.String()}
}

func timeSigToken(num, den int) Token {
	return Token{Type: TypeTimeSig, Value: fmt.Sprintf("%d/%d", num, den)}
}

func posPosEncToken(pos int) Token {
	if pos < 0 {
		return Token{Type: TypePositionPosEnc, Value: "None"}
	}
	return Token{Type: TypePositionPosEnc, Value: strconv.Itoa(pos)}
}

func parseTimeSigValue(s string) (num, den int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time signature value %q", s)
	}
	if num, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid time signature value %q: %w", s, err)
	}
	if den, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid time signature value %q: %w", s, err)
	}
	return num, den, nil
}

// Strings renders every step in the external string form.
func (s TokSequence) Strings() [][]string {
	ret := make([][]string, len(s.Steps))
	for i, step := range s.Steps {
		ret[i] = make([]string, len(step))
		for j, tok := range step {
			ret[i][j] = tok.String()
		}
	}
	return ret
}

// ParseTokSequence parses steps given in the external string form.
func ParseTokSequence(steps [][]string) (TokSequence, error) {
	ret := TokSequence{Steps: make([]Step, len(steps))}
	for i, step := range steps {
		ret.Steps[i] = make(Step, len(step))
		for j, s := range step {
			tok, err := ParseToken(s)
			if err != nil {
				return TokSequence{}, fmt.Errorf("step %d: %w", i, err)
			}
			ret.Steps[i][j] = tok
		}
	}
	return ret, nil
}

// NumTokens returns the total number of sub-field tokens over all steps.
func (s TokSequence) NumTokens() int {
	ret := 0
	for _, step := range s.Steps {
		ret += len(step)
	}
	return ret
}
