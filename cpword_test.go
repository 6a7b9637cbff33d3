package miditok

import (
	"reflect"
	"testing"
)

var _ Tokenizer = (*CPWord)(nil)

// a deliberately coarse grid: 8 ticks per quarter, one beat of durations
// per subdivision, and velocity bins mapping every value to itself
func newTestConfig() TokenizerConfig {
	c := NewTokenizerConfig()
	c.TimeDivision = 8
	c.BeatRes = []BeatRange{{Begin: 0, End: 4, Resolution: 8}}
	c.NumVelocities = 127
	return c
}

func encodeOne(t *testing.T, tok Tokenizer, score *Score) TokSequence {
	t.Helper()
	seqs, err := tok.Encode(score)
	if err != nil {
		t.Fatalf("encoding failed: %v", err)
	}
	if len(seqs) != 1 {
		t.Fatalf("got %d sequences, expected 1", len(seqs))
	}
	return seqs[0]
}

func TestCPWordSingleNote(t *testing.T) {
	tok, err := NewCPWord(newTestConfig())
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	score := Score{
		TimeDivision: 8,
		Tracks: []Track{{
			Notes: []Note{{Start: 0, End: 8, Pitch: 60, Velocity: 80}},
		}},
	}
	seq := encodeOne(t, tok, &score)
	expected := [][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8"},
	}
	if got := seq.Strings(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("got steps %v, expected %v", got, expected)
	}
	if errs := tok.TokensErrors(seq); errs != 0 {
		t.Fatalf("got %d grammar errors on a fresh encoding, expected 0", errs)
	}

	decoded := tok.Decode([]TokSequence{seq}, nil)
	if !reflect.DeepEqual(decoded.Tracks, score.Tracks) {
		t.Fatalf("got tracks %v, expected %v", decoded.Tracks, score.Tracks)
	}
	if !reflect.DeepEqual(decoded.Tempos, []Tempo{{Tick: 0, BPM: 120}}) {
		t.Fatalf("got tempos %v, expected the default at tick 0", decoded.Tempos)
	}
	if !reflect.DeepEqual(decoded.TimeSignatures, []TimeSignature{{Tick: 0, Num: 4, Den: 4}}) {
		t.Fatalf("got time signatures %v, expected 4/4 at tick 0", decoded.TimeSignatures)
	}
}

func TestCPWordRest(t *testing.T) {
	c := newTestConfig()
	c.UseRests = true
	c.BeatResRest = []BeatRange{{Begin: 0, End: 12, Resolution: 1}}
	tok, err := NewCPWord(c)
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	score := Score{
		TimeDivision: 8,
		Tracks: []Track{{
			Notes: []Note{
				{Start: 0, End: 4, Pitch: 60, Velocity: 80},
				{Start: 20, End: 28, Pitch: 64, Velocity: 80},
			},
		}},
	}
	seq := encodeOne(t, tok, &score)
	expected := [][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_0.4.8", "Ignore_None"},
		{"Family_Metric", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None", "Rest_2.0.1"},
		{"Family_Metric", "Position_20", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Pitch_64", "Velocity_80", "Duration_1.0.8", "Ignore_None"},
	}
	if got := seq.Strings(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("got steps %v, expected %v", got, expected)
	}
	if errs := tok.TokensErrors(seq); errs != 0 {
		t.Fatalf("got %d grammar errors on a fresh encoding, expected 0", errs)
	}

	decoded := tok.Decode([]TokSequence{seq}, nil)
	if !reflect.DeepEqual(decoded.Tracks, score.Tracks) {
		t.Fatalf("got tracks %v, expected %v", decoded.Tracks, score.Tracks)
	}
}

func TestCPWordTimeSignatureChange(t *testing.T) {
	c := newTestConfig()
	c.UseTimeSignatures = true
	c.TimeSignatureRange = map[int][]int{4: {3, 4}}
	tok, err := NewCPWord(c)
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	score := Score{
		TimeDivision: 8,
		Tracks: []Track{{
			Notes: []Note{
				{Start: 0, End: 8, Pitch: 60, Velocity: 80},
				{Start: 40, End: 48, Pitch: 60, Velocity: 80},
			},
		}},
		TimeSignatures: []TimeSignature{{Tick: 32, Num: 3, Den: 4}},
	}
	seq := encodeOne(t, tok, &score)
	// the bar entered at tick 32 carries the new signature; tick 40 is
	// then position 8 of that 3/4 bar
	expected := [][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None", "TimeSig_4/4"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8", "Ignore_None"},
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None", "TimeSig_3/4"},
		{"Family_Metric", "Position_8", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8", "Ignore_None"},
	}
	if got := seq.Strings(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("got steps %v, expected %v", got, expected)
	}
	if errs := tok.TokensErrors(seq); errs != 0 {
		t.Fatalf("got %d grammar errors on a fresh encoding, expected 0", errs)
	}

	decoded := tok.Decode([]TokSequence{seq}, nil)
	if !reflect.DeepEqual(decoded.Tracks, score.Tracks) {
		t.Fatalf("got tracks %v, expected %v", decoded.Tracks, score.Tracks)
	}
	expectedSigs := []TimeSignature{{Tick: 0, Num: 4, Den: 4}, {Tick: 32, Num: 3, Den: 4}}
	if !reflect.DeepEqual(decoded.TimeSignatures, expectedSigs) {
		t.Fatalf("got time signatures %v, expected %v", decoded.TimeSignatures, expectedSigs)
	}
}

func TestCPWordTempo(t *testing.T) {
	c := newTestConfig()
	c.UseTempos = true
	c.NumTempos = 22
	c.TempoRange = [2]float64{40, 250}
	tok, err := NewCPWord(c)
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	score := Score{
		TimeDivision: 8,
		Tracks: []Track{{
			Notes: []Note{
				{Start: 0, End: 8, Pitch: 60, Velocity: 80},
				{Start: 32, End: 40, Pitch: 60, Velocity: 80},
			},
		}},
		Tempos: []Tempo{{Tick: 0, BPM: 150}},
	}
	seq := encodeOne(t, tok, &score)
	expected := [][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None", "Tempo_150"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8", "Ignore_None"},
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None", "Tempo_150"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8", "Ignore_None"},
	}
	if got := seq.Strings(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("got steps %v, expected %v", got, expected)
	}
	if errs := tok.TokensErrors(seq); errs != 0 {
		t.Fatalf("got %d grammar errors on a fresh encoding, expected 0", errs)
	}

	decoded := tok.Decode([]TokSequence{seq}, nil)
	if !reflect.DeepEqual(decoded.Tempos, []Tempo{{Tick: 0, BPM: 150}}) {
		t.Fatalf("got tempos %v, expected 150 at tick 0", decoded.Tempos)
	}
}

func TestCPWordPrograms(t *testing.T) {
	c := newTestConfig()
	c.UsePrograms = true
	tok, err := NewCPWord(c)
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	score := Score{
		TimeDivision: 8,
		Tracks: []Track{
			{Program: 0, Notes: []Note{{Start: 0, End: 8, Pitch: 60, Velocity: 80}}},
			{Program: 24, Notes: []Note{{Start: 0, End: 8, Pitch: 64, Velocity: 80}}},
		},
	}
	seq := encodeOne(t, tok, &score)
	expected := [][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8", "Program_0"},
		{"Family_Note", "Ignore_None", "Pitch_64", "Velocity_80", "Duration_1.0.8", "Program_24"},
	}
	if got := seq.Strings(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("got steps %v, expected %v", got, expected)
	}

	decoded := tok.Decode([]TokSequence{seq}, nil)
	if !reflect.DeepEqual(decoded.Tracks, score.Tracks) {
		t.Fatalf("got tracks %v, expected %v", decoded.Tracks, score.Tracks)
	}
}

func TestCPWordMultiTrackDecode(t *testing.T) {
	tok, err := NewCPWord(newTestConfig())
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	score := Score{
		TimeDivision: 8,
		Tracks: []Track{
			{Notes: []Note{{Start: 0, End: 8, Pitch: 60, Velocity: 80}}},
			{Notes: []Note{{Start: 0, End: 8, Pitch: 36, Velocity: 100}}},
		},
	}
	seqs, err := tok.Encode(&score)
	if err != nil {
		t.Fatalf("encoding failed: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("got %d sequences, expected one per track", len(seqs))
	}
	programs := []TrackProgram{{Program: 24}, {Program: 0, IsDrum: true}}
	decoded := tok.Decode(seqs, programs)
	if len(decoded.Tracks) != 2 {
		t.Fatalf("got %d tracks, expected 2", len(decoded.Tracks))
	}
	if decoded.Tracks[0].Program != 24 || decoded.Tracks[0].IsDrum {
		t.Fatalf("got track 0 %+v, expected program 24", decoded.Tracks[0])
	}
	if !decoded.Tracks[1].IsDrum || decoded.Tracks[1].Name != "Drums" {
		t.Fatalf("got track 1 %+v, expected a drum track", decoded.Tracks[1])
	}
	if !reflect.DeepEqual(decoded.Tracks[1].Notes, score.Tracks[1].Notes) {
		t.Fatalf("got notes %v, expected %v", decoded.Tracks[1].Notes, score.Tracks[1].Notes)
	}
}

func TestCPWordDecodeSkipsInvalidNotes(t *testing.T) {
	tok, err := NewCPWord(newTestConfig())
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	seq, err := ParseTokSequence([][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Ignore_None", "Velocity_80", "Duration_1.0.8"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8"},
	})
	if err != nil {
		t.Fatalf("parsing failed: %v", err)
	}
	decoded := tok.Decode([]TokSequence{seq}, nil)
	expected := []Note{{Start: 0, End: 8, Pitch: 60, Velocity: 80}}
	if !reflect.DeepEqual(decoded.Tracks[0].Notes, expected) {
		t.Fatalf("got notes %v, expected only the complete one", decoded.Tracks[0].Notes)
	}
}

func TestCPWordTokensErrors(t *testing.T) {
	tok, err := NewCPWord(newTestConfig())
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	// two Position steps in a row are not a legal succession
	seq, err := ParseTokSequence([][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_8", "Ignore_None", "Ignore_None", "Ignore_None"},
	})
	if err != nil {
		t.Fatalf("parsing failed: %v", err)
	}
	if errs := tok.TokensErrors(seq); errs != 1 {
		t.Fatalf("got %d errors, expected 1", errs)
	}
	// positions running backwards within a bar
	seq, err = ParseTokSequence([][]string{
		{"Family_Metric", "Bar_None", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Metric", "Position_8", "Ignore_None", "Ignore_None", "Ignore_None"},
		{"Family_Note", "Ignore_None", "Pitch_60", "Velocity_80", "Duration_1.0.8"},
		{"Family_Metric", "Position_0", "Ignore_None", "Ignore_None", "Ignore_None"},
	})
	if err != nil {
		t.Fatalf("parsing failed: %v", err)
	}
	if errs := tok.TokensErrors(seq); errs != 1 {
		t.Fatalf("got %d errors, expected 1", errs)
	}
}

func TestCPWordVocabulary(t *testing.T) {
	tok, err := NewCPWord(newTestConfig())
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	v := tok.Vocabulary()
	if len(v.Fields) != 5 {
		t.Fatalf("got %d fields, expected 5", len(v.Fields))
	}
	// 96 positions: 8 per beat, up to the 12/8 signature
	expected := []int{2, 2 + 96, 1 + 88, 1 + 127, 1 + 32}
	if !reflect.DeepEqual(v.Sizes(), expected) {
		t.Fatalf("got sizes %v, expected %v", v.Sizes(), expected)
	}
	if i := v.Fields[0].IndexOf("Family_Note"); i != 1 {
		t.Fatalf("got index %d for Family_Note, expected 1", i)
	}
}

func TestCPWordRejectsMismatchedTimeDivision(t *testing.T) {
	tok, err := NewCPWord(newTestConfig())
	if err != nil {
		t.Fatalf("NewCPWord failed: %v", err)
	}
	score := Score{TimeDivision: 384}
	if _, err := tok.Encode(&score); err == nil {
		t.Fatalf("encoding a score with the wrong time division should fail")
	}
}
