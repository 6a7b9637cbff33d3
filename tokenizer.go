package miditok

import (
	"fmt"
)

type (
	// TrackProgram tells the decoder which program a decoded sequence
	// belongs to when one sequence per track is used.
	TrackProgram struct {
		Program int
		IsDrum  bool
	}

	// Tokenizer is the surface shared by the tokenization schemes. Encode
	// returns one sequence per track, or a single merged sequence when the
	// scheme pools all tracks into one stream. Decode is tolerant of
	// malformed steps and always returns a Score; TokensErrors counts
	// grammar violations (at most one per step) without failing.
	Tokenizer interface {
		Encode(score *Score) ([]TokSequence, error)
		Decode(seqs []TokSequence, programs []TrackProgram) Score
		Vocabulary() *Vocabulary
		TokensErrors(seq TokSequence) int
	}

	// engine is the part shared by the schemes: configuration, quantization
	// tables, vocabulary and the chord collaborator hook.
	engine struct {
		cfg   TokenizerConfig
		q     *quantizer
		vocab Vocabulary

		// DetectChords, when set and chords are enabled, supplies the
		// chord label events attached to position steps.
		DetectChords ChordDetector
	}
)

func newEngine(cfg TokenizerConfig) (engine, error) {
	if err := cfg.Validate(); err != nil {
		return engine{}, fmt.Errorf("invalid tokenizer config: %w", err)
	}
	return engine{cfg: cfg, q: newQuantizer(&cfg)}, nil
}

// Config returns the tokenizer's configuration. Mutating it after
// construction is not supported.
func (e *engine) Config() *TokenizerConfig {
	return &e.cfg
}

// Vocabulary returns the per-field vocabularies. See Vocabulary for the
// concurrency contract on its growth.
func (e *engine) Vocabulary() *Vocabulary {
	return &e.vocab
}

// Durations exposes the duration quantization table.
func (e *engine) Durations() []DurationValue {
	return e.q.durations
}

// Rests exposes the rest quantization table, empty unless rests are enabled.
func (e *engine) Rests() []DurationValue {
	return e.q.rests
}

// Velocities exposes the velocity bins.
func (e *engine) Velocities() []int {
	return e.q.velocities
}

// Tempos exposes the tempo bins, empty unless tempos are enabled.
func (e *engine) Tempos() []float64 {
	return e.q.tempos
}

// numPositions is the size of the position value domain: the finest
// per-beat resolution times the largest configured numerator (4 when no
// time signatures are configured).
func (e *engine) numPositions() int {
	maxBeats := 4
	for _, sig := range e.cfg.TimeSignatureList() {
		if sig.Num > maxBeats {
			maxBeats = sig.Num
		}
	}
	return e.cfg.MaxBeatRes() * maxBeats
}

func (e *engine) checkScore(score *Score) error {
	if score.TimeDivision != e.cfg.TimeDivision {
		return fmt.Errorf("score time division %d does not match the configured %d", score.TimeDivision, e.cfg.TimeDivision)
	}
	return nil
}
