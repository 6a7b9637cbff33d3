package miditok

import (
	"errors"
	"fmt"
	"os"
	"sort"

	yaml2 "gopkg.in/yaml.v2"
	"gopkg.in/yaml.v3"
)

type (
	// BeatRange assigns a grid resolution (subdivisions per beat) to the
	// beats in [Begin, End). The duration and rest tables are built from
	// lists of these.
	BeatRange struct {
		Begin      int
		End        int
		Resolution int
	}

	// TokenizerConfig is the full configuration surface shared by the
	// tokenization schemes. A zero value is not usable; start from
	// NewTokenizerConfig and adjust.
	TokenizerConfig struct {
		// TimeDivision is the number of ticks per quarter note every Score
		// fed to the tokenizer must use. It has to be divisible by the
		// finest resolution in BeatRes.
		TimeDivision int

		PitchRange    [2]int      `yaml:",flow"` // [min, max), max exclusive
		NumVelocities int         // number of velocity bins over (0, 127]
		BeatRes       []BeatRange `yaml:",flow"` // note duration granularity
		BeatResRest   []BeatRange `yaml:",flow"` // rest granularity, independent of BeatRes

		NumTempos  int
		TempoRange [2]float64 `yaml:",flow"` // [min, max] BPM, inclusive

		// TimeSignatureRange maps a denominator to the list of numerators
		// allowed with it, e.g. 4: [2, 3, 4, 6].
		TimeSignatureRange map[int][]int `yaml:",flow"`

		Programs []int `yaml:",flow"` // -1 stands for drums

		// ChordMaps names the chord qualities the external chord detector
		// may report; only the labels matter to the tokenizer, which
		// enumerates them into the vocabulary.
		ChordMaps               map[string][]int `yaml:",flow"`
		ChordTokensWithRootNote bool
		ChordUnknown            [2]int `yaml:",flow"` // note-count range for unknown chords

		UsePrograms           bool
		UseChords             bool
		UseRests              bool
		UseTempos             bool
		UseTimeSignatures     bool
		RemoveDuplicatedNotes bool

		DefaultTempo float64

		// DrumPitchRange and MaxBarEmbedding only concern the interleaved
		// (MuMIDI) scheme. MaxBarEmbedding grows append-only when a piece
		// with more bars is encoded.
		DrumPitchRange  [2]int `yaml:",flow"`
		MaxBarEmbedding int
	}
)

// NewTokenizerConfig returns the default configuration: piano pitch range,
// 32 velocity and tempo bins, a three-region duration grid and 4/4-centric
// time signatures.
func NewTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		TimeDivision:  384,
		PitchRange:    [2]int{21, 109},
		NumVelocities: 32,
		BeatRes: []BeatRange{
			{Begin: 0, End: 4, Resolution: 8},
			{Begin: 4, End: 12, Resolution: 4},
		},
		BeatResRest: []BeatRange{
			{Begin: 0, End: 2, Resolution: 4},
			{Begin: 2, End: 12, Resolution: 2},
		},
		NumTempos:          32,
		TempoRange:         [2]float64{40, 250},
		TimeSignatureRange: map[int][]int{4: {1, 2, 3, 4, 5, 6, 7, 8}, 8: {3, 6, 12}},
		Programs:           programRange(-1, 128),
		ChordMaps: map[string][]int{
			"min":  {0, 3, 7},
			"maj":  {0, 4, 7},
			"dim":  {0, 3, 6},
			"aug":  {0, 4, 8},
			"sus2": {0, 2, 7},
			"sus4": {0, 5, 7},
			"7dom": {0, 4, 7, 10},
			"7min": {0, 3, 7, 10},
			"7maj": {0, 4, 7, 11},
		},
		ChordTokensWithRootNote: true,
		ChordUnknown:            [2]int{3, 6},
		DefaultTempo:            120,
		DrumPitchRange:          [2]int{27, 88},
		MaxBarEmbedding:         60,
	}
}

func programRange(begin, end int) []int {
	ret := make([]int, 0, end-begin)
	for p := begin; p < end; p++ {
		ret = append(ret, p)
	}
	return ret
}

// MaxBeatRes returns the finest resolution in the duration grid, i.e. the
// number of positions per beat.
func (c *TokenizerConfig) MaxBeatRes() int {
	ret := 0
	for _, r := range c.BeatRes {
		if r.Resolution > ret {
			ret = r.Resolution
		}
	}
	return ret
}

// TicksPerSample returns the tick length of one position slot.
func (c *TokenizerConfig) TicksPerSample() int {
	return c.TimeDivision / c.MaxBeatRes()
}

// Validate checks the configuration for inconsistencies that would corrupt
// encoding or decoding; any error here means the tokenizer must not be
// constructed.
func (c *TokenizerConfig) Validate() error {
	if c.TimeDivision < 1 {
		return errors.New("time division should be > 0")
	}
	if len(c.BeatRes) == 0 {
		return errors.New("beat resolution list should not be empty")
	}
	for _, r := range c.BeatRes {
		if r.Begin < 0 || r.End <= r.Begin || r.Resolution < 1 {
			return fmt.Errorf("invalid beat resolution range %d..%d res %d", r.Begin, r.End, r.Resolution)
		}
	}
	if c.TimeDivision%c.MaxBeatRes() != 0 {
		return fmt.Errorf("time division %d should be divisible by the maximum beat resolution %d", c.TimeDivision, c.MaxBeatRes())
	}
	if c.UseRests {
		if len(c.BeatResRest) == 0 {
			return errors.New("rest resolution list should not be empty when rests are used")
		}
		for _, r := range c.BeatResRest {
			if r.Begin < 0 || r.End <= r.Begin || r.Resolution < 1 {
				return fmt.Errorf("invalid rest resolution range %d..%d res %d", r.Begin, r.End, r.Resolution)
			}
			if c.TimeDivision%r.Resolution != 0 {
				return fmt.Errorf("time division %d should be divisible by the rest resolution %d", c.TimeDivision, r.Resolution)
			}
		}
	}
	if c.PitchRange[0] < 0 || c.PitchRange[1] > 128 || c.PitchRange[0] >= c.PitchRange[1] {
		return fmt.Errorf("pitch range %d..%d should be within 0..128", c.PitchRange[0], c.PitchRange[1])
	}
	if c.NumVelocities < 1 || c.NumVelocities > 127 {
		return fmt.Errorf("number of velocities should be within 1..127, got %d", c.NumVelocities)
	}
	if c.UseTempos {
		if c.NumTempos < 1 {
			return errors.New("number of tempos should be > 0")
		}
		if c.TempoRange[0] <= 0 || c.TempoRange[1] < c.TempoRange[0] {
			return fmt.Errorf("invalid tempo range %v..%v", c.TempoRange[0], c.TempoRange[1])
		}
	}
	if c.UseTimeSignatures {
		if len(c.TimeSignatureRange) == 0 {
			return errors.New("time signature range should not be empty when time signatures are used")
		}
		for den, nums := range c.TimeSignatureRange {
			if den < 1 || (c.TimeDivision*4)%den != 0 {
				return fmt.Errorf("time signature denominator %d should divide a whole note of %d ticks", den, c.TimeDivision*4)
			}
			for _, num := range nums {
				if num < 1 {
					return fmt.Errorf("invalid time signature %d/%d", num, den)
				}
			}
		}
	}
	if c.UseChords && c.ChordUnknown[1] < c.ChordUnknown[0] {
		return fmt.Errorf("invalid unknown-chord note count range %d..%d", c.ChordUnknown[0], c.ChordUnknown[1])
	}
	if c.DefaultTempo <= 0 {
		return errors.New("default tempo should be > 0")
	}
	if c.MaxBarEmbedding < 1 {
		return errors.New("max bar embedding should be > 0")
	}
	if c.DrumPitchRange[0] < 0 || c.DrumPitchRange[1] > 128 || c.DrumPitchRange[0] >= c.DrumPitchRange[1] {
		return fmt.Errorf("drum pitch range %d..%d should be within 0..128", c.DrumPitchRange[0], c.DrumPitchRange[1])
	}
	return nil
}

// Warnings returns advisory notes about configuration combinations that are
// legal but have known modeling limitations. Using rests together with time
// signatures makes bars spanned entirely by a rest miss their time-signature
// tokens, as those ride on Bar tokens which rests suppress.
func (c *TokenizerConfig) Warnings() []string {
	var ret []string
	if c.UseRests && c.UseTimeSignatures {
		ret = append(ret, "rests and time signatures are both enabled; a time-signature change during a rest is carried late, as time signatures ride on Bar tokens and rests suppress Bar tokens")
	}
	return ret
}

// TimeSignatureList enumerates the configured time signatures in a stable
// order: denominators ascending, numerators in their listed order.
func (c *TokenizerConfig) TimeSignatureList() []TimeSignature {
	dens := make([]int, 0, len(c.TimeSignatureRange))
	for den := range c.TimeSignatureRange {
		dens = append(dens, den)
	}
	sort.Ints(dens)
	var ret []TimeSignature
	for _, den := range dens {
		for _, num := range c.TimeSignatureRange[den] {
			ret = append(ret, TimeSignature{Num: num, Den: den})
		}
	}
	return ret
}

// ChordLabels enumerates every chord label the external chord detector may
// produce under this configuration: unknown chords as their note count,
// known qualities optionally prefixed by the twelve root pitch classes.
func (c *TokenizerConfig) ChordLabels() []string {
	var ret []string
	for i := c.ChordUnknown[0]; i <= c.ChordUnknown[1]; i++ {
		ret = append(ret, fmt.Sprintf("%d", i))
	}
	qualities := make([]string, 0, len(c.ChordMaps))
	for q := range c.ChordMaps {
		qualities = append(qualities, q)
	}
	sort.Strings(qualities)
	if c.ChordTokensWithRootNote {
		for _, root := range pitchClasses {
			for _, q := range qualities {
				ret = append(ret, root+":"+q)
			}
		}
	} else {
		ret = append(ret, qualities...)
	}
	return ret
}

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ReadConfig loads a TokenizerConfig from a yaml file, rejecting unknown
// fields, and validates it.
func ReadConfig(path string) (TokenizerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return TokenizerConfig{}, fmt.Errorf("reading config failed: %w", err)
	}
	c := NewTokenizerConfig()
	if err := yaml2.UnmarshalStrict(b, &c); err != nil {
		return TokenizerConfig{}, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := c.Validate(); err != nil {
		return TokenizerConfig{}, err
	}
	return c, nil
}

// WriteConfig saves the configuration as yaml.
func WriteConfig(c *TokenizerConfig, path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config failed: %w", err)
	}
	return os.WriteFile(path, b, 0644)
}
