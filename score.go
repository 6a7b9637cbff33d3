package miditok

import (
	"sort"
)

type (
	// Score is the symbolic-music surface of the tokenizers: a list of tracks
	// plus the global tempo and time-signature maps, all expressed in ticks.
	// TimeDivision is the number of ticks in a quarter note and is shared by
	// every tick value in the Score.
	Score struct {
		TimeDivision   int
		Tracks         []Track
		Tempos         []Tempo         `yaml:",flow"`
		TimeSignatures []TimeSignature `yaml:",flow"`
	}

	// Track is one instrument line of a Score. Program follows the General
	// MIDI numbering; drum tracks are marked with IsDrum and are keyed as
	// program -1 where a single program number is needed.
	Track struct {
		Program int
		IsDrum  bool   `yaml:",omitempty"`
		Name    string `yaml:",omitempty"`
		Notes   []Note `yaml:",flow"`
	}

	// Note is a single played note. End is the tick at which the note is
	// released, so End >= Start always; the duration in ticks is End - Start.
	Note struct {
		Start    int
		End      int
		Pitch    int
		Velocity int
	}

	// Tempo is a tempo change: from Tick onwards the piece plays at BPM
	// quarter notes per minute.
	Tempo struct {
		Tick int
		BPM  float64
	}

	// TimeSignature is a time-signature change taking effect at Tick.
	TimeSignature struct {
		Tick int
		Num  int
		Den  int
	}
)

// Copy makes a deep copy of a Score.
func (s Score) Copy() Score {
	tracks := make([]Track, len(s.Tracks))
	for i, t := range s.Tracks {
		tracks[i] = t.Copy()
	}
	tempos := make([]Tempo, len(s.Tempos))
	copy(tempos, s.Tempos)
	timeSigs := make([]TimeSignature, len(s.TimeSignatures))
	copy(timeSigs, s.TimeSignatures)
	return Score{
		TimeDivision:   s.TimeDivision,
		Tracks:         tracks,
		Tempos:         tempos,
		TimeSignatures: timeSigs,
	}
}

// Copy makes a deep copy of a Track.
func (t Track) Copy() Track {
	notes := make([]Note, len(t.Notes))
	copy(notes, t.Notes)
	return Track{Program: t.Program, IsDrum: t.IsDrum, Name: t.Name, Notes: notes}
}

// Duration returns the length of the note in ticks.
func (n Note) Duration() int {
	return n.End - n.Start
}

// Sort puts every list of the Score in the order the tokenizers expect:
// notes by (start, pitch, end, velocity), tempos and time signatures by tick,
// tracks by (program, drum flag).
func (s *Score) Sort() {
	for i := range s.Tracks {
		notes := s.Tracks[i].Notes
		sort.SliceStable(notes, func(a, b int) bool {
			if notes[a].Start != notes[b].Start {
				return notes[a].Start < notes[b].Start
			}
			if notes[a].Pitch != notes[b].Pitch {
				return notes[a].Pitch < notes[b].Pitch
			}
			if notes[a].End != notes[b].End {
				return notes[a].End < notes[b].End
			}
			return notes[a].Velocity < notes[b].Velocity
		})
	}
	sort.SliceStable(s.Tempos, func(a, b int) bool { return s.Tempos[a].Tick < s.Tempos[b].Tick })
	sort.SliceStable(s.TimeSignatures, func(a, b int) bool { return s.TimeSignatures[a].Tick < s.TimeSignatures[b].Tick })
	sort.SliceStable(s.Tracks, func(a, b int) bool {
		if s.Tracks[a].Program != s.Tracks[b].Program {
			return s.Tracks[a].Program < s.Tracks[b].Program
		}
		return !s.Tracks[a].IsDrum && s.Tracks[b].IsDrum
	})
}

// MaxTick returns the largest tick appearing in the Score, i.e. the end of
// the last note or the tick of the last tempo/time-signature change,
// whichever is later.
func (s Score) MaxTick() int {
	ret := 0
	for _, t := range s.Tracks {
		for _, n := range t.Notes {
			if n.End > ret {
				ret = n.End
			}
		}
	}
	if l := len(s.Tempos); l > 0 && s.Tempos[l-1].Tick > ret {
		ret = s.Tempos[l-1].Tick
	}
	if l := len(s.TimeSignatures); l > 0 && s.TimeSignatures[l-1].Tick > ret {
		ret = s.TimeSignatures[l-1].Tick
	}
	return ret
}

// EffectiveProgram returns the program number used to key the track in
// single-stream tokenizations: -1 for drum tracks, the MIDI program
// otherwise.
func (t Track) EffectiveProgram() int {
	if t.IsDrum {
		return -1
	}
	return t.Program
}
