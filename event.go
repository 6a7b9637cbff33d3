package miditok

import (
	"sort"
)

type (
	// eventType tags the atomic events a Score is flattened into before
	// token building.
	eventType uint8

	// event is one atomic typed occurrence on the tick axis. Only the
	// fields relevant to the type are set. Pitch events carry the end tick
	// of their note and are immediately followed by their Velocity and
	// Duration events so the builders can consume the triple as a unit.
	event struct {
		Type  eventType
		Tick  int
		Value int           // pitch, velocity, program
		BPM   float64       // evTempo
		Dur   DurationValue // evDuration
		Num   int           // evTimeSig
		Den   int           // evTimeSig
		Chord string        // evChord
		End   int           // evPitch: note end tick
		Track int           // originating track program, interleave sort key
	}

	// ChordEvent is what the external chord detector reports: an opaque
	// label at a tick, attached to a program.
	ChordEvent struct {
		Tick    int
		Label   string
		Program int
	}

	// ChordDetector produces chord label events from a track's notes. Chord
	// detection itself is outside the tokenizer; any implementation
	// returning tick-ascending events can be plugged in.
	ChordDetector func(notes []Note, timeDivision int) []ChordEvent
)

const (
	evPitch eventType = iota
	evDrumPitch
	evVelocity
	evDuration
	evTempo
	evTimeSig
	evChord
	evProgram
)

// trackEvents flattens one track into its atomic event stream: an optional
// Program event followed by the Pitch/Velocity/Duration triple per note,
// with chord events, if any, ahead of the notes. Velocities and durations
// are quantized here.
func (e *engine) trackEvents(track Track, chords []ChordEvent) []event {
	prog := track.EffectiveProgram()
	ret := make([]event, 0, len(track.Notes)*3+len(chords))
	for _, c := range chords {
		ret = append(ret, event{Type: evChord, Tick: c.Tick, Chord: c.Label, Track: prog})
	}
	for _, n := range track.Notes {
		if e.cfg.UsePrograms {
			ret = append(ret, event{Type: evProgram, Tick: n.Start, Value: prog, Track: prog})
		}
		ret = append(ret,
			event{Type: evPitch, Tick: n.Start, Value: n.Pitch, End: n.End, Track: prog},
			event{Type: evVelocity, Tick: n.Start, Value: e.q.quantizeVelocity(n.Velocity), Track: prog},
			event{Type: evDuration, Tick: n.Start, Dur: e.q.quantizeDuration(n.Duration()), Track: prog},
		)
	}
	return ret
}

// globalEvents flattens the tempo and time-signature maps, subject to the
// configuration flags. Tempo values are quantized to the tempo table.
func (e *engine) globalEvents(score *Score) []event {
	var ret []event
	if e.cfg.UseTimeSignatures {
		for _, ts := range score.TimeSignatures {
			ret = append(ret, event{Type: evTimeSig, Tick: ts.Tick, Num: ts.Num, Den: ts.Den})
		}
	}
	if e.cfg.UseTempos {
		for _, t := range score.Tempos {
			ret = append(ret, event{Type: evTempo, Tick: t.Tick, BPM: e.q.quantizeTempo(t.BPM)})
		}
	}
	return ret
}

// mergeEvents joins event streams into one tick-ascending stream. The sort
// is stable so that within one tick the insertion order survives: global
// events first, then tracks in order, each track's Pitch triples intact.
func mergeEvents(streams ...[]event) []event {
	var ret []event
	for _, s := range streams {
		ret = append(ret, s...)
	}
	sort.SliceStable(ret, func(a, b int) bool { return ret[a].Tick < ret[b].Tick })
	return ret
}

// detectChords runs the configured chord detector over a track, skipping
// drum tracks.
func (e *engine) detectChords(track Track) []ChordEvent {
	if !e.cfg.UseChords || e.DetectChords == nil || track.IsDrum {
		return nil
	}
	chords := e.DetectChords(track.Notes, e.cfg.TimeDivision)
	for i := range chords {
		chords[i].Program = track.EffectiveProgram()
	}
	return chords
}
