// Package gomidi converts between Standard MIDI Files and miditok Scores,
// using gitlab.com/gomidi/midi. It is the only place the tokenizers touch a
// file format; the engine itself works on Scores.
package gomidi

import (
	"fmt"
	"sort"

	"github.com/WhiteFu/miditok"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const drumChannel = 9

// ReadScore loads a MIDI file into a Score. Each SMF track becomes one
// Score track; tempo and time-signature meta events from all tracks merge
// into the global maps. Unclosed notes are dropped.
func ReadScore(path string) (miditok.Score, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return miditok.Score{}, fmt.Errorf("reading %s failed: %w", path, err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return miditok.Score{}, fmt.Errorf("%s: only metric time format is supported, got %v", path, s.TimeFormat)
	}
	score := miditok.Score{TimeDivision: int(ticks)}
	for _, t := range s.Tracks {
		track := readTrack(t, &score)
		if len(track.Notes) > 0 {
			score.Tracks = append(score.Tracks, track)
		}
	}
	score.Sort()
	return score, nil
}

type openNote struct {
	start    int
	velocity int
}

func readTrack(t smf.Track, score *miditok.Score) miditok.Track {
	var track miditok.Track
	open := map[[2]uint8]openNote{} // (channel, key) of sounding notes
	tick := 0
	for _, ev := range t {
		tick += int(ev.Delta)
		var ch, key, vel uint8
		var bpm float64
		var num, den, cpt, dsqpq uint8
		var prog uint8
		var name string
		switch {
		case ev.Message.GetNoteStart(&ch, &key, &vel):
			open[[2]uint8{ch, key}] = openNote{start: tick, velocity: int(vel)}
			if ch == drumChannel {
				track.IsDrum = true
			}
		case ev.Message.GetNoteEnd(&ch, &key):
			if n, ok := open[[2]uint8{ch, key}]; ok {
				delete(open, [2]uint8{ch, key})
				track.Notes = append(track.Notes, miditok.Note{
					Start:    n.start,
					End:      tick,
					Pitch:    int(key),
					Velocity: n.velocity,
				})
			}
		case ev.Message.GetMetaTempo(&bpm):
			score.Tempos = append(score.Tempos, miditok.Tempo{Tick: tick, BPM: bpm})
		case ev.Message.GetMetaTimeSig(&num, &den, &cpt, &dsqpq):
			score.TimeSignatures = append(score.TimeSignatures, miditok.TimeSignature{
				Tick: tick, Num: int(num), Den: int(den),
			})
		case ev.Message.GetProgramChange(&ch, &prog):
			track.Program = int(prog)
		case ev.Message.GetMetaTrackName(&name):
			track.Name = name
		}
	}
	return track
}

// WriteScore saves a Score as a format-1 MIDI file: one meta track with the
// tempo and time-signature maps, then one track per Score track, drums on
// channel 10.
func WriteScore(score miditok.Score, path string) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(score.TimeDivision)

	var meta smf.Track
	tick := 0
	type metaEvent struct {
		tick int
		msg  smf.Message
	}
	var events []metaEvent
	for _, t := range score.Tempos {
		events = append(events, metaEvent{t.Tick, smf.MetaTempo(t.BPM)})
	}
	for _, ts := range score.TimeSignatures {
		events = append(events, metaEvent{ts.Tick, smf.MetaMeter(uint8(ts.Num), uint8(ts.Den))})
	}
	sort.SliceStable(events, func(a, b int) bool { return events[a].tick < events[b].tick })
	for _, ev := range events {
		meta.Add(uint32(ev.tick-tick), ev.msg)
		tick = ev.tick
	}
	meta.Close(0)
	if err := s.Add(meta); err != nil {
		return fmt.Errorf("adding meta track failed: %w", err)
	}

	for _, track := range score.Tracks {
		if err := s.Add(writeTrack(track)); err != nil {
			return fmt.Errorf("adding track failed: %w", err)
		}
	}
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("writing %s failed: %w", path, err)
	}
	return nil
}

func writeTrack(track miditok.Track) smf.Track {
	var t smf.Track
	ch := uint8(0)
	if track.IsDrum {
		ch = drumChannel
	}
	if track.Name != "" {
		t.Add(0, smf.MetaTrackSequenceName(track.Name))
	}
	if !track.IsDrum && track.Program > 0 {
		t.Add(0, midi.ProgramChange(ch, uint8(track.Program)))
	}
	type noteEvent struct {
		tick int
		off  bool // note offs first within one tick
		msg  midi.Message
	}
	events := make([]noteEvent, 0, len(track.Notes)*2)
	for _, n := range track.Notes {
		events = append(events,
			noteEvent{tick: n.Start, msg: midi.NoteOn(ch, uint8(n.Pitch), uint8(n.Velocity))},
			noteEvent{tick: n.End, off: true, msg: midi.NoteOff(ch, uint8(n.Pitch))},
		)
	}
	sort.SliceStable(events, func(a, b int) bool {
		if events[a].tick != events[b].tick {
			return events[a].tick < events[b].tick
		}
		return events[a].off && !events[b].off
	})
	tick := 0
	for _, ev := range events {
		t.Add(uint32(ev.tick-tick), ev.msg)
		tick = ev.tick
	}
	t.Close(0)
	return t
}
