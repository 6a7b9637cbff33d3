package miditok

import (
	"sort"
)

// MuMIDI is the interleaved variable-width scheme, built for multi-track
// pooling: every time step is a token list whose first token says what the
// step is (Pitch/DrumPitch/Position/Bar/Program/Chord), every step carries
// bar and position encoding tokens for positional conditioning, and note
// steps end with Velocity and Duration tokens. All tracks merge into a
// single stream, interleaved by (tick, program); Program steps announce
// track switches. Drums use their own pitch namespace and are keyed as
// program -1.
type MuMIDI struct {
	engine
	graph *grammar
}

// NewMuMIDI builds an interleaved-scheme tokenizer. Rests and time
// signatures are not representable in this scheme and are forced off;
// programs are forced on.
func NewMuMIDI(cfg TokenizerConfig) (*MuMIDI, error) {
	cfg.UseRests = false
	cfg.UseTimeSignatures = false
	cfg.UsePrograms = true
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	t := &MuMIDI{engine: e}
	t.buildVocab()
	t.graph = t.buildGrammar()
	return t, nil
}

func (t *MuMIDI) buildVocab() {
	cfg := &t.cfg
	main := t.vocab.addField("Token")
	for p := cfg.PitchRange[0]; p < cfg.PitchRange[1]; p++ {
		main.Add(pitchToken(p).String())
	}
	for p := cfg.DrumPitchRange[0]; p < cfg.DrumPitchRange[1]; p++ {
		main.Add(drumPitchToken(p).String())
	}
	main.Add(barToken().String())
	for i := 0; i < t.numPositions(); i++ {
		main.Add(positionToken(i).String())
	}
	for _, p := range cfg.Programs {
		main.Add(programToken(p).String())
	}
	if cfg.UseChords {
		for _, l := range cfg.ChordLabels() {
			main.Add(chordToken(l).String())
		}
	}

	barEnc := t.vocab.addField("BarPosEnc")
	for i := 0; i < cfg.MaxBarEmbedding; i++ {
		barEnc.Add(barPosEncToken(i).String())
	}

	posEnc := t.vocab.addField("PositionPosEnc", posPosEncToken(-1).String())
	for i := 0; i < t.numPositions(); i++ {
		posEnc.Add(posPosEncToken(i).String())
	}

	if cfg.UseTempos {
		tempo := t.vocab.addField("Tempo")
		for _, bpm := range t.q.tempos {
			tempo.Add(tempoToken(bpm).String())
		}
	}

	vel := t.vocab.addField("Velocity")
	for _, v := range t.q.velocities {
		vel.Add(velocityToken(v).String())
	}
	dur := t.vocab.addField("Duration")
	for _, d := range t.q.durations {
		dur.Add(durationToken(d).String())
	}
}

func (t *MuMIDI) buildGrammar() *grammar {
	g := newGrammar()
	g.add(TypeBar, TypeBar, TypePosition)
	g.add(TypePosition, TypeProgram)
	g.add(TypeProgram, TypePitch, TypeDrumPitch)
	g.add(TypePitch, TypePitch, TypeProgram, TypeBar, TypePosition)
	g.add(TypeDrumPitch, TypeDrumPitch, TypeProgram, TypeBar, TypePosition)
	if t.cfg.UseChords {
		g.add(TypeProgram, TypeChord)
		g.add(TypeChord, TypePitch)
	}
	return g
}

// partial is a note or chord step before the positional-encoding tokens are
// attached, with its interleave sort key.
type partial struct {
	tick  int
	track int
	step  Step
}

// trackPartials turns one track into its note (and chord) partial steps.
// Pitches outside the configured range are dropped; drums use the drum
// pitch range and namespace.
func (t *MuMIDI) trackPartials(track Track) []partial {
	cfg := &t.cfg
	prog := track.EffectiveProgram()
	var ret []partial
	for _, c := range t.detectChords(track) {
		ret = append(ret, partial{tick: c.Tick, track: prog, step: Step{chordToken(c.Label)}})
	}
	for _, n := range track.Notes {
		var head Token
		if track.IsDrum {
			if n.Pitch < cfg.DrumPitchRange[0] || n.Pitch >= cfg.DrumPitchRange[1] {
				continue
			}
			head = drumPitchToken(n.Pitch)
		} else {
			if n.Pitch < cfg.PitchRange[0] || n.Pitch >= cfg.PitchRange[1] {
				continue
			}
			head = pitchToken(n.Pitch)
		}
		ret = append(ret, partial{tick: n.Start, track: prog, step: Step{
			head,
			velocityToken(t.q.quantizeVelocity(n.Velocity)),
			durationToken(t.q.quantizeDuration(n.Duration())),
		}})
	}
	return ret
}

// Encode tokenizes a Score into a single interleaved sequence. Encoding a
// piece with more bars than any seen before grows the BarPosEnc vocabulary
// append-only; serialize concurrent encodes if the tokenizer is shared.
func (t *MuMIDI) Encode(score *Score) ([]TokSequence, error) {
	if err := t.checkScore(score); err != nil {
		return nil, err
	}
	cfg := &t.cfg
	td := cfg.TimeDivision
	barTicks := td * 4
	tps := cfg.TicksPerSample()

	// grow the bar embedding to cover this piece
	numBars := (score.MaxTick() + barTicks - 1) / barTicks
	if cfg.MaxBarEmbedding < numBars {
		for i := cfg.MaxBarEmbedding; i < numBars; i++ {
			t.vocab.Fields[1].Add(barPosEncToken(i).String())
		}
		cfg.MaxBarEmbedding = numBars
	}

	sorted := score.Copy()
	sorted.Sort()
	programs := map[int]bool{}
	for _, p := range cfg.Programs {
		programs[p] = true
	}
	var partials []partial
	for _, track := range sorted.Tracks {
		if !programs[track.EffectiveProgram()] {
			continue
		}
		partials = append(partials, t.trackPartials(track)...)
	}
	sort.SliceStable(partials, func(a, b int) bool {
		if partials[a].tick != partials[b].tick {
			return partials[a].tick < partials[b].tick
		}
		return partials[a].track < partials[b].track
	})

	attach := func(step Step, bar, pos int, tempo float64) Step {
		ret := Step{step[0], barPosEncToken(bar), posPosEncToken(pos)}
		if cfg.UseTempos {
			ret = append(ret, tempoToken(tempo))
		}
		return append(ret, step[1:]...)
	}

	var steps []Step
	currentTick, currentBar, currentPos := -1, -1, -1
	currentTrack := -2 // no track announced yet, -1 is taken by drums
	currentTempo := cfg.DefaultTempo
	tempoIdx := 0
	if cfg.UseTempos && len(sorted.Tempos) > 0 {
		currentTempo = roundTempo(t.q.quantizeTempo(sorted.Tempos[0].BPM))
	}
	for _, p := range partials {
		if cfg.UseTempos {
			for tempoIdx+1 < len(sorted.Tempos) && sorted.Tempos[tempoIdx+1].Tick <= p.tick {
				tempoIdx++
				currentTempo = roundTempo(t.q.quantizeTempo(sorted.Tempos[tempoIdx].BPM))
			}
		}
		if p.tick != currentTick {
			currentTick = p.tick
			currentPos = (p.tick % barTicks) / tps
			currentTrack = -2
			if newBar := p.tick / barTicks; newBar > currentBar {
				for i := currentBar + 1; i <= newBar; i++ {
					steps = append(steps, attach(Step{barToken()}, i, -1, currentTempo))
				}
				currentBar = newBar
			}
			steps = append(steps, attach(Step{positionToken(currentPos)}, currentBar, currentPos, currentTempo))
		}
		if p.track != currentTrack {
			currentTrack = p.track
			steps = append(steps, attach(Step{programToken(currentTrack)}, currentBar, currentPos, currentTempo))
		}
		steps = append(steps, attach(p.step, currentBar, currentPos, currentTempo))
	}
	return []TokSequence{{Steps: steps}}, nil
}

// Decode rebuilds a Score from a single interleaved sequence. Note steps
// with an absent velocity or duration are skipped; notes arriving before
// any Program step land on the piano track.
func (t *MuMIDI) Decode(seqs []TokSequence, _ []TrackProgram) Score {
	cfg := &t.cfg
	td := cfg.TimeDivision
	barTicks := td * 4
	tps := cfg.TicksPerSample()
	score := Score{TimeDivision: td}
	if len(seqs) == 0 {
		return score
	}
	seq := seqs[0]

	firstTempo := cfg.DefaultTempo
	if cfg.UseTempos && len(seq.Steps) > 0 && len(seq.Steps[0]) > 3 {
		if bpm, ok := parseTempoValue(seq.Steps[0][3].Value); ok {
			firstTempo = bpm
		}
	}
	score.Tempos = append(score.Tempos, Tempo{Tick: 0, BPM: firstTempo})

	tracks := map[int]*Track{}
	var order []int
	currentTick, currentBar := 0, -1
	currentTrack := 0
	noteTrack := func() *Track {
		track, ok := tracks[currentTrack]
		if !ok {
			track = newProgramTrack(currentTrack)
			tracks[currentTrack] = track
			order = append(order, currentTrack)
		}
		return track
	}
	for _, step := range seq.Steps {
		if len(step) == 0 {
			continue
		}
		switch step[0].Type {
		case TypeBar:
			currentBar++
			currentTick = currentBar * barTicks
		case TypePosition:
			if currentBar == -1 {
				currentBar = 0
			}
			if pos, err := step[0].Int(); err == nil {
				currentTick = currentBar*barTicks + pos*tps
			}
		case TypeProgram:
			if p, err := step[0].Int(); err == nil {
				currentTrack = p
				noteTrack()
			}
		case TypePitch, TypeDrumPitch:
			if len(step) < 3 {
				continue
			}
			velTok, durTok := step[len(step)-2], step[len(step)-1]
			if velTok.IsAbsent() || durTok.IsAbsent() {
				continue
			}
			pitch, err1 := step[0].Int()
			vel, err2 := velTok.Int()
			dv, err3 := parseDurationValue(durTok.Value)
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			track := noteTrack()
			track.Notes = append(track.Notes, Note{
				Start:    currentTick,
				End:      currentTick + dv.Ticks(td),
				Pitch:    pitch,
				Velocity: vel,
			})
		}
		if cfg.UseTempos && len(step) > 3 {
			if bpm, ok := parseTempoValue(step[3].Value); ok {
				if last := score.Tempos[len(score.Tempos)-1]; bpm != last.BPM {
					score.Tempos = append(score.Tempos, Tempo{Tick: currentTick, BPM: bpm})
				}
			}
		}
	}
	for _, p := range order {
		score.Tracks = append(score.Tracks, *tracks[p])
	}
	return score
}

// TokensErrors counts grammar violations: illegal type successions, bar or
// position encodings running backwards, position steps disagreeing with
// their own position encoding, and, when duplicate removal is configured,
// repeated pitches at one slot. At most one error per step.
func (t *MuMIDI) TokensErrors(seq TokSequence) int {
	if len(seq.Steps) == 0 {
		return 0
	}
	first := seq.Steps[0]
	if len(first) < 3 {
		return len(seq.Steps)
	}
	errs := 0
	prevType := first[0].Type
	currentBar := intValueOr(first[1], -1)
	currentPos := intValueOr(first[2], -1)
	pitches := map[int]bool{}

	for _, step := range seq.Steps[1:] {
		if len(step) < 3 {
			errs++
			continue
		}
		barValue := intValueOr(step[1], -1)
		posValue := intValueOr(step[2], -1)
		typ := step[0].Type
		if !t.graph.allows(prevType, typ) {
			errs++
			prevType = typ
			continue
		}
		before := errs
		switch typ {
		case TypeBar:
			currentBar++
			currentPos = -1
			pitches = map[int]bool{}
		case TypePitch:
			if t.cfg.RemoveDuplicatedNotes {
				if pitch, err := step[0].Int(); err == nil {
					if pitches[pitch] {
						errs++
					} else {
						pitches[pitch] = true
					}
				}
			}
		case TypePosition:
			if pos, err := step[0].Int(); err == nil {
				if pos <= currentPos || pos != posValue {
					errs++
				} else {
					currentPos = pos
					pitches = map[int]bool{}
				}
			}
		case TypeProgram:
			pitches = map[int]bool{}
		}
		if errs == before && (posValue < currentPos || barValue < currentBar) {
			errs++
		}
		prevType = typ
	}
	return errs
}

func intValueOr(tok Token, def int) int {
	if tok.IsAbsent() {
		return def
	}
	v, err := tok.Int()
	if err != nil {
		return def
	}
	return v
}
