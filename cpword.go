package miditok

import (
	"strconv"
)

// CPWord is the pooled fixed-width scheme: every time step is one compound
// token with a constant ordered field list. Fields 0-4 are Family,
// Bar/Position, Pitch, Velocity and Duration; Program, Chord, Rest, Tempo
// and TimeSig follow, in that order, for the enabled options. Unused fields
// carry the Ignore_None placeholder.
//
// With programs enabled all tracks pool into a single token stream;
// otherwise Encode returns one sequence per track and Decode honors tempo
// and time-signature tokens from the first sequence only.
type CPWord struct {
	engine
	fieldIdx  map[TokenType]int
	numFields int
	graph     *grammar
}

// NewCPWord builds a pooled-scheme tokenizer. The configuration is
// validated first; see TokenizerConfig.Warnings for advisory notes on the
// rest/time-signature combination.
func NewCPWord(cfg TokenizerConfig) (*CPWord, error) {
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	t := &CPWord{engine: e}
	t.fieldIdx = map[TokenType]int{
		TypeFamily:   0,
		TypeBar:      1,
		TypePosition: 1,
		TypePitch:    2,
		TypeVelocity: 3,
		TypeDuration: 4,
	}
	t.numFields = 5
	for _, opt := range []struct {
		enabled bool
		typ     TokenType
	}{
		{cfg.UsePrograms, TypeProgram},
		{cfg.UseChords, TypeChord},
		{cfg.UseRests, TypeRest},
		{cfg.UseTempos, TypeTempo},
		{cfg.UseTimeSignatures, TypeTimeSig},
	} {
		if opt.enabled {
			t.fieldIdx[opt.typ] = t.numFields
			t.numFields++
		}
	}
	t.buildVocab()
	t.graph = t.buildGrammar()
	return t, nil
}

func (t *CPWord) buildVocab() {
	cfg := &t.cfg
	family := t.vocab.addField("Family")
	family.Add(familyToken("Metric").String())
	family.Add(familyToken("Note").String())

	barPos := t.vocab.addField("BarPosition", ignoreToken().String(), barToken().String())
	for i := 0; i < t.numPositions(); i++ {
		barPos.Add(positionToken(i).String())
	}

	pitch := t.vocab.addField("Pitch", ignoreToken().String())
	for p := cfg.PitchRange[0]; p < cfg.PitchRange[1]; p++ {
		pitch.Add(pitchToken(p).String())
	}

	vel := t.vocab.addField("Velocity", ignoreToken().String())
	for _, v := range t.q.velocities {
		vel.Add(velocityToken(v).String())
	}

	dur := t.vocab.addField("Duration", ignoreToken().String())
	for _, d := range t.q.durations {
		dur.Add(durationToken(d).String())
	}

	if cfg.UsePrograms {
		prog := t.vocab.addField("Program", ignoreToken().String())
		for _, p := range cfg.Programs {
			prog.Add(programToken(p).String())
		}
	}
	if cfg.UseChords {
		chord := t.vocab.addField("Chord", ignoreToken().String())
		for _, l := range cfg.ChordLabels() {
			chord.Add(chordToken(l).String())
		}
	}
	if cfg.UseRests {
		rest := t.vocab.addField("Rest", ignoreToken().String())
		for _, r := range t.q.rests {
			rest.Add(restToken(r).String())
		}
	}
	if cfg.UseTempos {
		tempo := t.vocab.addField("Tempo", ignoreToken().String())
		for _, bpm := range t.q.tempos {
			tempo.Add(tempoToken(bpm).String())
		}
	}
	if cfg.UseTimeSignatures {
		ts := t.vocab.addField("TimeSig", ignoreToken().String())
		for _, sig := range cfg.TimeSignatureList() {
			ts.Add(timeSigToken(sig.Num, sig.Den).String())
		}
	}
}

func (t *CPWord) buildGrammar() *grammar {
	g := newGrammar()
	g.add(TypeBar, TypePosition, TypeBar)
	g.add(TypePosition, TypePitch)
	g.add(TypePitch, TypePitch, TypeBar, TypePosition)
	if t.cfg.UseChords {
		g.add(TypeRest, TypeRest, TypePosition)
		g.add(TypePitch, TypeRest)
	}
	if t.cfg.UseRests {
		g.add(TypeRest, TypeRest, TypePosition, TypeBar)
		g.add(TypePitch, TypeRest)
	}
	if t.cfg.UseTempos {
		// a tempo change can happen at any moment
		g.add(TypePosition, TypePosition, TypeBar)
		if t.cfg.UseRests {
			g.add(TypePosition, TypeRest)
			g.add(TypeRest, TypePosition)
		}
	}
	nodes := g.nodes()
	for _, n := range nodes {
		g.add(n, TypeIgnore)
	}
	g.add(TypeIgnore, nodes...)
	return g
}

// newStep returns a compound token with every field set to the absent
// placeholder and the Metric family.
func (t *CPWord) newStep() Step {
	step := make(Step, t.numFields)
	step[0] = familyToken("Metric")
	for i := 1; i < t.numFields; i++ {
		step[i] = ignoreToken()
	}
	return step
}

func (t *CPWord) barStep(num, den int) Step {
	step := t.newStep()
	step[1] = barToken()
	if t.cfg.UseTimeSignatures {
		step[t.fieldIdx[TypeTimeSig]] = timeSigToken(num, den)
	}
	return step
}

func (t *CPWord) positionStep(pos int, chord string, tempo float64) Step {
	step := t.newStep()
	step[1] = positionToken(pos)
	if chord != "" {
		step[t.fieldIdx[TypeChord]] = chordToken(chord)
	}
	if t.cfg.UseTempos {
		step[t.fieldIdx[TypeTempo]] = tempoToken(tempo)
	}
	return step
}

func (t *CPWord) restStep(r DurationValue) Step {
	step := t.newStep()
	step[t.fieldIdx[TypeRest]] = restToken(r)
	return step
}

func (t *CPWord) noteStep(pitch, velocity int, dur DurationValue, program int, hasProgram bool) Step {
	step := t.newStep()
	step[0] = familyToken("Note")
	step[2] = pitchToken(pitch)
	step[3] = velocityToken(velocity)
	step[4] = durationToken(dur)
	if t.cfg.UsePrograms && hasProgram {
		step[t.fieldIdx[TypeProgram]] = programToken(program)
	}
	return step
}

// Encode tokenizes a Score. With programs enabled the result is a single
// pooled sequence; otherwise one sequence per track, in track order.
func (t *CPWord) Encode(score *Score) ([]TokSequence, error) {
	if err := t.checkScore(score); err != nil {
		return nil, err
	}
	sorted := score.Copy()
	sorted.Sort()
	global := t.globalEvents(&sorted)
	if t.cfg.UsePrograms {
		streams := make([][]event, 0, len(sorted.Tracks)+1)
		streams = append(streams, global)
		for _, track := range sorted.Tracks {
			streams = append(streams, t.trackEvents(track, t.detectChords(track)))
		}
		return []TokSequence{{Steps: t.addTimeEvents(mergeEvents(streams...))}}, nil
	}
	ret := make([]TokSequence, 0, len(sorted.Tracks))
	for _, track := range sorted.Tracks {
		events := mergeEvents(global, t.trackEvents(track, t.detectChords(track)))
		ret = append(ret, TokSequence{Steps: t.addTimeEvents(events)})
	}
	return ret, nil
}

// addTimeEvents is the encoding state machine: it walks the atomic event
// stream and emits Rest, Bar, Position and Note steps against a fresh time
// grid.
func (t *CPWord) addTimeEvents(events []event) []Step {
	cfg := &t.cfg
	grid := newTimeGrid(cfg.TimeDivision, 4, 4)
	tps := cfg.TicksPerSample()
	currentTempo := cfg.DefaultTempo
	currentProgram := 0
	hasProgram := false

	// a TimeSig or Tempo event at the head of the stream, before any note,
	// seeds the initial state instead of the defaults
	if cfg.UseTimeSignatures {
	seedSig:
		for _, ev := range events {
			switch ev.Type {
			case evTimeSig:
				grid.setSignature(ev.Num, ev.Den)
				break seedSig
			case evPitch, evVelocity, evDuration:
				break seedSig
			}
		}
	}
	if cfg.UseTempos {
	seedTempo:
		for _, ev := range events {
			switch ev.Type {
			case evTempo:
				currentTempo = ev.BPM
				break seedTempo
			case evPitch, evVelocity, evDuration:
				break seedTempo
			}
		}
	}

	var steps []Step
	for i, ev := range events {
		switch ev.Type {
		case evTempo:
			currentTempo = ev.BPM
		case evProgram:
			currentProgram = ev.Value
			hasProgram = true
			continue
		}
		if ev.Tick != grid.prevTick {
			// Rest steps consume the gap since the last note end, without
			// Bar steps for the bars they span.
			if cfg.UseRests && ev.Tick-grid.prevNoteEnd >= t.q.minRest {
				grid.prevTick = grid.prevNoteEnd
				for _, r := range t.q.restDecomposition(ev.Tick - grid.prevTick) {
					steps = append(steps, t.restStep(r))
					grid.prevTick += r.Ticks(cfg.TimeDivision)
				}
				grid.catchUp(grid.prevTick)
			}
			// one Bar step per elapsed bar; the last one carries a changed
			// time signature when this very event is the change
			if n := grid.newBars(ev.Tick); n >= 1 {
				for i2 := 0; i2 < n; i2++ {
					num, den := grid.currentNum, grid.currentDen
					if i2 == n-1 && ev.Type == evTimeSig {
						num, den = ev.Num, ev.Den
					}
					steps = append(steps, t.barStep(num, den))
				}
				grid.advanceBars(n)
			}
			if ev.Type != evTimeSig {
				chord := ""
				if ev.Type == evChord {
					chord = ev.Chord
				}
				steps = append(steps, t.positionStep(grid.position(ev.Tick)/tps, chord, currentTempo))
			}
			grid.prevTick = ev.Tick
		}
		switch ev.Type {
		case evTimeSig:
			grid.changeSignature(ev.Tick, ev.Num, ev.Den)
			if ev.Tick > grid.prevNoteEnd {
				grid.prevNoteEnd = ev.Tick
			}
		case evPitch:
			if i+2 < len(events) {
				steps = append(steps, t.noteStep(ev.Value, events[i+1].Value, events[i+2].Dur, currentProgram, hasProgram))
				if ev.End > grid.prevNoteEnd {
					grid.prevNoteEnd = ev.End
				}
			}
		case evTempo, evChord:
			if ev.Tick > grid.prevNoteEnd {
				grid.prevNoteEnd = ev.Tick
			}
		}
	}
	return steps
}

// Decode rebuilds a Score from token sequences. In multi-sequence mode the
// programs list assigns a program per sequence (piano when nil), and only
// the first sequence's tempo and time-signature tokens are honored.
// Note steps with an absent required field are skipped.
func (t *CPWord) Decode(seqs []TokSequence, programs []TrackProgram) Score {
	cfg := &t.cfg
	td := cfg.TimeDivision
	tps := cfg.TicksPerSample()
	score := Score{TimeDivision: td}

	pooled := map[int]*Track{}
	var pooledOrder []int
	tempoChanges := []Tempo{{Tick: -1, BPM: -1}} // mocked seed, removed below
	var timeSigChanges []TimeSignature
	currentProgram := 0

	for si, seq := range seqs {
		if si == 0 {
			if cfg.UseTimeSignatures {
			seekSig:
				for _, step := range seq.Steps {
					if len(step) < t.numFields || step[0].Value != "Metric" {
						break
					}
					if step[1].Type == TypeBar {
						if num, den, err := parseTimeSigValue(step[t.fieldIdx[TypeTimeSig]].Value); err == nil {
							timeSigChanges = append(timeSigChanges, TimeSignature{Tick: 0, Num: num, Den: den})
						}
						break seekSig
					}
				}
			}
			if len(timeSigChanges) == 0 {
				timeSigChanges = append(timeSigChanges, TimeSignature{Tick: 0, Num: 4, Den: 4})
			}
		}
		currentSig := timeSigChanges[0]
		grid := newTimeGrid(td, currentSig.Num, currentSig.Den)
		currentTick := 0
		var seqTrack *Track
		if !cfg.UsePrograms {
			prog := TrackProgram{Program: 0}
			if programs != nil && si < len(programs) {
				prog = programs[si]
			}
			name := ""
			if prog.IsDrum {
				name = "Drums"
			}
			seqTrack = &Track{Program: prog.Program, IsDrum: prog.IsDrum, Name: name}
		}

		for _, step := range seq.Steps {
			if len(step) < t.numFields {
				continue
			}
			switch step[0].Value {
			case "Note":
				required := step[2:5]
				if cfg.UsePrograms {
					required = step[2:6]
				}
				invalid := false
				for _, tok := range required {
					if tok.IsAbsent() {
						invalid = true
					}
				}
				if invalid {
					continue
				}
				pitch, err1 := step[2].Int()
				vel, err2 := step[3].Int()
				dv, err3 := parseDurationValue(step[4].Value)
				if err1 != nil || err2 != nil || err3 != nil {
					continue
				}
				if cfg.UsePrograms {
					if p, err := step[t.fieldIdx[TypeProgram]].Int(); err == nil {
						currentProgram = p
					}
				}
				duration := dv.Ticks(td)
				note := Note{Start: currentTick, End: currentTick + duration, Pitch: pitch, Velocity: vel}
				if cfg.UsePrograms {
					track, ok := pooled[currentProgram]
					if !ok {
						track = newProgramTrack(currentProgram)
						pooled[currentProgram] = track
						pooledOrder = append(pooledOrder, currentProgram)
					}
					track.Notes = append(track.Notes, note)
				} else {
					seqTrack.Notes = append(seqTrack.Notes, note)
				}
				if note.End > grid.prevNoteEnd {
					grid.prevNoteEnd = note.End
				}
			case "Metric":
				switch {
				case step[1].Type == TypeBar:
					grid.currentBar++
					if grid.currentBar > 0 {
						currentTick = grid.tickAtCurrentBar + grid.ticksPerBar
					}
					grid.tickAtCurrentBar = currentTick
					if cfg.UseTimeSignatures {
						if num, den, err := parseTimeSigValue(step[t.fieldIdx[TypeTimeSig]].Value); err == nil {
							if num != currentSig.Num || den != currentSig.Den {
								currentSig = TimeSignature{Tick: currentTick, Num: num, Den: den}
								if si == 0 {
									timeSigChanges = append(timeSigChanges, currentSig)
								}
								grid.tickAtLastSig = grid.tickAtCurrentBar
								grid.barAtLastSig = grid.currentBar
								grid.ticksPerBar = ticksPerBar(num, den, td)
							}
						}
					}
				case step[1].Type == TypePosition:
					if grid.currentBar == -1 {
						grid.currentBar = 0
					}
					pos, err := step[1].Int()
					if err != nil {
						continue
					}
					currentTick = grid.tickAtCurrentBar + pos*tps
					if cfg.UseTempos && si == 0 {
						if bpm, ok := parseTempoValue(step[t.fieldIdx[TypeTempo]].Value); ok {
							last := tempoChanges[len(tempoChanges)-1]
							if roundTempo(bpm) != roundTempo(last.BPM) && currentTick != last.Tick {
								tempoChanges = append(tempoChanges, Tempo{Tick: currentTick, BPM: bpm})
							}
						}
					}
				case cfg.UseRests && !step[t.fieldIdx[TypeRest]].IsAbsent():
					if rv, err := parseDurationValue(step[t.fieldIdx[TypeRest]].Value); err == nil {
						if grid.prevNoteEnd > currentTick {
							currentTick = grid.prevNoteEnd
						}
						currentTick += rv.Ticks(td)
						grid.catchUp(currentTick)
					}
				}
				if currentTick > grid.prevNoteEnd {
					grid.prevNoteEnd = currentTick
				}
			}
		}
		if !cfg.UsePrograms {
			score.Tracks = append(score.Tracks, *seqTrack)
		}
	}

	if cfg.UsePrograms {
		for _, p := range pooledOrder {
			score.Tracks = append(score.Tracks, *pooled[p])
		}
	}
	score.Tempos = finishTempos(tempoChanges, cfg.DefaultTempo)
	score.TimeSignatures = timeSigChanges
	return score
}

// finishTempos drops the mocked seed entry and makes sure the tempo map
// starts with a change at tick 0.
func finishTempos(changes []Tempo, defaultTempo float64) []Tempo {
	changes = changes[1:]
	switch {
	case len(changes) == 0:
		changes = []Tempo{{Tick: 0, BPM: defaultTempo}}
	case changes[0].Tick != 0 && roundTempo(changes[0].BPM) != defaultTempo:
		changes = append([]Tempo{{Tick: 0, BPM: defaultTempo}}, changes...)
	case roundTempo(changes[0].BPM) == defaultTempo:
		changes[0].Tick = 0
	}
	return changes
}

func newProgramTrack(program int) *Track {
	if program == -1 {
		return &Track{Program: 0, IsDrum: true, Name: "Drums"}
	}
	return &Track{Program: program}
}

// stepType reduces a compound token to the single type/value pair the
// grammar reasons about: Pitch for note steps, Bar or Position for metric
// steps, otherwise the last populated optional field.
func (t *CPWord) stepType(step Step) (TokenType, string) {
	if len(step) == 0 {
		return TypeIgnore, "None"
	}
	switch step[0].Value {
	case "Note":
		if len(step) > 2 {
			return step[2].Type, step[2].Value
		}
	case "Metric":
		if len(step) > 1 && (step[1].Type == TypeBar || step[1].Type == TypePosition) {
			return step[1].Type, step[1].Value
		}
		for i := 1; i <= 4 && i <= len(step); i++ {
			if tok := step[len(step)-i]; tok.Type != TypeIgnore {
				return tok.Type, tok.Value
			}
		}
	}
	return TypeIgnore, "None"
}

// TokensErrors counts grammar violations in a sequence: illegal type
// successions, position values running backwards within a bar (unless a
// rest precedes), and, when duplicate removal is configured, a pitch
// sounding twice at the same position and program. At most one error per
// step.
func (t *CPWord) TokensErrors(seq TokSequence) int {
	if len(seq.Steps) == 0 {
		return 0
	}
	errs := 0
	prevType, _ := t.stepType(seq.Steps[0])
	currentPos := -1
	program := 0
	pitches := map[int]map[int]bool{}

	for _, step := range seq.Steps[1:] {
		typ, val := t.stepType(step)
		if !t.graph.allows(prevType, typ) {
			errs++
			prevType = typ
			continue
		}
		switch typ {
		case TypeBar:
			currentPos = -1
			pitches = map[int]map[int]bool{}
		case TypePitch:
			if t.cfg.RemoveDuplicatedNotes {
				if t.cfg.UsePrograms {
					if p, err := step[t.fieldIdx[TypeProgram]].Int(); err == nil {
						program = p
					}
				}
				if pitch, err := strconv.Atoi(val); err == nil {
					if pitches[program][pitch] {
						errs++
					} else {
						if pitches[program] == nil {
							pitches[program] = map[int]bool{}
						}
						pitches[program][pitch] = true
					}
				}
			}
		case TypePosition:
			if pos, err := strconv.Atoi(val); err == nil {
				if pos <= currentPos && prevType != TypeRest {
					errs++
				} else {
					currentPos = pos
					pitches = map[int]map[int]bool{}
				}
			}
		}
		prevType = typ
	}
	return errs
}
