package miditok

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/viterin/vek"
)

type (
	// DurationValue is one entry of a duration or rest table: Beats whole
	// beats plus Subdiv/Resolution of a beat. The token spelling is
	// "beats.subdiv.resolution", e.g. "1.2.8".
	DurationValue struct {
		Beats      int
		Subdiv     int
		Resolution int
	}

	// quantizer holds the tables every continuous attribute is snapped to.
	// Built once per tokenizer from the configuration and immutable
	// afterwards.
	quantizer struct {
		timeDivision  int
		durations     []DurationValue
		durationTicks []float64
		rests         []DurationValue
		restTicks     []float64
		minRest       int
		velocities    []int
		velocityVals  []float64
		tempos        []float64
		scratch       []float64
	}
)

// Ticks returns the exact tick length of the entry under the given time
// division.
func (d DurationValue) Ticks(timeDivision int) int {
	return d.Beats*timeDivision + d.Subdiv*timeDivision/d.Resolution
}

func (d DurationValue) String() string {
	return fmt.Sprintf("%d.%d.%d", d.Beats, d.Subdiv, d.Resolution)
}

func parseDurationValue(s string) (DurationValue, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return DurationValue{}, fmt.Errorf("invalid duration value %q", s)
	}
	var ret DurationValue
	var err error
	if ret.Beats, err = strconv.Atoi(parts[0]); err != nil {
		return DurationValue{}, fmt.Errorf("invalid duration value %q: %w", s, err)
	}
	if ret.Subdiv, err = strconv.Atoi(parts[1]); err != nil {
		return DurationValue{}, fmt.Errorf("invalid duration value %q: %w", s, err)
	}
	if ret.Resolution, err = strconv.Atoi(parts[2]); err != nil {
		return DurationValue{}, fmt.Errorf("invalid duration value %q: %w", s, err)
	}
	return ret, nil
}

// buildDurationTable enumerates every (beat, subdiv) of the ranges plus one
// final entry for the largest expressible duration, skipping the zero-length
// entry. The table is ordered by tick length.
func buildDurationTable(ranges []BeatRange, timeDivision int) ([]DurationValue, []float64) {
	var vals []DurationValue
	for _, r := range ranges {
		for beat := r.Begin; beat < r.End; beat++ {
			for sub := 0; sub < r.Resolution; sub++ {
				if beat == 0 && sub == 0 {
					continue
				}
				vals = append(vals, DurationValue{Beats: beat, Subdiv: sub, Resolution: r.Resolution})
			}
		}
	}
	if len(ranges) > 0 {
		last := ranges[len(ranges)-1]
		vals = append(vals, DurationValue{Beats: last.End, Subdiv: 0, Resolution: last.Resolution})
	}
	ticks := make([]float64, len(vals))
	for i, v := range vals {
		ticks[i] = float64(v.Ticks(timeDivision))
	}
	return vals, ticks
}

func newQuantizer(c *TokenizerConfig) *quantizer {
	q := &quantizer{timeDivision: c.TimeDivision}
	q.durations, q.durationTicks = buildDurationTable(c.BeatRes, c.TimeDivision)
	if c.UseRests {
		q.rests, q.restTicks = buildDurationTable(c.BeatResRest, c.TimeDivision)
		q.minRest = int(q.restTicks[0])
	}
	q.velocities = make([]int, c.NumVelocities)
	q.velocityVals = make([]float64, c.NumVelocities)
	for i := range q.velocities {
		// linspace over (0, 127], zero excluded
		v := int(float64(i+1) * 127 / float64(c.NumVelocities))
		q.velocities[i] = v
		q.velocityVals[i] = float64(v)
	}
	if c.UseTempos {
		q.tempos = make([]float64, c.NumTempos)
		if c.NumTempos == 1 {
			q.tempos[0] = math.Trunc(c.TempoRange[0])
		} else {
			for i := range q.tempos {
				t := c.TempoRange[0] + float64(i)*(c.TempoRange[1]-c.TempoRange[0])/float64(c.NumTempos-1)
				q.tempos[i] = math.Trunc(t)
			}
		}
	}
	n := len(q.durationTicks)
	if len(q.restTicks) > n {
		n = len(q.restTicks)
	}
	if len(q.tempos) > n {
		n = len(q.tempos)
	}
	if len(q.velocityVals) > n {
		n = len(q.velocityVals)
	}
	q.scratch = make([]float64, n)
	return q
}

// nearestIndex returns the index of the table value closest to target, the
// first one winning ties.
func (q *quantizer) nearestIndex(table []float64, target float64) int {
	diff := vek.SubNumber_Into(q.scratch[:len(table)], table, target)
	vek.Abs_Inplace(diff)
	return vek.ArgMin(diff)
}

// quantizeDuration snaps a tick length to the closest duration table entry.
func (q *quantizer) quantizeDuration(ticks int) DurationValue {
	return q.durations[q.nearestIndex(q.durationTicks, float64(ticks))]
}

// quantizeVelocity snaps a velocity to the closest bin value.
func (q *quantizer) quantizeVelocity(velocity int) int {
	return q.velocities[q.nearestIndex(q.velocityVals, float64(velocity))]
}

// quantizeTempo snaps a BPM value to the closest tempo bin.
func (q *quantizer) quantizeTempo(bpm float64) float64 {
	return q.tempos[q.nearestIndex(q.tempos, bpm)]
}

// defaultTempoValue is the tempo the decoder assumes before any Tempo token:
// the table entry closest to the configured default.
func (q *quantizer) defaultTempoValue(c *TokenizerConfig) float64 {
	if !c.UseTempos || len(q.tempos) == 0 {
		return c.DefaultTempo
	}
	return q.quantizeTempo(c.DefaultTempo)
}

// restDecomposition splits a gap of ticks into rest table entries, greedily
// taking the largest entry that still fits. The remainder smaller than the
// minimum rest is dropped. Greedy on purpose: the token count is not
// minimized and downstream vocabularies depend on this exact decomposition.
func (q *quantizer) restDecomposition(gap int) []DurationValue {
	var ret []DurationValue
	for gap >= q.minRest {
		i := len(q.restTicks) - 1
		for i > 0 && int(q.restTicks[i]) > gap {
			i--
		}
		ret = append(ret, q.rests[i])
		gap -= int(q.restTicks[i])
	}
	return ret
}

// ticksPerBar returns the bar length in ticks under the given signature.
func ticksPerBar(num, den, timeDivision int) int {
	return num * timeDivision * 4 / den
}

// formatTempo spells a tempo value the way it appears in tokens: rounded to
// two decimals, without trailing zeros.
func formatTempo(bpm float64) string {
	return strconv.FormatFloat(math.Round(bpm*100)/100, 'f', -1, 64)
}

func roundTempo(bpm float64) float64 {
	return math.Round(bpm*100) / 100
}

// parseTempoValue parses a tempo token value; "None" and malformed values
// report false.
func parseTempoValue(s string) (float64, bool) {
	if s == "None" {
		return 0, false
	}
	bpm, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return bpm, true
}
