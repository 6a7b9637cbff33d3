package miditok

// timeGrid tracks where the bars fall on the tick axis while a token stream
// is produced or replayed. Bar boundaries are multiples of ticksPerBar
// counted from the last time-signature change; the bar index itself
// accumulates across changes. One timeGrid is created per encode or decode
// call and thrown away afterwards.
type timeGrid struct {
	timeDivision int

	currentBar       int // -1 until the first bar is entered
	tickAtCurrentBar int
	barAtLastSig     int
	tickAtLastSig    int
	ticksPerBar      int
	currentNum       int
	currentDen       int

	prevTick    int // tick of the previous event, -1 initially
	prevNoteEnd int // largest note end seen so far
}

func newTimeGrid(timeDivision, num, den int) *timeGrid {
	return &timeGrid{
		timeDivision: timeDivision,
		currentBar:   -1,
		ticksPerBar:  ticksPerBar(num, den, timeDivision),
		currentNum:   num,
		currentDen:   den,
		prevTick:     -1,
	}
}

// barAt returns the bar index of an absolute tick under the active
// signature.
func (g *timeGrid) barAt(tick int) int {
	return g.barAtLastSig + (tick-g.tickAtLastSig)/g.ticksPerBar
}

// newBars returns how many bar boundaries lie between the current bar and
// the given tick.
func (g *timeGrid) newBars(tick int) int {
	return g.barAt(tick) - g.currentBar
}

// advanceBars moves the grid forward n bars and returns the tick at the new
// bar start.
func (g *timeGrid) advanceBars(n int) int {
	g.currentBar += n
	g.tickAtCurrentBar = g.tickAtLastSig + (g.currentBar-g.barAtLastSig)*g.ticksPerBar
	return g.tickAtCurrentBar
}

// position returns the intra-bar offset of the tick, in ticks.
func (g *timeGrid) position(tick int) int {
	return tick - g.tickAtCurrentBar
}

// catchUp recomputes the current bar after the tick cursor moved without
// bar tokens being materialized (a rest). No bar-boundary side effects: only
// the cursor moves. If the stream begins with a rest the grid starts at
// bar 0.
func (g *timeGrid) catchUp(tick int) {
	realBar := g.barAt(tick)
	if realBar > g.currentBar {
		if g.currentBar == -1 {
			g.currentBar = 0
		}
		g.tickAtCurrentBar += (realBar - g.currentBar) * g.ticksPerBar
		g.currentBar = realBar
	}
}

// setSignature replaces the active signature without any bar bookkeeping.
// Used to seed the grid from a time-signature event at tick 0.
func (g *timeGrid) setSignature(num, den int) {
	g.ticksPerBar = ticksPerBar(num, den, g.timeDivision)
	g.currentNum = num
	g.currentDen = den
}

// changeSignature applies a time-signature change at the given tick: the
// bars reached under the old signature are banked and the bar length is
// recomputed. The previous-tick sentinel is pulled back by one so that the
// next event re-emits a Position token even at an unchanged tick.
func (g *timeGrid) changeSignature(tick, num, den int) {
	g.barAtLastSig += (tick - g.tickAtLastSig) / g.ticksPerBar
	g.tickAtLastSig = tick
	g.ticksPerBar = ticksPerBar(num, den, g.timeDivision)
	g.currentNum = num
	g.currentDen = den
	g.prevTick--
}
