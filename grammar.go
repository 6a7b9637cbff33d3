package miditok

// grammar is a directed graph over token types: which type may follow
// which. It only speaks about types; value-level checks (position
// regressions, duplicated pitches) are layered on top by the schemes'
// error counters.
type grammar struct {
	succ map[TokenType]map[TokenType]bool
}

func newGrammar() *grammar {
	return &grammar{succ: map[TokenType]map[TokenType]bool{}}
}

func (g *grammar) add(from TokenType, to ...TokenType) {
	set := g.succ[from]
	if set == nil {
		set = map[TokenType]bool{}
		g.succ[from] = set
	}
	for _, t := range to {
		set[t] = true
	}
}

// allows reports whether a token of type to may follow one of type from.
// Unknown predecessors allow nothing.
func (g *grammar) allows(from, to TokenType) bool {
	return g.succ[from][to]
}

// nodes returns every type appearing as a predecessor.
func (g *grammar) nodes() []TokenType {
	ret := make([]TokenType, 0, len(g.succ))
	for t := range g.succ {
		ret = append(ret, t)
	}
	return ret
}
