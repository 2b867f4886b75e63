package overlay

import "sync/atomic"

// Generations issues monotonically increasing cycle tokens.
type Generations struct {
	latest atomic.Uint64
}

// Next issues the token for a newly started cycle.
func (g *Generations) Next() Token {
	return Token{generation: g.latest.Add(1), source: g}
}

// Latest returns the most recently issued generation.
func (g *Generations) Latest() uint64 {
	return g.latest.Load()
}

// Token identifies one cycle. The zero Token is never stale.
type Token struct {
	generation uint64
	source     *Generations
}

// Generation returns the cycle's generation number.
func (t Token) Generation() uint64 {
	return t.generation
}

// Stale reports whether a newer cycle has started since t was issued.
func (t Token) Stale() bool {
	return t.source != nil && t.source.Latest() > t.generation
}
