package engine

import "sync/atomic"

// Sequencer hands out strictly increasing submission numbers.
type Sequencer struct {
	next atomic.Uint64
}

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued number.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
