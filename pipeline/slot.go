package pipeline

import (
	"sync"
)

// Slot is a single-frame mailbox between a capture source and the scheduler.
//
// Put never blocks: an unconsumed frame is released and replaced, so the
// consumer always sees the freshest frame and the producer never queues.
type Slot struct {
	mu     sync.Mutex
	frame  *Frame
	closed bool

	puts  uint64
	drops uint64
}

type SlotStats struct {
	Puts  uint64
	Drops uint64
}

func NewSlot() *Slot {
	return &Slot{}
}

// Put hands f to the slot. After Close, f is released immediately.
func (s *Slot) Put(f *Frame) {
	var old *Frame

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f.Release()
		return
	}
	s.puts++
	if s.frame != nil {
		old = s.frame
		s.drops++
	}
	s.frame = f
	s.mu.Unlock()

	old.Release()
}

// TakeAndClear returns the held frame, or nil, and empties the slot. The
// caller owns the returned frame.
func (s *Slot) TakeAndClear() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frame
	s.frame = nil
	return f
}

// Open re-enables a closed slot.
func (s *Slot) Open() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

// Close releases the held frame and makes further puts release on arrival.
func (s *Slot) Close() {
	s.mu.Lock()
	s.closed = true
	f := s.frame
	s.frame = nil
	s.mu.Unlock()

	f.Release()
}

func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotStats{Puts: s.puts, Drops: s.drops}
}
