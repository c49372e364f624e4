// Package series holds the bounded in-memory price history of every symbol.
//
// The generator is the only writer. Readers (subscribe handlers, the HTTP
// history endpoint) always get a copy, so they never observe a series
// changing under them.
package series

import (
	"fmt"
	"sync"

	"tickstream/internal/model"
)

// DefaultMaxLength is used when New is given a non-positive bound.
const DefaultMaxLength = 600

// Store owns one bounded series per symbol of the universe.
type Store struct {
	universe  model.Universe
	maxLength int

	mu     sync.RWMutex
	series map[string]*ring
}

// New creates an empty store for the universe. Each series keeps at most
// maxLength samples; older ones are evicted from the front.
func New(universe model.Universe, maxLength int) *Store {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	s := &Store{
		universe:  universe,
		maxLength: maxLength,
		series:    make(map[string]*ring, universe.Len()),
	}
	for _, sym := range universe.Symbols() {
		s.series[sym] = newRing(maxLength)
	}
	return s
}

// Universe returns the symbols this store accepts.
func (s *Store) Universe() model.Universe { return s.universe }

// MaxLength returns the retention bound per symbol.
func (s *Store) MaxLength() int { return s.maxLength }

// Append adds sample to the tail of symbol's series, evicting the oldest
// sample when the bound is exceeded.
func (s *Store) Append(symbol string, sample model.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[symbol]
	if !ok {
		return fmt.Errorf("append %q: %w", symbol, model.ErrUnknownSymbol)
	}
	if last, ok := r.last(); ok && sample.TS < last.TS {
		return fmt.Errorf("append %q at %d (tail %d): %w", symbol, sample.TS, last.TS, model.ErrOutOfOrder)
	}
	r.push(sample)
	return nil
}

// Latest returns the most recent sample of symbol.
func (s *Store) Latest(symbol string) (model.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[symbol]
	if !ok {
		return model.Sample{}, fmt.Errorf("latest %q: %w", symbol, model.ErrUnknownSymbol)
	}
	last, ok := r.last()
	if !ok {
		return model.Sample{}, fmt.Errorf("latest %q: %w", symbol, model.ErrEmpty)
	}
	return last, nil
}

// History returns a copy of symbol's retained series, oldest first.
func (s *Store) History(symbol string) ([]model.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[symbol]
	if !ok {
		return nil, fmt.Errorf("history %q: %w", symbol, model.ErrUnknownSymbol)
	}
	return r.snapshot(), nil
}

// Len returns the number of retained samples for symbol, 0 if unknown.
func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[symbol]; ok {
		return r.len()
	}
	return 0
}
