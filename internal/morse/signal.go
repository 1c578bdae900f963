// internal/morse/signal.go
package morse

// Signal accumulates the impulses of the letter currently being formed.
// It is not safe for concurrent use; the decoder owns it exclusively.
type Signal struct {
	impulses []Impulse
	limit    int
}

// NewSignal creates an empty buffer holding at most limit impulses.
// A limit outside 1..MaxSignalLength is clamped to MaxSignalLength.
func NewSignal(limit int) *Signal {
	if limit <= 0 || limit > MaxSignalLength {
		limit = MaxSignalLength
	}
	return &Signal{
		impulses: make([]Impulse, 0, limit),
		limit:    limit,
	}
}

// Append adds an impulse to the buffer.
// Returns false when the buffer is full; the impulse is dropped and every
// further append is rejected until Flush.
func (s *Signal) Append(imp Impulse) bool {
	if len(s.impulses) >= s.limit {
		return false
	}
	s.impulses = append(s.impulses, imp)
	return true
}

// Flush returns the buffered impulses and empties the buffer.
// Flushing an empty buffer returns an empty, non-nil slice.
func (s *Signal) Flush() []Impulse {
	out := make([]Impulse, len(s.impulses))
	copy(out, s.impulses)
	s.impulses = s.impulses[:0]
	return out
}

// Len returns the number of buffered impulses.
func (s *Signal) Len() int {
	return len(s.impulses)
}

// Full reports whether further appends will be rejected.
func (s *Signal) Full() bool {
	return len(s.impulses) >= s.limit
}

// Limit returns the buffer capacity.
func (s *Signal) Limit() int {
	return s.limit
}

// String renders the buffered impulses as '.' and '-' markers.
func (s *Signal) String() string {
	return Render(s.impulses)
}
