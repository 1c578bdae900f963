package pose

import (
	"context"
	"sync"
	"time"
)

// MockClassifier is a scripted Classifier for tests and demos.
// It returns the queued observations in order, then ErrSourceClosed (or the
// configured error).
type MockClassifier struct {
	mu     sync.Mutex
	frames []Observation
	err    error
	closed bool
	polls  int
}

// NewMockClassifier creates a classifier that replays frames.
func NewMockClassifier(frames ...Observation) *MockClassifier {
	return &MockClassifier{frames: frames}
}

// SetError sets the error returned once the script is exhausted.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Poll returns the next scripted frame.
func (m *MockClassifier) Poll(ctx context.Context) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.polls++
	if len(m.frames) == 0 {
		if m.err != nil {
			return Observation{}, m.err
		}
		return Observation{}, ErrSourceClosed
	}
	obs := m.frames[0]
	m.frames = m.frames[1:]
	return obs, nil
}

// Close marks the classifier closed.
func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClassifier) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Polls returns how many times Poll was called.
func (m *MockClassifier) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// Timeline builds observations at fixed offsets from a base time.
type Timeline struct {
	base   time.Time
	frames []Observation
}

// NewTimeline starts a timeline at base.
func NewTimeline(base time.Time) *Timeline {
	return &Timeline{base: base}
}

// At appends a frame with pose p at offset d.
func (t *Timeline) At(d time.Duration, p Pose) *Timeline {
	t.frames = append(t.frames, Observation{
		HandPresent: p != None,
		Pose:        p,
		At:          t.base.Add(d),
	})
	return t
}

// Absent appends no-hand frames every step from offset from (inclusive) to to (inclusive).
func (t *Timeline) Absent(from, to, step time.Duration) *Timeline {
	for d := from; d <= to; d += step {
		t.At(d, None)
	}
	return t
}

// Frames returns the built observations.
func (t *Timeline) Frames() []Observation {
	out := make([]Observation, len(t.frames))
	copy(out, t.frames)
	return out
}

// FistLandmarks returns a preset hand with every finger curled.
func FistLandmarks() HandLandmarks {
	lm := HandLandmarks{Handedness: "Right", Score: 0.95}
	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	// Thumb folded across the palm: tip right of the IP joint.
	lm.Points[ThumbIP] = Point3D{X: 0.52, Y: 0.66}
	lm.Points[ThumbTip] = Point3D{X: 0.56, Y: 0.68}

	// Fingertips below their PIP joints.
	lm.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.62}
	lm.Points[IndexTip] = Point3D{X: 0.55, Y: 0.70}
	lm.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.60}
	lm.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.69}
	lm.Points[RingPIP] = Point3D{X: 0.45, Y: 0.62}
	lm.Points[RingTip] = Point3D{X: 0.45, Y: 0.70}
	lm.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.66}
	lm.Points[PinkyTip] = Point3D{X: 0.40, Y: 0.72}
	return lm
}

// OpenHandLandmarks returns a preset hand with all five fingers extended.
func OpenHandLandmarks() HandLandmarks {
	lm := HandLandmarks{Handedness: "Right", Score: 0.95}
	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	lm.Points[ThumbIP] = Point3D{X: 0.62, Y: 0.68}
	lm.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.60}

	lm.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55}
	lm.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35}
	lm.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52}
	lm.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28}
	lm.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55}
	lm.Points[RingTip] = Point3D{X: 0.42, Y: 0.35}
	lm.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60}
	lm.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42}
	return lm
}
