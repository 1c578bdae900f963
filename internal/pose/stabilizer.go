package pose

import (
	"context"
	"errors"
)

// ErrInvalidHysteresis indicates hysteresis must be at least one frame
var ErrInvalidHysteresis = errors.New("pose hysteresis must be at least 1 frame")

// Stabilizer applies hysteresis to a classifier: a pose change is confirmed
// only after it has been reported for a number of consecutive frames. This
// removes single-frame flicker between poses. With one frame it passes every
// observation through unchanged.
type Stabilizer struct {
	src    Classifier
	frames int

	confirmed Pose // current confirmed pose
	pending   Pose // pose we are transitioning to
	count     int  // consecutive frames in pending pose
}

// NewStabilizer wraps src with the given hysteresis in frames.
func NewStabilizer(src Classifier, frames int) (*Stabilizer, error) {
	if frames < 1 {
		return nil, ErrInvalidHysteresis
	}
	return &Stabilizer{src: src, frames: frames}, nil
}

// Poll reads the next frame from the wrapped classifier and reports the
// confirmed pose for it.
func (s *Stabilizer) Poll(ctx context.Context) (Observation, error) {
	obs, err := s.src.Poll(ctx)
	if err != nil {
		return obs, err
	}
	s.update(obs.Effective())

	obs.Pose = s.confirmed
	obs.HandPresent = s.confirmed != None
	return obs, nil
}

func (s *Stabilizer) update(p Pose) {
	if p == s.confirmed {
		s.pending = s.confirmed
		s.count = 0
		return
	}

	if p == s.pending {
		s.count++
	} else {
		s.pending = p
		s.count = 1
	}

	if s.count >= s.frames {
		s.confirmed = s.pending
		s.count = 0
	}
}

// Close closes the wrapped classifier.
func (s *Stabilizer) Close() error {
	return s.src.Close()
}
