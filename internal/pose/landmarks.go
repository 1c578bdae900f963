package pose

import (
	"errors"
	"fmt"
)

// Hand landmark indices following the MediaPipe convention.
const (
	Wrist        = 0
	ThumbIP      = 3
	ThumbTip     = 4
	IndexPIP     = 6
	IndexTip     = 8
	MiddlePIP    = 10
	MiddleTip    = 12
	RingPIP      = 14
	RingTip      = 16
	PinkyPIP     = 18
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrIncompleteLandmarks indicates a hand with fewer than NumLandmarks points.
var ErrIncompleteLandmarks = errors.New("hand must have 21 landmarks")

// Point3D is a normalised landmark position (image coordinates, y grows down).
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is the 21-point skeleton of one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"`
	Score      float64               `json:"score"`
}

// fingerJoints pairs each non-thumb fingertip with its PIP joint.
var fingerJoints = [4][2]int{
	{IndexTip, IndexPIP},
	{MiddleTip, MiddlePIP},
	{RingTip, RingPIP},
	{PinkyTip, PinkyPIP},
}

// ExtendedFingers counts raised fingers.
// The thumb is up when its tip is left of the IP joint (mirrored camera view);
// every other finger is up when its tip is above its PIP joint.
func (h *HandLandmarks) ExtendedFingers() int {
	count := 0
	if h.Points[ThumbTip].X < h.Points[ThumbIP].X {
		count++
	}
	for _, j := range fingerJoints {
		if h.Points[j[0]].Y < h.Points[j[1]].Y {
			count++
		}
	}
	return count
}

// Classify maps the finger count onto a pose: 0 is a fist, 5 an open hand.
func (h *HandLandmarks) Classify() Pose {
	switch h.ExtendedFingers() {
	case 0:
		return Fist
	case 5:
		return OpenHand
	default:
		return Other
	}
}

// jsonHand is the wire shape emitted by landmark helpers.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (j jsonHand) toHandLandmarks() (HandLandmarks, error) {
	if len(j.Points) < NumLandmarks {
		return HandLandmarks{}, fmt.Errorf("%w: got %d", ErrIncompleteLandmarks, len(j.Points))
	}
	lm := HandLandmarks{
		Handedness: j.Handedness,
		Score:      j.Score,
	}
	copy(lm.Points[:], j.Points[:NumLandmarks])
	return lm, nil
}
