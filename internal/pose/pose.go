// Package pose defines the hand pose classifier boundary: the per-frame pose
// labels the decoder consumes and the sources that produce them.
package pose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pose is the discrete hand pose reported for one frame.
type Pose int

const (
	// None means no hand was detected in the frame.
	None Pose = iota
	// Fist is a closed hand (no extended fingers). Produces a dot.
	Fist
	// OpenHand has all five fingers extended. Produces a dash.
	OpenHand
	// Other is any detected hand that is neither a fist nor an open hand.
	Other
)

// String returns the canonical label for the pose.
func (p Pose) String() string {
	switch p {
	case None:
		return "none"
	case Fist:
		return "fist"
	case OpenHand:
		return "open_hand"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("pose(%d)", int(p))
	}
}

var (
	// ErrSourceClosed is returned by Poll once the frame source has ended.
	ErrSourceClosed = errors.New("pose source closed")
	// ErrUnknownPose indicates a label that does not name a pose
	ErrUnknownPose = errors.New("unknown pose label")
)

// ParsePose converts a label into a Pose. Matching is case-insensitive and
// accepts a few common aliases.
func ParsePose(label string) (Pose, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "none", "", "absent", "no_hand":
		return None, nil
	case "fist", "closed", "dot":
		return Fist, nil
	case "open", "open_hand", "openhand", "palm", "dash":
		return OpenHand, nil
	case "other", "hand":
		return Other, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownPose, label)
	}
}

// Observation is one classifier result.
type Observation struct {
	// HandPresent is true when a hand was detected in the frame
	HandPresent bool
	// Pose is the classified pose (None when no hand)
	Pose Pose
	// At is when the frame was captured; zero means "stamp on receipt"
	At time.Time
}

// Effective reconciles the presence flag with the pose label.
// A hand with no usable label counts as Other; a recognised pose implies a hand.
func (o Observation) Effective() Pose {
	if o.Pose == None && o.HandPresent {
		return Other
	}
	return o.Pose
}

// Present reports whether the frame contains a hand.
func (o Observation) Present() bool {
	return o.Effective() != None
}

// Classifier produces one observation per frame.
// Poll blocks until the next frame is available or ctx is done.
type Classifier interface {
	Poll(ctx context.Context) (Observation, error)
	Close() error
}
