package pose

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/metrics"
)

// maxLineSize bounds a single frame line; a 21-point landmark frame is ~2KB.
const maxLineSize = 256 * 1024

// frame is one parsed line, or the terminal error of the stream.
type frame struct {
	obs Observation
	err error
}

// StreamClassifier reads newline-delimited frames from a reader.
//
// Accepted line forms:
//
//	fist                      bare label
//	1.5 open                  label with a timestamp in seconds from stream start
//	{"pose":"fist","t":0.5}   JSON label
//	{"hand":true}             hand present, unrecognised pose
//	{"hands":[{"points":[...21 points...]}]}   landmarks, classified by finger count
//
// Blank lines and lines starting with '#' are skipped. Malformed lines are
// logged and skipped.
type StreamClassifier struct {
	frames    chan frame
	done      chan struct{}
	closer    io.Closer
	closeOnce sync.Once
	start     time.Time
	now       func() time.Time
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewStreamClassifier starts reading frames from r. Rejected lines are counted
// on m; a nil m records to metrics.Default.
// If r is also an io.Closer it is closed by Close.
func NewStreamClassifier(r io.Reader, m *metrics.Metrics) *StreamClassifier {
	return newStreamClassifier(r, time.Now, m)
}

func newStreamClassifier(r io.Reader, now func() time.Time, m *metrics.Metrics) *StreamClassifier {
	if m == nil {
		m = metrics.Default
	}
	s := &StreamClassifier{
		frames:  make(chan frame, 1),
		done:    make(chan struct{}),
		start:   now(),
		now:     now,
		metrics: m,
		log:     logging.WithComponent("pose"),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	go s.read(r)
	return s
}

// Poll returns the next frame. It returns ErrSourceClosed once the stream has
// ended and ctx.Err() when the context is done first.
func (s *StreamClassifier) Poll(ctx context.Context) (Observation, error) {
	select {
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	case f, ok := <-s.frames:
		if !ok {
			return Observation{}, ErrSourceClosed
		}
		return f.obs, f.err
	}
}

// Close stops the reader. Safe to call more than once.
func (s *StreamClassifier) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

func (s *StreamClassifier) read(r io.Reader) {
	defer close(s.frames)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		obs, ok, err := parseLine(scanner.Text(), s.start)
		if err != nil {
			s.log.Warn().Err(err).Int("line", lineNo).Msg("skipping malformed frame")
			s.metrics.FramesRejected.Inc()
			continue
		}
		if !ok {
			continue
		}
		if obs.At.IsZero() {
			obs.At = s.now()
		}
		if !s.send(frame{obs: obs}) {
			return
		}
	}

	err := ErrSourceClosed
	if scanErr := scanner.Err(); scanErr != nil {
		err = fmt.Errorf("%w: %v", ErrSourceClosed, scanErr)
	}
	s.send(frame{err: err})
}

func (s *StreamClassifier) send(f frame) bool {
	select {
	case s.frames <- f:
		return true
	case <-s.done:
		return false
	}
}

// jsonFrame is the JSON line form. Hands is a pointer so that an explicit
// empty list ("no hands") can be told apart from an absent field.
type jsonFrame struct {
	T     *float64    `json:"t"`
	Hand  *bool       `json:"hand"`
	Pose  string      `json:"pose"`
	Hands *[]jsonHand `json:"hands"`
}

// parseLine decodes one stream line. ok is false for lines that carry no frame.
func parseLine(line string, start time.Time) (obs Observation, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Observation{}, false, nil
	}
	if strings.HasPrefix(line, "{") {
		obs, err = parseJSONLine(line, start)
		return obs, err == nil, err
	}

	fields := strings.Fields(line)
	label := fields[0]
	switch len(fields) {
	case 1:
	case 2:
		secs, perr := strconv.ParseFloat(fields[0], 64)
		if perr != nil {
			return Observation{}, false, fmt.Errorf("invalid timestamp %q: %w", fields[0], perr)
		}
		obs.At = offset(start, secs)
		label = fields[1]
	default:
		return Observation{}, false, fmt.Errorf("expected \"[seconds] label\", got %q", line)
	}

	p, err := ParsePose(label)
	if err != nil {
		return Observation{}, false, err
	}
	obs.Pose = p
	obs.HandPresent = p != None
	return obs, true, nil
}

func parseJSONLine(line string, start time.Time) (Observation, error) {
	var jf jsonFrame
	if err := json.Unmarshal([]byte(line), &jf); err != nil {
		return Observation{}, fmt.Errorf("decode frame: %w", err)
	}

	var obs Observation
	if jf.T != nil {
		obs.At = offset(start, *jf.T)
	}

	if jf.Hands != nil {
		hands := *jf.Hands
		if len(hands) == 0 {
			return obs, nil
		}
		lm, err := hands[0].toHandLandmarks()
		if err != nil {
			return Observation{}, err
		}
		obs.HandPresent = true
		obs.Pose = lm.Classify()
		return obs, nil
	}

	p, err := ParsePose(jf.Pose)
	if err != nil {
		return Observation{}, err
	}
	obs.Pose = p
	obs.HandPresent = p != None
	if jf.Hand != nil {
		obs.HandPresent = *jf.Hand
	}
	if !obs.HandPresent && p != None {
		return Observation{}, errors.New("pose given for a frame without a hand")
	}
	return obs, nil
}

func offset(start time.Time, secs float64) time.Time {
	return start.Add(time.Duration(secs * float64(time.Second)))
}
