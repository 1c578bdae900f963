// internal/session/loop.go
// Package session runs the decode loop: poll the pose classifier, step the
// decoder, notify the actuator, record letters and refresh the display.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/actuator"
	"github.com/ColonelBlimp/handmorse/internal/decoder"
	"github.com/ColonelBlimp/handmorse/internal/display"
	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/metrics"
	"github.com/ColonelBlimp/handmorse/internal/morse"
	"github.com/ColonelBlimp/handmorse/internal/pose"
)

// ErrAcquisition wraps the classifier error that ended a session.
var ErrAcquisition = errors.New("pose acquisition failed")

// ErrMissingComponent indicates a required collaborator was not supplied
var ErrMissingComponent = errors.New("session requires a classifier and a decoder")

// End reasons recorded in the transcript.
const (
	ReasonQuit        = "quit"
	ReasonEndOfStream = "end_of_stream"
	ReasonError       = "error"
)

// Recorder persists the session transcript.
type Recorder interface {
	RecordLetter(letter rune, code string, at time.Time) error
	RecordReset(at time.Time) error
	End(sentence, reason string, at time.Time) error
}

// Options configures a Loop. Classifier and Decoder are required; the rest
// default to no-ops.
type Options struct {
	Classifier  pose.Classifier
	Decoder     *decoder.Decoder
	Notifier    actuator.Notifier
	Sink        display.Sink
	Recorder    Recorder
	Metrics     *metrics.Metrics
	FlushOnExit bool
	// Clock stamps observations that carry no capture time
	Clock func() time.Time
}

// Loop is the single goroutine that owns the decoder.
type Loop struct {
	src      pose.Classifier
	dec      *decoder.Decoder
	notifier actuator.Notifier
	sink     display.Sink
	recorder Recorder
	metrics  *metrics.Metrics
	flush    bool
	now      func() time.Time
	log      zerolog.Logger

	resetCh chan struct{}
}

// New validates opts and creates a loop.
func New(opts Options) (*Loop, error) {
	if opts.Classifier == nil || opts.Decoder == nil {
		return nil, ErrMissingComponent
	}
	l := &Loop{
		src:      opts.Classifier,
		dec:      opts.Decoder,
		notifier: opts.Notifier,
		sink:     opts.Sink,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		flush:    opts.FlushOnExit,
		now:      opts.Clock,
		log:      logging.WithComponent("session"),
		resetCh:  make(chan struct{}, 1),
	}
	if l.notifier == nil {
		l.notifier = actuator.Disabled{}
	}
	if l.sink == nil {
		l.sink = display.Nop{}
	}
	if l.metrics == nil {
		l.metrics = metrics.Default
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// Reset requests a sentence reset. It never blocks; the reset is applied
// by the loop before the next frame.
func (l *Loop) Reset() {
	select {
	case l.resetCh <- struct{}{}:
	default:
		// a reset is already pending
	}
}

// Run processes frames until ctx is cancelled (returns nil) or the classifier
// fails (returns an error wrapping ErrAcquisition; pose.ErrSourceClosed marks
// the end of the stream). The shutdown policy is applied on every exit path
// and the final state is published.
func (l *Loop) Run(ctx context.Context) (err error) {
	l.log.Info().
		Dur("debounce", l.dec.Config().Debounce).
		Dur("letter_gap", l.dec.Config().LetterGap).
		Bool("flush_on_exit", l.flush).
		Msg("decode loop started")

	defer func() {
		l.finish(err)
	}()

	l.publish()

	for {
		select {
		case <-l.resetCh:
			l.applyReset()
		default:
		}

		obs, perr := l.src.Poll(ctx)
		if perr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrAcquisition, perr)
		}

		l.step(obs)
	}
}

func (l *Loop) step(obs pose.Observation) {
	at := obs.At
	if at.IsZero() {
		at = l.now()
	}
	l.metrics.RecordFrame(obs.Effective().String())

	res := l.dec.Step(obs, at)
	switch {
	case res.Accepted:
		l.metrics.RecordImpulse(res.Impulse.String())
		l.notifier.Notify(res.Impulse)
		l.log.Debug().Str("impulse", res.Impulse.String()).Str("signal", l.dec.Signal()).Msg("impulse")
	case res.Overflow:
		l.metrics.OverflowTotal.Inc()
	}

	if res.Flushed {
		l.letter(res, at)
	}

	l.publish()
}

func (l *Loop) letter(res decoder.Result, at time.Time) {
	l.metrics.RecordLetter(res.Letter != morse.Unknown)
	l.log.Info().
		Str("letter", string(res.Letter)).
		Str("code", res.Code).
		Str("sentence", l.dec.Sentence()).
		Msg("letter decoded")

	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordLetter(res.Letter, res.Code, at); err != nil {
		l.metrics.TranscriptErrors.Inc()
		l.log.Warn().Err(err).Msg("transcript write failed")
	}
}

func (l *Loop) applyReset() {
	l.dec.Reset()
	l.metrics.ResetsTotal.Inc()
	l.log.Info().Msg("sentence reset")

	if l.recorder != nil {
		if err := l.recorder.RecordReset(l.now()); err != nil {
			l.metrics.TranscriptErrors.Inc()
			l.log.Warn().Err(err).Msg("transcript write failed")
		}
	}
	l.publish()
}

func (l *Loop) finish(runErr error) {
	now := l.now()
	if res := l.dec.Finish(l.flush); res.Flushed {
		l.letter(res, now)
	}
	l.publish()

	reason := ReasonQuit
	switch {
	case errors.Is(runErr, pose.ErrSourceClosed):
		reason = ReasonEndOfStream
	case runErr != nil:
		reason = ReasonError
	}

	if l.recorder != nil {
		if err := l.recorder.End(l.dec.Sentence(), reason, now); err != nil {
			l.metrics.TranscriptErrors.Inc()
			l.log.Warn().Err(err).Msg("transcript write failed")
		}
	}

	l.log.Info().
		Str("reason", reason).
		Str("sentence", l.dec.Sentence()).
		Msg("decode loop stopped")
}

func (l *Loop) publish() {
	l.sink.Show(display.Update{
		Signal:   l.dec.Signal(),
		Sentence: l.dec.Sentence(),
	})
}

// Sentence returns the decoded text. Only valid once Run has returned.
func (l *Loop) Sentence() string {
	return l.dec.Sentence()
}
