// internal/decoder/decoder.go
// Package decoder turns a stream of hand pose observations into Morse
// impulses and closes letters on sustained hand absence.
package decoder

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/morse"
	"github.com/ColonelBlimp/handmorse/internal/pose"
)

// Default timing values.
const (
	DefaultDebounce  = 500 * time.Millisecond
	DefaultLetterGap = 3 * time.Second
)

var (
	// ErrInvalidDebounce indicates the debounce interval is negative
	ErrInvalidDebounce = errors.New("debounce must not be negative")
	// ErrInvalidLetterGap indicates the letter gap is not positive
	ErrInvalidLetterGap = errors.New("letter gap must be positive")
	// ErrInvalidSignalLength indicates the signal cap is outside 1..morse.MaxSignalLength
	ErrInvalidSignalLength = fmt.Errorf("max signal length must be between 1 and %d", morse.MaxSignalLength)
)

// Config holds decoder timing parameters.
type Config struct {
	// Debounce is the minimum time between two impulses from a held gesture
	Debounce time.Duration
	// LetterGap is the hand absence after which the pending signal becomes a letter
	LetterGap time.Duration
	// MaxSignalLength caps the impulses buffered for one letter
	MaxSignalLength int
}

// DefaultConfig returns the standard timing.
func DefaultConfig() Config {
	return Config{
		Debounce:        DefaultDebounce,
		LetterGap:       DefaultLetterGap,
		MaxSignalLength: morse.MaxSignalLength,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Debounce < 0 {
		return ErrInvalidDebounce
	}
	if c.LetterGap <= 0 {
		return ErrInvalidLetterGap
	}
	if c.MaxSignalLength < 1 || c.MaxSignalLength > morse.MaxSignalLength {
		return ErrInvalidSignalLength
	}
	return nil
}

// State is the decoder's presence state.
type State int

const (
	// StateIdle means no hand has been seen since the last letter boundary
	StateIdle State = iota
	// StateAccumulating means a hand was seen recently and a letter may be open
	StateAccumulating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result describes what one Step did.
type Result struct {
	// Impulse is the impulse produced by this frame, valid when Accepted or Overflow is set
	Impulse morse.Impulse
	// Accepted is true when Impulse was added to the signal; the caller forwards it to the actuator
	Accepted bool
	// Overflow is true when Impulse was produced but rejected by a full signal
	Overflow bool
	// Flushed is true when a letter was appended to the sentence
	Flushed bool
	// Letter is the decoded character (morse.Unknown for unmapped codes)
	Letter rune
	// Code is the rendered impulse sequence of the flushed letter
	Code string
}

// Decoder is the gap detector state machine. It owns the pending signal and
// the decoded sentence. Not safe for concurrent use: the decode loop is its
// only caller.
type Decoder struct {
	cfg Config
	log zerolog.Logger

	state    State
	signal   *morse.Signal
	sentence []rune

	lastSeen    time.Time
	lastImpulse time.Time
	hasImpulse  bool
}

// New creates a decoder in the idle state.
func New(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{
		cfg:    cfg,
		log:    logging.WithComponent("decoder"),
		signal: morse.NewSignal(cfg.MaxSignalLength),
	}, nil
}

// Step feeds one observation taken at now into the state machine.
func (d *Decoder) Step(obs pose.Observation, now time.Time) Result {
	switch p := obs.Effective(); p {
	case pose.Fist, pose.OpenHand:
		d.lastSeen = now
		d.state = StateAccumulating
		if d.hasImpulse && now.Sub(d.lastImpulse) < d.cfg.Debounce {
			// held gesture
			return Result{}
		}
		return d.impulse(impulseFor(p), now)

	case pose.None:
		if d.state == StateAccumulating && now.Sub(d.lastSeen) > d.cfg.LetterGap {
			return d.flush()
		}
		return Result{}

	default:
		// Any other hand shape keeps the letter open without producing an impulse.
		d.lastSeen = now
		d.state = StateAccumulating
		return Result{}
	}
}

func impulseFor(p pose.Pose) morse.Impulse {
	if p == pose.OpenHand {
		return morse.Dash
	}
	return morse.Dot
}

func (d *Decoder) impulse(imp morse.Impulse, now time.Time) Result {
	d.lastImpulse = now
	d.hasImpulse = true

	res := Result{Impulse: imp}
	if d.signal.Append(imp) {
		res.Accepted = true
		return res
	}

	res.Overflow = true
	d.log.Debug().
		Str("impulse", imp.String()).
		Int("limit", d.signal.Limit()).
		Msg("signal full, impulse rejected")
	return res
}

// flush closes the pending letter. An empty buffer produces no character.
func (d *Decoder) flush() Result {
	d.state = StateIdle
	code := d.signal.Flush()
	if len(code) == 0 {
		return Result{}
	}

	letter := morse.Lookup(code)
	d.sentence = append(d.sentence, letter)
	return Result{
		Flushed: true,
		Letter:  letter,
		Code:    morse.Render(code),
	}
}

// Reset clears the sentence and any pending signal.
func (d *Decoder) Reset() {
	d.sentence = nil
	d.signal.Flush()
	d.state = StateIdle
}

// Finish applies the shutdown policy to a pending signal. With flush false
// the pending impulses are discarded; with flush true they are decoded into
// the sentence.
func (d *Decoder) Finish(flush bool) Result {
	if d.signal.Len() == 0 {
		d.state = StateIdle
		return Result{}
	}

	if flush {
		res := d.flush()
		d.log.Info().
			Str("code", res.Code).
			Str("letter", string(res.Letter)).
			Msg("pending signal flushed on exit")
		return res
	}

	pending := d.signal.String()
	d.signal.Flush()
	d.state = StateIdle
	d.log.Info().Str("code", pending).Msg("pending signal discarded on exit")
	return Result{}
}

// Signal returns the pending impulses rendered as '.' and '-'.
func (d *Decoder) Signal() string {
	return d.signal.String()
}

// Pending returns the number of buffered impulses.
func (d *Decoder) Pending() int {
	return d.signal.Len()
}

// Sentence returns the decoded text so far.
func (d *Decoder) Sentence() string {
	return string(d.sentence)
}

// State returns the current presence state.
func (d *Decoder) State() State {
	return d.state
}

// Config returns the decoder's timing configuration.
func (d *Decoder) Config() Config {
	return d.cfg
}
