// Package decode assembles the decode pipeline from settings: pose source,
// decoder, actuator, displays, transcript and the HTTP server.
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/actuator"
	"github.com/ColonelBlimp/handmorse/internal/config"
	"github.com/ColonelBlimp/handmorse/internal/decoder"
	"github.com/ColonelBlimp/handmorse/internal/display"
	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/metrics"
	"github.com/ColonelBlimp/handmorse/internal/pose"
	"github.com/ColonelBlimp/handmorse/internal/server"
	"github.com/ColonelBlimp/handmorse/internal/session"
	"github.com/ColonelBlimp/handmorse/internal/transcript"
)

const shutdownTimeout = 3 * time.Second

// Options supplies the process-level collaborators. Zero values use the
// process defaults (os.Stdin, os.Stdout, the default registry).
type Options struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Registry *prometheus.Registry
	// TUIOptions are passed to the terminal UI program
	TUIOptions []tea.ProgramOption
}

// Pipeline is a fully wired decode session.
type Pipeline struct {
	loop       *session.Loop
	classifier pose.Classifier
	notifier   actuator.Notifier
	tui        *display.TUI
	hub        *display.Hub
	server     *server.Server
	store      *transcript.Store
	recording  *transcript.Recording
	log        zerolog.Logger

	closeOnce sync.Once
}

// NewPipeline builds every component named by s. On error, anything already
// started is closed.
func NewPipeline(s *config.Settings, opts Options) (_ *Pipeline, err error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	m := metrics.Default
	var gatherer prometheus.Gatherer
	if opts.Registry != nil {
		m = metrics.New(opts.Registry)
		gatherer = opts.Registry
	}

	p := &Pipeline{log: logging.WithComponent("decode")}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	if p.classifier, err = newClassifier(s, opts.Stdin, m); err != nil {
		return nil, err
	}

	dec, err := decoder.New(s.DecoderConfig())
	if err != nil {
		return nil, fmt.Errorf("decoder config: %w", err)
	}

	if p.notifier, err = actuator.New(s.ActuatorConfig(), m); err != nil {
		return nil, fmt.Errorf("actuator: %w", err)
	}

	var sinks display.Multi
	switch s.Display {
	case config.DisplayConsole:
		sinks = append(sinks, display.NewConsole(opts.Stdout))
	case config.DisplayTUI:
		tuiOpts := opts.TUIOptions
		if s.Source == config.SourceStdin {
			// Frames arrive on stdin, so keys must come from the terminal.
			tuiOpts = append([]tea.ProgramOption{tea.WithInputTTY()}, tuiOpts...)
		}
		// onReset is bound once the loop exists.
		p.tui = display.NewTUI(p.reset, tuiOpts...)
		sinks = append(sinks, p.tui)
	}

	if s.ListenAddr != "" {
		p.hub = display.NewHub(m)
		sinks = append(sinks, p.hub)
		p.server = server.New(s.ListenAddr, server.Options{Gatherer: gatherer, Display: p.hub})
		if err = p.server.Start(); err != nil {
			p.server = nil
			return nil, err
		}
	}

	var recorder session.Recorder
	if s.TranscriptDB != "" {
		if p.store, err = transcript.New(s.TranscriptDB); err != nil {
			return nil, fmt.Errorf("transcript: %w", err)
		}
		if p.recording, err = p.store.Begin(time.Now()); err != nil {
			return nil, fmt.Errorf("transcript: %w", err)
		}
		recorder = p.recording
		p.log.Info().Str("session", p.recording.ID()).Str("db", p.store.Path()).Msg("recording transcript")
	}

	p.loop, err = session.New(session.Options{
		Classifier:  p.classifier,
		Decoder:     dec,
		Notifier:    p.notifier,
		Sink:        sinks,
		Recorder:    recorder,
		Metrics:     m,
		FlushOnExit: s.FlushOnExit,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newClassifier(s *config.Settings, stdin io.Reader, m *metrics.Metrics) (pose.Classifier, error) {
	var src pose.Classifier
	switch s.Source {
	case config.SourceFile:
		f, err := os.Open(s.SourceFile)
		if err != nil {
			return nil, fmt.Errorf("open source file: %w", err)
		}
		src = pose.NewStreamClassifier(f, m)
	case config.SourceCommand:
		c, err := pose.NewCommandClassifier(s.SourceCommand, m)
		if err != nil {
			return nil, err
		}
		src = c
	default:
		// stdin stays open for the rest of the process
		src = pose.NewStreamClassifier(io.NopCloser(stdin), m)
	}

	stable, err := pose.NewStabilizer(src, s.PoseHysteresis)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return stable, nil
}

func (p *Pipeline) reset() {
	if p.loop != nil {
		p.loop.Reset()
	}
}

// Reset clears the decoded sentence.
func (p *Pipeline) Reset() {
	p.reset()
}

// Sentence returns the decoded text once Run has returned.
func (p *Pipeline) Sentence() string {
	return p.loop.Sentence()
}

// Run decodes until ctx is cancelled, the user quits the TUI or the source
// ends. The end of the source stream is a normal exit.
func (p *Pipeline) Run(ctx context.Context) error {
	var err error
	if p.tui == nil {
		err = p.loop.Run(ctx)
	} else {
		err = p.runWithTUI(ctx)
	}

	if errors.Is(err, pose.ErrSourceClosed) {
		p.log.Info().Msg("pose source ended")
		return nil
	}
	return err
}

// runWithTUI keeps the terminal program on the calling goroutine; whichever
// of the program and the loop stops first stops the other.
func (p *Pipeline) runWithTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() {
		err := p.loop.Run(ctx)
		cancel()
		loopErr <- err
	}()

	tuiErr := p.tui.Run(ctx)
	cancel()
	err := <-loopErr
	if err == nil {
		err = tuiErr
	}
	return err
}

// ReleaseTerminal restores the terminal if the TUI is running.
func (p *Pipeline) ReleaseTerminal() {
	if p.tui != nil {
		p.tui.Release()
	}
}

// Close releases every component. It is safe to call more than once and on
// a nil pipeline.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	p.closeOnce.Do(func() {
		if p.classifier != nil {
			errs = append(errs, p.classifier.Close())
		}
		if p.notifier != nil {
			errs = append(errs, p.notifier.Close())
		}
		if p.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			errs = append(errs, p.server.Shutdown(ctx))
			cancel()
		}
		if p.hub != nil {
			errs = append(errs, p.hub.Close())
		}
		if p.store != nil {
			errs = append(errs, p.store.Close())
		}
	})
	return errors.Join(errs...)
}
