package pose

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/metrics"
)

// ErrEmptyCommand indicates no helper command was configured.
var ErrEmptyCommand = errors.New("source command is empty")

// CommandClassifier runs an external landmark/pose helper (for example a
// MediaPipe script driving the camera) and classifies the frames it prints on
// stdout using the StreamClassifier line protocol.
type CommandClassifier struct {
	cmd    *exec.Cmd
	stream *StreamClassifier
	log    zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewCommandClassifier starts the helper. The command line is split on
// whitespace; no shell is involved. A nil m records to metrics.Default.
func NewCommandClassifier(commandLine string, m *metrics.Metrics) (*CommandClassifier, error) {
	args := strings.Fields(commandLine)
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	logger := logging.WithComponent("pose-helper")

	cmd := exec.Command(args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	// Helper diagnostics go through the logger so they never land on the display.
	cmd.Stderr = logger.With().Str("stream", "stderr").Logger()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start pose helper: %w", err)
	}

	logger.Info().Str("command", args[0]).Int("pid", cmd.Process.Pid).Msg("pose helper started")

	return &CommandClassifier{
		cmd:    cmd,
		stream: NewStreamClassifier(stdout, m),
		log:    logger,
	}, nil
}

// Poll returns the next frame printed by the helper.
func (c *CommandClassifier) Poll(ctx context.Context) (Observation, error) {
	return c.stream.Poll(ctx)
}

// Close stops the helper process and the stream reader.
func (c *CommandClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.stream.Close()
	if c.cmd.ProcessState == nil {
		_ = c.cmd.Process.Kill()
	}
	err := c.cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed on purpose; a non-zero status is expected here.
		c.log.Debug().Int("exit_code", exitErr.ExitCode()).Msg("pose helper stopped")
		return nil
	}
	return err
}
