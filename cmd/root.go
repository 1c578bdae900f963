// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/handmorse/internal/cli/decode"
	"github.com/ColonelBlimp/handmorse/internal/config"
	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/recovery"
)

var rootCmd = &cobra.Command{
	Use:   "handmorse",
	Short: "Hand gesture Morse code decoder",
	Long: `A real-time decoder that turns hand poses into Morse code.

A fist is a dot, an open hand is a dash. Removing the hand for longer than
the letter gap closes the letter. Each accepted impulse is forwarded to an
HTTP actuator as GET <url>?signal=dot|dash.

Pose frames are read from stdin, a file or a helper command, one per line.`,
	RunE:          runDecoder,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().StringP("actuator", "a", "", "actuator URL (empty disables)")
	rootCmd.PersistentFlags().Duration("actuator-timeout", 0, "per-request actuator timeout")
	rootCmd.PersistentFlags().Duration("debounce", 0, "minimum time between impulses")
	rootCmd.PersistentFlags().DurationP("letter-gap", "g", 0, "hand absence that closes a letter")
	rootCmd.PersistentFlags().StringP("source", "s", "", "pose source: stdin, file or command")
	rootCmd.PersistentFlags().StringP("file", "f", "", "frame file for --source file")
	rootCmd.PersistentFlags().StringP("command", "c", "", "pose helper command for --source command")
	rootCmd.PersistentFlags().String("display", "", "display: console, tui or none")
	rootCmd.PersistentFlags().StringP("listen", "l", "", "serve /metrics, /healthz and /ws on this address")
	rootCmd.PersistentFlags().String("transcript", "", "SQLite transcript database path")
	rootCmd.PersistentFlags().Bool("flush", false, "decode a pending signal on exit")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	bindFlags()
}

// bindFlags binds the flags to viper; an unset flag leaves the config value in place.
func bindFlags() {
	bindFlag("actuator_url", "actuator")
	bindFlag("actuator_timeout", "actuator-timeout")
	bindFlag("debounce", "debounce")
	bindFlag("letter_gap", "letter-gap")
	bindFlag("source", "source")
	bindFlag("source_file", "file")
	bindFlag("source_command", "command")
	bindFlag("display", "display")
	bindFlag("listen_addr", "listen")
	bindFlag("transcript_db", "transcript")
	bindFlag("flush_on_exit", "flush")
	bindFlag("debug", "debug")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings reads and validates the settings and configures logging.
// The returned closer releases the log file.
func loadSettings() (*config.Settings, func(), error) {
	settings, err := config.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	closer, err := logging.Init(settings.LoggingConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	return settings, func() { _ = closer.Close() }, nil
}

// releaser is the part of the pipeline that must be undone on a panic.
type releaser interface {
	ReleaseTerminal()
	Close() error
}

// panicCleanup restores the terminal first so the panic report is readable,
// then releases the helper process, actuator queue, server and database.
func panicCleanup(p releaser) func() {
	return func() {
		p.ReleaseTerminal()
		_ = p.Close()
	}
}

func runDecoder(cmd *cobra.Command, args []string) error {
	settings, closeLog, err := loadSettings()
	if err != nil {
		return err
	}
	defer closeLog()

	pipeline, err := decode.NewPipeline(settings, decode.Options{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()
	// HandlePanicFunc exits the process, so the deferred Close above would not run.
	defer recovery.HandlePanicFunc(panicCleanup(pipeline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Run(ctx); err != nil {
		return err
	}

	if settings.Display == config.DisplayNone {
		fmt.Fprintln(cmd.OutOrStdout(), pipeline.Sentence())
	}
	return nil
}
