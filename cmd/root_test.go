package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/handmorse/internal/transcript"
)

// enFrames spells E then N with a letter gap after each.
const enFrames = `0 fist
0.1 none
3.2 none
3.5 open
4.0 fist
4.1 none
7.2 none
`

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// resetViperForTest clears viper and the flags left set by earlier runs, then
// rebinds the flags.
func resetViperForTest() {
	viper.Reset()
	resetFlags(rootCmd.PersistentFlags())
	// Local flags include cobra's --help, which would otherwise stick.
	resetFlags(rootCmd.Flags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}
	bindFlags()
}

// setupConfig writes config content under a temporary HOME and runs from an
// empty directory so no local config is picked up.
func setupConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	configDir := filepath.Join(tmpDir, ".config", "handmorse")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	workDir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(workDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	})
	return tmpDir
}

const quietConfig = `actuator_url: ""
display: none
log_level: error
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
	}{
		{"actuator", "a"},
		{"actuator-timeout", ""},
		{"debounce", ""},
		{"letter-gap", "g"},
		{"source", "s"},
		{"file", "f"},
		{"command", "c"},
		{"display", ""},
		{"listen", "l"},
		{"transcript", ""},
		{"flush", ""},
		{"debug", "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Errorf("flag %q not found", tt.name)
				return
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", tt.name)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "handmorse" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "handmorse")
	}
	if rootCmd.Short == "" {
		t.Error("rootCmd.Short is empty")
	}
	if rootCmd.Long == "" {
		t.Error("rootCmd.Long is empty")
	}
	if rootCmd.RunE == nil {
		t.Error("rootCmd.RunE is nil")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	for _, name := range []string{"table", "history"} {
		t.Run(name, func(t *testing.T) {
			var found *cobra.Command
			for _, c := range rootCmd.Commands() {
				if c.Name() == name {
					found = c
				}
			}
			if found == nil {
				t.Errorf("subcommand %q not registered", name)
			}
		})
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	resetViperForTest()

	output, err := execute(t, "", "--help")
	if err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}

	for _, want := range []string{"handmorse", "--actuator", "--letter-gap", "--source"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name         string
		defaultValue string
	}{
		{"actuator", ""},
		{"debounce", "0s"},
		{"letter-gap", "0s"},
		{"flush", "false"},
		{"debug", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.defaultValue)
			}
		})
	}
}

func TestInitConfig(t *testing.T) {
	resetViperForTest()
	setupConfig(t, "letter_gap: 4s")

	// Should not panic
	initConfig()

	if got := viper.GetDuration("letter_gap").String(); got != "4s" {
		t.Errorf("viper.GetDuration(letter_gap) = %s, want 4s", got)
	}
}

func TestRootCmd_RunE_DecodesStdin(t *testing.T) {
	resetViperForTest()
	setupConfig(t, quietConfig)

	output, err := execute(t, enFrames)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(output) != "EN" {
		t.Errorf("output = %q, want %q", output, "EN")
	}
}

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	resetViperForTest()
	setupConfig(t, quietConfig)

	// A 5s gap keeps E and N in one letter: ".-." is R.
	output, err := execute(t, enFrames, "--letter-gap", "5s")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(output) != "" {
		t.Errorf("output = %q, want nothing decoded before the stream ended", output)
	}

	resetViperForTest()
	output, err = execute(t, enFrames, "--letter-gap", "5s", "--flush")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(output) != "R" {
		t.Errorf("output with --flush = %q, want %q", output, "R")
	}
}

func TestRootCmd_DecodesAfterHelp(t *testing.T) {
	resetViperForTest()
	setupConfig(t, quietConfig)

	if _, err := execute(t, "", "--help"); err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}

	resetViperForTest()
	output, err := execute(t, enFrames)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(output) != "EN" {
		t.Errorf("output after a --help run = %q, want %q", output, "EN")
	}
}

type recordingReleaser struct {
	calls []string
}

func (r *recordingReleaser) ReleaseTerminal() { r.calls = append(r.calls, "release") }

func (r *recordingReleaser) Close() error {
	r.calls = append(r.calls, "close")
	return nil
}

func TestPanicCleanup_ReleasesThenCloses(t *testing.T) {
	r := &recordingReleaser{}
	panicCleanup(r)()

	if got := strings.Join(r.calls, ","); got != "release,close" {
		t.Errorf("panicCleanup() calls = %q, want %q", got, "release,close")
	}
}

func TestRunDecoder_InvalidConfig(t *testing.T) {
	resetViperForTest()
	setupConfig(t, quietConfig+"max_signal_length: 12\n")

	_, err := execute(t, enFrames)
	if err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Errorf("expected config error, got: %v", err)
	}
}

func TestRunDecoder_InvalidFlag(t *testing.T) {
	resetViperForTest()
	setupConfig(t, quietConfig)

	if _, err := execute(t, enFrames, "--source", "camera"); err == nil {
		t.Error("expected error for an unknown source, got nil")
	}
}

func TestTableCmd(t *testing.T) {
	resetViperForTest()
	setupConfig(t, quietConfig)

	output, err := execute(t, "", "table")
	if err != nil {
		t.Fatalf("Execute(table) error = %v", err)
	}
	for _, want := range []string{"CHAR", "CODE", ".-", "-----"} {
		if !strings.Contains(output, want) {
			t.Errorf("table output should contain %q", want)
		}
	}
}

func TestHistoryCmd_NoTranscript(t *testing.T) {
	resetViperForTest()
	setupConfig(t, quietConfig)

	_, err := execute(t, "", "history")
	if !errors.Is(err, ErrNoTranscript) {
		t.Errorf("Execute(history) error = %v, want %v", err, ErrNoTranscript)
	}
}

func TestHistoryCmd_ListsSessions(t *testing.T) {
	resetViperForTest()
	home := setupConfig(t, quietConfig)
	dbPath := filepath.Join(home, "transcript.db")

	if _, err := execute(t, enFrames, "--transcript", dbPath); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	resetViperForTest()
	output, err := execute(t, "", "history", "--transcript", dbPath)
	if err != nil {
		t.Fatalf("Execute(history) error = %v", err)
	}
	for _, want := range []string{"EN", "end_of_stream"} {
		if !strings.Contains(output, want) {
			t.Errorf("history output should contain %q:\n%s", want, output)
		}
	}

	store, err := transcript.New(dbPath)
	if err != nil {
		t.Fatalf("transcript.New() error = %v", err)
	}
	sessions, err := store.Recent(1)
	store.Close()
	if err != nil || len(sessions) != 1 {
		t.Fatalf("Recent() = %v, %v", sessions, err)
	}

	resetViperForTest()
	output, err = execute(t, "", "history", "--transcript", dbPath, sessions[0].ID)
	if err != nil {
		t.Fatalf("Execute(history id) error = %v", err)
	}
	for _, want := range []string{sessions[0].ID, "-.", "N"} {
		if !strings.Contains(output, want) {
			t.Errorf("letters output should contain %q:\n%s", want, output)
		}
	}
}

func TestHistoryCmd_UnknownSession(t *testing.T) {
	resetViperForTest()
	home := setupConfig(t, quietConfig)

	_, err := execute(t, "", "history", "--transcript", filepath.Join(home, "t.db"), "missing")
	if !errors.Is(err, transcript.ErrNotFound) {
		t.Errorf("Execute(history missing) error = %v, want %v", err, transcript.ErrNotFound)
	}
}
