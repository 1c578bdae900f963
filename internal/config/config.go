// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/handmorse/internal/actuator"
	"github.com/ColonelBlimp/handmorse/internal/decoder"
	"github.com/ColonelBlimp/handmorse/internal/logging"
)

const (
	AppName       = "handmorse"
	ConfigType    = "yaml"
	DefaultConfig = `# Hand Morse Configuration

# Actuator (ESP32 or similar) - receives GET <url>?signal=dot|dash
actuator_url: "http://192.168.1.80/morse"  # empty disables notifications
actuator_timeout: 300ms  # Per-request bound
notify_queue_size: 8     # Pending notifications before new ones are dropped

# Decoder timing
debounce: 500ms          # Minimum time between impulses from a held gesture
letter_gap: 3s           # Hand absence that closes a letter
max_signal_length: 8     # Impulses per letter (1-8)
pose_hysteresis: 1       # Consecutive frames to confirm a pose change (1 = off)
flush_on_exit: false     # Decode a pending signal on exit instead of discarding it

# Pose source
source: "stdin"          # stdin, file or command
source_file: ""          # Frame file for source: file
source_command: ""       # Pose helper for source: command (e.g. "python3 hands.py")

# Output
display: "console"       # console, tui or none
listen_addr: ""          # Serves /metrics, /healthz and /ws (e.g. "127.0.0.1:9090")
transcript_db: ""        # SQLite transcript path; empty disables

# Logging
log_level: "info"        # debug, info, warn, error
log_format: "console"    # console or json
log_file: ""             # empty logs to stderr
debug: false             # Enable debug output
`
)

// Pose sources.
const (
	SourceStdin   = "stdin"
	SourceFile    = "file"
	SourceCommand = "command"
)

// Display modes.
const (
	DisplayConsole = "console"
	DisplayTUI     = "tui"
	DisplayNone    = "none"
)

// Settings holds all application configuration
type Settings struct {
	// Actuator
	ActuatorURL     string        `mapstructure:"actuator_url"`
	ActuatorTimeout time.Duration `mapstructure:"actuator_timeout"`
	NotifyQueueSize int           `mapstructure:"notify_queue_size"`

	// Decoder timing
	Debounce        time.Duration `mapstructure:"debounce"`
	LetterGap       time.Duration `mapstructure:"letter_gap"`
	MaxSignalLength int           `mapstructure:"max_signal_length"`
	PoseHysteresis  int           `mapstructure:"pose_hysteresis"`
	FlushOnExit     bool          `mapstructure:"flush_on_exit"`

	// Pose source
	Source        string `mapstructure:"source"`
	SourceFile    string `mapstructure:"source_file"`
	SourceCommand string `mapstructure:"source_command"`

	// Output
	Display      string `mapstructure:"display"`
	ListenAddr   string `mapstructure:"listen_addr"`
	TranscriptDB string `mapstructure:"transcript_db"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
	Debug     bool   `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/handmorse/
func Init() error {
	// Set defaults
	viper.SetDefault("actuator_url", actuator.DefaultURL)
	viper.SetDefault("actuator_timeout", actuator.DefaultTimeout)
	viper.SetDefault("notify_queue_size", actuator.DefaultQueueSize)
	viper.SetDefault("debounce", decoder.DefaultDebounce)
	viper.SetDefault("letter_gap", decoder.DefaultLetterGap)
	viper.SetDefault("max_signal_length", 8)
	viper.SetDefault("pose_hysteresis", 1)
	viper.SetDefault("flush_on_exit", false)
	viper.SetDefault("source", SourceStdin)
	viper.SetDefault("source_file", "")
	viper.SetDefault("source_command", "")
	viper.SetDefault("display", DisplayConsole)
	viper.SetDefault("listen_addr", "")
	viper.SetDefault("transcript_db", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
	viper.SetDefault("log_file", "")
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Actuator
	if s.ActuatorURL != "" {
		u, err := url.Parse(s.ActuatorURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("actuator_url must be an http(s) URL or empty, got %q", s.ActuatorURL))
		}
	}
	if s.ActuatorTimeout <= 0 || s.ActuatorTimeout > 10*time.Second {
		errs = append(errs, fmt.Errorf("actuator_timeout must be between 0 and 10s, got %v", s.ActuatorTimeout))
	}
	if s.NotifyQueueSize < 1 || s.NotifyQueueSize > 1024 {
		errs = append(errs, fmt.Errorf("notify_queue_size must be between 1 and 1024, got %d", s.NotifyQueueSize))
	}

	// Decoder timing
	if s.Debounce < 0 || s.Debounce > 10*time.Second {
		errs = append(errs, fmt.Errorf("debounce must be between 0 and 10s, got %v", s.Debounce))
	}
	if s.LetterGap <= 0 || s.LetterGap > time.Minute {
		errs = append(errs, fmt.Errorf("letter_gap must be between 0 and 60s, got %v", s.LetterGap))
	}
	// A gap shorter than the debounce would close letters between two impulses of a held gesture
	if s.LetterGap <= s.Debounce {
		errs = append(errs, fmt.Errorf("letter_gap (%v) must be greater than debounce (%v)", s.LetterGap, s.Debounce))
	}
	if s.MaxSignalLength < 1 || s.MaxSignalLength > 8 {
		errs = append(errs, fmt.Errorf("max_signal_length must be between 1 and 8, got %d", s.MaxSignalLength))
	}
	if s.PoseHysteresis < 1 || s.PoseHysteresis > 30 {
		errs = append(errs, fmt.Errorf("pose_hysteresis must be between 1 and 30, got %d", s.PoseHysteresis))
	}

	// Pose source
	switch s.Source {
	case SourceStdin:
	case SourceFile:
		if s.SourceFile == "" {
			errs = append(errs, errors.New("source_file is required when source is \"file\""))
		}
	case SourceCommand:
		if s.SourceCommand == "" {
			errs = append(errs, errors.New("source_command is required when source is \"command\""))
		}
	default:
		errs = append(errs, fmt.Errorf("source must be one of stdin, file, command, got %q", s.Source))
	}

	// Output
	validDisplays := map[string]bool{
		DisplayConsole: true,
		DisplayTUI:     true,
		DisplayNone:    true,
	}
	if !validDisplays[s.Display] {
		errs = append(errs, fmt.Errorf("display must be one of console, tui, none, got %q", s.Display))
	}

	// Logging
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[s.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level must be one of trace, debug, info, warn, error, got %q", s.LogLevel))
	}
	if s.LogFormat != "console" && s.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", s.LogFormat))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DecoderConfig returns the decoder timing settings.
func (s *Settings) DecoderConfig() decoder.Config {
	return decoder.Config{
		Debounce:        s.Debounce,
		LetterGap:       s.LetterGap,
		MaxSignalLength: s.MaxSignalLength,
	}
}

// ActuatorConfig returns the actuator settings.
func (s *Settings) ActuatorConfig() actuator.Config {
	return actuator.Config{
		URL:       s.ActuatorURL,
		Timeout:   s.ActuatorTimeout,
		QueueSize: s.NotifyQueueSize,
	}
}

// LoggingConfig returns the logger settings.
func (s *Settings) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  s.LogLevel,
		Format: s.LogFormat,
		File:   s.LogFile,
		Debug:  s.Debug,
	}
}
