// Package config turns command-line flags, the environment and an optional
// .env file into the settings murmur runs with.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"murmur/capture"
	"murmur/encoder"
	"murmur/rewrite"
	"murmur/transcriber"
)

const (
	DefaultEnvFile           = ".env"
	DefaultContinuousSilence = 20 * time.Second
)

type Config struct {
	Provider string
	Model    string
	BaseURL  string
	Format   string
	Language string

	OpenAIKey string
	GroqKey   string

	RewriteModel string
	Tone         rewrite.Tone
	Rewrite      bool
	PromptFile   string

	Capture           capture.Config
	ContinuousSilence time.Duration
	Continuous        bool
	AutoPaste         bool

	Device  string
	Setup   bool
	LogPath string

	TUI     bool
	Doctor  bool
	Version bool
	TestWAV string

	Args []string
}

// APIKey is the key of the selected transcription provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case "groq":
		return c.GroqKey
	case "openai":
		return c.OpenAIKey
	}
	return ""
}

func (c *Config) TranscriberOptions() transcriber.Options {
	opts := transcriber.Options{APIKey: c.APIKey(), Model: c.Model}
	if c.Provider == "openai" {
		opts.BaseURL = c.BaseURL
	}
	return opts
}

func (c *Config) RewriteOptions() rewrite.Options {
	return rewrite.Options{APIKey: c.OpenAIKey, BaseURL: c.BaseURL, Model: c.RewriteModel}
}

// Parse reads flags from args (without the program name). The env file named
// by -env, or .env when unset, is loaded into the process environment before
// getenv is consulted; variables already set win.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("murmur", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	c := &Config{Capture: capture.DefaultConfig()}
	var envFile, maxRecord, tone string
	var silence time.Duration
	var threshold float64

	fs.StringVar(&envFile, "env", "", "load environment variables from `file` (default .env if present)")
	fs.StringVar(&c.Provider, "provider", "", "transcription provider: openai, groq or fake (env MURMUR_PROVIDER, default openai)")
	fs.StringVar(&c.Model, "model", "", "transcription model (provider default when empty)")
	fs.StringVar(&c.Format, "format", "wav", "upload format: wav or flac")
	fs.StringVar(&c.Language, "lang", "", "language code for transcription, empty to auto-detect")
	fs.StringVar(&c.RewriteModel, "rewrite-model", rewrite.DefaultModel, "chat model used for rewrites")
	fs.StringVar(&tone, "tone", string(rewrite.Formal), "rewrite tone: formal, casual or professional")
	fs.BoolVar(&c.Rewrite, "rewrite", false, "headless mode: rewrite the transcript after transcribing")
	fs.StringVar(&c.PromptFile, "prompt", "", "load the rewrite system prompt from `file`")
	fs.IntVar(&c.Capture.SampleRate, "rate", capture.DefaultSampleRate, "capture sample rate in Hz")
	fs.IntVar(&c.Capture.FrameSize, "frame", capture.DefaultFrameSize, "samples per frame")
	fs.IntVar(&c.Capture.Channels, "channels", capture.DefaultChannels, "capture channels")
	fs.Float64Var(&threshold, "threshold", capture.DefaultSilenceThreshold, "RMS below which a frame counts as quiet")
	fs.DurationVar(&silence, "silence", capture.DefaultSilenceDuration, "quiet time that ends a recording")
	fs.DurationVar(&c.ContinuousSilence, "continuous-silence", DefaultContinuousSilence, "quiet time that ends continuous mode")
	fs.StringVar(&maxRecord, "max", "Unlimited", `maximum recording length: a preset such as "30 seconds" or a duration`)
	fs.BoolVar(&c.Continuous, "continuous", false, "start in continuous mode")
	fs.BoolVar(&c.AutoPaste, "autopaste", false, "paste transcripts into the focused window")
	fs.StringVar(&c.Device, "device", "", "use the named microphone")
	fs.BoolVar(&c.Setup, "setup", false, "pick the microphone interactively")
	fs.StringVar(&c.LogPath, "logpath", "", "log directory (default: OS-specific, env MURMUR_LOG_PATH)")
	fs.BoolVar(&c.TUI, "tui", true, "run with the terminal UI")
	fs.BoolVar(&c.Doctor, "doctor", false, "run diagnostics and exit")
	fs.BoolVar(&c.Version, "version", false, "print version and exit")
	fs.StringVar(&c.TestWAV, "test", "", "scripted mode: replay `wav` as the microphone, read commands from stdin")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.Args = fs.Args()

	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	c.OpenAIKey = getenv("OPENAI_API_KEY")
	c.GroqKey = getenv("GROQ_API_KEY")
	c.BaseURL = getenv("OPENAI_BASE_URL")
	if c.Provider == "" {
		c.Provider = getenv("MURMUR_PROVIDER")
	}
	if c.Provider == "" {
		c.Provider = "openai"
	}

	var err error
	if c.Tone, err = rewrite.ParseTone(tone); err != nil {
		return nil, err
	}
	if c.Capture.MaxRecord, err = ParseMaxRecord(maxRecord); err != nil {
		return nil, err
	}
	c.Capture.SilenceDuration = silence
	c.Capture.SilenceThreshold = threshold

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if !slices.Contains(transcriber.Providers, c.Provider) {
		return fmt.Errorf("unknown provider %q (use %s)", c.Provider, strings.Join(transcriber.Providers, ", "))
	}
	if !slices.Contains(encoder.Names, c.Format) {
		return fmt.Errorf("unknown format %q (use %s)", c.Format, strings.Join(encoder.Names, " or "))
	}
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	if c.ContinuousSilence < 0 {
		return errors.New("continuous silence must not be negative")
	}
	if c.Doctor || c.Version {
		return nil
	}
	if c.TestWAV == "" && c.Provider != "fake" && c.APIKey() == "" {
		return fmt.Errorf("%s provider needs %s", c.Provider, keyVar(c.Provider))
	}
	return nil
}

func keyVar(provider string) string {
	if provider == "groq" {
		return "GROQ_API_KEY"
	}
	return "OPENAI_API_KEY"
}
