package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DiagnosticsFile = "diagnostics_log.txt"
	TranscribeFile  = "transcribe_log.txt"
	CrashFile       = "crash_log.txt"

	maxDiagMB      = 5
	maxDiagBackups = 3
)

var (
	diagLog        zerolog.Logger
	diagWriter     *lumberjack.Logger
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       atomic.Bool
	pid            int
	dir            string
)

type Metrics struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
}

func absFrom(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// ResolveDir picks the log directory: the -logpath flag, then
// MURMUR_LOG_PATH, then the OS default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absFrom(flagPath)
	}
	if envPath := os.Getenv("MURMUR_LOG_PATH"); envPath != "" {
		return absFrom(envPath)
	}
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics and transcript logs in Dir. Until it succeeds
// every logging call is a no-op.
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	pid = os.Getpid()

	var err error
	transcribeFile, err = os.OpenFile(filepath.Join(dir, TranscribeFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	diagWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, DiagnosticsFile),
		MaxSize:    maxDiagMB,
		MaxBackups: maxDiagBackups,
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagWriter,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	// lumberjack creates the file lazily
	diagLog.Info().Msg("log_open")

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagWriter != nil {
		diagWriter.Close()
		diagWriter = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Capture(frames int, d time.Duration, reason string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Int("frames", frames).
		Float64("audio_s", d.Seconds()).
		Str("reason", reason).
		Msg("capture")
}

func TranscriptionMetrics(m Metrics, provider, format string, connReused bool, tlsProto string) {
	if !logReady.Load() {
		return
	}

	connStatus := "new"
	if connReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("format", format).
		Str("provider", provider).
		Str("conn", connStatus)
	if tlsProto != "" {
		ev = ev.Str("tls_proto", tlsProto)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("compressed_kb", m.CompressedSizeKB).
		Float64("compression_pct", m.CompressionPct).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("transcription")
}

// TranscriptionText appends a line to the transcript log.
func TranscriptionText(text string) {
	if !logReady.Load() {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func Rewrite(tone string, inChars, outChars int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("tone", tone).
		Int("in_chars", inChars).
		Int("out_chars", outChars).
		Msg("rewrite")
}

func PromptLoaded(label string) {
	if logReady.Load() {
		diagLog.Info().Str("prompt", label).Msg("prompt_loaded")
	}
}

func SessionStart(provider, format string, rate, frameSize int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("format", format).
		Int("rate", rate).
		Int("frame", frameSize).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}
