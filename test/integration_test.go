//go:build integration

package test_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"murmur/encoder"
	"murmur/transcriber"
)

var (
	testBinary string
	toneWAV    string
	silentWAV  string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MURMUR_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MURMUR_TEST_BIN not set; build murmur and point it at the binary")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "murmur-integration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
		os.Exit(1)
	}
	toneWAV = filepath.Join(dir, "tone.wav")
	silentWAV = filepath.Join(dir, "silence.wav")
	if err := writeWAV(toneWAV, 16000, 1.0, 6000); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	if err := writeWAV(silentWAV, 16000, 1.0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// writeWAV stores a square wave of the given amplitude; 0 gives silence.
func writeWAV(path string, sampleRate int, durationS float64, amplitude int16) error {
	samples := make([]int16, int(float64(sampleRate)*durationS))
	for i := range samples {
		if (i/20)%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	data, err := encoder.EncodeWAV([][]byte{encoder.SamplesToPCM(samples)}, encoder.Format{SampleRate: sampleRate, Channels: 1})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runMurmur(t *testing.T, stdin string, args ...string) (logDir, out string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-rate", "16000", "-silence", "300ms"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Dir = t.TempDir()
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("murmur exited with error: %v\noutput: %s", err, b)
	}
	return logDir, string(b)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireOpenAIKey(t *testing.T) {
	t.Helper()
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
}

func TestFakeProviderTranscript(t *testing.T) {
	logDir, _ := runMurmur(t, cmds("START", "WAIT", "QUIT"), "-provider", "fake", "-test", toneWAV)
	if text := readLog(t, logDir, "transcribe_log.txt"); !strings.Contains(text, transcriber.FakeText) {
		t.Errorf("transcribe_log.txt = %q", text)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "capture", "reason=silence", "session_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestFakeProviderRewrite(t *testing.T) {
	logDir, out := runMurmur(t, cmds("START", "WAIT", "TONE casual", "REWRITE", "QUIT"), "-provider", "fake", "-test", toneWAV)
	if !strings.Contains(out, "[Casual] "+transcriber.FakeText) {
		t.Errorf("output missing rewrite:\n%s", out)
	}
	if diag := readLog(t, logDir, "diagnostics_log.txt"); !strings.Contains(diag, "tone=Casual") {
		t.Error("diagnostics missing rewrite entry")
	}
}

func TestMaxRecordCap(t *testing.T) {
	logDir, _ := runMurmur(t, cmds("MAX 5 seconds", "START", "WAIT", "QUIT"),
		"-provider", "fake", "-silence", "10s", "-test", silentWAV)
	// 16000 Hz / 1024 frame * 5 s
	if diag := readLog(t, logDir, "diagnostics_log.txt"); !strings.Contains(diag, "frames=78") {
		t.Errorf("expected a 78-frame capture:\n%s", diag)
	}
}

func TestOpenAIWords(t *testing.T) {
	requireOpenAIKey(t)
	logDir, _ := runMurmur(t, cmds("START", "WAIT", "QUIT"), "-provider", "openai", "-test", toneWAV)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "transcription") {
		t.Error("expected a transcription entry in diagnostics")
	}
}

func TestOpenAIConnReuse(t *testing.T) {
	requireOpenAIKey(t)
	logDir, _ := runMurmur(t, cmds("START", "WAIT", "START", "WAIT", "QUIT"), "-provider", "openai", "-test", toneWAV)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, "conn=") < 2 {
		t.Error("expected 2 transcription entries in diagnostics")
	}
	if !strings.Contains(diag, "conn=reused") {
		t.Error("expected conn=reused in diagnostics")
	}
}
