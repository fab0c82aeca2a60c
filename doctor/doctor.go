// Package doctor checks that murmur can capture audio, reach its providers,
// and use the clipboard.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"murmur/audio"
	"murmur/capture"
	"murmur/config"
	"murmur/log"
	"murmur/prompt"
)

// Deps are the system facilities the checks probe. Nil fields skip their check.
type Deps struct {
	Config    *config.Config
	Audio     audio.Context
	Copy      func(string) error
	Read      func() (string, error)
	PasteInit func() error
	Hotkey    func() (string, error)
	// MicSeconds is how long the microphone check records.
	MicSeconds int
}

type check struct {
	name string
	run  func(d Deps) (string, error)
}

var checks = []check{
	{"API keys", checkKeys},
	{"rewrite prompt", checkPrompt},
	{"log directory", checkLogDir},
	{"capture devices", checkDevices},
	{"microphone level", checkMic},
	{"clipboard", checkClipboard},
	{"paste keystroke", checkPaste},
	{"global hotkey", checkHotkey},
}

// Run prints one PASS/FAIL/SKIP line per check and returns the exit code
// (0 when nothing failed).
func Run(w io.Writer, d Deps) int {
	fmt.Fprintln(w, "murmur doctor")
	fmt.Fprintln(w, "=============")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.name)
		detail, err := c.run(d)
		switch {
		case errors.Is(err, errSkip):
			fmt.Fprintf(w, "  SKIP: %s\n", detail)
		case err != nil:
			failed++
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			log.Warnf("doctor %s: %v", c.name, err)
		default:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
		return 1
	}
	fmt.Fprintln(w, "All checks passed!")
	return 0
}

var errSkip = errors.New("skipped")

func checkKeys(d Deps) (string, error) {
	if d.Config == nil {
		return "no configuration", errSkip
	}
	c := d.Config
	if c.Provider == "fake" {
		return "fake provider needs no key", nil
	}
	if c.APIKey() == "" {
		return "", fmt.Errorf("%s provider has no API key set", c.Provider)
	}
	if c.OpenAIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY is not set, rewrites will fail")
	}
	return fmt.Sprintf("%s transcription and rewrite keys present", c.Provider), nil
}

func checkPrompt(d Deps) (string, error) {
	if d.Config == nil || d.Config.PromptFile == "" {
		return "using the default prompt", nil
	}
	src := prompt.NewSource()
	if err := src.Load(d.Config.PromptFile); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s, %d characters", src.Label(), len(src.Current())), nil
}

func checkLogDir(Deps) (string, error) {
	dir := log.Dir()
	if dir == "" {
		return "logging not configured", errSkip
	}
	if err := log.EnsureDir(); err != nil {
		return "", err
	}
	probe := filepath.Join(dir, ".murmur-doctor")
	if err := os.WriteFile(probe, nil, 0600); err != nil {
		return "", fmt.Errorf("%s is not writable: %w", dir, err)
	}
	os.Remove(probe)
	return dir, nil
}

func checkDevices(d Deps) (string, error) {
	if d.Audio == nil {
		return "no audio backend", errSkip
	}
	devices, err := d.Audio.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("no capture devices found")
	}
	for _, dev := range devices {
		if audio.IsBluetooth(dev.Name) {
			return fmt.Sprintf("%d device(s), %q is Bluetooth and may sound narrowband", len(devices), dev.Name), nil
		}
	}
	return fmt.Sprintf("%d device(s), first %q", len(devices), devices[0].Name), nil
}

// checkMic records a fixed stretch from the default device and compares the
// loudest frame with the silence threshold.
func checkMic(d Deps) (string, error) {
	if d.Audio == nil || d.MicSeconds <= 0 {
		return "microphone test disabled", errSkip
	}
	cfg := capture.DefaultConfig()
	if d.Config != nil {
		cfg = d.Config.Capture
	}
	threshold := cfg.SilenceThreshold
	cfg.SilenceThreshold = 0 // never quiet: record the full stretch
	cfg.MaxRecord = time.Duration(d.MicSeconds) * time.Second

	res, err := capture.Run(audio.Source{Ctx: d.Audio}, cfg)
	if err != nil {
		return "", err
	}
	var peak float64
	for _, f := range res.Frames {
		peak = max(peak, capture.RMS(f))
	}
	if peak < threshold {
		return "", fmt.Errorf("loudest frame RMS %.0f is below the silence threshold %.0f", peak, threshold)
	}
	return fmt.Sprintf("%d frames, loudest RMS %.0f (threshold %.0f)", res.FrameCount(), peak, threshold), nil
}

func checkClipboard(d Deps) (string, error) {
	if d.Copy == nil || d.Read == nil {
		return "no clipboard", errSkip
	}
	saved, _ := d.Read()
	defer d.Copy(saved)

	const probe = "murmur-doctor-check"
	if err := d.Copy(probe); err != nil {
		return "", fmt.Errorf("copy failed: %w", err)
	}
	got, err := d.Read()
	if err != nil {
		return "", fmt.Errorf("read failed: %w", err)
	}
	if got != probe {
		return "", fmt.Errorf("read back %q, want %q", got, probe)
	}
	return "copy and read back OK, previous contents restored", nil
}

func checkPaste(d Deps) (string, error) {
	if d.PasteInit == nil {
		return "no keyboard backend", errSkip
	}
	if err := d.PasteInit(); err != nil {
		return "", fmt.Errorf("%w (on Linux: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput)", err)
	}
	return "virtual keyboard ready", nil
}

func checkHotkey(d Deps) (string, error) {
	if d.Hotkey == nil {
		return "no hotkey backend", errSkip
	}
	return d.Hotkey()
}
