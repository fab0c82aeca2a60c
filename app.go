package main

import (
	"context"
	"fmt"
	"strings"

	"murmur/audio"
	"murmur/beep"
	"murmur/config"
	"murmur/controller"
	"murmur/hotkey"
	"murmur/log"
	"murmur/prompt"
	"murmur/rewrite"
	"murmur/transcriber"
)

// app holds the components every run mode shares.
type app struct {
	cfg     *config.Config
	trans   transcriber.Transcriber
	prompts *prompt.Source
	ctrl    *controller.Controller
	device  string

	// promptErr is the non-fatal failure of loading -prompt, shown once.
	promptErr error
}

func newApp(cfg *config.Config, src audio.Opener, device string, sink controller.Sink) (*app, error) {
	tr, err := transcriber.New(cfg.Provider, cfg.TranscriberOptions())
	if err != nil {
		return nil, err
	}
	if cfg.Language != "" {
		tr.SetLanguage(cfg.Language)
	}

	var rw rewrite.Rewriter
	switch {
	case cfg.Provider == "fake":
		rw = &rewrite.Fake{}
	case cfg.OpenAIKey != "":
		rw = rewrite.New(cfg.RewriteOptions())
	}

	a := &app{cfg: cfg, trans: tr, prompts: prompt.NewSource(), device: device}
	if cfg.PromptFile != "" {
		a.promptErr = a.loadPrompt(cfg.PromptFile)
	}

	a.ctrl = controller.New(controller.Options{
		Source:            src,
		Capture:           cfg.Capture,
		ContinuousSilence: cfg.ContinuousSilence,
		Transcriber:       tr,
		Format:            cfg.Format,
		Rewriter:          rw,
		Prompt:            a.prompts,
		Sink:              sink,
		Settings: controller.Settings{
			Continuous: cfg.Continuous,
			MaxRecord:  cfg.Capture.MaxRecord,
			Tone:       cfg.Tone,
			AutoPaste:  cfg.AutoPaste,
		},
	})
	return a, nil
}

func (a *app) loadPrompt(path string) error {
	if err := a.prompts.Load(path); err != nil {
		log.Warnf("prompt: %v", err)
		return err
	}
	log.PromptLoaded(a.prompts.Label())
	return nil
}

// modeLine summarizes the current settings for display.
func (a *app) modeLine() string {
	s := a.ctrl.Settings()
	provider := a.trans.Name()
	if lang := a.trans.GetLanguage(); lang != "" {
		provider += " (" + lang + ")"
	}
	parts := []string{
		a.cfg.Format,
		provider,
		"max " + config.MaxRecordLabel(s.MaxRecord),
		"tone " + string(s.Tone),
	}
	if s.Continuous {
		parts = append(parts, "continuous")
	}
	if s.AutoPaste {
		parts = append(parts, "autopaste")
	}
	return "[" + strings.Join(parts, " | ") + "]"
}

func deviceLine(name string) string {
	if name == "" {
		name = "system default"
	}
	if audio.IsBluetooth(name) {
		name += " (BT!)"
	}
	return "mic: " + name
}

// listenHotkey starts a recording on every key press until ctx is done.
// Presses while busy are ignored.
func (a *app) listenHotkey(ctx context.Context, hk hotkey.Hotkey) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			if err := a.ctrl.Start(ctx); err != nil {
				log.Warnf("hotkey: %v", err)
			}
		}
	}
}

// feedback plays the tone that matches ev.
func feedback(ev controller.Event) {
	switch {
	case ev.Kind == controller.StateChanged && ev.State == controller.Recording:
		beep.Play(beep.Start)
	case ev.Kind == controller.CaptureDone:
		beep.Play(beep.End)
	case ev.Kind == controller.Failed:
		beep.Play(beep.Error)
	}
}

// describe renders ev as a single line for headless output.
func describe(ev controller.Event) string {
	switch ev.Kind {
	case controller.StateChanged:
		return "state " + ev.State.String()
	case controller.CaptureDone:
		reason := "max record"
		if ev.StoppedBySilence {
			reason = "silence"
		}
		return fmt.Sprintf("captured %d frames (%.1fs, %s)", ev.Frames, ev.Duration.Seconds(), reason)
	case controller.SilenceStop:
		if ev.ContinuousEnded {
			return fmt.Sprintf("silence for %s, continuous mode ended", ev.Silence)
		}
		return fmt.Sprintf("silence for %s", ev.Silence)
	case controller.Transcribed:
		if ev.NoSpeech {
			return "transcript: (no speech detected)"
		}
		return "transcript: " + ev.Text
	case controller.Rewritten:
		return fmt.Sprintf("rewrite (%s): %s", ev.Tone, ev.Text)
	case controller.Failed:
		return fmt.Sprintf("error (%s): %v", ev.Op, ev.Err)
	}
	return ev.Kind.String()
}
