package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"murmur/audio"
	"murmur/beep"
	"murmur/config"
	"murmur/controller"
	"murmur/hotkey"
	"murmur/log"
	"murmur/rewrite"
)

// syncWriter serializes writes from the event pump and the command loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printSink stands in for the clipboard in scripted runs.
type printSink struct{ out io.Writer }

func (p printSink) Paste(text string) error {
	_, err := fmt.Fprintf(p.out, "paste: %s\n", text)
	return err
}

const startTimeout = 2 * time.Second

// runTestMode replays cfg.TestWAV as the microphone and executes one command
// per stdin line:
//
//	START              press the hotkey
//	WAIT               block until the current run is over
//	REWRITE            rewrite the last transcript
//	CONTINUOUS on|off  toggle continuous mode
//	TONE <tone>        select the rewrite tone
//	MAX <preset>       set the maximum recording length
//	PROMPT <file>      load a rewrite prompt, empty for the default
//	SLEEP <ms>
//	QUIT
func runTestMode(cfg *config.Config, in io.Reader, stdout io.Writer) int {
	return runScript(cfg, in, stdout, 1)
}

func runScript(cfg *config.Config, in io.Reader, stdout io.Writer, speedup int) int {
	beep.Disable()
	out := &syncWriter{w: stdout}

	fake, err := audio.NewFakeContextFromWAV(cfg.TestWAV)
	if err != nil {
		fmt.Fprintf(out, "Error loading WAV: %v\n", err)
		return 1
	}
	fake.Speedup = speedup

	if cfg.Provider != "fake" && cfg.APIKey() == "" {
		log.Warnf("no %s key, falling back to fake provider", cfg.Provider)
		cfg.Provider = "fake"
	}
	a, err := newApp(cfg, audio.Source{Ctx: fake}, "fake", printSink{out})
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	if a.promptErr != nil {
		fmt.Fprintf(out, "Warning: %v\n", a.promptErr)
	}
	log.SessionStart(a.trans.Name(), cfg.Format, cfg.Capture.SampleRate, cfg.Capture.FrameSize)
	fmt.Fprintln(out, a.modeLine())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hk := hotkey.NewFake()
	hk.Register()
	defer hk.Unregister()
	go a.listenHotkey(ctx, hk)

	done := make(chan struct{})
	pumped := make(chan bool, 1)
	go func() { pumped <- pump(a.ctrl.Events(), done, out) }()

	runs := 0
	scanner := bufio.NewScanner(in)
loop:
	for scanner.Scan() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		switch strings.ToUpper(cmd) {
		case "":
		case "START":
			hk.SimKeydown()
			if !waitForStart(a.ctrl) {
				fmt.Fprintln(out, "error (start): recording did not start")
				continue
			}
			runs++
		case "WAIT":
			a.ctrl.Wait()
		case "REWRITE":
			if _, err := a.ctrl.Rewrite(ctx); errors.Is(err, controller.ErrNoTranscript) {
				fmt.Fprintf(out, "error (rewrite): %v\n", err)
			}
		case "CONTINUOUS":
			on := strings.EqualFold(arg, "on")
			a.ctrl.Update(func(s *controller.Settings) { s.Continuous = on })
			fmt.Fprintln(out, a.modeLine())
		case "TONE":
			tone, err := rewrite.ParseTone(arg)
			if err != nil {
				fmt.Fprintf(out, "error (tone): %v\n", err)
				continue
			}
			a.ctrl.Update(func(s *controller.Settings) { s.Tone = tone })
			fmt.Fprintln(out, a.modeLine())
		case "MAX":
			d, err := config.ParseMaxRecord(arg)
			if err != nil {
				fmt.Fprintf(out, "error (max): %v\n", err)
				continue
			}
			a.ctrl.Update(func(s *controller.Settings) { s.MaxRecord = d })
			fmt.Fprintln(out, a.modeLine())
		case "PROMPT":
			if err := a.loadPrompt(arg); err != nil {
				fmt.Fprintf(out, "error (prompt): %v\n", err)
				continue
			}
			fmt.Fprintf(out, "prompt: %s\n", a.prompts.Label())
		case "SLEEP":
			var ms int
			fmt.Sscanf(arg, "%d", &ms)
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case "QUIT":
			break loop
		default:
			fmt.Fprintf(out, "unknown command %q\n", cmd)
		}
	}
	cancel()
	a.ctrl.Wait()
	close(done)
	failed := <-pumped
	log.SessionEnd(runs)
	if failed {
		return 1
	}
	return 0
}

// waitForStart polls until the hotkey listener has started a run.
func waitForStart(c *controller.Controller) bool {
	deadline := time.Now().Add(startTimeout)
	for c.State() == controller.Idle {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}
