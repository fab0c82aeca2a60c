package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/config"
	"murmur/doctor"
	"murmur/hotkey"
	"murmur/log"
	"murmur/paste"
)

var version = "dev"

const usage = `usage: murmur [flags]

Records from the microphone until you stop talking, transcribes the
recording and optionally rewrites it in a chosen tone.

Run "murmur -doctor" to check the setup.`

func initCrashLog() {
	f, err := os.OpenFile(filepath.Join(log.Dir(), log.CrashFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

// run returns the process exit code.
func run() int {
	cfg, err := config.Parse(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Println(usage)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if cfg.Version {
		fmt.Printf("murmur %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if cfg.Doctor {
		return runDoctor(cfg)
	}
	if cfg.TestWAV != "" {
		return runTestMode(cfg, os.Stdin, os.Stdout)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	device, err := chooseDevice(actx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	deviceName := ""
	if device != nil {
		deviceName = device.Name
	}

	if err := paste.Init(); err != nil {
		log.Warnf("paste init: %v", err)
		if cfg.AutoPaste {
			fmt.Fprintf(os.Stderr, "Warning: paste init failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}
	a, err := newApp(cfg, audio.Source{Ctx: actx, Device: device}, deviceName, paste.NewSink())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.SessionStart(a.trans.Name(), cfg.Format, cfg.Capture.SampleRate, cfg.Capture.FrameSize)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey register: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %s hotkey unavailable: %v\n", hotkey.Label, err)
	} else {
		defer hk.Unregister()
		go a.listenHotkey(ctx, hk)
	}

	if cfg.TUI {
		return runTUI(ctx, a)
	}
	return runHeadless(ctx, a, os.Stdout)
}

// chooseDevice resolves -device and -setup. Nil means the system default.
func chooseDevice(actx audio.Context, cfg *config.Config) (*audio.DeviceInfo, error) {
	if cfg.Device != "" {
		dev, err := audio.FindDevice(actx, cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("listing devices: %w", err)
		}
		if dev == nil {
			log.Warnf("device %q not found, using default", cfg.Device)
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", cfg.Device)
		}
		return dev, nil
	}
	if !cfg.Setup {
		return nil, nil
	}
	dev, err := audio.SelectDevice(actx)
	if errors.Is(err, audio.ErrSelectionAborted) {
		return nil, err
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\nFalling back to default device\n", err)
		return nil, nil
	}
	return dev, nil
}

func runDoctor(cfg *config.Config) int {
	deps := doctor.Deps{
		Config:     cfg,
		Copy:       clipboard.Copy,
		Read:       clipboard.Read,
		PasteInit:  paste.Init,
		Hotkey:     hotkey.Diagnose,
		MicSeconds: 3,
	}
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Warning: no audio backend: %v\n", err)
	} else {
		defer actx.Close()
		deps.Audio = actx
	}
	return doctor.Run(os.Stdout, deps)
}
