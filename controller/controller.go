// Package controller drives record → transcribe cycles and rewrites, and
// reports everything that happens on an event channel.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"murmur/audio"
	"murmur/capture"
	"murmur/log"
	"murmur/prompt"
	"murmur/rewrite"
	"murmur/transcriber"
)

var (
	ErrBusy         = errors.New("a recording is already in progress")
	ErrNoTranscript = errors.New("no transcribed text available to rewrite")
)

const eventBuffer = 64

// Sink receives text to be placed in the focused application.
type Sink interface {
	Paste(text string) error
}

// Settings may change between runs. Each run reads them when it starts,
// except Continuous, which is read again when deciding to restart.
type Settings struct {
	Continuous bool
	MaxRecord  time.Duration
	Tone       rewrite.Tone
	AutoPaste  bool
}

type Options struct {
	Source            audio.Opener
	Capture           capture.Config // SilenceDuration and MaxRecord are overridden per run
	ContinuousSilence time.Duration
	Transcriber       transcriber.Transcriber
	Format            string
	Rewriter          rewrite.Rewriter
	Prompt            *prompt.Source
	Sink              Sink
	Settings          Settings
}

type Controller struct {
	opts Options

	mu       sync.Mutex
	state    State
	settings Settings
	last     string

	events chan Event
	wg     sync.WaitGroup
}

func New(opts Options) *Controller {
	if opts.Prompt == nil {
		opts.Prompt = prompt.NewSource()
	}
	if opts.Settings.Tone == "" {
		opts.Settings.Tone = rewrite.Formal
	}
	return &Controller{
		opts:     opts,
		settings: opts.Settings,
		events:   make(chan Event, eventBuffer),
	}
}

// Events must be drained by the caller; the controller blocks when the
// buffer is full.
func (c *Controller) Events() <-chan Event { return c.events }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Controller) Update(fn func(*Settings)) Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.settings)
	return c.settings
}

func (c *Controller) LastTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) Prompt() *prompt.Source { return c.opts.Prompt }

// Start begins a recording on a new goroutine. It fails with ErrBusy unless
// the controller is idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = Recording
	c.wg.Add(1)
	c.mu.Unlock()
	c.emit(Event{Kind: StateChanged, State: Recording})

	go c.run(ctx)
	return nil
}

// Wait blocks until the current run, including continuous restarts, is over.
func (c *Controller) Wait() { c.wg.Wait() }

func (c *Controller) emit(ev Event) { c.events <- ev }

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.emit(Event{Kind: StateChanged, State: s})
}

func (c *Controller) fail(op string, err error) {
	log.Errorf("%s failed: %v", op, err)
	c.emit(Event{Kind: Failed, Op: op, Err: err})
}

func (c *Controller) captureConfig(s Settings) capture.Config {
	cfg := c.opts.Capture
	if s.Continuous {
		cfg.SilenceDuration = c.opts.ContinuousSilence
	}
	cfg.MaxRecord = s.MaxRecord
	return cfg
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		s := c.Settings()
		cfg := c.captureConfig(s)

		res, err := capture.Run(c.opts.Source, cfg)
		if err != nil {
			c.fail("capture", err)
			c.setState(Idle)
			return
		}
		reason := "max_record"
		if res.StoppedBySilence {
			reason = "silence"
		}
		log.Capture(res.FrameCount(), res.Duration(), reason)
		c.emit(Event{Kind: CaptureDone, Frames: res.FrameCount(), Duration: res.Duration(), StoppedBySilence: res.StoppedBySilence})

		c.setState(Transcribing)
		result, err := c.transcribe(ctx, res)
		if err != nil {
			c.fail("transcribe", err)
			c.setState(Idle)
			return
		}
		if result.HasText {
			c.mu.Lock()
			c.last = result.Text
			c.mu.Unlock()
			log.TranscriptionText(result.Text)
		}
		c.emit(Event{Kind: Transcribed, Text: result.Text, NoSpeech: result.NoSpeech, Metrics: result.Metrics, Duration: res.Duration()})

		if s.AutoPaste && result.HasText && c.opts.Sink != nil {
			if err := c.opts.Sink.Paste(result.Text); err != nil {
				c.fail("paste", err)
			}
		}

		continuous := c.Settings().Continuous
		if res.StoppedBySilence {
			c.emit(Event{Kind: SilenceStop, Silence: cfg.SilenceDuration, ContinuousEnded: continuous})
		}
		if Next(continuous, res.StoppedBySilence) == Idle || ctx.Err() != nil {
			c.setState(Idle)
			return
		}
		c.setState(Restarting)
		c.setState(Recording)
	}
}

func (c *Controller) transcribe(ctx context.Context, res capture.Result) (transcriber.SessionResult, error) {
	tr := c.opts.Transcriber
	sess, err := tr.NewSession(ctx, transcriber.SessionConfig{
		Format:     c.opts.Format,
		Language:   tr.GetLanguage(),
		SampleRate: res.SampleRate,
		Channels:   res.Channels,
	})
	if err != nil {
		return transcriber.SessionResult{}, fmt.Errorf("starting %s session: %w", tr.Name(), err)
	}
	for _, f := range res.Frames {
		sess.Feed(f)
	}
	result, err := sess.Close()
	if err != nil {
		return transcriber.SessionResult{}, err
	}
	if bs := result.Batch; bs != nil {
		log.TranscriptionMetrics(log.Metrics{
			AudioLengthS:     bs.AudioLengthS,
			RawSizeKB:        bs.RawSizeKB,
			CompressedSizeKB: bs.CompressedSizeKB,
			CompressionPct:   bs.CompressionPct,
			EncodeTimeMs:     bs.EncodeTimeMs,
			DNSTimeMs:        bs.DNSTimeMs,
			TLSTimeMs:        bs.TLSTimeMs,
			TTFBMs:           bs.TTFBMs,
			TotalTimeMs:      bs.TotalTimeMs,
		}, tr.Name(), c.opts.Format, bs.ConnReused, bs.TLSProtocol)
	}
	return result, nil
}

// Rewrite restyles the last transcript with the current prompt and tone,
// pastes the result and reports it as a Rewritten event.
func (c *Controller) Rewrite(ctx context.Context) (string, error) {
	text := c.LastTranscript()
	if text == "" {
		return "", ErrNoTranscript
	}
	if c.opts.Rewriter == nil {
		return "", errors.New("rewriting is not configured")
	}
	tone := c.Settings().Tone
	out, err := c.opts.Rewriter.Rewrite(ctx, c.opts.Prompt.Current(), tone, text)
	if err != nil {
		c.fail("rewrite", err)
		return "", err
	}
	log.Rewrite(string(tone), len(text), len(out))
	if c.opts.Sink != nil {
		if err := c.opts.Sink.Paste(out); err != nil {
			c.fail("paste", err)
		}
	}
	c.emit(Event{Kind: Rewritten, Text: out, Tone: tone})
	return out, nil
}
