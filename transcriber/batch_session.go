package transcriber

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"murmur/encoder"
)

type transcribeFunc func(ctx context.Context, audio []byte, format string) (*Result, error)

// batchSession encodes fed PCM on a goroutine while recording continues and
// uploads the finished container on Close.
type batchSession struct {
	ctx        context.Context
	cfg        SessionConfig
	format     encoder.Format
	transcribe transcribeFunc
	encoder    encoder.Encoder
	blockChan  chan []int16
	encodeDone chan struct{}
	encodeErr  error
	sampleBuf  []int16
	carry      []byte // odd trailing byte of the previous Feed
	bufMu      sync.Mutex
}

func newBatchSession(ctx context.Context, cfg SessionConfig, transcribe transcribeFunc) (*batchSession, error) {
	if cfg.Format == "" {
		cfg.Format = "wav"
	}
	format := encoder.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	enc, err := encoder.New(cfg.Format, format)
	if err != nil {
		return nil, err
	}

	bs := &batchSession{
		ctx:        ctx,
		cfg:        cfg,
		format:     format,
		transcribe: transcribe,
		encoder:    enc,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(bs.encodeDone)
		for block := range bs.blockChan {
			if bs.encodeErr != nil {
				continue
			}
			start := time.Now()
			bs.encodeErr = bs.encoder.EncodeBlock(block)
			bs.encoder.AddEncodeTime(time.Since(start))
		}
	}()

	return bs, nil
}

func (bs *batchSession) blockLen() int {
	return encoder.BlockSize * bs.format.Channels
}

func (bs *batchSession) Feed(pcm []byte) {
	bs.bufMu.Lock()
	if len(bs.carry) > 0 && len(pcm) > 0 {
		pcm = append(bs.carry, pcm...)
		bs.carry = nil
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		bs.sampleBuf = append(bs.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	if len(pcm)%2 == 1 {
		bs.carry = []byte{pcm[len(pcm)-1]}
	}
	n := bs.blockLen()
	var blocks [][]int16
	for len(bs.sampleBuf) >= n {
		block := make([]int16, n)
		copy(block, bs.sampleBuf[:n])
		bs.sampleBuf = bs.sampleBuf[n:]
		blocks = append(blocks, block)
	}
	bs.bufMu.Unlock()

	for _, block := range blocks {
		bs.blockChan <- block
	}
}

func (bs *batchSession) Close() (SessionResult, error) {
	bs.bufMu.Lock()
	if len(bs.sampleBuf) > 0 {
		partial := make([]int16, len(bs.sampleBuf))
		copy(partial, bs.sampleBuf)
		bs.sampleBuf = nil
		bs.blockChan <- partial
	}
	bs.bufMu.Unlock()

	close(bs.blockChan)
	<-bs.encodeDone

	closeErr := bs.encoder.Close()
	if bs.encodeErr != nil {
		return SessionResult{}, fmt.Errorf("encoding %s: %w", bs.cfg.Format, bs.encodeErr)
	}
	if closeErr != nil {
		return SessionResult{}, fmt.Errorf("encoding %s: %w", bs.cfg.Format, closeErr)
	}

	result, err := bs.transcribe(bs.ctx, bs.encoder.Bytes(), bs.cfg.Format)
	if err != nil {
		return SessionResult{}, err
	}
	if result.Metrics == nil {
		result.Metrics = &NetworkMetrics{}
	}

	text := strings.TrimSpace(result.Text)
	noSpeech := text == ""

	enc := bs.encoder
	rawSize := enc.TotalFrames() * uint64(bs.format.Channels) * 2
	encodedSize := uint64(len(enc.Bytes()))
	var compressionPct float64
	if rawSize > 0 {
		compressionPct = (1.0 - float64(encodedSize)/float64(rawSize)) * 100
	}
	audioDuration := float64(enc.TotalFrames()) / float64(bs.format.SampleRate)
	netMetrics := result.Metrics

	sr := SessionResult{
		Text:      text,
		HasText:   !noSpeech,
		NoSpeech:  noSpeech,
		RateLimit: result.RateLimit,
		Batch: &BatchStats{
			AudioLengthS:     audioDuration,
			RawSizeKB:        float64(rawSize) / 1024,
			CompressedSizeKB: float64(encodedSize) / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(enc.EncodeTime().Milliseconds()),
			DNSTimeMs:        float64(netMetrics.DNS.Milliseconds()),
			TLSTimeMs:        float64(netMetrics.TLS.Milliseconds()),
			TTFBMs:           float64(netMetrics.TTFB.Milliseconds()),
			TotalTimeMs:      float64(netMetrics.Sum().Milliseconds()),
			ConnReused:       netMetrics.ConnReused,
			TLSProtocol:      netMetrics.TLSProtocol,
		},
		Metrics: bs.formatMetrics(rawSize, encodedSize, compressionPct, audioDuration, result),
	}
	sr.captureMemStats()
	return sr, nil
}

func (bs *batchSession) formatMetrics(rawSize, encodedSize uint64, compressionPct, audioDuration float64, result *Result) []string {
	metrics := result.Metrics

	reusedStatus := ""
	if metrics.ConnReused {
		reusedStatus = " (reused)"
	}

	lines := []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			audioDuration, float64(rawSize)/1024, float64(encodedSize)/1024, compressionPct),
		fmt.Sprintf("format:     %s @ %d Hz", bs.cfg.Format, bs.format.SampleRate),
		fmt.Sprintf("encode:     %dms (concurrent)", bs.encoder.EncodeTime().Milliseconds()),
		fmt.Sprintf("conn_wait:  %dms%s", metrics.ConnWait.Milliseconds(), reusedStatus),
		fmt.Sprintf("dns:        %dms", metrics.DNS.Milliseconds()),
		fmt.Sprintf("tls:        %dms", metrics.TLS.Milliseconds()),
		fmt.Sprintf("ttfb:       %dms", metrics.TTFB.Milliseconds()),
		fmt.Sprintf("total:      %dms", metrics.Sum().Milliseconds()),
	}
	if result.Duration > 0 {
		lines = append(lines, fmt.Sprintf("api_dur:    %.2fs", result.Duration))
	}
	if result.NoSpeechProb > 0 {
		lines = append(lines, fmt.Sprintf("no_speech:  %.3f", result.NoSpeechProb))
	}
	return lines
}
