package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/texttospeech"
)

// speechPipeline carries one response from a speech generator to the audio
// output and measures how long synthesis takes.
type speechPipeline struct {
	session   *Session
	generator texttospeech.SpeechGenerator
	output    AudioOutput

	mu           sync.Mutex
	firstTextAt  time.Time
	firstAudioAt time.Time
	endedAt      time.Time
	report       texttospeech.SpeechEndedReport

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

func (s *Session) startSpeech(ctx context.Context) (*speechPipeline, error) {
	p := &speechPipeline{
		session: s,
		output:  s.audioOutput,
		done:    make(chan struct{}),
	}

	encodingInfo := audio.GetDefaultEncodingInfo()
	if s.audioOutput != nil {
		encodingInfo = s.audioOutput.EncodingInfo()
	}

	generator, err := s.textToSpeech.NewSpeechGenerator(ctx,
		texttospeech.WithSpeechAudioCallback(p.onAudio),
		texttospeech.WithSpeechEndedCallback(p.onEnded),
		texttospeech.WithErrorCallback(p.onError),
		texttospeech.WithEncodingInfo(encodingInfo),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech generator: %w", err)
	}
	p.generator = generator

	return p, nil
}

func (p *speechPipeline) sendText(text string) error {
	p.mu.Lock()
	if p.firstTextAt.IsZero() {
		p.firstTextAt = p.session.now()
	}
	p.mu.Unlock()

	return p.generator.SendText(text)
}

func (p *speechPipeline) onAudio(chunk []byte) {
	p.mu.Lock()
	first := p.firstAudioAt.IsZero()
	if first {
		p.firstAudioAt = p.session.now()
	}
	p.mu.Unlock()

	if first {
		p.session.setState(events.AgentStateSpeaking)
	}

	if p.output != nil {
		if err := p.output.SendAudio(chunk); err != nil {
			logger.Debug("failed to play speech audio", "error", err)
		}
	}
}

func (p *speechPipeline) onEnded(report texttospeech.SpeechEndedReport) {
	p.mu.Lock()
	p.report = report
	p.endedAt = p.session.now()
	p.mu.Unlock()

	p.finish(nil)
}

func (p *speechPipeline) onError(err error) {
	p.finish(err)
}

func (p *speechPipeline) finish(err error) {
	p.doneOnce.Do(func() {
		p.err = err
		close(p.done)
	})
}

// cancel stops synthesis and drops audio that has not been played yet.
func (p *speechPipeline) cancel() {
	if err := p.generator.Cancel(); err != nil {
		logger.Debug("failed to cancel speech generator", "error", err)
	}
	if p.output != nil {
		p.output.ClearBuffer()
	}
	p.finish(context.Canceled)
}

// finishSpeech signals the end of the response text, waits for synthesis and
// then for playback to drain.
func (s *Session) finishSpeech(ctx context.Context, p *speechPipeline) error {
	if err := p.generator.EndOfText(); err != nil {
		p.cancel()
		return fmt.Errorf("failed to end speech text: %w", err)
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}

	if p.err != nil {
		return fmt.Errorf("speech generation failed: %w", p.err)
	}

	p.mu.Lock()
	firstTextAt, firstAudioAt, endedAt := p.firstTextAt, p.firstAudioAt, p.endedAt
	report := p.report
	p.mu.Unlock()

	if firstAudioAt.IsZero() {
		return nil
	}

	s.emit(events.NewMetricsCollected(events.TTSMetrics{
		TTFB:       firstAudioAt.Sub(firstTextAt),
		Duration:   endedAt.Sub(firstTextAt),
		Characters: report.Characters,
	}, s.at()))

	if p.output != nil {
		if err := p.output.AwaitMark(ctx); err != nil {
			p.output.ClearBuffer()
			return fmt.Errorf("failed to await playback: %w", err)
		}
	}

	return nil
}
