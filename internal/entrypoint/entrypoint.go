// Package entrypoint composes configuration, agent, session and latency
// tracking into one running voice agent.
package entrypoint

import (
	"context"
	"errors"
	"fmt"

	orchestration "github.com/koscakluka/ema-agent/core"
	"github.com/koscakluka/ema-agent/core/agent"
	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/latency"
	"github.com/koscakluka/ema-agent/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrMissingDependency = errors.New("missing dependency")

// AudioDevice captures the user's speech and plays the agent's speech
type AudioDevice interface {
	orchestration.AudioInput
	orchestration.AudioOutput
	Close()
}

// Dependencies builds the clients of a session. Every constructor is
// required.
type Dependencies struct {
	NewSpeechToText func(*config.Config) (orchestration.SpeechToText, error)
	NewLLM          func(*config.Config) (orchestration.LLMWithStream, error)
	NewTextToSpeech func(*config.Config) (orchestration.TextToSpeech, error)
	NewAudioDevice  func(*config.Config) (AudioDevice, error)

	// Reporter receives latency measurements. Nil discards them.
	Reporter latency.Reporter
}

func (d Dependencies) validate() error {
	switch {
	case d.NewSpeechToText == nil:
		return fmt.Errorf("%w: speech-to-text", ErrMissingDependency)
	case d.NewLLM == nil:
		return fmt.Errorf("%w: llm", ErrMissingDependency)
	case d.NewTextToSpeech == nil:
		return fmt.Errorf("%w: text-to-speech", ErrMissingDependency)
	case d.NewAudioDevice == nil:
		return fmt.Errorf("%w: audio device", ErrMissingDependency)
	}
	return nil
}

type runOptions struct {
	withoutGreeting bool
	logger          zerolog.Logger
}

type Option func(*runOptions)

// WithoutGreeting starts the session silent, waiting for the user
func WithoutGreeting() Option {
	return func(o *runOptions) { o.withoutGreeting = true }
}

// WithLogger replaces the global logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *runOptions) { o.logger = logger }
}

// Run validates the configuration, builds the agent and its clients and runs
// one session until ctx is done. Missing secrets fail before any client is
// built.
func Run(ctx context.Context, cfg *config.Config, deps Dependencies, opts ...Option) error {
	if err := cfg.RequireSecrets(); err != nil {
		return err
	}
	if err := deps.validate(); err != nil {
		return err
	}

	options := runOptions{logger: log.Logger}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.logger.With().Str("component", "entrypoint").Logger()

	instructions, err := cfg.LoadPrompt(config.DefaultPromptName)
	if err != nil {
		return fmt.Errorf("failed to load instructions: %w", err)
	}

	assistant, err := agent.New(cfg.AgentName, instructions)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	stt, err := deps.NewSpeechToText(cfg)
	if err != nil {
		return fmt.Errorf("failed to create speech-to-text client: %w", err)
	}
	llm, err := deps.NewLLM(cfg)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	tts, err := deps.NewTextToSpeech(cfg)
	if err != nil {
		return fmt.Errorf("failed to create text-to-speech client: %w", err)
	}
	device, err := deps.NewAudioDevice(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer device.Close()

	session := orchestration.NewSession(
		orchestration.WithSpeechToText(stt),
		orchestration.WithLLM(llm),
		orchestration.WithTextToSpeech(tts),
		orchestration.WithAudioInput(device),
		orchestration.WithAudioOutput(device),
	)

	tracker := latency.NewTracker(deps.Reporter)
	startOptions := sessionCallbacks(tracker, logger)
	if options.withoutGreeting {
		startOptions = append(startOptions, orchestration.WithoutGreeting())
	}

	if err := session.Start(ctx, assistant, startOptions...); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	logger.Info().
		Str("session_id", session.ID).
		Str("agent", assistant.Name).
		Str("llm_model", cfg.LLMModel).
		Msg("session started")

	session.Wait()
	logger.Info().Str("session_id", session.ID).Msg("session closed")

	return nil
}

// sessionCallbacks feeds every event to the tracker and logs the
// conversation as it happens.
func sessionCallbacks(tracker *latency.Tracker, logger zerolog.Logger) []orchestration.StartOption {
	return []orchestration.StartOption{
		orchestration.WithTranscriptCallback(func(event events.UserTranscript) {
			if event.IsFinal {
				logger.Info().Str("transcript", event.Transcript).Msg("user said")
			}
			tracker.OnTranscript(event)
		}),
		orchestration.WithStateChangedCallback(func(event events.AgentStateChanged) {
			logger.Debug().
				Stringer("old_state", event.OldState).
				Stringer("new_state", event.NewState).
				Msg("agent state changed")
			tracker.OnStateChanged(event)
		}),
		orchestration.WithMetricsCallback(tracker.OnMetrics),
	}
}
