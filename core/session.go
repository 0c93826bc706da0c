// Package orchestration runs a voice session: it feeds captured audio to
// speech-to-text, answers final transcripts with a streamed LLM response,
// speaks the response through text-to-speech and reports what happens as
// typed events.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-agent/core/agent"
	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/speechtotext"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const turnQueueSize = 16

var (
	ErrNilAgent       = errors.New("session requires an agent")
	ErrMissingLLM     = errors.New("session requires an llm")
	ErrSessionStarted = errors.New("session already started")
	ErrSessionClosed  = errors.New("session closed")
	ErrTurnQueueFull  = errors.New("turn queue full")
)

type Session struct {
	// ID identifies the session in traces and logs.
	ID string

	speechToText SpeechToText
	llm          LLMWithStream
	textToSpeech TextToSpeech
	audioInput   AudioInput
	audioOutput  AudioOutput

	agent        *agent.Agent
	conversation conversation
	dispatcher   *eventDispatcher
	turns        chan turn
	turnCounter  metric.Int64Counter

	stateMu sync.Mutex
	state   events.AgentState
	started bool
	closed  bool
	// transitionMu keeps state changed events in transition order
	transitionMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}

	now func() time.Time
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		dispatcher: newEventDispatcher(),
		turns:      make(chan turn, turnQueueSize),
		state:      events.AgentStateIdle,
		ctx:        context.Background(),
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	counter, err := meter.Int64Counter("voice_agent.turns",
		metric.WithDescription("Conversational turns processed by the session"))
	if err != nil {
		logger.Warn("failed to create turn counter", "error", err)
	}
	s.turnCounter = counter

	return s
}

// Start begins listening. It opens the speech-to-text stream, starts
// capturing audio and, unless disabled, generates the agent's greeting.
//
// ctx bounds the session: when it is done the session closes.
func (s *Session) Start(ctx context.Context, a *agent.Agent, opts ...StartOption) error {
	if a == nil {
		return ErrNilAgent
	} else if s.llm == nil {
		return ErrMissingLLM
	}

	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return ErrSessionClosed
	} else if s.started {
		s.stateMu.Unlock()
		return ErrSessionStarted
	}
	s.started = true
	s.agent = a
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stateMu.Unlock()

	options := StartOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	s.dispatcher.start(newCallbackEventEmitter(options))

	s.workers.Add(1)
	go s.processTurns()

	if err := s.startListening(s.ctx); err != nil {
		s.Close()
		return err
	}
	s.setState(events.AgentStateListening)

	if !options.withoutGreeting && a.Greeting != "" {
		if err := s.GenerateReply(a.Greeting); err != nil {
			s.recordError(s.ctx, fmt.Errorf("failed to queue greeting: %w", err))
		}
	}

	go func() {
		select {
		case <-s.ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	return nil
}

func (s *Session) startListening(ctx context.Context) error {
	if s.speechToText != nil {
		encodingInfo := audio.GetDefaultEncodingInfo()
		if s.audioInput != nil {
			encodingInfo = s.audioInput.EncodingInfo()
		}

		if err := s.speechToText.Transcribe(ctx,
			speechtotext.WithInterimTranscriptionCallback(s.onInterimTranscription),
			speechtotext.WithTranscriptionCallback(s.onTranscription),
			speechtotext.WithMetricsCallback(func(m events.STTMetrics) { s.emit(events.NewMetricsCollected(m, s.at())) }),
			speechtotext.WithEncodingInfo(encodingInfo),
		); err != nil {
			return fmt.Errorf("failed to start transcribing: %w", err)
		}
	}

	if s.audioInput != nil {
		if err := s.audioInput.Stream(ctx, s.onInputAudio); err != nil {
			return fmt.Errorf("failed to start audio capture: %w", err)
		}
	}

	return nil
}

func (s *Session) onInputAudio(audio []byte) {
	if s.speechToText == nil {
		return
	}
	if err := s.speechToText.SendAudio(audio); err != nil {
		logger.Debug("failed to send audio to speech-to-text", "error", err)
	}
}

func (s *Session) onInterimTranscription(transcript string) {
	s.emit(events.NewUserTranscript(transcript, s.at()))
}

func (s *Session) onTranscription(transcript string) {
	s.emit(events.NewUserTranscriptFinal(transcript, s.at()))
	if err := s.enqueueTurn(turn{prompt: &transcript}); err != nil {
		s.recordError(s.ctx, fmt.Errorf("failed to queue user turn: %w", err))
	}
}

// GenerateReply queues an assistant turn driven by instructions instead of
// a user transcript.
func (s *Session) GenerateReply(instructions string) error {
	return s.enqueueTurn(turn{instructions: instructions})
}

func (s *Session) enqueueTurn(t turn) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	} else if !s.started {
		return fmt.Errorf("session not started")
	}

	select {
	case s.turns <- t:
		return nil
	default:
		return ErrTurnQueueFull
	}
}

// State returns the current agent phase.
func (s *Session) State() events.AgentState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// setState emits a state changed event when the phase actually changes.
func (s *Session) setState(state events.AgentState) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.stateMu.Lock()
	oldState := s.state
	s.state = state
	s.stateMu.Unlock()

	if oldState != state {
		s.dispatcher.enqueue(events.NewAgentStateChanged(oldState, state, s.at()))
	}
}

// at stamps events with the session clock.
func (s *Session) at() events.Option {
	return events.WithTimestamp(s.now())
}

func (s *Session) emit(event events.Event) {
	s.dispatcher.enqueue(event)
}

// Close stops capture and transcription, waits for the running turn to
// finish and for all queued events to be delivered. It is safe to call more
// than once but must not be called from a session callback.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.stateMu.Lock()
		started := s.started
		s.closed = true
		s.stateMu.Unlock()

		if started {
			if s.audioInput != nil {
				if err := s.audioInput.StopCapture(); err != nil {
					s.recordError(s.ctx, fmt.Errorf("failed to stop audio capture: %w", err))
				}
			}

			if closer, ok := s.speechToText.(interface{ Close(context.Context) error }); ok {
				if err := closer.Close(context.Background()); err != nil {
					s.recordError(s.ctx, fmt.Errorf("failed to close speech-to-text client: %w", err))
				}
			}

			s.cancel()
			s.workers.Wait()
			s.setState(events.AgentStateIdle)
		}

		s.dispatcher.close(started)
		close(s.done)
	})
}

// Wait blocks until the session has closed.
func (s *Session) Wait() {
	<-s.done
}

func (s *Session) recordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.ErrorContext(ctx, err.Error(), "session.id", s.ID)
	log.Error().Err(err).Str("session.id", s.ID).Msg("session error")
}

func (s *Session) sessionAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("session.id", s.ID)}
	if s.agent != nil {
		attrs = append(attrs, attribute.String("agent.name", s.agent.Name))
	}
	return attrs
}
