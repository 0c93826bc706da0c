package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// turn is one queued assistant response. It is driven either by a user
// transcript or by extra instructions.
type turn struct {
	prompt       *string
	instructions string
}

func (t turn) source() string {
	if t.prompt != nil {
		return "user"
	}
	return "instructions"
}

func (s *Session) processTurns() {
	defer s.workers.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-s.turns:
			s.processTurn(s.ctx, t)
		}
	}
}

func (s *Session) processTurn(ctx context.Context, t turn) {
	ctx, span := tracer.Start(ctx, "process turn", trace.WithAttributes(s.sessionAttributes()...))
	defer span.End()
	span.SetAttributes(attribute.String("turn.source", t.source()))
	if s.turnCounter != nil {
		s.turnCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", t.source())))
	}

	s.setState(events.AgentStateThinking)
	defer func() {
		if ctx.Err() == nil {
			s.setState(events.AgentStateListening)
		}
	}()

	history := s.conversation.snapshot()
	if t.prompt != nil {
		s.conversation.add(llms.UserMessage(*t.prompt))
	}

	instructions := s.agent.Instructions
	if t.instructions != "" {
		instructions += "\n\n" + t.instructions
	}

	var speech *speechPipeline
	if s.textToSpeech != nil {
		var err error
		if speech, err = s.startSpeech(ctx); err != nil {
			s.recordError(ctx, fmt.Errorf("failed to start speech, responding without audio: %w", err))
		}
	}

	response, err := s.generateResponse(ctx, t.prompt, instructions, history, speech)
	if err != nil {
		if speech != nil {
			speech.cancel()
		}
		if !errors.Is(err, context.Canceled) {
			s.recordError(ctx, err)
		}
		return
	}
	span.SetAttributes(attribute.Int("response.length", len(response)))

	if response == "" {
		if speech != nil {
			speech.cancel()
		}
		return
	}
	s.conversation.add(llms.AssistantMessage(response))

	if speech == nil {
		// Nothing is played back, the response counts as spoken once generated.
		s.setState(events.AgentStateSpeaking)
		return
	}

	if err := s.finishSpeech(ctx, speech); err != nil && !errors.Is(err, context.Canceled) {
		s.recordError(ctx, err)
	}
}

func (s *Session) generateResponse(ctx context.Context, prompt *string, instructions string, history []llms.Message, speech *speechPipeline) (string, error) {
	span := trace.SpanFromContext(ctx)

	requestedAt := s.now()
	stream := s.llm.PromptWithStream(ctx, prompt,
		llms.WithInstructions(instructions),
		llms.WithMessages(history...),
	)

	var response strings.Builder
	var ttft time.Duration
	receivedFirstToken := false
	model := ""
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return "", fmt.Errorf("failed to stream llm response: %w", err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if chunk, ok := chunk.(llms.StreamModelChunk); ok && chunk.Model() != "" {
			model = chunk.Model()
		}

		switch chunk := chunk.(type) {
		case llms.StreamContentChunk:
			content := chunk.Content()
			if content == "" {
				continue
			}
			if !receivedFirstToken {
				receivedFirstToken = true
				ttft = s.now().Sub(requestedAt)
				span.AddEvent("received first token")
			}

			response.WriteString(content)
			if speech != nil {
				if err := speech.sendText(content); err != nil {
					s.recordError(ctx, fmt.Errorf("failed to send text to speech: %w", err))
				}
			}
		}
	}

	if receivedFirstToken {
		s.emit(events.NewMetricsCollected(events.LLMMetrics{
			TTFT:     ttft,
			Duration: s.now().Sub(requestedAt),
			Model:    model,
		}, s.at()))
	}

	return response.String(), nil
}
