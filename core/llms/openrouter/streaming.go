package openrouter

import (
	"context"
	"fmt"
	"time"

	"github.com/koscakluka/ema-agent/core/llms"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func (c *Client) PromptWithStream(_ context.Context, prompt *string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.StreamingPromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Stream{
		client:         c.client,
		model:          c.model,
		fallbackModels: c.fallbackModels,
		messages:       toMessages(options.Instructions, options.Messages, prompt),
	}
}

type Stream struct {
	client openai.Client

	model          string
	fallbackModels []string
	messages       []openai.ChatCompletionMessageParamUnion
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", s.model),
			attribute.StringSlice("request.fallback_models", s.fallbackModels),
			attribute.Int("request.messages", len(s.messages)),
		)

		params := openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(s.model),
			Messages: s.messages,
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}

		var requestOptions []option.RequestOption
		if len(s.fallbackModels) > 0 {
			requestOptions = append(requestOptions,
				option.WithJSONSet("models", append([]string{s.model}, s.fallbackModels...)))
		}

		requestedAt := time.Now()
		span.AddEvent("request started")
		stream := s.client.Chat.Completions.NewStreaming(ctx, params, requestOptions...)
		defer stream.Close()

		receivedFirstToken := false
		servedBy := ""
		for stream.Next() {
			chunk := stream.Current()
			if servedBy == "" && chunk.Model != "" {
				servedBy = chunk.Model
				span.SetAttributes(attribute.String("response.model", servedBy))
				if servedBy != s.model {
					logger.InfoContext(ctx, "response served by fallback model",
						"requested", s.model, "served", servedBy)
					log.Info().Str("requested", s.model).Str("served", servedBy).Msg("response served by fallback model")
				}
			}

			for _, choice := range chunk.Choices {
				var finishReason *string
				if choice.FinishReason != "" {
					reason := choice.FinishReason
					finishReason = &reason
				}
				if choice.Delta.Content == "" && finishReason == nil {
					continue
				}

				if !receivedFirstToken && choice.Delta.Content != "" {
					receivedFirstToken = true
					span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestedAt).Seconds()))
					span.AddEvent("received first chunk")
				}

				if !yield(StreamContentChunk{
					finishReason: finishReason,
					content:      choice.Delta.Content,
					model:        chunk.Model,
				}, nil) {
					return
				}
			}

			if chunk.Usage.TotalTokens > 0 {
				usage := llms.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:  int(chunk.Usage.TotalTokens),
				}
				span.SetAttributes(
					attribute.Int("usage.input", usage.InputTokens),
					attribute.Int("usage.output", usage.OutputTokens),
					attribute.Int("usage.total", usage.TotalTokens),
				)
				if !yield(StreamUsageChunk{usage: usage, model: chunk.Model}, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			err = fmt.Errorf("error reading streamed response: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
			return
		}
	}
}

type StreamContentChunk struct {
	finishReason *string
	content      string
	model        string
}

func (s StreamContentChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamContentChunk) Content() string {
	return s.content
}

func (s StreamContentChunk) Model() string {
	return s.model
}

type StreamUsageChunk struct {
	finishReason *string
	usage        llms.Usage
	model        string
}

func (s StreamUsageChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamUsageChunk) Usage() llms.Usage {
	return s.usage
}

func (s StreamUsageChunk) Model() string {
	return s.model
}
