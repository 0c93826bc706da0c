package llms

import "slices"

type StreamingPromptOptions struct {
	Instructions string
	Messages     []Message
}

type StreamingPromptOption func(*StreamingPromptOptions)

// WithInstructions replaces the system instructions of the prompt.
func WithInstructions(instructions string) StreamingPromptOption {
	return func(o *StreamingPromptOptions) { o.Instructions = instructions }
}

// WithMessages sets the conversation history sent before the prompt.
func WithMessages(messages ...Message) StreamingPromptOption {
	return func(o *StreamingPromptOptions) { o.Messages = slices.Clone(messages) }
}
