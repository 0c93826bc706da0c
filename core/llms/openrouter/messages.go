package openrouter

import (
	"github.com/koscakluka/ema-agent/core/llms"
	"github.com/openai/openai-go"
)

func toMessages(instructions string, history []llms.Message, prompt *string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if instructions != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}

	for _, message := range history {
		if message.Content == "" {
			continue
		}

		switch message.Role {
		case llms.MessageRoleSystem:
			messages = append(messages, openai.SystemMessage(message.Content))
		case llms.MessageRoleUser:
			messages = append(messages, openai.UserMessage(message.Content))
		case llms.MessageRoleAssistant:
			messages = append(messages, openai.AssistantMessage(message.Content))
		}
	}

	if prompt != nil {
		messages = append(messages, openai.UserMessage(*prompt))
	}

	return messages
}
