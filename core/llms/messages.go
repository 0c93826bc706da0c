package llms

// MessageRole describes who a message in the conversation is from
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single entry of the conversation history sent with a prompt.
type Message struct {
	Role    MessageRole
	Content string
}

func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: MessageRoleAssistant, Content: content}
}

// Response is a single, fully streamed response from an LLM
type Response struct {
	Content string
	// Model is the model that actually served the response, which can differ
	// from the requested one when a fallback was used.
	Model string
	Usage Usage
}
