package orchestration

import (
	"slices"
	"sync"

	"github.com/koscakluka/ema-agent/core/llms"
)

// conversation is the message history of one session.
type conversation struct {
	mu       sync.RWMutex
	messages []llms.Message
}

func (c *conversation) add(message llms.Message) {
	if message.Content == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *conversation) snapshot() []llms.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}
