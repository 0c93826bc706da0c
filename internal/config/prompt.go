package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPromptName is the prompt the agent is instructed with
const DefaultPromptName = "default"

const defaultPrompt = `You are a helpful, friendly voice assistant.

Keep your responses concise and conversational - aim for 1-2 sentences unless more detail is specifically needed.

Be natural and engaging, like talking to a knowledgeable friend.

If you don't know something, say so honestly rather than making things up.`

// DefaultPrompt returns the built-in system prompt
func DefaultPrompt() string {
	return defaultPrompt
}

// LoadPrompt reads <PromptsDir>/<name>.txt trimmed of surrounding
// whitespace. When the file does not exist the built-in prompt is returned.
func (c *Config) LoadPrompt(name string) (string, error) {
	if name == "" {
		name = DefaultPromptName
	}

	path := filepath.Join(c.PromptsDir, name+".txt")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPrompt(), nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read prompt %q: %w", name, err)
	}

	return strings.TrimSpace(string(data)), nil
}
