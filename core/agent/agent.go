// Package agent defines the persona handed to a voice session.
package agent

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyInstructions = errors.New("agent instructions must not be empty")

// Agent is a voice assistant persona. Its instructions are fixed for the
// lifetime of the agent and sent as the system prompt of every response.
type Agent struct {
	Name         string
	Instructions string
	// Greeting holds the instructions used to generate the opening reply of a
	// session. An empty greeting means the agent waits for the user to speak
	// first.
	Greeting string
}

type Option func(*Agent)

// WithGreeting replaces the default greeting instructions.
func WithGreeting(greeting string) Option {
	return func(a *Agent) { a.Greeting = greeting }
}

// WithoutGreeting makes the agent wait for the user to speak first.
func WithoutGreeting() Option {
	return func(a *Agent) { a.Greeting = "" }
}

func New(name, instructions string, opts ...Option) (*Agent, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return nil, ErrEmptyInstructions
	}

	a := &Agent{
		Name:         name,
		Instructions: instructions,
		Greeting:     DefaultGreeting(name),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// DefaultGreeting returns the opening reply instructions for an agent called
// name.
func DefaultGreeting(name string) string {
	if name == "" {
		name = "a voice assistant"
	}
	return fmt.Sprintf("Greet the user warmly and introduce yourself as %s. Ask how you can help them today.", name)
}
