package events

import "fmt"

// KindAgentStateChanged identifies agent phase transitions.
const KindAgentStateChanged Kind = "agent_state.changed"

// AgentState is the coarse phase of a session.
type AgentState int

const (
	AgentStateIdle AgentState = iota
	AgentStateListening
	AgentStateThinking
	AgentStateSpeaking
)

var agentStateNames = [...]string{
	AgentStateIdle:      "idle",
	AgentStateListening: "listening",
	AgentStateThinking:  "thinking",
	AgentStateSpeaking:  "speaking",
}

func (s AgentState) String() string {
	if s < 0 || int(s) >= len(agentStateNames) {
		return fmt.Sprintf("AgentState(%d)", int(s))
	}
	return agentStateNames[s]
}

// ParseAgentState maps a state name back to its [AgentState].
func ParseAgentState(name string) (AgentState, error) {
	for state, stateName := range agentStateNames {
		if stateName == name {
			return AgentState(state), nil
		}
	}
	return AgentStateIdle, fmt.Errorf("unknown agent state %q", name)
}

// AgentStateChanged marks a transition between two session phases.
type AgentStateChanged struct {
	Base
	OldState AgentState
	NewState AgentState
}

// NewAgentStateChanged creates an agent state transition event.
func NewAgentStateChanged(oldState, newState AgentState, opts ...Option) AgentStateChanged {
	return AgentStateChanged{
		Base:     NewBase(KindAgentStateChanged, opts...),
		OldState: oldState,
		NewState: newState,
	}
}
