package events

import (
	"testing"
	"time"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "user transcript", event: NewUserTranscript("hel"), expected: KindUserTranscript},
		{name: "user transcript final", event: NewUserTranscriptFinal("hello"), expected: KindUserTranscript},
		{name: "agent state changed", event: NewAgentStateChanged(AgentStateIdle, AgentStateListening), expected: KindAgentStateChanged},
		{name: "metrics collected", event: NewMetricsCollected(STTMetrics{}), expected: KindMetricsCollected},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestTranscriptConstructorsSetFinality(t *testing.T) {
	if NewUserTranscript("hel").IsFinal {
		t.Fatalf("expected interim transcript to not be final")
	}
	if !NewUserTranscriptFinal("hello").IsFinal {
		t.Fatalf("expected final transcript to be final")
	}
}

func TestWithTimestampOverridesRecordedTime(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	event := NewUserTranscriptFinal("hello", WithTimestamp(at))
	if !event.Timestamp().Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, event.Timestamp())
	}
}

func TestWithZeroTimestampKeepsNow(t *testing.T) {
	before := time.Now()
	event := NewAgentStateChanged(AgentStateIdle, AgentStateThinking, WithTimestamp(time.Time{}))

	if event.Timestamp().Before(before) {
		t.Fatalf("expected zero timestamp option to be ignored, got %v", event.Timestamp())
	}
}

func TestAgentStateNamesRoundTrip(t *testing.T) {
	for _, state := range []AgentState{AgentStateIdle, AgentStateListening, AgentStateThinking, AgentStateSpeaking} {
		parsed, err := ParseAgentState(state.String())
		if err != nil {
			t.Fatalf("expected %q to parse, got %v", state, err)
		}
		if parsed != state {
			t.Fatalf("expected %v, got %v", state, parsed)
		}
	}

	if _, err := ParseAgentState("dreaming"); err == nil {
		t.Fatalf("expected unknown state name to fail")
	}
	if got := AgentState(42).String(); got != "AgentState(42)" {
		t.Fatalf("expected out of range state to print its number, got %q", got)
	}
}
