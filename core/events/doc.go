// Package events defines the typed session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - agent_state.*
//   - metrics.*
//
// Every event carries the time it was recorded at. Receivers measuring
// intervals between events should use [Event.Timestamp] rather than the time
// the event was delivered, since delivery happens on a queue.
//
// user_input events
//
//   - UserTranscript (user_input.transcript): a transcript update for the
//     current utterance. IsFinal marks the terminal transcript; interim
//     updates have IsFinal unset and may be superseded.
//
// agent_state events
//
//   - AgentStateChanged (agent_state.changed): the session moved between two
//     [AgentState] phases (idle, listening, thinking, speaking).
//
// metrics events
//
//   - MetricsCollected (metrics.collected): a pipeline stage reported its
//     timing. The payload is one of [STTMetrics], [LLMMetrics] or
//     [TTSMetrics]; the concrete type is chosen by the adapter that measured
//     it.
package events
