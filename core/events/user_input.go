package events

// KindUserTranscript identifies interim and final user transcript updates.
const KindUserTranscript Kind = "user_input.transcript"

// UserTranscript carries a user transcript update.
type UserTranscript struct {
	Base
	Transcript string
	IsFinal    bool
}

// NewUserTranscript creates an interim transcript event.
func NewUserTranscript(transcript string, opts ...Option) UserTranscript {
	return UserTranscript{Base: NewBase(KindUserTranscript, opts...), Transcript: transcript}
}

// NewUserTranscriptFinal creates the final transcript event for an utterance.
func NewUserTranscriptFinal(transcript string, opts ...Option) UserTranscript {
	return UserTranscript{Base: NewBase(KindUserTranscript, opts...), Transcript: transcript, IsFinal: true}
}
