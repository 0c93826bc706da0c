package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/speechtotext"
	"github.com/rs/zerolog/log"
)

func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := s.connectWebsocket(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),

		detectSpeechStart: options.SpeechStartedCallback != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.lastMsgTs = time.Time{}
	s.streamEncoding = options.EncodingInfo
	s.connMu.Unlock()

	s.resetTranscriptState()
	go s.readAndProcessMessages(ctx, conn, options)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechStart bool
}

func (s *TranscriptionClient) listenURL(options connectionOptions) (string, error) {
	listenUrl, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram endpoint: %w", err)
	}

	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", s.model)
	queryParams.Set("language", s.language)
	queryParams.Set("smart_format", "true")
	// utterance end detection needs interim results even when nobody
	// listens for them
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", strconv.FormatBool(options.detectSpeechStart))

	listenUrl.RawQuery = queryParams.Encode()
	return listenUrl.String(), nil
}

func (s *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenUrl, err := s.listenURL(options)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenUrl,
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("deepgram connection not open")
	}

	now := s.now()
	s.lastMsgTs = now
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	s.advanceStream(len(audio), now)
	return nil
}

func (s *TranscriptionClient) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("deepgram connection not open")
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	s.advanceStream(len(audio), s.now())
	return nil
}

func (s *TranscriptionClient) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}

	if err := s.conn.WriteJSON(controlMessage{Type: "KeepAlive"}); err != nil {
		log.Warn().Err(err).Msg("failed to send deepgram keep alive")
	}
}

type controlMessage struct {
	Type string `json:"type"`
}

// Close asks Deepgram to flush and close the stream.
func (s *TranscriptionClient) Close(_ context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}

	if err := s.conn.WriteJSON(controlMessage{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		closeErr := s.conn.Close()
		s.conn = nil
		return fmt.Errorf("failed to close deepgram stream: %w", errors.Join(err, closeErr))
	}
	return nil
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go s.generateSilence(silenceCtx, options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Error().Err(err).Msg("failed to read deepgram websocket message")
			}

			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			_ = conn.Close()
			return
		}
		if msgType == websocket.TextMessage {
			s.processMessage(msg, options)
		}
	}
}

func (s *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Warn().Err(err).Msg("failed to unmarshal deepgram message")
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Warn().Err(err).Msg("failed to unmarshal deepgram results")
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				s.accumulatedTranscript = strings.TrimSpace(s.accumulatedTranscript + " " + transcript)
				s.lastSegmentEnd = seconds(msgResp.Start + msgResp.Duration)
				s.segmentAudio += seconds(msgResp.Duration)
				s.unendedSegment = true
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded(options)
			}
			return
		}

		if len(transcript) > 0 && options.InterimTranscriptionCallback != nil {
			options.InterimTranscriptionCallback(strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	}
}

func (s *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	metrics := events.STTMetrics{AudioDuration: s.segmentAudio}
	if sentAt, ok := s.sentAt(s.lastSegmentEnd); ok {
		if delay := s.now().Sub(sentAt); delay > 0 {
			metrics.Duration = delay
		}
	}

	s.accumulatedTranscript = ""
	s.unendedSegment = false
	s.lastSegmentEnd = 0
	s.segmentAudio = 0

	if len(fullTranscript) > 0 {
		if options.TranscriptionCallback != nil {
			options.TranscriptionCallback(fullTranscript)
		}
		if options.MetricsCallback != nil {
			options.MetricsCallback(metrics)
		}
	}
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}

func (s *TranscriptionClient) resetTranscriptState() {
	s.accumulatedTranscript = ""
	s.unendedSegment = false
	s.lastSegmentEnd = 0
	s.segmentAudio = 0

	s.connMu.Lock()
	s.streamSent = 0
	s.streamSentAt = time.Time{}
	s.connMu.Unlock()
}

// advanceStream must be called with connMu held.
func (s *TranscriptionClient) advanceStream(n int, at time.Time) {
	s.streamSent += s.streamEncoding.Duration(n)
	s.streamSentAt = at
}

// sentAt returns the wall time at which the audio at stream offset was
// written. Keep-alive gaps do not advance the stream, so the offset is
// measured back from the most recent write.
func (s *TranscriptionClient) sentAt(offset time.Duration) (time.Time, bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.streamSentAt.IsZero() || offset <= 0 {
		return time.Time{}, false
	}
	return s.streamSentAt.Add(offset - s.streamSent), true
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.BytesPerSecond()*int(chunkDuration/time.Millisecond)/1000)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	sinceLastAudio := func() time.Duration {
		s.connMu.Lock()
		defer s.connMu.Unlock()
		if s.lastMsgTs.IsZero() {
			return 0
		}
		return s.now().Sub(s.lastMsgTs)
	}

	state := silenceGeneratorStateWaiting
	var firstSilenceTime, lastKeepAliveTime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch state {
			case silenceGeneratorStateWaiting:
				if sinceLastAudio() > chunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceTime = s.now()
				}

			case silenceGeneratorStateSilence:
				if sinceLastAudio() < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}
				if s.now().Sub(firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = s.now()
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					log.Debug().Err(err).Msg("failed to send silence to deepgram")
				}

			case silenceGeneratorStateKeepAlive:
				if sinceLastAudio() < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}

				if s.now().Sub(lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = s.now()
					s.sendKeepAlive()
				}
			}
		}
	}
}
