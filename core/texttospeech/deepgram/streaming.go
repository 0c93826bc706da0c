package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/koscakluka/ema-agent/core/texttospeech"
	"github.com/rs/zerolog/log"
)

var (
	errGeneratorClosed    = errors.New("speech generator closed")
	errGeneratorCancelled = errors.New("speech generator cancelled")
	errTextCompleted      = errors.New("speech generator text already completed")
)

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

func sendTextMsg(text string) speakMessage {
	return speakMessage{Type: "Speak", Text: text}
}

// speechGenerator speaks one response. Text is spoken as it arrives and
// EndOfText flushes the remainder; the Flushed reply ends the generation.
type speechGenerator struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	options texttospeech.TextToSpeechOptions

	mu           sync.Mutex
	textSent     bool
	textComplete bool
	cancelled    bool
	closed       bool
	report       texttospeech.SpeechEndedReport
}

func (c *TextToSpeechClient) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	options := texttospeech.TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechEndedCallback: func(texttospeech.SpeechEndedReport) {},
		ErrorCallback:       func(error) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	speakURL, err := c.speakURL(options.EncodingInfo)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL, http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	gen := &speechGenerator{ws: ws, options: options}
	go gen.processIncomingMessages()

	return gen, nil
}

func (c *TextToSpeechClient) speakURL(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16, audio.EncodingMulaw, audio.EncodingALaw:
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return "", fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	query := url.Values{}
	query.Set("encoding", encoding.Format.Name())
	query.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	query.Set("model", string(c.voice))
	query.Set("container", "none")
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func (g *speechGenerator) SendText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkOpen(); err != nil {
		return err
	} else if g.textComplete {
		return errTextCompleted
	}

	if text == "" {
		return nil
	}

	if err := g.writeJSON(sendTextMsg(text)); err != nil {
		return fmt.Errorf("failed to send text to deepgram: %w", err)
	}

	g.textSent = true
	g.report.Characters += utf8.RuneCountInString(text)
	return nil
}

func (g *speechGenerator) EndOfText() error {
	g.mu.Lock()
	if err := g.checkOpen(); err != nil {
		g.mu.Unlock()
		return err
	} else if g.textComplete {
		g.mu.Unlock()
		return nil
	}
	g.textComplete = true

	if !g.textSent {
		report := g.report
		g.mu.Unlock()
		g.options.SpeechEndedCallback(report)
		return g.Close()
	}
	g.mu.Unlock()

	if err := g.writeJSON(flushMsg); err != nil {
		return fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}
	return nil
}

func (g *speechGenerator) Cancel() error {
	g.mu.Lock()
	if g.closed || g.cancelled {
		g.mu.Unlock()
		return nil
	}
	g.cancelled = true
	g.mu.Unlock()

	err := g.writeJSON(clearMsg)
	if closeErr := g.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("failed to cancel deepgram speech: %w", err)
	}
	return nil
}

func (g *speechGenerator) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	// Deepgram answers Close by closing the socket, the close frame is only a
	// fallback
	err := g.ws.WriteJSON(closeMsg)
	if err == nil {
		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err = g.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(time.Second))
	}
	if closeErr := g.ws.Close(); closeErr != nil {
		return fmt.Errorf("failed to close websocket: %w", errors.Join(err, closeErr))
	}
	return nil
}

// checkOpen must be called with mu held.
func (g *speechGenerator) checkOpen() error {
	if g.closed {
		return errGeneratorClosed
	} else if g.cancelled {
		return errGeneratorCancelled
	}
	return nil
}

func (g *speechGenerator) isStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed || g.cancelled
}

func (g *speechGenerator) writeJSON(msg any) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.ws.WriteJSON(msg)
}

func (g *speechGenerator) processIncomingMessages() {
	for {
		msgType, msg, err := g.ws.ReadMessage()
		if err != nil {
			if g.isStopped() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("deepgram speak websocket read error")
			}
			g.options.ErrorCallback(fmt.Errorf("deepgram connection lost: %w", err))
			_ = g.Close()
			return
		}
		if g.isStopped() {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			g.mu.Lock()
			g.report.AudioBytes += len(msg)
			g.mu.Unlock()
			g.options.SpeechAudioCallback(msg)

		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				log.Warn().Err(err).Msg("failed to unmarshal deepgram message")
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				g.mu.Lock()
				complete, report := g.textComplete, g.report
				g.mu.Unlock()
				if complete {
					g.options.SpeechEndedCallback(report)
					_ = g.Close()
					return
				}
			case "Warning":
				log.Warn().Str("description", parsedMsg.Description).Msg("deepgram speak warning")
			case "Error":
				g.options.ErrorCallback(fmt.Errorf("deepgram error: %s", parsedMsg.Description))
				_ = g.Close()
				return
			}
		}
	}
}
