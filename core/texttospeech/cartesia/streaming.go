package cartesia

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
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

type speechGenerator struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	contextID string
	request   generationRequest
	options   texttospeech.TextToSpeechOptions

	mu           sync.Mutex
	textSent     bool
	textComplete bool
	cancelled    bool
	closed       bool
	report       texttospeech.SpeechEndedReport
}

type voiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type generationRequest struct {
	ModelID      string         `json:"model_id"`
	Transcript   string         `json:"transcript"`
	Voice        voiceSpecifier `json:"voice"`
	OutputFormat outputFormat   `json:"output_format"`
	Language     string         `json:"language,omitempty"`
	ContextID    string         `json:"context_id"`
	Continue     bool           `json:"continue"`
}

type cancelRequest struct {
	ContextID string `json:"context_id"`
	Cancel    bool   `json:"cancel"`
}

type generationResponse struct {
	Type       string `json:"type"`
	ContextID  string `json:"context_id"`
	Data       string `json:"data"`
	Done       bool   `json:"done"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}

// NewSpeechGenerator opens a websocket for a single generation context.
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

	format, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, http.Header{
		"X-API-Key":        {c.apiKey},
		"Cartesia-Version": {apiVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to cartesia: %w", err)
	}

	contextID := uuid.NewString()
	gen := &speechGenerator{
		ws:        ws,
		contextID: contextID,
		options:   options,
		request: generationRequest{
			ModelID:      c.model,
			Voice:        voiceSpecifier{Mode: "id", ID: c.voiceID},
			OutputFormat: format,
			Language:     c.language,
			ContextID:    contextID,
		},
	}

	go gen.processIncomingMessages()

	return gen, nil
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

	request := g.request
	request.Transcript = text
	request.Continue = true
	if err := g.writeJSON(request); err != nil {
		return fmt.Errorf("failed to send text to cartesia: %w", err)
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

	request := g.request
	request.Continue = false
	if err := g.writeJSON(request); err != nil {
		return fmt.Errorf("failed to send end of text to cartesia: %w", err)
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

	err := g.writeJSON(cancelRequest{ContextID: g.contextID, Cancel: true})
	if closeErr := g.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("failed to cancel cartesia generation: %w", err)
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
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	writeErr := g.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	if err := g.ws.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", errors.Join(writeErr, err))
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
				log.Error().Err(err).Str("context_id", g.contextID).Msg("cartesia websocket read error")
			}
			g.options.ErrorCallback(fmt.Errorf("cartesia connection lost: %w", err))
			_ = g.Close()
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var resp generationResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Warn().Err(err).Msg("failed to unmarshal cartesia message")
			continue
		}
		if resp.ContextID != "" && resp.ContextID != g.contextID {
			continue
		}
		if g.isStopped() {
			return
		}

		switch resp.Type {
		case "chunk":
			chunk, err := base64.StdEncoding.DecodeString(resp.Data)
			if err != nil {
				log.Warn().Err(err).Msg("failed to decode cartesia audio chunk")
				continue
			}
			if len(chunk) == 0 {
				continue
			}
			g.mu.Lock()
			g.report.AudioBytes += len(chunk)
			g.mu.Unlock()
			g.options.SpeechAudioCallback(chunk)

		case "done":
			g.mu.Lock()
			report := g.report
			g.mu.Unlock()
			g.options.SpeechEndedCallback(report)
			_ = g.Close()
			return

		case "error":
			g.options.ErrorCallback(fmt.Errorf("cartesia error (status %d): %s", resp.StatusCode, resp.Error))
			_ = g.Close()
			return
		}
	}
}
