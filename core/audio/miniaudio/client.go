// Package miniaudio provides local microphone capture and speaker playback
// through miniaudio.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/rs/zerolog/log"
)

// Client is a console audio transport: it captures the default input device
// and plays to the default output device, both as mono linear16.
type Client struct {
	// audioContext is only kept to be able to uninitialize it
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo

	playbackClient
	captureClient
}

type Option func(*Client)

// WithSampleRate sets the sample rate used for both capture and playback.
func WithSampleRate(sampleRate int) Option {
	return func(c *Client) { c.encodingInfo.SampleRate = sampleRate }
}

func NewClient(opts ...Option) (*Client, error) {
	client := &Client{encodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(client)
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { log.Trace().Str("component", "malgo").Msg(message) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	sampleRate := uint32(client.encodingInfo.SampleRate)
	if err := client.playbackClient.Init(audioCtx, sampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, sampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return client, nil
}

func (c *Client) Stream(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playbackClient.SendAudio(audio)
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

// AwaitMark blocks until all audio sent so far has been played or ctx is
// done.
func (c *Client) AwaitMark(ctx context.Context) error {
	return c.playbackClient.AwaitMark(ctx)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}
