package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	device *malgo.Device
	buffer playbackBuffer

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sampleRate uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	config.Periods = 4

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: func(pOutput, _ []byte, frameCount uint32) {
			c.buffer.read(pOutput[:int(frameCount)*bytesPerFrame])
		}},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("playback device not started")
	}

	c.buffer.write(audio)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.buffer.clear()
}

func (c *playbackClient) AwaitMark(ctx context.Context) error {
	played := make(chan struct{})
	c.buffer.mark(func() { close(played) })

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil
	c.buffer.clear()

	return nil
}

// playbackBuffer queues audio for the device callback and fires marks once
// the audio queued before them has been handed to the device.
type playbackBuffer struct {
	pending []byte
	marks   []playbackMark

	mu sync.Mutex
}

type playbackMark struct {
	position int
	callback func()
}

func (b *playbackBuffer) write(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, audio...)
}

// read fills out with queued audio and silence for the rest.
func (b *playbackBuffer) read(out []byte) {
	b.mu.Lock()
	n := copy(out, b.pending)
	b.pending = b.pending[n:]
	clear(out[n:])

	var passed []playbackMark
	kept := b.marks[:0]
	for _, mark := range b.marks {
		if mark.position <= n {
			passed = append(passed, mark)
			continue
		}
		mark.position -= n
		kept = append(kept, mark)
	}
	b.marks = kept
	b.mu.Unlock()

	for _, mark := range passed {
		go mark.callback()
	}
}

func (b *playbackBuffer) mark(callback func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, playbackMark{position: len(b.pending), callback: callback})
}

// clear drops queued audio. Pending marks fire since nothing is left to play
// before them.
func (b *playbackBuffer) clear() {
	b.mu.Lock()
	marks := b.marks
	b.pending = nil
	b.marks = nil
	b.mu.Unlock()

	for _, mark := range marks {
		go mark.callback()
	}
}
