package cartesia

import (
	"fmt"

	"github.com/koscakluka/ema-agent/core/audio"
)

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

func convertEncoding(encoding audio.EncodingInfo) (outputFormat, error) {
	format := outputFormat{Container: "raw"}

	switch encoding.SampleRate {
	case 8000, 16000, 22050, 24000, 44100, 48000:
		format.SampleRate = encoding.SampleRate
	default:
		return outputFormat{}, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		format.Encoding = "pcm_s16le"
	case audio.EncodingMulaw:
		format.Encoding = "pcm_mulaw"
	case audio.EncodingALaw:
		format.Encoding = "pcm_alaw"
	default:
		return outputFormat{}, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	return format, nil
}
