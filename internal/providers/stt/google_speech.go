package stt

import (
	"context"

	"github.com/yoockh/yoospeak-speech/internal/speech"
)

type GoogleSpeech struct {
	c *speech.Client

	DefaultEncoding   speech.Encoding
	DefaultSampleRate int
}

func NewGoogleSpeech(c *speech.Client) *GoogleSpeech {
	return &GoogleSpeech{
		c:                 c,
		DefaultEncoding:   speech.LINEAR16,
		DefaultSampleRate: 16000,
	}
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, req Request) (string, float64, error) {
	enc := req.Encoding
	if enc == "" {
		enc = g.DefaultEncoding
	}
	rate := req.SampleRate
	if rate == 0 {
		rate = g.DefaultSampleRate
	}

	sample := g.c.Sample(speech.SampleConfig{
		Content:    req.Audio,
		Encoding:   enc,
		SampleRate: rate,
	})
	results, err := sample.Recognize(ctx, speech.RecognizeOptions{
		LanguageCode:         req.Language,
		AutomaticPunctuation: true,
	})
	if err != nil {
		return "", 0, err
	}

	best, _ := speech.Best(results)
	return best.Transcript, best.Confidence, nil
}
