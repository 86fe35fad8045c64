package stt

import (
	"context"

	"github.com/yoockh/yoospeak-speech/internal/speech"
)

type Request struct {
	Audio      []byte
	Encoding   speech.Encoding
	SampleRate int
	// Language example: "en-US", "id-ID"
	Language string
}

type Provider interface {
	Transcribe(ctx context.Context, req Request) (text string, confidence float64, err error)
	Close() error
}
