package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/yoockh/yoospeak-speech/internal/utils"
)

// Encoding of the audio data sent in recognition requests.
type Encoding string

const (
	LINEAR16 Encoding = "LINEAR16"
	FLAC     Encoding = "FLAC"
	MULAW    Encoding = "MULAW"
	AMR      Encoding = "AMR"
	AMR_WB   Encoding = "AMR_WB"
	OGG_OPUS Encoding = "OGG_OPUS"
)

func (e Encoding) Valid() bool {
	switch e {
	case LINEAR16, FLAC, MULAW, AMR, AMR_WB, OGG_OPUS:
		return true
	}
	return false
}

const (
	MinSampleRate = 8000
	MaxSampleRate = 48000

	// maxStreamBytes caps how much of a stream is buffered for a request.
	maxStreamBytes = 10 << 20
)

type SampleConfig struct {
	// Content is raw audio bytes.
	Content []byte
	// SourceURI points at audio in Cloud Storage: gs://bucket/object.
	SourceURI string
	// Stream is read to the end when the sample is used.
	Stream io.Reader

	Encoding Encoding
	// SampleRate in Hertz, 8000-48000. Zero lets the service infer it.
	SampleRate int
}

// Sample describes one audio input and its format. It is created by
// Client.Sample and is never modified afterwards.
type Sample struct {
	content    []byte
	sourceURI  string
	stream     io.Reader
	encoding   Encoding
	sampleRate int
	client     *Client
}

func (s *Sample) Content() []byte    { return s.content }
func (s *Sample) SourceURI() string  { return s.sourceURI }
func (s *Sample) Stream() io.Reader  { return s.stream }
func (s *Sample) Encoding() Encoding { return s.encoding }
func (s *Sample) SampleRate() int    { return s.sampleRate }
func (s *Sample) Client() *Client    { return s.client }

// Validate checks that exactly one audio source is set and that the format
// is one the service accepts.
func (s *Sample) Validate() error {
	const op = "Sample.Validate"

	sources := 0
	if s.content != nil {
		sources++
	}
	if s.sourceURI != "" {
		sources++
	}
	if s.stream != nil {
		sources++
	}
	if sources != 1 {
		return utils.E(utils.CodeInvalidArgument, op, "supply exactly one of content, source uri, stream", nil)
	}

	if !s.encoding.Valid() {
		return utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("invalid encoding: %q", s.encoding), nil)
	}
	if s.sampleRate != 0 && (s.sampleRate < MinSampleRate || s.sampleRate > MaxSampleRate) {
		return utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("sample rate must be between %d and %d, got %d", MinSampleRate, MaxSampleRate, s.sampleRate), nil)
	}
	return nil
}

// audio returns the inline bytes for a request, draining the stream when
// the sample was built from one. A stream can only be consumed once.
func (s *Sample) audio() ([]byte, error) {
	const op = "Sample.audio"

	if s.stream == nil {
		return s.content, nil
	}
	b, err := io.ReadAll(io.LimitReader(s.stream, maxStreamBytes+1))
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "read audio stream", err)
	}
	if len(b) > maxStreamBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio stream too large for a single request", nil)
	}
	if len(b) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty audio stream", nil)
	}
	return b, nil
}

// Recognize runs a synchronous recognition request for the sample through
// the client's backend.
func (s *Sample) Recognize(ctx context.Context, opts RecognizeOptions) ([]Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	api, err := s.client.SpeechAPI(ctx)
	if err != nil {
		return nil, err
	}
	return api.Recognize(ctx, s, opts)
}

// LongRunningRecognize starts an asynchronous recognition. Poll the returned
// operation until Done.
func (s *Sample) LongRunningRecognize(ctx context.Context, opts RecognizeOptions) (*Operation, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	api, err := s.client.SpeechAPI(ctx)
	if err != nil {
		return nil, err
	}
	return api.LongRunningRecognize(ctx, s, opts)
}
