package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"google.golang.org/api/option"
	speechrest "google.golang.org/api/speech/v1"

	"github.com/yoockh/yoospeak-speech/internal/utils"
)

// httpAPI performs requests against the REST (JSON over HTTP) surface.
type httpAPI struct {
	svc *speechrest.Service
}

func newHTTPAPI(ctx context.Context, c *Client) (API, error) {
	opts := c.clientOptions()
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	}
	svc, err := speechrest.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &httpAPI{svc: svc}, nil
}

func (h *httpAPI) Transport() Transport { return TransportHTTP }

// Close is a no-op, the underlying http.Client is owned by the caller or the
// transport layer.
func (h *httpAPI) Close() error { return nil }

func (h *httpAPI) Recognize(ctx context.Context, s *Sample, opts RecognizeOptions) ([]Result, error) {
	const op = "httpAPI.Recognize"

	cfg, audio, err := restRequest(s, opts)
	if err != nil {
		return nil, err
	}
	resp, err := h.svc.Speech.Recognize(&speechrest.RecognizeRequest{Config: cfg, Audio: audio}).Context(ctx).Do()
	if err != nil {
		return nil, utils.FromRemote(op, err)
	}
	return fromRESTResults(resp.Results), nil
}

func (h *httpAPI) LongRunningRecognize(ctx context.Context, s *Sample, opts RecognizeOptions) (*Operation, error) {
	const op = "httpAPI.LongRunningRecognize"

	cfg, audio, err := restRequest(s, opts)
	if err != nil {
		return nil, err
	}
	lro, err := h.svc.Speech.Longrunningrecognize(&speechrest.LongRunningRecognizeRequest{Config: cfg, Audio: audio}).Context(ctx).Do()
	if err != nil {
		return nil, utils.FromRemote(op, err)
	}
	return h.snapshot(op, lro)
}

func (h *httpAPI) Operation(ctx context.Context, name string) (*Operation, error) {
	const op = "httpAPI.Operation"

	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "operation name is required", nil)
	}
	lro, err := h.svc.Operations.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, utils.FromRemote(op, err)
	}
	return h.snapshot(op, lro)
}

func (h *httpAPI) snapshot(op string, lro *speechrest.Operation) (*Operation, error) {
	if lro.Error != nil {
		return nil, utils.E(utils.CodeInternal, op, lro.Error.Message, nil)
	}

	o := &Operation{Name: lro.Name, Done: lro.Done, api: h}
	if len(lro.Metadata) > 0 {
		var md speechrest.LongRunningRecognizeMetadata
		if err := json.Unmarshal(lro.Metadata, &md); err == nil {
			o.Progress = int(md.ProgressPercent)
		}
	}
	if lro.Done && len(lro.Response) > 0 {
		var resp speechrest.LongRunningRecognizeResponse
		if err := json.Unmarshal(lro.Response, &resp); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "decode operation response", err)
		}
		o.Results = fromRESTResults(resp.Results)
	}
	return o, nil
}

func restRequest(s *Sample, opts RecognizeOptions) (*speechrest.RecognitionConfig, *speechrest.RecognitionAudio, error) {
	cfg := &speechrest.RecognitionConfig{
		Encoding:                   string(s.Encoding()),
		SampleRateHertz:            int64(s.SampleRate()),
		LanguageCode:               opts.language(),
		MaxAlternatives:            int64(opts.MaxAlternatives),
		ProfanityFilter:            opts.ProfanityFilter,
		EnableAutomaticPunctuation: opts.AutomaticPunctuation,
	}
	if len(opts.SpeechContexts) > 0 {
		cfg.SpeechContexts = []*speechrest.SpeechContext{{Phrases: opts.SpeechContexts}}
	}

	if uri := s.SourceURI(); uri != "" {
		return cfg, &speechrest.RecognitionAudio{Uri: uri}, nil
	}
	b, err := s.audio()
	if err != nil {
		return nil, nil, err
	}
	// bytes fields travel base64-encoded in the JSON representation
	return cfg, &speechrest.RecognitionAudio{Content: base64.StdEncoding.EncodeToString(b)}, nil
}

func fromRESTResults(in []*speechrest.SpeechRecognitionResult) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		if r == nil {
			continue
		}
		res := Result{Alternatives: make([]Alternative, 0, len(r.Alternatives))}
		for _, alt := range r.Alternatives {
			if alt == nil {
				continue
			}
			res.Alternatives = append(res.Alternatives, Alternative{
				Transcript: alt.Transcript,
				Confidence: alt.Confidence,
			})
		}
		out = append(out, res)
	}
	return out
}
