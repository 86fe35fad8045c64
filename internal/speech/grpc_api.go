package speech

import (
	"context"

	apiv1 "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/yoockh/yoospeak-speech/internal/utils"
)

// grpcAPI performs requests through the generated gRPC client.
type grpcAPI struct {
	c *apiv1.Client
	// ownsConn is false when the connection came from Options.GRPCConn.
	ownsConn bool
}

func newGRPCAPI(ctx context.Context, c *Client) (API, error) {
	opts := c.clientOptions()
	if c.grpcConn != nil {
		opts = append(opts, option.WithGRPCConn(c.grpcConn))
	}
	sc, err := apiv1.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &grpcAPI{c: sc, ownsConn: c.grpcConn == nil}, nil
}

func (g *grpcAPI) Transport() Transport { return TransportGRPC }

// Close tears down the connection only when the backend dialed it.
func (g *grpcAPI) Close() error {
	if !g.ownsConn {
		return nil
	}
	return g.c.Close()
}

func (g *grpcAPI) Recognize(ctx context.Context, s *Sample, opts RecognizeOptions) ([]Result, error) {
	const op = "grpcAPI.Recognize"

	cfg, audio, err := pbRequest(s, opts)
	if err != nil {
		return nil, err
	}
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{Config: cfg, Audio: audio})
	if err != nil {
		return nil, utils.FromRemote(op, err)
	}
	return fromPBResults(resp.GetResults()), nil
}

func (g *grpcAPI) LongRunningRecognize(ctx context.Context, s *Sample, opts RecognizeOptions) (*Operation, error) {
	const op = "grpcAPI.LongRunningRecognize"

	cfg, audio, err := pbRequest(s, opts)
	if err != nil {
		return nil, err
	}
	lro, err := g.c.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{Config: cfg, Audio: audio})
	if err != nil {
		return nil, utils.FromRemote(op, err)
	}

	var resp *speechpb.LongRunningRecognizeResponse
	if lro.Done() {
		// already finished: Poll reads the stored result without a round trip
		if resp, err = lro.Poll(ctx); err != nil {
			return nil, utils.FromRemote(op, err)
		}
	}
	return g.snapshot(lro, resp), nil
}

func (g *grpcAPI) Operation(ctx context.Context, name string) (*Operation, error) {
	const op = "grpcAPI.Operation"

	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "operation name is required", nil)
	}
	lro := g.c.LongRunningRecognizeOperation(name)
	resp, err := lro.Poll(ctx)
	if err != nil {
		return nil, utils.FromRemote(op, err)
	}
	return g.snapshot(lro, resp), nil
}

func (g *grpcAPI) snapshot(lro *apiv1.LongRunningRecognizeOperation, resp *speechpb.LongRunningRecognizeResponse) *Operation {
	o := &Operation{Name: lro.Name(), Done: lro.Done(), api: g}
	if md, err := lro.Metadata(); err == nil && md != nil {
		o.Progress = int(md.GetProgressPercent())
	}
	if resp != nil {
		o.Results = fromPBResults(resp.GetResults())
	}
	return o
}

func pbRequest(s *Sample, opts RecognizeOptions) (*speechpb.RecognitionConfig, *speechpb.RecognitionAudio, error) {
	enc, ok := speechpb.RecognitionConfig_AudioEncoding_value[string(s.Encoding())]
	if !ok {
		return nil, nil, utils.E(utils.CodeInvalidArgument, "speech.pbRequest", "unsupported encoding: "+string(s.Encoding()), nil)
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_AudioEncoding(enc),
		SampleRateHertz:            int32(s.SampleRate()),
		LanguageCode:               opts.language(),
		MaxAlternatives:            int32(opts.MaxAlternatives),
		ProfanityFilter:            opts.ProfanityFilter,
		EnableAutomaticPunctuation: opts.AutomaticPunctuation,
	}
	if len(opts.SpeechContexts) > 0 {
		cfg.SpeechContexts = []*speechpb.SpeechContext{{Phrases: opts.SpeechContexts}}
	}

	if uri := s.SourceURI(); uri != "" {
		return cfg, &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri},
		}, nil
	}
	b, err := s.audio()
	if err != nil {
		return nil, nil, err
	}
	return cfg, &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: b},
	}, nil
}

func fromPBResults(in []*speechpb.SpeechRecognitionResult) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		res := Result{Alternatives: make([]Alternative, 0, len(r.GetAlternatives()))}
		for _, alt := range r.GetAlternatives() {
			res.Alternatives = append(res.Alternatives, Alternative{
				Transcript: alt.GetTranscript(),
				Confidence: float64(alt.GetConfidence()),
			})
		}
		out = append(out, res)
	}
	return out
}
