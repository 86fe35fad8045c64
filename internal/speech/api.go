package speech

import (
	"context"
	"errors"
	"strings"
)

// API is the recognition surface shared by the gRPC and HTTP backends.
type API interface {
	Transport() Transport
	Recognize(ctx context.Context, s *Sample, opts RecognizeOptions) ([]Result, error)
	LongRunningRecognize(ctx context.Context, s *Sample, opts RecognizeOptions) (*Operation, error)
	// Operation fetches the current state of a long-running recognition.
	Operation(ctx context.Context, name string) (*Operation, error)
	Close() error
}

const DefaultLanguageCode = "en-US"

type RecognizeOptions struct {
	// LanguageCode is a BCP-47 tag, ex: "en-US", "id-ID".
	LanguageCode         string
	MaxAlternatives      int
	ProfanityFilter      bool
	SpeechContexts       []string
	AutomaticPunctuation bool
}

func (o RecognizeOptions) language() string {
	if l := strings.TrimSpace(o.LanguageCode); l != "" {
		return l
	}
	return DefaultLanguageCode
}

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type Result struct {
	Alternatives []Alternative `json:"alternatives"`
}

// Best picks the non-empty alternative with the highest confidence across
// all results.
func Best(results []Result) (Alternative, bool) {
	var best Alternative
	found := false
	for _, r := range results {
		for _, alt := range r.Alternatives {
			if alt.Transcript == "" {
				continue
			}
			if !found || alt.Confidence > best.Confidence {
				best = alt
				found = true
			}
		}
	}
	return best, found
}

// Operation is a snapshot of a long-running recognition.
type Operation struct {
	Name     string   `json:"name"`
	Done     bool     `json:"done"`
	Progress int      `json:"progress_percent"`
	Results  []Result `json:"results,omitempty"`

	api API
}

// Poll refreshes the snapshot from the backend that started the operation.
func (o *Operation) Poll(ctx context.Context) error {
	if o.api == nil {
		return errors.New("speech: operation is not bound to a backend")
	}
	latest, err := o.api.Operation(ctx, o.Name)
	if err != nil {
		return err
	}
	o.Done = latest.Done
	o.Progress = latest.Progress
	o.Results = latest.Results
	return nil
}
