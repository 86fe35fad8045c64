package speech

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	transport Transport
	closed    bool
	results   []Result
	lastOpts  RecognizeOptions
}

func (f *fakeAPI) Transport() Transport { return f.transport }
func (f *fakeAPI) Close() error         { f.closed = true; return nil }

func (f *fakeAPI) Recognize(_ context.Context, _ *Sample, opts RecognizeOptions) ([]Result, error) {
	f.lastOpts = opts
	return f.results, nil
}

func (f *fakeAPI) LongRunningRecognize(_ context.Context, _ *Sample, _ RecognizeOptions) (*Operation, error) {
	return &Operation{Name: "op-1", api: f}, nil
}

func (f *fakeAPI) Operation(_ context.Context, name string) (*Operation, error) {
	return &Operation{Name: name, Done: true, Progress: 100, Results: f.results, api: f}, nil
}

// newTestClient swaps in counting fake backends.
func newTestClient(opts Options) (*Client, *int32, *int32) {
	var grpcBuilds, httpBuilds int32
	c := New(opts)
	c.newGRPC = func(context.Context, *Client) (API, error) {
		atomic.AddInt32(&grpcBuilds, 1)
		return &fakeAPI{transport: TransportGRPC}, nil
	}
	c.newHTTP = func(context.Context, *Client) (API, error) {
		atomic.AddInt32(&httpBuilds, 1)
		return &fakeAPI{transport: TransportHTTP}, nil
	}
	return c, &grpcBuilds, &httpBuilds
}

func TestNew_TransportSelection(t *testing.T) {
	cases := []struct {
		name        string
		useGRPC     *bool
		disableGRPC bool
		want        Transport
	}{
		{"default is grpc", nil, false, TransportGRPC},
		{"env disables grpc", nil, true, TransportHTTP},
		{"override grpc wins over env", Bool(true), true, TransportGRPC},
		{"override http wins over env", Bool(false), false, TransportHTTP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _, _ := newTestClient(Options{UseGRPC: tc.useGRPC, DisableGRPC: tc.disableGRPC})
			assert.Equal(t, tc.want, c.Transport())

			api, err := c.SpeechAPI(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, api.Transport())
		})
	}
}

func TestSpeechAPI_Memoized(t *testing.T) {
	c, grpcBuilds, httpBuilds := newTestClient(Options{})
	ctx := context.Background()

	first, err := c.SpeechAPI(ctx)
	require.NoError(t, err)
	second, err := c.SpeechAPI(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, *grpcBuilds)
	assert.EqualValues(t, 0, *httpBuilds)
}

func TestSpeechAPI_NotReselectedAfterModeChange(t *testing.T) {
	c, _, httpBuilds := newTestClient(Options{})
	ctx := context.Background()

	first, err := c.SpeechAPI(ctx)
	require.NoError(t, err)

	c.transport = TransportHTTP
	second, err := c.SpeechAPI(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, TransportGRPC, second.Transport())
	assert.EqualValues(t, 0, *httpBuilds)
}

func TestSpeechAPI_ConcurrentFirstAccess(t *testing.T) {
	c, grpcBuilds, _ := newTestClient(Options{})

	const n = 32
	apis := make([]API, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			api, err := c.SpeechAPI(context.Background())
			assert.NoError(t, err)
			apis[i] = api
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, *grpcBuilds)
	for _, api := range apis {
		assert.Same(t, apis[0], api)
	}
}

func TestSpeechAPI_ErrorPropagatesAndIsNotCached(t *testing.T) {
	boom := errors.New("dial failed")
	c := New(Options{})
	calls := 0
	c.newGRPC = func(context.Context, *Client) (API, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return &fakeAPI{transport: TransportGRPC}, nil
	}

	_, err := c.SpeechAPI(context.Background())
	assert.Same(t, boom, err)

	api, err := c.SpeechAPI(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, api)
	assert.Equal(t, 2, calls)
}

func TestClose(t *testing.T) {
	c, _, _ := newTestClient(Options{})

	api, err := c.SpeechAPI(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, api.(*fakeAPI).closed)

	require.NoError(t, c.Close())
}

func TestSpeechAPI_AfterClose(t *testing.T) {
	c, grpcBuilds, _ := newTestClient(Options{})
	_, err := c.SpeechAPI(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	api, err := c.SpeechAPI(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, api)
	assert.EqualValues(t, 1, atomic.LoadInt32(grpcBuilds))
}

func TestSpeechAPI_ClosedBeforeFirstUse(t *testing.T) {
	c, grpcBuilds, httpBuilds := newTestClient(Options{})
	require.NoError(t, c.Close())

	_, err := c.SpeechAPI(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, atomic.LoadInt32(grpcBuilds))
	assert.Zero(t, atomic.LoadInt32(httpBuilds))
}

func TestSample_ForwardsArguments(t *testing.T) {
	c, grpcBuilds, httpBuilds := newTestClient(Options{})
	stream := bytes.NewReader([]byte("pcm"))

	s := c.Sample(SampleConfig{
		Content:    []byte("abc"),
		SourceURI:  "gs://bucket/audio.flac",
		Stream:     stream,
		Encoding:   FLAC,
		SampleRate: 16000,
	})

	assert.Equal(t, []byte("abc"), s.Content())
	assert.Equal(t, "gs://bucket/audio.flac", s.SourceURI())
	assert.Same(t, stream, s.Stream())
	assert.Equal(t, FLAC, s.Encoding())
	assert.Equal(t, 16000, s.SampleRate())
	assert.Same(t, c, s.Client())

	// building a sample never touches the backend
	assert.Nil(t, c.api)
	assert.EqualValues(t, 0, *grpcBuilds)
	assert.EqualValues(t, 0, *httpBuilds)
}

func TestSample_RecognizeUsesClientBackend(t *testing.T) {
	c := New(Options{})
	backend := &fakeAPI{
		transport: TransportGRPC,
		results:   []Result{{Alternatives: []Alternative{{Transcript: "hello", Confidence: 0.9}}}},
	}
	c.newGRPC = func(context.Context, *Client) (API, error) { return backend, nil }

	s := c.Sample(SampleConfig{Content: []byte{1, 2}, Encoding: LINEAR16, SampleRate: 16000})
	results, err := s.Recognize(context.Background(), RecognizeOptions{LanguageCode: "id-ID"})
	require.NoError(t, err)
	assert.Equal(t, backend.results, results)
	assert.Equal(t, "id-ID", backend.lastOpts.LanguageCode)

	op, err := s.LongRunningRecognize(context.Background(), RecognizeOptions{})
	require.NoError(t, err)
	require.NoError(t, op.Poll(context.Background()))
	assert.True(t, op.Done)
	assert.Equal(t, 100, op.Progress)
}

func TestSample_RecognizeValidatesFirst(t *testing.T) {
	c, grpcBuilds, _ := newTestClient(Options{})
	s := c.Sample(SampleConfig{Encoding: LINEAR16})

	_, err := s.Recognize(context.Background(), RecognizeOptions{})
	require.Error(t, err)
	assert.EqualValues(t, 0, *grpcBuilds)
}

func TestBest(t *testing.T) {
	results := []Result{
		{Alternatives: []Alternative{{Transcript: "a", Confidence: 0.4}, {Transcript: "", Confidence: 0.99}}},
		{Alternatives: []Alternative{{Transcript: "b", Confidence: 0.8}}},
	}
	alt, ok := Best(results)
	require.True(t, ok)
	assert.Equal(t, "b", alt.Transcript)

	_, ok = Best(nil)
	assert.False(t, ok)
}

func TestTransport_String(t *testing.T) {
	assert.Equal(t, "grpc", TransportGRPC.String())
	assert.Equal(t, "http", TransportHTTP.String())
	assert.Equal(t, "unknown", Transport(9).String())
}
