package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoospeak-speech/internal/models"
	"github.com/yoockh/yoospeak-speech/internal/speech"
	"github.com/yoockh/yoospeak-speech/internal/utils"
)

type fakeAPI struct {
	lastSample *speech.Sample
	op         *speech.Operation
	opErr      error
	polls      int
}

func (f *fakeAPI) Transport() speech.Transport { return speech.TransportHTTP }
func (f *fakeAPI) Close() error                { return nil }

func (f *fakeAPI) Recognize(_ context.Context, s *speech.Sample, _ speech.RecognizeOptions) ([]speech.Result, error) {
	f.lastSample = s
	return []speech.Result{{Alternatives: []speech.Alternative{{Transcript: "hi", Confidence: 0.9}}}}, nil
}

func (f *fakeAPI) LongRunningRecognize(_ context.Context, s *speech.Sample, _ speech.RecognizeOptions) (*speech.Operation, error) {
	f.lastSample = s
	return &speech.Operation{Name: "op-1", Progress: 0}, nil
}

func (f *fakeAPI) Operation(_ context.Context, name string) (*speech.Operation, error) {
	f.polls++
	if f.opErr != nil {
		return nil, f.opErr
	}
	return f.op, nil
}

type fakeJobs struct {
	byOp    map[string]*models.RecognitionJob
	updates int
}

func newFakeJobs() *fakeJobs { return &fakeJobs{byOp: map[string]*models.RecognitionJob{}} }

func (f *fakeJobs) Insert(_ context.Context, job *models.RecognitionJob) error {
	f.byOp[job.OperationName] = job
	return nil
}

func (f *fakeJobs) GetByOperation(_ context.Context, name string) (*models.RecognitionJob, error) {
	job, ok := f.byOp[name]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) Update(_ context.Context, job *models.RecognitionJob) error {
	f.updates++
	f.byOp[job.OperationName] = job
	return nil
}

func (f *fakeJobs) ListRecent(context.Context, int) ([]models.RecognitionJob, error) {
	return nil, nil
}

type fakeUploader struct {
	name string
	body []byte
}

func (f *fakeUploader) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	f.name = objectName
	f.body, _ = io.ReadAll(r)
	return "gs://bucket/" + objectName, nil
}

func newService(api *fakeAPI, jobs *fakeJobs, up *fakeUploader, limit int) RecognitionService {
	d := RecognitionDeps{
		Client:      speech.NewWithBackend(speech.Options{UseGRPC: speech.Bool(false)}, api),
		InlineLimit: limit,
	}
	if jobs != nil {
		d.Jobs = jobs
	}
	if up != nil {
		d.Uploader = up
	}
	return NewRecognitionService(d)
}

func TestRecognize(t *testing.T) {
	api := &fakeAPI{}
	svc := newService(api, nil, nil, 0)

	results, err := svc.Recognize(context.Background(), RecognizeInput{
		Content:    []byte("pcm"),
		Encoding:   speech.LINEAR16,
		SampleRate: 16000,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []byte("pcm"), api.lastSample.Content())
}

func TestRecognize_InvalidSample(t *testing.T) {
	svc := newService(&fakeAPI{}, nil, nil, 0)

	_, err := svc.Recognize(context.Background(), RecognizeInput{Encoding: speech.LINEAR16})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestStartLongRunning_PersistsJob(t *testing.T) {
	api := &fakeAPI{}
	jobs := newFakeJobs()
	svc := newService(api, jobs, nil, 0)

	job, err := svc.StartLongRunning(context.Background(), RecognizeInput{
		SourceURI: "gs://bucket/a.flac",
		Encoding:  speech.FLAC,
		Options:   speech.RecognizeOptions{LanguageCode: "id-ID"},
	})
	require.NoError(t, err)
	assert.Equal(t, "op-1", job.OperationName)
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.Equal(t, "http", job.Transport)
	assert.Equal(t, "id-ID", job.LanguageCode)
	assert.NotEmpty(t, job.ID)
	assert.Same(t, job, jobs.byOp["op-1"])
}

func TestStartLongRunning_UploadsLargeContent(t *testing.T) {
	api := &fakeAPI{}
	up := &fakeUploader{}
	svc := newService(api, nil, up, 4)

	job, err := svc.StartLongRunning(context.Background(), RecognizeInput{
		Content:  []byte("0123456789"),
		Encoding: speech.FLAC,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), up.body)
	assert.Equal(t, job.ID+".flac", up.name)
	assert.Equal(t, "gs://bucket/"+up.name, job.SourceURI)

	assert.Nil(t, api.lastSample.Content())
	assert.Equal(t, job.SourceURI, api.lastSample.SourceURI())
}

func TestStartLongRunning_LargeContentWithoutUploader(t *testing.T) {
	svc := newService(&fakeAPI{}, nil, nil, 4)

	_, err := svc.StartLongRunning(context.Background(), RecognizeInput{
		Content:  []byte("0123456789"),
		Encoding: speech.FLAC,
	})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestGetOperation_CompletesJob(t *testing.T) {
	api := &fakeAPI{op: &speech.Operation{
		Name:    "op-1",
		Done:    true,
		Results: []speech.Result{{Alternatives: []speech.Alternative{{Transcript: "done text", Confidence: 0.7}}}},
	}}
	jobs := newFakeJobs()
	svc := newService(api, jobs, nil, 0)

	_, err := svc.StartLongRunning(context.Background(), RecognizeInput{SourceURI: "gs://b/o", Encoding: speech.FLAC})
	require.NoError(t, err)

	job, err := svc.GetOperation(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "done text", job.Transcript)
	assert.JSONEq(t, `[{"alternatives":[{"transcript":"done text","confidence":0.7}]}]`, string(job.Results))
	assert.Equal(t, 1, jobs.updates)

	// finished jobs are served from storage
	_, err = svc.GetOperation(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, 1, api.polls)
}

func TestGetOperation_WithoutStorage(t *testing.T) {
	api := &fakeAPI{op: &speech.Operation{Name: "ext", Progress: 40}}
	svc := newService(api, nil, nil, 0)

	job, err := svc.GetOperation(context.Background(), "ext")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Empty(t, job.ID)
}

func TestGetOperation_FailureRecorded(t *testing.T) {
	api := &fakeAPI{opErr: utils.E(utils.CodeInternal, "op", "audio too long", nil)}
	jobs := newFakeJobs()
	svc := newService(api, jobs, nil, 0)

	_, err := svc.StartLongRunning(context.Background(), RecognizeInput{SourceURI: "gs://b/o", Encoding: speech.FLAC})
	require.NoError(t, err)

	_, err = svc.GetOperation(context.Background(), "op-1")
	require.Error(t, err)
	assert.Equal(t, models.JobStatusFailed, jobs.byOp["op-1"].Status)
	assert.Contains(t, jobs.byOp["op-1"].Error, "audio too long")
}

func TestGetOperation_TransientFailureKeepsRunning(t *testing.T) {
	api := &fakeAPI{opErr: utils.E(utils.CodeUnavailable, "op", "down", errors.New("eof"))}
	jobs := newFakeJobs()
	svc := newService(api, jobs, nil, 0)

	_, err := svc.StartLongRunning(context.Background(), RecognizeInput{SourceURI: "gs://b/o", Encoding: speech.FLAC})
	require.NoError(t, err)

	_, err = svc.GetOperation(context.Background(), "op-1")
	require.Error(t, err)
	assert.Equal(t, models.JobStatusRunning, jobs.byOp["op-1"].Status)
}

func TestGetOperation_RequiresName(t *testing.T) {
	svc := newService(&fakeAPI{}, nil, nil, 0)
	_, err := svc.GetOperation(context.Background(), "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
