package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yoockh/yoospeak-speech/internal/models"
	"github.com/yoockh/yoospeak-speech/internal/repositories/postgres"
	"github.com/yoockh/yoospeak-speech/internal/speech"
	"github.com/yoockh/yoospeak-speech/internal/storage"
	"github.com/yoockh/yoospeak-speech/internal/utils"
)

type RecognizeInput struct {
	Content    []byte
	SourceURI  string
	Encoding   speech.Encoding
	SampleRate int
	Options    speech.RecognizeOptions
}

type RecognitionService interface {
	Recognize(ctx context.Context, in RecognizeInput) ([]speech.Result, error)
	StartLongRunning(ctx context.Context, in RecognizeInput) (*models.RecognitionJob, error)
	GetOperation(ctx context.Context, name string) (*models.RecognitionJob, error)
}

type RecognitionDeps struct {
	Client *speech.Client
	// Uploader and Jobs are optional.
	Uploader storage.Uploader
	Jobs     postgres.JobRepo
	Logger   logrus.FieldLogger

	// InlineLimit is the largest content sent inline on the long-running
	// path; bigger payloads go through Uploader.
	InlineLimit int
}

type recognitionService struct {
	client      *speech.Client
	uploader    storage.Uploader
	jobs        postgres.JobRepo
	log         logrus.FieldLogger
	inlineLimit int
}

func NewRecognitionService(d RecognitionDeps) RecognitionService {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.InlineLimit <= 0 {
		d.InlineLimit = 10 << 20
	}
	return &recognitionService{
		client:      d.Client,
		uploader:    d.Uploader,
		jobs:        d.Jobs,
		log:         d.Logger,
		inlineLimit: d.InlineLimit,
	}
}

func (s *recognitionService) Recognize(ctx context.Context, in RecognizeInput) ([]speech.Result, error) {
	sample := s.client.Sample(speech.SampleConfig{
		Content:    in.Content,
		SourceURI:  in.SourceURI,
		Encoding:   in.Encoding,
		SampleRate: in.SampleRate,
	})
	return sample.Recognize(ctx, in.Options)
}

func (s *recognitionService) StartLongRunning(ctx context.Context, in RecognizeInput) (*models.RecognitionJob, error) {
	const op = "RecognitionService.StartLongRunning"

	jobID := uuid.NewString()
	sourceURI := in.SourceURI
	content := in.Content

	if len(content) > s.inlineLimit {
		if s.uploader == nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, "audio too large for inline recognition; use a gs:// source uri", nil)
		}
		uri, err := s.uploader.Upload(ctx, jobID+extension(in.Encoding), contentType(in.Encoding), bytes.NewReader(content))
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to upload audio", err)
		}
		s.log.WithFields(logrus.Fields{"job_id": jobID, "source_uri": uri, "bytes": len(content)}).Info("audio uploaded for long-running recognition")
		sourceURI, content = uri, nil
	}

	sample := s.client.Sample(speech.SampleConfig{
		Content:    content,
		SourceURI:  sourceURI,
		Encoding:   in.Encoding,
		SampleRate: in.SampleRate,
	})
	operation, err := sample.LongRunningRecognize(ctx, in.Options)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.RecognitionJob{
		ID:            jobID,
		OperationName: operation.Name,
		SourceURI:     sourceURI,
		Encoding:      string(in.Encoding),
		SampleRate:    in.SampleRate,
		LanguageCode:  in.Options.LanguageCode,
		Transport:     s.client.Transport().String(),
		Status:        models.JobStatusRunning,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := applyOperation(job, operation); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode results", err)
	}

	if s.jobs != nil {
		if err := s.jobs.Insert(ctx, job); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to store job", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"job_id":    jobID,
		"operation": operation.Name,
		"transport": job.Transport,
	}).Info("long-running recognition started")
	return job, nil
}

func (s *recognitionService) GetOperation(ctx context.Context, name string) (*models.RecognitionJob, error) {
	const op = "RecognitionService.GetOperation"

	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "operation name is required", nil)
	}

	job, err := s.storedJob(ctx, name)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusDone || job.Status == models.JobStatusFailed {
		return job, nil
	}

	api, err := s.client.SpeechAPI(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "speech api unavailable", err)
	}

	operation, err := api.Operation(ctx, name)
	if err != nil {
		if !transient(err) && s.jobs != nil && job.ID != "" {
			job.Status = models.JobStatusFailed
			job.Error = err.Error()
			job.UpdatedAt = time.Now().UTC()
			if uerr := s.jobs.Update(ctx, job); uerr != nil {
				s.log.WithError(uerr).WithField("operation", name).Warn("failed to record job failure")
			}
		}
		return nil, err
	}

	if err := applyOperation(job, operation); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode results", err)
	}
	job.UpdatedAt = time.Now().UTC()

	if s.jobs != nil && job.ID != "" {
		if err := s.jobs.Update(ctx, job); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to update job", err)
		}
	}
	return job, nil
}

// storedJob returns the persisted job, or a bare one when jobs are not
// persisted or the operation was started elsewhere.
func (s *recognitionService) storedJob(ctx context.Context, name string) (*models.RecognitionJob, error) {
	bare := &models.RecognitionJob{
		OperationName: name,
		Transport:     s.client.Transport().String(),
		Status:        models.JobStatusRunning,
	}
	if s.jobs == nil {
		return bare, nil
	}
	job, err := s.jobs.GetByOperation(ctx, name)
	if errors.Is(err, utils.ErrNotFound) {
		return bare, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, "RecognitionService.GetOperation", "failed to load job", err)
	}
	return job, nil
}

func applyOperation(job *models.RecognitionJob, operation *speech.Operation) error {
	job.Progress = operation.Progress
	if !operation.Done {
		return nil
	}
	job.Status = models.JobStatusDone
	job.Progress = 100
	if best, ok := speech.Best(operation.Results); ok {
		job.Transcript = best.Transcript
		job.Confidence = best.Confidence
	}
	b, err := json.Marshal(operation.Results)
	if err != nil {
		return err
	}
	job.Results = datatypes.JSON(b)
	return nil
}

func transient(err error) bool {
	return utils.IsCode(err, utils.CodeUnavailable) || utils.IsCode(err, utils.CodeTimeout)
}

func contentType(enc speech.Encoding) string {
	switch enc {
	case speech.FLAC:
		return "audio/flac"
	case speech.OGG_OPUS:
		return "audio/ogg"
	case speech.AMR, speech.AMR_WB:
		return "audio/amr"
	case speech.MULAW:
		return "audio/basic"
	default:
		return "application/octet-stream"
	}
}

func extension(enc speech.Encoding) string {
	switch enc {
	case speech.FLAC:
		return ".flac"
	case speech.OGG_OPUS:
		return ".ogg"
	case speech.AMR, speech.AMR_WB:
		return ".amr"
	case speech.LINEAR16:
		return ".raw"
	default:
		return ".bin"
	}
}
