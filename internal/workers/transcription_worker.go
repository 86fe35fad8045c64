package workers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoospeak-speech/internal/providers/stt"
	"github.com/yoockh/yoospeak-speech/internal/speech"
	"github.com/yoockh/yoospeak-speech/internal/utils"
)

// TranscriptionWorkerPool consumes transcription jobs from a Redis stream and
// publishes results on "speech:<job_id>:result".
type TranscriptionWorkerPool struct {
	Redis      *redis.Client
	STT        stt.Provider
	NumWorkers int

	Logger logrus.FieldLogger
	// HTTPClient fetches audio_url payloads.
	HTTPClient *http.Client

	Stream         string
	Group          string
	ConsumerPrefix string
	MaxAudioBytes  int64
}

// Event is the JSON payload published for a job.
type Event struct {
	Type       string  `json:"type"` // status|stt_result
	JobID      string  `json:"job_id"`
	Status     string  `json:"status,omitempty"` // processing|done|failed
	Message    string  `json:"message,omitempty"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	IsFinal    bool    `json:"is_final,omitempty"`
}

func ResultChannel(jobID string) string { return "speech:" + jobID + ":result" }

var (
	errSkip          = errors.New("message skipped")
	errMissingAudio  = errors.New("message has no audio")
	errAudioTooLarge = errors.New("audio exceeds size limit")
)

func (p *TranscriptionWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.STT == nil {
		return errors.New("TranscriptionWorkerPool missing dependency: Redis/STT must be set")
	}
	p.defaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{
		"stream":  p.Stream,
		"group":   p.Group,
		"workers": p.NumWorkers,
	}).Info("transcription workers started")
	return nil
}

func (p *TranscriptionWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = "speech:jobs"
	}
	if p.Group == "" {
		p.Group = "speech-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.MaxAudioBytes <= 0 {
		p.MaxAudioBytes = 10 << 20
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.HTTPClient == nil {
		p.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

func (p *TranscriptionWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *TranscriptionWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	jobID := field(msg.Values, "job_id")
	log := p.Logger.WithFields(logrus.Fields{"redis_id": msg.ID, "job_id": jobID})

	ch := ResultChannel(jobID)
	publish := func(ev Event) {
		b, _ := json.Marshal(ev)
		if err := p.Redis.Publish(ctx, ch, b).Err(); err != nil {
			log.WithError(err).Warn("publish failed")
		}
	}

	ev, err := p.process(ctx, msg.Values, publish)
	if errors.Is(err, errSkip) {
		log.Debug("skipping message without job_id")
		return
	}
	if err != nil {
		log.WithError(err).Error("transcription failed")
	}
	publish(ev)
	if err == nil {
		publish(Event{Type: "status", JobID: jobID, Status: "done", Message: "job processed"})
	}
}

// process turns one stream message into the terminal event to publish. A
// returned error is already reflected in the event. notify receives the
// "processing" status once the audio is in hand.
func (p *TranscriptionWorkerPool) process(ctx context.Context, values map[string]any, notify func(Event)) (Event, error) {
	jobID := field(values, "job_id")
	if jobID == "" {
		return Event{}, errSkip
	}
	failed := func(msg string, err error) (Event, error) {
		return Event{Type: "status", JobID: jobID, Status: "failed", Message: msg}, err
	}

	var audio []byte
	if b64 := field(values, "audio_base64"); b64 != "" {
		decoded, err := utils.DecodeAudioBase64(b64)
		if err != nil {
			return failed("invalid audio_base64", err)
		}
		audio = decoded
	} else if url := field(values, "audio_url"); url != "" {
		body, err := p.fetch(ctx, url)
		if errors.Is(err, errAudioTooLarge) {
			return failed("audio too large", err)
		}
		if err != nil {
			return failed("failed to fetch audio_url", err)
		}
		audio = body
	} else {
		return failed("missing audio_base64 or audio_url", errMissingAudio)
	}
	if len(audio) == 0 {
		return failed("empty audio", errors.New("empty audio"))
	}

	notify(Event{Type: "status", JobID: jobID, Status: "processing", Message: "stt processing"})

	rate, _ := strconv.Atoi(field(values, "sample_rate"))
	text, conf, err := p.STT.Transcribe(ctx, stt.Request{
		Audio:      audio,
		Encoding:   speech.Encoding(strings.ToUpper(field(values, "encoding"))),
		SampleRate: rate,
		Language:   normalizeLanguage(field(values, "language")),
	})
	if err != nil {
		return failed("stt failed", err)
	}

	return Event{
		Type:       "stt_result",
		JobID:      jobID,
		Text:       text,
		Confidence: conf,
		IsFinal:    true,
	}, nil
}

func (p *TranscriptionWorkerPool) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status " + resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, p.MaxAudioBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > p.MaxAudioBytes {
		return nil, errAudioTooLarge
	}
	return body, nil
}

func field(values map[string]any, k string) string {
	v, ok := values[k]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func normalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "id", "id-ID":
		return "id-ID"
	case "en", "en-US":
		return "en-US"
	default:
		if v == "" {
			return speech.DefaultLanguageCode
		}
		return v
	}
}
