package stt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoospeak-speech/internal/cache"
)

// Cached memoizes transcripts of identical audio. Cache failures never fail
// a transcription.
type Cached struct {
	next   Provider
	cache  cache.Cache
	ttl    time.Duration
	logger logrus.FieldLogger
}

type cachedTranscript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func NewCached(next Provider, c cache.Cache, ttl time.Duration, logger logrus.FieldLogger) *Cached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Cached{next: next, cache: c, ttl: ttl, logger: logger}
}

func (c *Cached) Close() error { return c.next.Close() }

func (c *Cached) Transcribe(ctx context.Context, req Request) (string, float64, error) {
	key := cacheKey(req)
	log := c.logger.WithField("cache_key", key)

	var hit cachedTranscript
	ok, err := c.cache.GetJSON(ctx, key, &hit)
	if err != nil {
		log.WithError(err).Warn("transcript cache read failed")
	}
	if ok {
		return hit.Text, hit.Confidence, nil
	}

	text, conf, err := c.next.Transcribe(ctx, req)
	if err != nil {
		return "", 0, err
	}
	if err := c.cache.SetJSON(ctx, key, cachedTranscript{Text: text, Confidence: conf}, c.ttl); err != nil {
		log.WithError(err).Warn("transcript cache write failed")
	}
	return text, conf, nil
}

func cacheKey(req Request) string {
	h := sha256.New()
	h.Write(req.Audio)
	h.Write([]byte{0})
	h.Write([]byte(req.Encoding))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.SampleRate)))
	h.Write([]byte{0})
	h.Write([]byte(req.Language))
	return "stt:transcript:" + hex.EncodeToString(h.Sum(nil))
}
