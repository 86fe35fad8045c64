package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DisableGRPCEnv forces the HTTP transport for speech clients when truthy.
const DisableGRPCEnv = "GOOGLE_CLOUD_DISABLE_GRPC"

// Settings is the process configuration, read once at startup.
type Settings struct {
	Port     string
	LogLevel string

	// Speech API
	DisableGRPC     bool
	SpeechEndpoint  string
	CredentialsFile string

	// Optional infrastructure, empty disables the component.
	GCSBucket   string
	RedisAddr   string
	PostgresURI string
	JWTSecret   string
	JWTIssuer   string

	TranscriptCacheTTL time.Duration

	WorkerStream     string
	WorkerGroup      string
	WorkerConsumers  int
	InlineAudioLimit int
}

func Load() Settings {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds Settings from an arbitrary lookup so tests never touch
// the real process environment.
func FromLookup(lookup func(string) (string, bool)) Settings {
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := get(k); v != "" {
				return v
			}
		}
		return ""
	}

	s := Settings{
		Port:               get("PORT"),
		LogLevel:           get("LOG_LEVEL"),
		DisableGRPC:        Truthy(get(DisableGRPCEnv)),
		SpeechEndpoint:     get("SPEECH_ENDPOINT"),
		CredentialsFile:    get("GOOGLE_APPLICATION_CREDENTIALS"),
		GCSBucket:          get("GCS_BUCKET"),
		RedisAddr:          first("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		PostgresURI:        get("POSTGRES_URI"),
		JWTSecret:          get("JWT_SECRET"),
		JWTIssuer:          get("JWT_ISSUER"),
		TranscriptCacheTTL: 24 * time.Hour,
		WorkerStream:       get("WORKER_STREAM"),
		WorkerGroup:        get("WORKER_GROUP"),
		WorkerConsumers:    5,
		InlineAudioLimit:   10 << 20,
	}
	if s.Port == "" {
		s.Port = "8080"
	}
	if s.WorkerStream == "" {
		s.WorkerStream = "speech:jobs"
	}
	if s.WorkerGroup == "" {
		s.WorkerGroup = "speech-workers"
	}
	if d, err := time.ParseDuration(get("TRANSCRIPT_CACHE_TTL")); err == nil && d > 0 {
		s.TranscriptCacheTTL = d
	}
	if n, err := strconv.Atoi(get("WORKER_CONSUMERS")); err == nil && n > 0 {
		s.WorkerConsumers = n
	}
	if n, err := strconv.Atoi(get("INLINE_AUDIO_LIMIT_BYTES")); err == nil && n > 0 {
		s.InlineAudioLimit = n
	}
	return s
}

// Truthy reports whether an environment flag is set. Any non-blank value,
// including "0" and "false", counts as set.
func Truthy(v string) bool {
	return strings.TrimSpace(v) != ""
}
