package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/yoockh/yoospeak-speech/config"
	"github.com/yoockh/yoospeak-speech/internal/api/handlers"
	"github.com/yoockh/yoospeak-speech/internal/api/middleware"
	"github.com/yoockh/yoospeak-speech/internal/api/routes"
	"github.com/yoockh/yoospeak-speech/internal/cache"
	"github.com/yoockh/yoospeak-speech/internal/logger"
	"github.com/yoockh/yoospeak-speech/internal/providers/stt"
	"github.com/yoockh/yoospeak-speech/internal/repositories/postgres"
	"github.com/yoockh/yoospeak-speech/internal/services"
	"github.com/yoockh/yoospeak-speech/internal/speech"
	"github.com/yoockh/yoospeak-speech/internal/storage"
	"github.com/yoockh/yoospeak-speech/internal/workers"
)

func main() {
	_ = godotenv.Load()
	settings := config.Load()
	log := logger.New(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := loadCredentials(ctx, settings.CredentialsFile)
	if err != nil {
		log.WithError(err).Fatal("credentials init error")
	}

	client := speech.New(speech.Options{
		Credentials: creds,
		DisableGRPC: settings.DisableGRPC,
		Endpoint:    settings.SpeechEndpoint,
		Logger:      log,
	})
	defer client.Close()
	log.WithField("transport", client.Transport().String()).Info("speech client configured")

	deps := services.RecognitionDeps{
		Client:      client,
		Logger:      log,
		InlineLimit: settings.InlineAudioLimit,
	}

	if settings.GCSBucket != "" {
		var opts []option.ClientOption
		if creds != nil {
			opts = append(opts, option.WithCredentials(creds))
		}
		up, err := storage.NewGCSUploader(ctx, settings.GCSBucket, "audio/", opts...)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		defer up.Close()
		deps.Uploader = up
		log.WithField("bucket", settings.GCSBucket).Info("GCS uploader ready")
	}

	if settings.PostgresURI != "" {
		if err := config.InitPostgres(settings.PostgresURI); err != nil {
			log.WithError(err).Fatal("PostgreSQL init error")
		}
		deps.Jobs = postgres.NewJobRepo(config.PostgresDB)
		log.Info("PostgreSQL connected")
	}

	if settings.RedisAddr != "" {
		if err := config.InitRedis(ctx, settings.RedisAddr); err != nil {
			log.WithError(err).Fatal("Redis init error")
		}
		log.Info("Redis connected")

		provider := stt.NewCached(
			stt.NewGoogleSpeech(client),
			cache.NewRedisCache(config.RedisClient, "speech:"),
			settings.TranscriptCacheTTL,
			log,
		)
		pool := &workers.TranscriptionWorkerPool{
			Redis:      config.RedisClient,
			STT:        provider,
			NumWorkers: settings.WorkerConsumers,
			Logger:     log,
			Stream:     settings.WorkerStream,
			Group:      settings.WorkerGroup,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("worker pool start error")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Recognition: handlers.NewRecognitionHandler(services.NewRecognitionService(deps)),
		JWTSecret:   settings.JWTSecret,
		JWTIssuer:   settings.JWTIssuer,
	})

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", settings.Port).Info("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server error")
	}
}

// loadCredentials reads a service account file when one is configured.
// Without one the client libraries fall back to Application Default
// Credentials on their own.
func loadCredentials(ctx context.Context, path string) (*google.Credentials, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return google.CredentialsFromJSON(ctx, b, speech.Scope...)
}
