// Package app wires the service together.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-caption-service/internal/api"
	"live-caption-service/internal/cache"
	"live-caption-service/internal/config"
	"live-caption-service/internal/events"
	"live-caption-service/internal/observability/logging"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/service/pipeline"
	"live-caption-service/internal/service/speech"
	speechgoogle "live-caption-service/internal/service/speech/google"
	speechmock "live-caption-service/internal/service/speech/mock"
	"live-caption-service/internal/service/synthesis"
	synthgoogle "live-caption-service/internal/service/synthesis/google"
	"live-caption-service/internal/service/translate"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Router   http.Handler
	Registry *pipeline.Registry

	publisher *events.Publisher
	rdb       *redis.Client
	speech    *speechgoogle.Adapter
	synth     *synthgoogle.Adapter
}

// New constructs the application from the provided configuration.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	a := &Application{Cfg: cfg}
	a.setupLogger()

	store, err := a.setupStore(ctx)
	if err != nil {
		return nil, err
	}
	recognizer, err := a.setupRecognizer(ctx)
	if err != nil {
		return nil, err
	}
	synthesizer, err := a.setupSynthesizer(ctx)
	if err != nil {
		return nil, err
	}

	var translator translate.Client
	if cfg.Translator.Key != "" {
		translator = translate.NewAzureClient(translate.AzureConfig{
			Endpoint: cfg.Translator.Endpoint,
			Key:      cfg.Translator.Key,
			Region:   cfg.Translator.Region,
		})
	} else {
		a.Logger.Warn().Msg("no translator key configured, captions will not be translated")
		translator = translate.Echo{}
	}

	a.publisher = events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})

	hub := api.NewHub(api.NewTokenVerifier(cfg.Hub.JWTSecret), a.Logger, metrics.Default)

	factory := &pipeline.Factory{
		Recognizer:      recognizer,
		Translator:      translator,
		Routing:         cfg.Languages.Routing,
		Store:           store,
		Publisher:       hub,
		Exporter:        a.publisher,
		SourceLanguages: cfg.Languages.Sources,
		TargetLanguages: cfg.Languages.Targets,
		AutoDetect:      cfg.Languages.AutoDetect,
		SampleRateHz:    cfg.Speech.SampleRateHz,
		Log:             a.Logger,
		Metrics:         metrics.Default,
	}
	if synthesizer != nil {
		factory.Synth = synthesizer
		factory.AudioPub = hub
		factory.Voices = synthesis.VoiceMap{
			Voices:  cfg.Synthesis.Voices,
			Default: cfg.Synthesis.DefaultVoice,
		}
	}

	a.Registry = pipeline.NewRegistry(factory)
	a.Router = api.NewRouter(hub, api.NewIngest(a.Registry, store, a.Logger), api.NewHistory(store, a.Logger))

	a.Logger.Info().Msg("live caption service application created")
	return a, nil
}

func (a *Application) setupStore(ctx context.Context) (cache.Store, error) {
	if a.Cfg.Redis.Addr == "" {
		a.Logger.Info().Msg("no redis configured, using in-process store")
		return cache.NewMemory(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Cfg.Redis.Addr,
		Password: a.Cfg.Redis.Password,
		DB:       a.Cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.rdb = rdb
	a.Logger.Info().Str("addr", a.Cfg.Redis.Addr).Msg("redis store connected")
	return cache.NewRedis(rdb), nil
}

func (a *Application) setupRecognizer(ctx context.Context) (speech.Recognizer, error) {
	switch a.Cfg.Speech.Provider {
	case "google":
		adapter, err := speechgoogle.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("google speech client: %w", err)
		}
		a.speech = adapter
		return adapter, nil
	case "mock", "":
		a.Logger.Info().Msg("using mock recognition provider")
		return speechmock.New(), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", a.Cfg.Speech.Provider)
	}
}

func (a *Application) setupSynthesizer(ctx context.Context) (synthesis.Synthesizer, error) {
	if !a.Cfg.Synthesis.Enabled {
		return nil, nil
	}
	adapter, err := synthgoogle.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("google tts client: %w", err)
	}
	a.synth = adapter
	return adapter, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	cfg := logging.DefaultConfig()
	cfg.Level = strings.ToLower(a.Cfg.Service.LogLevel)
	if a.Cfg.Service.LogPretty {
		cfg.Format = "console"
	}
	logging.Init(cfg)

	a.Logger = logging.Logger().With().
		Str("service", "live-caption-service").
		Logger()
	log.Logger = a.Logger

	a.Logger.Info().
		Str("logLevel", cfg.Level).
		Msg("Logger setup completed")
}

// Ready reports whether the service's downstream dependencies are reachable.
// With the in-process store there is nothing external to check.
func (a *Application) Ready(ctx context.Context) error {
	if a.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("live caption service starting")
	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown(ctx context.Context) {
	a.Logger.Info().Msg("live caption service shutting down")

	a.Registry.Shutdown(ctx)

	if err := a.publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("kafka publisher close failed")
	}
	if a.speech != nil {
		if err := a.speech.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("speech client close failed")
		}
	}
	if a.synth != nil {
		if err := a.synth.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("tts client close failed")
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("redis close failed")
		}
	}
}
