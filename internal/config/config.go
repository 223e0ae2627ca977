// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service    Service
	Languages  Languages
	Speech     Speech
	Translator Translator
	Synthesis  Synthesis
	Redis      Redis
	Kafka      Kafka
	Hub        Hub
}

// Service holds the HTTP listener and observability addresses.
type Service struct {
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string
	LogPretty   bool
}

// Languages configures recognition sources and translation targets.
type Languages struct {
	// Sources lists the languages to recognize, one session per entry
	// unless AutoDetect collapses them into a single detecting session.
	Sources    []string
	AutoDetect bool
	// Targets lists the languages every caption must carry.
	Targets []string
	// Routing maps "target:source" pairs to a translation model category.
	Routing map[string]map[string]string
}

// Speech selects and configures the recognition provider.
type Speech struct {
	// Provider is "google" or "mock".
	Provider     string
	SampleRateHz int32
}

// Translator configures the Azure Translator client.
type Translator struct {
	Endpoint string
	Key      string
	Region   string
}

// Synthesis configures the text-to-speech fan-out.
type Synthesis struct {
	Enabled      bool
	DefaultVoice string
	// Voices maps "lang=voiceName" entries.
	Voices map[string]string
}

// Redis configures the shared TTL store. An empty Addr selects the
// in-process store.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Kafka configures the caption export stream.
type Kafka struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
}

// Hub configures the viewer websocket surface.
type Hub struct {
	// JWTSecret validates viewer tokens; empty runs the hub permissive.
	JWTSecret string
}

// Load reads the configuration from the environment.
func Load() *Configuration {
	return &Configuration{
		Service: Service{
			HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogPretty:   envOrDefaultBool("LOG_PRETTY", false),
		},
		Languages: Languages{
			Sources:    envOrDefaultList("SOURCE_LANGUAGES", "en-US"),
			AutoDetect: envOrDefaultBool("LANGUAGE_AUTO_DETECT", false),
			Targets:    envOrDefaultList("TARGET_LANGUAGES", "en"),
			Routing:    parseRouting(os.Getenv("TRANSLATION_ROUTING")),
		},
		Speech: Speech{
			Provider:     envOrDefault("SPEECH_PROVIDER", "mock"),
			SampleRateHz: int32(envOrDefaultInt("SPEECH_SAMPLE_RATE_HZ", 16000)),
		},
		Translator: Translator{
			Endpoint: envOrDefault("TRANSLATOR_ENDPOINT", "https://api.cognitive.microsofttranslator.com"),
			Key:      os.Getenv("TRANSLATOR_KEY"),
			Region:   os.Getenv("TRANSLATOR_REGION"),
		},
		Synthesis: Synthesis{
			Enabled:      envOrDefaultBool("SYNTHESIS_ENABLED", false),
			DefaultVoice: envOrDefault("SYNTHESIS_DEFAULT_VOICE", "en-US-Neural2-C"),
			Voices:       parsePairs(os.Getenv("SYNTHESIS_VOICES")),
		},
		Redis: Redis{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envOrDefaultInt("REDIS_DB", 0),
		},
		Kafka: Kafka{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", ""),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "captions.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "captions.final"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", "live-caption-service"),
		},
		Hub: Hub{
			JWTSecret: os.Getenv("HUB_JWT_SECRET"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, trimming blanks.
func envOrDefaultList(key, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePairs parses "key=value,key=value" into a map.
func parsePairs(v string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = val
	}
	return out
}

// parseRouting parses "target:source=category,..." into the nested routing
// map consumed by the translator.
func parseRouting(v string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, part := range strings.Split(v, ",") {
		pair, category, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		target, source, ok := strings.Cut(pair, ":")
		if !ok || target == "" || source == "" {
			continue
		}
		if out[target] == nil {
			out[target] = make(map[string]string)
		}
		out[target][source] = category
	}
	return out
}
