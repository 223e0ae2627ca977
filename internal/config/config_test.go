package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear relevant env vars
	envVars := []string{
		"HTTP_ADDR", "METRICS_ADDR", "LOG_LEVEL",
		"SOURCE_LANGUAGES", "TARGET_LANGUAGES", "LANGUAGE_AUTO_DETECT",
		"SPEECH_PROVIDER", "SPEECH_SAMPLE_RATE_HZ",
		"TRANSLATOR_ENDPOINT", "SYNTHESIS_ENABLED",
		"KAFKA_ENABLED", "KAFKA_TOPIC_PARTIAL", "KAFKA_TOPIC_FINAL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Service.HTTPAddr != ":8080" {
		t.Errorf("expected default http addr ':8080', got %s", cfg.Service.HTTPAddr)
	}
	if cfg.Service.MetricsAddr != ":9090" {
		t.Errorf("expected default metrics addr ':9090', got %s", cfg.Service.MetricsAddr)
	}
	if cfg.Service.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Service.LogLevel)
	}

	if len(cfg.Languages.Sources) != 1 || cfg.Languages.Sources[0] != "en-US" {
		t.Errorf("expected default sources [en-US], got %v", cfg.Languages.Sources)
	}
	if cfg.Languages.AutoDetect {
		t.Error("expected auto-detect disabled by default")
	}
	if len(cfg.Languages.Targets) != 1 || cfg.Languages.Targets[0] != "en" {
		t.Errorf("expected default targets [en], got %v", cfg.Languages.Targets)
	}

	if cfg.Speech.Provider != "mock" {
		t.Errorf("expected default speech provider 'mock', got %s", cfg.Speech.Provider)
	}
	if cfg.Speech.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Speech.SampleRateHz)
	}

	if cfg.Translator.Endpoint != "https://api.cognitive.microsofttranslator.com" {
		t.Errorf("unexpected default translator endpoint %s", cfg.Translator.Endpoint)
	}
	if cfg.Synthesis.Enabled {
		t.Error("expected synthesis disabled by default")
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if cfg.Kafka.TopicPartial != "captions.partial" || cfg.Kafka.TopicFinal != "captions.final" {
		t.Errorf("unexpected default kafka topics: %s / %s", cfg.Kafka.TopicPartial, cfg.Kafka.TopicFinal)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9000")
	os.Setenv("SOURCE_LANGUAGES", "zh-CN, en-US")
	os.Setenv("TARGET_LANGUAGES", "en,ja")
	os.Setenv("LANGUAGE_AUTO_DETECT", "true")
	os.Setenv("SPEECH_PROVIDER", "google")
	os.Setenv("SPEECH_SAMPLE_RATE_HZ", "8000")
	os.Setenv("SYNTHESIS_VOICES", "ja=ja-JP-Neural2-B,en=en-US-Neural2-C")
	os.Setenv("TRANSLATION_ROUTING", "en:zh-CN=tech,ja:zh-CN=medical")

	defer func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("SOURCE_LANGUAGES")
		os.Unsetenv("TARGET_LANGUAGES")
		os.Unsetenv("LANGUAGE_AUTO_DETECT")
		os.Unsetenv("SPEECH_PROVIDER")
		os.Unsetenv("SPEECH_SAMPLE_RATE_HZ")
		os.Unsetenv("SYNTHESIS_VOICES")
		os.Unsetenv("TRANSLATION_ROUTING")
	}()

	cfg := Load()

	if cfg.Service.HTTPAddr != ":9000" {
		t.Errorf("expected http addr ':9000', got %s", cfg.Service.HTTPAddr)
	}
	if len(cfg.Languages.Sources) != 2 || cfg.Languages.Sources[0] != "zh-CN" || cfg.Languages.Sources[1] != "en-US" {
		t.Errorf("expected trimmed sources [zh-CN en-US], got %v", cfg.Languages.Sources)
	}
	if !cfg.Languages.AutoDetect {
		t.Error("expected auto-detect enabled")
	}
	if cfg.Speech.Provider != "google" {
		t.Errorf("expected provider 'google', got %s", cfg.Speech.Provider)
	}
	if cfg.Speech.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.Speech.SampleRateHz)
	}
	if cfg.Synthesis.Voices["ja"] != "ja-JP-Neural2-B" {
		t.Errorf("expected ja voice mapping, got %v", cfg.Synthesis.Voices)
	}
	if cfg.Languages.Routing["en"]["zh-CN"] != "tech" {
		t.Errorf("expected routed category 'tech', got %v", cfg.Languages.Routing)
	}
	if cfg.Languages.Routing["ja"]["zh-CN"] != "medical" {
		t.Errorf("expected routed category 'medical', got %v", cfg.Languages.Routing)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("SPEECH_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("LANGUAGE_AUTO_DETECT", "invalid")
	os.Setenv("TRANSLATION_ROUTING", "garbage-without-separators")

	defer func() {
		os.Unsetenv("SPEECH_SAMPLE_RATE_HZ")
		os.Unsetenv("LANGUAGE_AUTO_DETECT")
		os.Unsetenv("TRANSLATION_ROUTING")
	}()

	cfg := Load()

	if cfg.Speech.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Speech.SampleRateHz)
	}
	if cfg.Languages.AutoDetect {
		t.Error("expected default auto-detect on invalid input")
	}
	if len(cfg.Languages.Routing) != 0 {
		t.Errorf("expected empty routing for malformed input, got %v", cfg.Languages.Routing)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestParsePairs(t *testing.T) {
	got := parsePairs("a=1, b=2,=skipme,malformed")
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Errorf("unexpected pairs: %v", got)
	}
}
