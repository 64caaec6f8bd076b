package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind           string `yaml:"bind"`
	Port           int    `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type Config struct {
	ServiceName   string              `yaml:"service_name"`
	Environment   string              `yaml:"environment"`
	HTTP          HTTPConfig          `yaml:"http"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Bus           BusConfig           `yaml:"bus"`
	Transcoder    TranscoderConfig    `yaml:"transcoder"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Translation   TranslationConfig   `yaml:"translation"`
	Storage       StorageConfig       `yaml:"storage"`
	RunLog        RunLogConfig        `yaml:"run_log"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type TranscoderConfig struct {
	Mode       string `yaml:"mode"` // ffmpeg, mock
	Command    string `yaml:"command"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type TranscriptionConfig struct {
	Mode      string `yaml:"mode"` // openai, mock
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TranslationConfig struct {
	Mode          string  `yaml:"mode"` // openai, mock
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	BaseURL       string  `yaml:"base_url"`
	Temperature   float64 `yaml:"temperature"`
	TimeoutMS     int     `yaml:"timeout_ms"`
	DefaultTarget string  `yaml:"default_target"`
}

type StorageConfig struct {
	ArchiveDir  string `yaml:"archive_dir"`
	HistoryPath string `yaml:"history_path"`
	UploadDir   string `yaml:"upload_dir"`
}

type RunLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRuns       int    `yaml:"max_runs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		ServiceName: "scribe-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:           "0.0.0.0",
			Port:           8080,
			MaxUploadBytes: 32 << 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Transcoder: TranscoderConfig{
			Mode:       "ffmpeg",
			Command:    "ffmpeg",
			SampleRate: 16000,
			Channels:   1,
			TimeoutMS:  60000,
		},
		Transcription: TranscriptionConfig{
			Mode:      "mock",
			Model:     "whisper-1",
			TimeoutMS: 120000,
		},
		Translation: TranslationConfig{
			Mode:          "mock",
			Model:         "gpt-4",
			Temperature:   0.2,
			TimeoutMS:     60000,
			DefaultTarget: "en",
		},
		Storage: StorageConfig{
			ArchiveDir:  "./data/audios",
			HistoryPath: "./data/transcriptions.json",
			UploadDir:   "",
		},
		RunLog: RunLogConfig{
			Enabled:       true,
			Path:          "./data/scribe-runs.db",
			RetentionDays: 30,
			MaxRuns:       10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "SCRIBE_SERVICE_NAME")
	overrideString(&cfg.Environment, "SCRIBE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SCRIBE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SCRIBE_HTTP_PORT")
	overrideInt64(&cfg.HTTP.MaxUploadBytes, "SCRIBE_HTTP_MAX_UPLOAD_BYTES")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "SCRIBE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "SCRIBE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SCRIBE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "SCRIBE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "SCRIBE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SCRIBE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SCRIBE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SCRIBE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SCRIBE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SCRIBE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Transcoder.Mode, "SCRIBE_TRANSCODER_MODE")
	overrideString(&cfg.Transcoder.Command, "SCRIBE_TRANSCODER_COMMAND")
	overrideInt(&cfg.Transcoder.SampleRate, "SCRIBE_TRANSCODER_SAMPLE_RATE")
	overrideInt(&cfg.Transcoder.Channels, "SCRIBE_TRANSCODER_CHANNELS")
	overrideInt(&cfg.Transcoder.TimeoutMS, "SCRIBE_TRANSCODER_TIMEOUT_MS")
	overrideString(&cfg.Transcription.Mode, "SCRIBE_TRANSCRIPTION_MODE")
	overrideString(&cfg.Transcription.APIKey, "SCRIBE_TRANSCRIPTION_API_KEY")
	overrideString(&cfg.Transcription.Model, "SCRIBE_TRANSCRIPTION_MODEL")
	overrideString(&cfg.Transcription.BaseURL, "SCRIBE_TRANSCRIPTION_BASE_URL")
	overrideInt(&cfg.Transcription.TimeoutMS, "SCRIBE_TRANSCRIPTION_TIMEOUT_MS")
	overrideString(&cfg.Translation.Mode, "SCRIBE_TRANSLATION_MODE")
	overrideString(&cfg.Translation.APIKey, "SCRIBE_TRANSLATION_API_KEY")
	overrideString(&cfg.Translation.Model, "SCRIBE_TRANSLATION_MODEL")
	overrideString(&cfg.Translation.BaseURL, "SCRIBE_TRANSLATION_BASE_URL")
	overrideFloat(&cfg.Translation.Temperature, "SCRIBE_TRANSLATION_TEMPERATURE")
	overrideInt(&cfg.Translation.TimeoutMS, "SCRIBE_TRANSLATION_TIMEOUT_MS")
	overrideString(&cfg.Translation.DefaultTarget, "SCRIBE_TRANSLATION_DEFAULT_TARGET")
	overrideString(&cfg.Storage.ArchiveDir, "SCRIBE_STORAGE_ARCHIVE_DIR")
	overrideString(&cfg.Storage.HistoryPath, "SCRIBE_STORAGE_HISTORY_PATH")
	overrideString(&cfg.Storage.UploadDir, "SCRIBE_STORAGE_UPLOAD_DIR")
	overrideBool(&cfg.RunLog.Enabled, "SCRIBE_RUN_LOG_ENABLED")
	overrideString(&cfg.RunLog.Path, "SCRIBE_RUN_LOG_PATH")
	overrideInt(&cfg.RunLog.RetentionDays, "SCRIBE_RUN_LOG_RETENTION_DAYS")
	overrideInt(&cfg.RunLog.MaxRuns, "SCRIBE_RUN_LOG_MAX_RUNS")
	overrideBool(&cfg.RunLog.VacuumOnStart, "SCRIBE_RUN_LOG_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Transcoder.Mode {
	case "ffmpeg", "mock":
	default:
		return errors.New("transcoder.mode must be one of ffmpeg|mock")
	}
	if cfg.Transcoder.Mode == "ffmpeg" && cfg.Transcoder.Command == "" {
		return errors.New("transcoder.command must be set when mode=ffmpeg")
	}
	if cfg.Transcoder.SampleRate <= 0 {
		return errors.New("transcoder.sample_rate must be positive")
	}
	if cfg.Transcoder.Channels <= 0 {
		return errors.New("transcoder.channels must be positive")
	}
	switch cfg.Transcription.Mode {
	case "openai", "mock":
	default:
		return errors.New("transcription.mode must be one of openai|mock")
	}
	if cfg.Transcription.Mode == "openai" {
		if cfg.Transcription.APIKey == "" {
			return errors.New("transcription.api_key must be set when mode=openai")
		}
		if cfg.Transcription.Model == "" {
			return errors.New("transcription.model must not be empty")
		}
	}
	switch cfg.Translation.Mode {
	case "openai", "mock":
	default:
		return errors.New("translation.mode must be one of openai|mock")
	}
	if cfg.Translation.Mode == "openai" {
		if cfg.Translation.APIKey == "" {
			return errors.New("translation.api_key must be set when mode=openai")
		}
		if cfg.Translation.Model == "" {
			return errors.New("translation.model must not be empty")
		}
	}
	if cfg.Translation.DefaultTarget == "" {
		return errors.New("translation.default_target must not be empty")
	}
	if cfg.Storage.ArchiveDir == "" {
		return errors.New("storage.archive_dir must not be empty")
	}
	if cfg.Storage.HistoryPath == "" {
		return errors.New("storage.history_path must not be empty")
	}
	if cfg.RunLog.Enabled && cfg.RunLog.Path == "" {
		return errors.New("run_log.path must not be empty when the run log is enabled")
	}
	if cfg.RunLog.RetentionDays < 0 {
		return errors.New("run_log.retention_days must be >= 0")
	}
	return nil
}
