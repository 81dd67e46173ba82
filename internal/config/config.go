package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Speech   SpeechConfig
	Render   RenderConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	JWTSecret       string // empty disables API authentication
	RateLimitRPS    int
	RateLimitBurst  int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TitleTTL time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	BucketName       string
	Region           string
	UseSSL           bool
	MusicPrefix      string
	BackgroundPrefix string
	RenderPrefix     string
	PresignExpiry    time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// SpeechConfig holds the text-to-speech and forced alignment provider settings
type SpeechConfig struct {
	APIKey       string
	BaseURL      string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
	Voice        models.VoiceConfig
}

// RenderConfig holds the media pipeline settings
type RenderConfig struct {
	FFmpegPath     string
	FFprobePath    string
	TempDir        string
	TrailingPad    float64 // seconds added after the narration
	SubtitleOffset float64 // seconds, must match the narration delay in the mix
	Compress       bool
	CompressCRF    int
	MaxAttempts    int
	RetryDelay     time.Duration
	JobTimeout     time.Duration
	ErrorCooldown  time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds the Jaeger settings
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// NotifyConfig holds the render event webhook settings. No URLs disables notifications.
type NotifyConfig struct {
	URLs        []string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Load reads configuration from file and environment variables. An empty
// configPath uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values the render pipeline cannot work around
func (c *Config) Validate() error {
	if c.Render.TrailingPad < 0 {
		return fmt.Errorf("render.trailingPad must not be negative, got %.2f", c.Render.TrailingPad)
	}
	if c.Render.SubtitleOffset < 0 {
		return fmt.Errorf("render.subtitleOffset must not be negative, got %.2f", c.Render.SubtitleOffset)
	}
	if c.Render.MaxAttempts < 1 {
		return fmt.Errorf("render.maxAttempts must be at least 1, got %d", c.Render.MaxAttempts)
	}
	if c.Render.CompressCRF < 0 || c.Render.CompressCRF > 51 {
		return fmt.Errorf("render.compressCRF must be within 0..51, got %d", c.Render.CompressCRF)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.jwtSecret", "")
	v.SetDefault("server.rateLimitRPS", 2)
	v.SetDefault("server.rateLimitBurst", 5)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "shortform")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 2)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.titleTTL", "720h")

	// Storage defaults
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "shortform")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.musicPrefix", "music/")
	v.SetDefault("storage.backgroundPrefix", "backgrounds/")
	v.SetDefault("storage.renderPrefix", "renders/")
	v.SetDefault("storage.presignExpiry", "1h")

	// Queue defaults
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")

	// Speech defaults
	v.SetDefault("speech.apiKey", "")
	v.SetDefault("speech.baseURL", "https://api.elevenlabs.io")
	v.SetDefault("speech.modelID", "eleven_multilingual_v2")
	v.SetDefault("speech.outputFormat", "mp3_44100_128")
	v.SetDefault("speech.timeout", "60s")
	v.SetDefault("speech.voice.voiceID", "")
	v.SetDefault("speech.voice.settings.stability", 0.5)
	v.SetDefault("speech.voice.settings.similarityBoost", 0.75)
	v.SetDefault("speech.voice.settings.useSpeakerBoost", true)

	// Render defaults
	v.SetDefault("render.ffmpegPath", "ffmpeg")
	v.SetDefault("render.ffprobePath", "ffprobe")
	v.SetDefault("render.tempDir", "/tmp/shortform")
	v.SetDefault("render.trailingPad", 4.0)
	v.SetDefault("render.subtitleOffset", 1.0)
	v.SetDefault("render.compress", false)
	v.SetDefault("render.compressCRF", 26)
	v.SetDefault("render.maxAttempts", 3)
	v.SetDefault("render.retryDelay", "30s")
	v.SetDefault("render.jobTimeout", "15m")
	v.SetDefault("render.errorCooldown", "10h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9100)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "shortform")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Notify defaults
	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.secret", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.maxAttempts", 3)
	v.SetDefault("notify.retryDelay", "2s")
}
