package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Display  DisplayConfig
	Executor ExecutorConfig
	Editing  EditingConfig
	Storage  StorageConfig
	Pusher   PusherConfig
	Bedrock  BedrockConfig
	Security SecurityConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// DisplayConfig holds the virtual display pool configuration.
type DisplayConfig struct {
	MaxSessions int
	DisplayBase int
	VNCPortBase int
	GatewayPort int
	PublicHost  string
	Resolution  string
}

// ExecutorConfig holds task execution configuration.
type ExecutorConfig struct {
	MaxConcurrentRuns int64
	ResumeTimeout     time.Duration
	ScreenshotDir     string
}

// EditingConfig holds interactive editing session configuration.
type EditingConfig struct {
	// ResumeTimeout bounds how long a login breakpoint waits for a human.
	ResumeTimeout time.Duration
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	Type            string        // "local" or "s3"
	BaseDir         string        // For local: "./uploads"
	S3Bucket        string        // For S3: bucket name
	S3Region        string        // For S3: AWS region
	S3PresignExpiry time.Duration // Presigned URL expiration
}

// PusherConfig holds event broadcast configuration (Pusher-protocol
// compatible, e.g. Soketi).
type PusherConfig struct {
	AppID   string
	Key     string
	Secret  string
	Host    string
	Cluster string
	Secure  bool
}

// BedrockConfig holds the AI form classifier configuration.
type BedrockConfig struct {
	Region    string
	ModelID   string
	MaxTokens int
}

// SecurityConfig holds secrets shared across services.
type SecurityConfig struct {
	InternalAPIKey       string
	EncryptionPassphrase string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "formbot")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("display.max_sessions", 20)
	v.SetDefault("display.display_base", 99)
	v.SetDefault("display.vnc_port_base", 5900)
	v.SetDefault("display.gateway_port", 6080)
	v.SetDefault("display.public_host", "localhost")
	v.SetDefault("display.resolution", "1280x720x24")

	v.SetDefault("executor.max_concurrent_runs", 5)
	v.SetDefault("executor.resume_timeout", "5m")
	v.SetDefault("executor.screenshot_dir", "./screenshots")

	v.SetDefault("editing.resume_timeout", "1h")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_dir", "./uploads")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_presign_expiry", "15m")

	v.SetDefault("pusher.app_id", "")
	v.SetDefault("pusher.key", "")
	v.SetDefault("pusher.secret", "")
	v.SetDefault("pusher.host", "")
	v.SetDefault("pusher.cluster", "mt1")
	v.SetDefault("pusher.secure", false)

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-5-sonnet-20240620-v1:0")
	v.SetDefault("bedrock.max_tokens", 4096)

	v.SetDefault("security.internal_api_key", "")
	v.SetDefault("security.encryption_passphrase", "")

	v.SetDefault("log.level", "info")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults
	}

	// Parse configuration
	var config Config

	config.Server.Host = v.GetString("server.host")
	config.Server.Port = v.GetInt("server.port")
	config.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	config.Server.WriteTimeout = v.GetDuration("server.write_timeout")

	config.Database.Host = v.GetString("database.host")
	config.Database.Port = v.GetInt("database.port")
	config.Database.User = v.GetString("database.user")
	config.Database.Password = v.GetString("database.password")
	config.Database.Database = v.GetString("database.database")
	config.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	config.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")

	config.Display.MaxSessions = v.GetInt("display.max_sessions")
	config.Display.DisplayBase = v.GetInt("display.display_base")
	config.Display.VNCPortBase = v.GetInt("display.vnc_port_base")
	config.Display.GatewayPort = v.GetInt("display.gateway_port")
	config.Display.PublicHost = v.GetString("display.public_host")
	config.Display.Resolution = v.GetString("display.resolution")

	config.Executor.MaxConcurrentRuns = v.GetInt64("executor.max_concurrent_runs")
	config.Executor.ResumeTimeout = v.GetDuration("executor.resume_timeout")
	config.Executor.ScreenshotDir = v.GetString("executor.screenshot_dir")

	config.Editing.ResumeTimeout = v.GetDuration("editing.resume_timeout")

	config.Storage.Type = v.GetString("storage.type")
	config.Storage.BaseDir = v.GetString("storage.base_dir")
	config.Storage.S3Bucket = v.GetString("storage.s3_bucket")
	config.Storage.S3Region = v.GetString("storage.s3_region")
	config.Storage.S3PresignExpiry = v.GetDuration("storage.s3_presign_expiry")

	config.Pusher.AppID = v.GetString("pusher.app_id")
	config.Pusher.Key = v.GetString("pusher.key")
	config.Pusher.Secret = v.GetString("pusher.secret")
	config.Pusher.Host = v.GetString("pusher.host")
	config.Pusher.Cluster = v.GetString("pusher.cluster")
	config.Pusher.Secure = v.GetBool("pusher.secure")

	config.Bedrock.Region = v.GetString("bedrock.region")
	config.Bedrock.ModelID = v.GetString("bedrock.model_id")
	config.Bedrock.MaxTokens = v.GetInt("bedrock.max_tokens")

	config.Security.InternalAPIKey = v.GetString("security.internal_api_key")
	config.Security.EncryptionPassphrase = v.GetString("security.encryption_passphrase")

	config.Log.Level = v.GetString("log.level")

	return &config, nil
}
