package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// ErrMissingCredentials is returned by Validate when API_KEY or API_SECRET is unset.
var ErrMissingCredentials = errors.New("API_KEY and API_SECRET must be set")

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	API    APIConfig
	Poll   PollConfig
	Log    LogConfig
	Redis  RedisConfig
	Server ServerConfig
	R2     R2Config
}

type APIConfig struct {
	Key          string
	Secret       string
	OrgID        string
	BaseURL      string
	Timeout      int // seconds
	MaxRetries   int
	RateLimitRPS float64
}

type PollConfig struct {
	Interval    int // seconds
	MaxInterval int // seconds
	Timeout     int // seconds
	MaxFailures int
}

type LogConfig struct {
	Debug  bool
	Format string // "text" or "json"
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port string
	// EnqueuePerHour caps POST /api/pipelines per client address. Zero disables it.
	EnqueuePerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// Enabled reports whether enough settings are present to archive renders.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.BucketName != ""
}

// Load reads .env, the optional storylinez.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	// Existing environment variables are never overwritten by .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	readSecret("API_KEY")
	readSecret("API_SECRET")
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("storylinez")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".storylinez"))
	}

	v.AutomaticEnv()

	_ = v.BindEnv("api.key", "API_KEY")
	_ = v.BindEnv("api.secret", "API_SECRET")
	_ = v.BindEnv("api.org_id", "ORG_ID")
	_ = v.BindEnv("api.base_url", "BASE_URL")
	_ = v.BindEnv("api.timeout", "TIMEOUT")
	_ = v.BindEnv("api.max_retries", "MAX_RETRIES")
	_ = v.BindEnv("api.rate_limit_rps", "RATE_LIMIT_RPS")
	_ = v.BindEnv("poll.interval", "POLL_INTERVAL")
	_ = v.BindEnv("poll.max_interval", "POLL_MAX_INTERVAL")
	_ = v.BindEnv("poll.timeout", "POLL_TIMEOUT")
	_ = v.BindEnv("poll.max_failures", "POLL_MAX_FAILURES")
	_ = v.BindEnv("log.debug", "DEBUG")
	_ = v.BindEnv("log.format", "LOG_FORMAT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.enqueue_per_hour", "SERVER_ENQUEUE_PER_HOUR")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.timeout", 120)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.rate_limit_rps", 0)
	v.SetDefault("poll.interval", 5)
	v.SetDefault("poll.max_interval", 30)
	v.SetDefault("poll.timeout", 1800)
	v.SetDefault("poll.max_failures", 5)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.format", "text")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.enqueue_per_hour", 60)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		API: APIConfig{
			Key:          v.GetString("api.key"),
			Secret:       v.GetString("api.secret"),
			OrgID:        v.GetString("api.org_id"),
			BaseURL:      v.GetString("api.base_url"),
			Timeout:      v.GetInt("api.timeout"),
			MaxRetries:   v.GetInt("api.max_retries"),
			RateLimitRPS: v.GetFloat64("api.rate_limit_rps"),
		},
		Poll: PollConfig{
			Interval:    v.GetInt("poll.interval"),
			MaxInterval: v.GetInt("poll.max_interval"),
			Timeout:     v.GetInt("poll.timeout"),
			MaxFailures: v.GetInt("poll.max_failures"),
		},
		Log: LogConfig{
			Debug:  v.GetBool("log.debug"),
			Format: v.GetString("log.format"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			EnqueuePerHour: v.GetInt("server.enqueue_per_hour"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}

// Validate reports settings that make remote calls impossible.
func (c *Config) Validate() error {
	if c.API.Key == "" || c.API.Secret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// ClientConfig builds the API client settings.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		APIKey:    c.API.Key,
		APISecret: c.API.Secret,
		OrgID:     c.API.OrgID,
		BaseURL:   c.API.BaseURL,
		Timeout:   time.Duration(c.API.Timeout) * time.Second,
		RateLimit: c.API.RateLimitRPS,
	}
}

// PollOptions builds the poller settings.
func (c *Config) PollOptions() poller.Options {
	opts := poller.DefaultOptions()
	opts.Interval = time.Duration(c.Poll.Interval) * time.Second
	opts.MaxInterval = time.Duration(c.Poll.MaxInterval) * time.Second
	opts.Timeout = time.Duration(c.Poll.Timeout) * time.Second
	opts.MaxConsecutiveFailures = c.Poll.MaxFailures
	return opts
}
