package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// PHOTOMOOD_PUBSUB_SYSTEM=kafka.
const EnvPrefix = "PHOTOMOOD"

// Default returns the configuration used when nothing is overridden: the
// in-memory channel transport with the mood and thumbnail workers.
func Default() *Config {
	return &Config{
		PubSubSystem:     "channel",
		HTTPAddress:      ":8080",
		MaxUploadBytes:   10 << 20,
		RequestTimeout:   60 * time.Second,
		DispatchAttempts: 3,
		DispatchInterval: time.Second,
		Services: []ServiceRoute{
			{Tag: "mood", Queue: "mood-analysis-queue", ResultsTopic: "mood-results"},
			{Tag: "thumbnail", Queue: "thumbnail-queue", ResultsTopic: "thumbnail-results"},
		},
		MetricsEnabled: true,
		LogLevel:       "info",
	}
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables take precedence over file values, which take
// precedence over defaults. file may be empty to skip file loading.
func Load(file string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("pubsub_system", def.PubSubSystem)
	v.SetDefault("kafka_brokers", def.KafkaBrokers)
	v.SetDefault("kafka_consumer_group", "photo-mood-orchestrator")
	v.SetDefault("rabbitmq_url", def.RabbitMQURL)
	v.SetDefault("nats_url", def.NATSURL)
	v.SetDefault("aws_region", def.AWSRegion)
	v.SetDefault("aws_account_id", def.AWSAccountID)
	v.SetDefault("aws_access_key_id", def.AWSAccessKeyID)
	v.SetDefault("aws_secret_access_key", def.AWSSecretAccessKey)
	v.SetDefault("aws_endpoint", def.AWSEndpoint)
	v.SetDefault("http_address", def.HTTPAddress)
	v.SetDefault("max_upload_bytes", def.MaxUploadBytes)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("dispatch_attempts", def.DispatchAttempts)
	v.SetDefault("dispatch_interval", def.DispatchInterval)
	v.SetDefault("metrics_enabled", def.MetricsEnabled)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file %s: %w", file, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Service routes do not map cleanly onto flat env vars, so the default
	// fan-out applies unless a config file provides its own list.
	if len(cfg.Services) == 0 {
		cfg.Services = def.Services
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
