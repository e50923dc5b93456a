package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"
)

type Config struct {
	Aws struct {
		Region string

		DynamoDb struct {
			Endpoint  string
			TableName string `mapstructure:"table_name"`
		}

		Sqs struct {
			Endpoint string
		}
	}
	Processor struct {
		MaxConcurrency int `mapstructure:"max_concurrency"`
	}
	Failures struct {
		QueueNames []string `mapstructure:"queue_names"`
	}
	Checkpoint struct {
		ConnectionString string `mapstructure:"connection_string"`
		ConsumerName     string `mapstructure:"consumer_name"`
	}
	Log struct {
		Level string
	}
	Tracing struct {
		Enabled bool
	}
}

var defaults = map[string]interface{}{
	"aws.region":                   "us-east-1",
	"aws.dynamodb.endpoint":        "",
	"aws.dynamodb.table_name":      "SensorData",
	"aws.sqs.endpoint":             "",
	"processor.max_concurrency":    32,
	"failures.queue_names":         []string{},
	"checkpoint.connection_string": "",
	"checkpoint.consumer_name":     "sensor-data",
	"log.level":                    "info",
	"tracing.enabled":              true,
}

// Load reads config.toml from the given paths (the working directory when
// none are given) and overlays environment variables, so aws.dynamodb.table_name
// is AWS_DYNAMODB_TABLE_NAME. A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Ignore, don't need config file for every deployment
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// DynamoDbConfig is the client config for the readings table.
func (c *Config) DynamoDbConfig() *aws.Config {
	return clientConfig(c.Aws.Region, c.Aws.DynamoDb.Endpoint)
}

func (c *Config) SqsConfig() *aws.Config {
	return clientConfig(c.Aws.Region, c.Aws.Sqs.Endpoint)
}

func clientConfig(region string, endpoint string) *aws.Config {
	cfg := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	return cfg
}

// Logger returns a JSON logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(c.Log.Level)}))
}

// ParseLevel falls back to info for anything it does not recognize.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
