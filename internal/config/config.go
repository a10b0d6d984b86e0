package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vtokenScope/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	Instance      string
	Tokens        []model.Token
	PollInterval  time.Duration
	PeriodBlocks  uint64
	StoragePallet string
	StorageItem   string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
	Out           string
	KafkaBrokers  []string
	KafkaTopic    string
	MetricsAddr   string
}

// Load merges config file, environment variables, and flags into Config.
// Variables from a .env file in the working directory are applied first
// without overriding the process environment.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("VTOKEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("instance", "default")
	v.SetDefault("poll-interval", 6*time.Second)
	v.SetDefault("period-blocks", uint64(50400))
	v.SetDefault("storage-pallet", "Convert")
	v.SetDefault("storage-item", "Pool")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("out", "./data/snapshots.jsonl")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	tokens, err := tokenList(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		Instance:      v.GetString("instance"),
		Tokens:        tokens,
		PollInterval:  v.GetDuration("poll-interval"),
		PeriodBlocks:  v.GetUint64("period-blocks"),
		StoragePallet: v.GetString("storage-pallet"),
		StorageItem:   v.GetString("storage-item"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
		Out:           v.GetString("out"),
		KafkaBrokers:  listValue(v, "kafka-brokers"),
		KafkaTopic:    v.GetString("kafka-topic"),
		MetricsAddr:   v.GetString("metrics-addr"),
	}

	return cfg, nil
}

// listValue reads a list given either as a sequence or as a
// comma-separated string. Blank items are dropped.
func listValue(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range cast.ToStringSlice(v.Get(key)) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// tokenList validates the configured universe. An absent list stays nil so
// callers fall back to the default universe.
func tokenList(v *viper.Viper) ([]model.Token, error) {
	items := listValue(v, "tokens")
	if len(items) == 0 {
		return nil, nil
	}
	tokens, err := model.ParseTokens(items)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	return tokens, nil
}
