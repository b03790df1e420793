package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abdhe/carscout/pkg/provider"
)

// EnvPrefix prefixes every environment variable, e.g. CARSCOUT_LLM_API_KEYS.
const EnvPrefix = "CARSCOUT"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.request_timeout", "30s")

	v.SetDefault("llm.base_url", provider.DefaultBaseURL)
	v.SetDefault("llm.model", provider.DefaultModel)
	v.SetDefault("llm.api_keys", []string{})
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.initial_delay", "1s")
	v.SetDefault("llm.http_timeout", "60s")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", "30s")
}

// Load builds the configuration. file may be empty, in which case an
// optional carscout.yaml in the working directory is read. flags maps config
// keys (e.g. "server.grpc_port") to command-line flags that override them
// when set.
func Load(file string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("carscout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("config: bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.LLM.APIKeys = cleanKeys(cfg.LLM.APIKeys)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// cleanKeys accepts both list and comma-separated forms, trimming blanks
// and duplicates.
func cleanKeys(keys []string) []string {
	parts := lo.FlatMap(keys, func(k string, _ int) []string {
		return strings.Split(k, ",")
	})
	parts = lo.Map(parts, func(k string, _ int) string {
		return strings.TrimSpace(k)
	})
	return lo.Uniq(lo.Compact(parts))
}
