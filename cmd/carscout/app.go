package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abdhe/carscout/internal/config"
	"github.com/abdhe/carscout/internal/logger"
	"github.com/abdhe/carscout/pkg/cache"
	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/provider"
	"github.com/abdhe/carscout/pkg/resilience"
	"github.com/abdhe/carscout/pkg/server"
)

// flagKeys maps command-line flag names to the config keys they override.
var flagKeys = map[string]string{
	"log-level":  "server.log_level",
	"log-format": "server.log_format",
	"model":      "llm.model",
	"grpc-port":  "server.grpc_port",
	"http-port":  "server.http_port",
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configFile string
	quiet      bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "carscout",
		Short:         "Car ratings, descriptions and pros/cons from Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "config file (default ./carscout.yaml if present)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json, text")
	pf.String("model", "", "Gemini model name")

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newTUICmd(a),
		newGenerateCmd(a),
	)
	return root
}

// load reads the configuration and sets up logging. Commands that own the
// terminal set quiet before this runs.
func (a *app) load(fs *pflag.FlagSet) error {
	flags := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil && f.Changed {
			flags[key] = f
		}
	}

	cfg, err := config.Load(a.configFile, flags)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.quiet {
		a.logger = logger.Discard()
		slog.SetDefault(a.logger)
		return nil
	}
	a.logger, err = logger.Setup(cfg.Server, os.Stderr)
	return err
}

// backend is a Lookup plus a Generator, local or remote, with cleanup.
type backend struct {
	lookup  carinfo.Lookup
	gen     carinfo.Generator
	health  server.HealthFunc
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// open connects to a running server when addr is set and otherwise builds
// the in-process pipeline.
func (a *app) open(ctx context.Context, addr string) (*backend, error) {
	if addr != "" {
		c, err := server.Dial(addr)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("using remote server", "addr", addr)
		return &backend{lookup: c, gen: c, closers: []func() error{c.Close}}, nil
	}

	gen, err := newGenerationClient(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	b := &backend{gen: gen}
	opts := []carinfo.Option{carinfo.WithLogger(a.logger)}

	if a.cfg.Cache.Enabled() {
		rc := cache.NewRedisCache(cache.Options{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
			TTL:      a.cfg.Cache.TTL,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			a.logger.Warn("redis connection failed, cache disabled", "addr", a.cfg.Cache.RedisAddr, "error", err)
			_ = rc.Close()
		} else {
			opts = append(opts, carinfo.WithCache(rc))
			b.health = rc.Ping
			b.closers = append(b.closers, rc.Close)
			a.logger.Info("answer cache enabled", "addr", a.cfg.Cache.RedisAddr, "ttl", a.cfg.Cache.TTL)
		}
	}

	if a.cfg.Breaker.Enabled() {
		opts = append(opts, carinfo.WithBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: a.cfg.Breaker.FailureThreshold,
			Cooldown:         a.cfg.Breaker.Cooldown,
		})))
	}

	b.lookup = carinfo.NewService(gen, opts...)
	return b, nil
}

// newGenerationClient wires the key pool, HTTP transport and retry policy. An
// empty key list is allowed; the host may supply the credential.
func newGenerationClient(cfg *config.Config, l *slog.Logger) (*provider.Client, error) {
	if len(cfg.LLM.APIKeys) == 0 {
		l.Warn("no API keys configured, requests are sent with a blank key")
	}
	pool := resilience.NewKeyPool(cfg.LLM.APIKeys)
	transport := provider.NewHTTPTransport(
		provider.WithBaseURL(cfg.LLM.BaseURL),
		provider.WithModel(cfg.LLM.Model),
		provider.WithHTTPClient(&http.Client{Timeout: cfg.LLM.HTTPTimeout}),
		provider.WithKeyPool(pool),
	)
	l.Debug("generation client ready", "model", transport.Model(), "keys", pool.Size())
	return provider.NewClient(transport,
		provider.WithRetryConfig(cfg.LLM.RetryConfig()),
		provider.WithLogger(l),
	)
}
