package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/scipunch/subfeed/aggregator"
	"github.com/scipunch/subfeed/cache"
	"github.com/scipunch/subfeed/config"
	"github.com/scipunch/subfeed/feed"
	"github.com/scipunch/subfeed/fetcher"
	"github.com/scipunch/subfeed/filter"
	"github.com/scipunch/subfeed/logging"
	"github.com/scipunch/subfeed/paginator"
	"github.com/scipunch/subfeed/subscription"
)

func main() {
	if err := rootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "subfeed",
		Usage: "A merged timeline of the channels you subscribe to",
		Description: `Fetches the video feed of every subscribed channel, caches it with
		randomized expiry, filters out short-form clips and serves one
		chronological timeline with cursor pagination.

		Configuration is read from the TOML file given by --config. A default
		file is written on first run.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath(),
				Usage:   "path to a TOML config",
				EnvVars: []string{"SUBFEED_CONFIG"},
			},
		},
		Before: func(ctx *cli.Context) error {
			conf, err := loadConfig(ctx.String("config"))
			if err != nil {
				return err
			}
			if _, err := logging.Setup(conf.Env, conf.LogLevel); err != nil {
				slog.Warn("falling back to info logging", "error", err)
			}
			ctx.App.Metadata = map[string]any{"config": conf}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			feedCmd(),
			subscribeCmd(),
			unsubscribeCmd(),
			subscriptionsCmd(),
			cacheCmd(),
			credentialsCmd(),
		},
	}
}

// loadConfig reads the config and creates the default one if it is missing
func loadConfig(cfgPath string) (config.Config, error) {
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			return conf, fmt.Errorf("failed to write default config with %w", err)
		}
		return conf, nil
	}
	if err != nil {
		return conf, fmt.Errorf("failed to read config with %w", err)
	}
	return conf, nil
}

func configFrom(ctx *cli.Context) config.Config {
	return ctx.App.Metadata["config"].(config.Config)
}

func loadCredentials() (config.Credentials, error) {
	creds, err := config.ReadCredentials(config.DefaultCredentialsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return creds, fmt.Errorf("failed to read credentials: %w", err)
	}
	return creds, nil
}

// pipeline is the wired feed service together with what it holds open
type pipeline struct {
	service *feed.Service
	backend cache.Backend
	subs    *subscription.Store
}

func (p *pipeline) Close() {
	if err := p.backend.Close(); err != nil {
		slog.Warn("failed to close cache backend", "error", err)
	}
	if err := p.subs.Close(); err != nil {
		slog.Warn("failed to close subscription database", "error", err)
	}
}

func openBackend(conf config.Config) (cache.Backend, error) {
	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	if conf.Cache.Backend == config.RedisBackend {
		zl, err := logging.NewZap(conf.Env)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis logger: %w", err)
		}
		redis.SetLogger(logging.NewRedisLogger(zl))
	}

	backend, err := cache.OpenBackend(conf.Cache, creds.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return backend, nil
}

func openPipeline(ctx context.Context, conf config.Config) (*pipeline, error) {
	backend, err := openBackend(conf)
	if err != nil {
		return nil, err
	}

	subs, err := subscription.Open(conf.DatabasePath)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to initialize database schema with %w", err)
	}

	if pinger, ok := backend.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			slog.Warn("cache backend unreachable, requests will fetch directly", "backend", conf.Cache.Backend, "error", err)
		}
	}

	feeds := cache.New(fetcher.FromConfig(conf.Fetch), backend, cache.OptionsFromConfig(conf.Cache))
	service := feed.NewService(
		feeds,
		subs,
		aggregator.New(filter.NewShortForm(conf.Filter)),
		paginator.New(conf.Feed.PageSizeDefault, conf.Feed.PageSizeMax),
		feed.Options{
			Concurrency:   conf.Fetch.Concurrency,
			IncludeShorts: conf.Feed.IncludeShorts,
		},
	)

	slog.Info("pipeline initialized",
		"cache", conf.Cache.Backend,
		"base_ttl", conf.Cache.BaseTTL.Duration,
		"splay_max", conf.Cache.SplayMax.Duration,
		"concurrency", conf.Fetch.Concurrency)

	return &pipeline{service: service, backend: backend, subs: subs}, nil
}
