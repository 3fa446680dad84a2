package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/scipunch/subfeed/cache"
	"github.com/scipunch/subfeed/config"
	"github.com/scipunch/subfeed/server"
	"github.com/scipunch/subfeed/subscription"
)

var userFlag = &cli.StringFlag{
	Name:     "user",
	Aliases:  []string{"u"},
	Usage:    "user id",
	Required: true,
	EnvVars:  []string{"SUBFEED_USER"},
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the timeline over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "address to listen on, overrides server.listen",
				EnvVars: []string{"SUBFEED_LISTEN"},
			},
		},
		Action: func(c *cli.Context) error {
			conf := configFrom(c)
			listen := conf.Server.Listen
			if c.IsSet("listen") {
				listen = c.String("listen")
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := openPipeline(ctx, conf)
			if err != nil {
				return err
			}
			defer p.Close()

			cfg := server.Config{Feed: p.service}
			if pinger, ok := p.backend.(server.Pinger); ok {
				cfg.Ready = pinger
			}
			app := server.New(cfg)

			errCh := make(chan error, 1)
			go func() {
				slog.Info("starting server", "listen", listen)
				errCh <- app.Listen(listen)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server stopped with %w", err)
			case <-ctx.Done():
				slog.Info("interrupted, shutting down gracefully")
				return app.ShutdownWithTimeout(30 * time.Second)
			}
		},
	}
}

func feedCmd() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Print one page of a user's timeline as JSON",
		Flags: []cli.Flag{
			userFlag,
			&cli.StringFlag{Name: "channel", Usage: "only this subscribed channel"},
			&cli.StringFlag{Name: "cursor", Usage: "next cursor of the previous page"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "page size, feed.page_size_default when unset"},
		},
		Action: func(c *cli.Context) error {
			p, err := openPipeline(c.Context, configFrom(c))
			if err != nil {
				return err
			}
			defer p.Close()

			var limit *int
			if c.IsSet("limit") {
				n := c.Int("limit")
				limit = &n
			}

			res, err := p.service.GetUserFeed(c.Context, c.String("user"), c.String("channel"), c.String("cursor"), limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func openSubscriptions(c *cli.Context) (*subscription.Store, error) {
	return subscription.Open(configFrom(c).DatabasePath)
}

func subscribeCmd() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Add channels to a user's subscriptions",
		ArgsUsage: "<channel id>...",
		Flags: []cli.Flag{
			userFlag,
			&cli.StringFlag{Name: "title", Usage: "display title, only with a single channel"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("at least one channel id is required")
			}

			subs, err := openSubscriptions(c)
			if err != nil {
				return err
			}
			defer subs.Close()

			var errs []error
			for _, channelID := range c.Args().Slice() {
				if err := subs.Add(c.Context, c.String("user"), channelID, c.String("title")); err != nil {
					errs = append(errs, err)
					continue
				}
				slog.Info("subscribed", "user", c.String("user"), "channel", channelID)
			}
			return errors.Join(errs...)
		},
	}
}

func unsubscribeCmd() *cli.Command {
	return &cli.Command{
		Name:      "unsubscribe",
		Usage:     "Remove a channel from a user's timeline",
		ArgsUsage: "<channel id>",
		Flags:     []cli.Flag{userFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("exactly one channel id is required")
			}

			subs, err := openSubscriptions(c)
			if err != nil {
				return err
			}
			defer subs.Close()

			return subs.Deactivate(c.Context, c.String("user"), c.Args().First())
		},
	}
}

func subscriptionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "subscriptions",
		Usage: "List a user's subscriptions",
		Flags: []cli.Flag{userFlag},
		Action: func(c *cli.Context) error {
			subs, err := openSubscriptions(c)
			if err != nil {
				return err
			}
			defer subs.Close()

			list, err := subs.List(c.Context, c.String("user"))
			if err != nil {
				return err
			}
			for _, s := range list {
				state := "active"
				if !s.Active {
					state = "inactive"
				}
				fmt.Printf("%s\t%s\t%s\n", s.ChannelID, state, s.Title)
			}
			return nil
		},
	}
}

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or empty the feed cache",
		Subcommands: []*cli.Command{
			{
				Name:  "clean",
				Usage: "Remove all cache entries",
				Action: func(c *cli.Context) error {
					backend, err := openBackend(configFrom(c))
					if err != nil {
						return err
					}
					defer backend.Close()

					removed, err := backend.Clear(c.Context)
					if err != nil {
						return fmt.Errorf("failed to clear cache: %w", err)
					}
					slog.Info("cache cleared successfully", "removed", removed)
					return nil
				},
			},
			{
				Name:  "purge",
				Usage: "Remove entries past their stale retention (sqlite backend)",
				Action: func(c *cli.Context) error {
					return withSQLiteCache(c, func(ctx context.Context, store *cache.SQLiteStore) error {
						removed, err := store.Purge(ctx)
						if err != nil {
							return err
						}
						slog.Info("cache purged", "removed", removed)
						return nil
					})
				},
			},
			{
				Name:  "stats",
				Usage: "Show cache statistics (sqlite backend)",
				Action: func(c *cli.Context) error {
					return withSQLiteCache(c, func(ctx context.Context, store *cache.SQLiteStore) error {
						stats, err := store.Stats(ctx)
						if err != nil {
							return fmt.Errorf("failed to get cache stats: %w", err)
						}
						fmt.Printf("entries:\t%d\nlive:\t%d\nstale:\t%d\n", stats.Entries, stats.LiveEntries, stats.Entries-stats.LiveEntries)
						if !stats.OldestEntry.IsZero() {
							fmt.Printf("oldest:\t%s\n", stats.OldestEntry.Format(time.RFC3339))
						}
						return nil
					})
				},
			},
		},
	}
}

func withSQLiteCache(c *cli.Context, fn func(context.Context, *cache.SQLiteStore) error) error {
	conf := configFrom(c)
	if conf.Cache.Backend != config.SQLiteBackend {
		return fmt.Errorf("only supported by the sqlite backend, configured: %s", conf.Cache.Backend)
	}

	backend, err := openBackend(conf)
	if err != nil {
		return err
	}
	defer backend.Close()

	return fn(c.Context, backend.(*cache.SQLiteStore))
}

func credentialsCmd() *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "Store redis credentials outside the config file",
		Action: func(c *cli.Context) error {
			credPath := config.DefaultCredentialsPath()
			creds, err := loadCredentials()
			if err != nil {
				return err
			}

			redisCreds, err := config.PromptRedisCredentials(os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			creds.Redis = redisCreds

			if err := config.WriteCredentials(credPath, creds); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}
			fmt.Printf("Credentials saved to %s\n", credPath)
			return nil
		},
	}
}
