// Package server exposes the timeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scipunch/subfeed/paginator"
)

// FeedService pages a user's timeline
type FeedService interface {
	GetUserFeed(ctx context.Context, userID, channelID, cursorToken string, limit *int) (paginator.Result, error)
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Feed FeedService

	// Checked by /readyz, optional
	Ready Pinger
}

// New returns the fiber app serving the feed API
func New(config Config) *fiber.App {
	// Immutable: query values outlive the handler in background refreshes
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          errorHandler,
	})

	app.Use(requestid.New())
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		slog.Info("request",
			"method", c.Method(),
			"route", c.Route().Path,
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
			"request_id", c.Locals("requestid"),
		)
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Get("/readyz", func(c *fiber.Ctx) error {
		if config.Ready != nil {
			if err := config.Ready.Ping(c.UserContext()); err != nil {
				slog.Warn("readiness check failed", "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
			}
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/api/users/:user/feed", func(c *fiber.Ctx) error {
		// An absent limit selects the default, limit=0 is passed on and rejected
		var limit *int
		if c.Context().QueryArgs().Has("limit") {
			v, err := strconv.Atoi(c.Query("limit"))
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
			}
			limit = &v
		}

		res, err := config.Feed.GetUserFeed(c.UserContext(), c.Params("user"), c.Query("channel_id"), c.Query("cursor"), limit)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var (
		decodeErr *paginator.CursorDecodeError
		limitErr  *paginator.LimitOutOfRangeError
		fiberErr  *fiber.Error
	)

	status := fiber.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.As(err, &decodeErr):
		status, message = fiber.StatusBadRequest, "invalid cursor"
	case errors.As(err, &limitErr):
		status, message = fiber.StatusBadRequest, limitErr.Error()
	case errors.As(err, &fiberErr):
		status, message = fiberErr.Code, fiberErr.Message
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}
