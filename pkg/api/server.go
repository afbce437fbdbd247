// Package api serves the bridge status over HTTP and websockets.
package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	customlog "github.com/open-teleop/simbridge/pkg/log"
)

// StatusSource provides the exchange status endpoints.
type StatusSource interface {
	CycleSource
	GetStatusHandler(c *fiber.Ctx) error
	GetObstaclesHandler(c *fiber.Ctx) error
}

// NewApp builds the fiber app with the health, status, obstacle and cycle
// stream routes.
func NewApp(source StatusSource, logger customlog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "simbridge",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "simbridge",
		})
	})

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	v1 := app.Group("/api/v1")
	v1.Get("/status", source.GetStatusHandler)
	v1.Get("/obstacles", source.GetObstaclesHandler)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/cycles", websocket.New(func(conn *websocket.Conn) {
		CycleStreamHandler(conn, source, logger)
	}))

	return app
}

// customErrorHandler renders every error as JSON.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
