package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"stlquote/internal/config"
	"stlquote/internal/http/handlers"
	"stlquote/internal/http/middleware"
)

type Deps struct {
	Config  config.Config
	Service handlers.Analyzer
	// Tokens is nil when API key auth is disabled.
	Tokens middleware.TokenStore
}

// New creates and configures the Fiber app.
func New(d Deps) *fiber.App {
	bodyLimit := d.Config.Server.BodyLimitBytes
	if bodyLimit <= 0 {
		bodyLimit = 64 * 1024
	}

	app := fiber.New(fiber.Config{
		Prefork:               d.Config.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          handlers.ErrorHandler,
	})

	middleware.Register(app, d.Config, d.Tokens)

	app.Post("/analyze", handlers.NewAnalyzeHandler(d.Service).Handle)
	app.Get("/ops/monitor", monitor.New(monitor.Config{Title: "stlquote"}))

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}
