package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"stlquote/internal/domain"
	"stlquote/internal/infra/fetch"
	"stlquote/internal/infra/logging"
)

// Analyzer prices the mesh behind a URL.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (domain.Quote, error)
}

// AnalyzeHandler serves POST /analyze.
type AnalyzeHandler struct {
	svc Analyzer
}

func NewAnalyzeHandler(svc Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{svc: svc}
}

// StatusFor maps a failure kind to the HTTP status returned to the caller.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest, domain.KindDownload:
		return fiber.StatusBadRequest
	case domain.KindTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case domain.KindParse, domain.KindGeometry:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// Handle decodes {"fileUrl": "..."} and responds with the quote.
func (h *AnalyzeHandler) Handle(c *fiber.Ctx) error {
	var req domain.QuoteRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, `Invalid request body: expected {"fileUrl": "<url>"}`)
	}

	start := time.Now()
	q, err := h.svc.Analyze(c.UserContext(), req.FileURL)
	if err != nil {
		kind := domain.KindOf(err)
		logging.Warn("Quote failed",
			"kind", kind.String(),
			"url", fetch.TruncateURL(req.FileURL),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"duration", time.Since(start),
			"error", err,
		)
		msg := err.Error()
		if kind == domain.KindInternal {
			msg = domain.ErrInternal.Error()
		}
		return fiber.NewError(StatusFor(kind), msg)
	}

	return c.JSON(q)
}

// ErrorHandler renders every error as {"detail": "<message>"}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{"detail": msg})
}
