package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"schroedinger/internal/core"
	"schroedinger/internal/processor"
	"schroedinger/internal/service"
)

const rateLimitRate = 10 // req/sec

// Config tunes the HTTP surface.
type Config struct {
	DevMode   bool
	RateLimit int  // requests per second per client, 0 for the default
	AccessLog bool // fiber access log on stdout
}

// HTTPHandler handles HTTP requests and routes them to the processor
type HTTPHandler struct {
	proc *processor.Processor
	svc  *service.Service
}

func NewHTTPHandler(proc *processor.Processor, svc *service.Service) *HTTPHandler {
	return &HTTPHandler{proc: proc, svc: svc}
}

func NewFiberApp(proc *processor.Processor, svc *service.Service, cfg Config) *fiber.App {
	h := NewHTTPHandler(proc, svc)

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          35 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: !cfg.DevMode,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")

	maxReq := cfg.RateLimit
	if maxReq <= 0 {
		maxReq = rateLimitRate
		if cfg.DevMode {
			maxReq = rateLimitRate * 2
		}
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrCodeRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	api.Use(contentTypeValidator)
	api.Use(validationMiddleware)

	api.Post("/games", h.CreateGame)
	api.Get("/games/:gameId", h.GetGame)
	api.Delete("/games/:gameId", h.DeleteGame)
	api.Post("/games/:gameId/moves", h.MakeMove)
	api.Post("/games/:gameId/auto", h.AutoMove)
	api.Get("/games/:gameId/legal", h.LegalMoves)
	api.Get("/games/:gameId/natures/:square", h.Natures)
	api.Get("/games/:gameId/outcome", h.Outcome)
	api.Get("/games/:gameId/board", h.GetBoard)

	return app
}

// contentTypeValidator ensures POST requests with a body are JSON
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrCodeInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrCodeInternalError,
	}

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrCodeGameNotFound
		case fiber.StatusBadRequest:
			response.Code = core.ErrCodeInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrCodeRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// statusFor maps a processor error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case core.ErrCodeGameNotFound:
		return fiber.StatusNotFound
	case core.ErrCodeInvalidMove:
		return fiber.StatusUnprocessableEntity
	case core.ErrCodeNotHumanTurn, core.ErrCodeGameOver, core.ErrCodeGameCorrupt:
		return fiber.StatusConflict
	case core.ErrCodeInconclusive, core.ErrCodeResourceLimit:
		return fiber.StatusServiceUnavailable
	case core.ErrCodeInvalidRequest:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *HTTPHandler) respond(c *fiber.Ctx, resp processor.ProcessorResponse, okStatus int) error {
	if !resp.Success {
		return c.Status(statusFor(resp.Error.Code)).JSON(resp.Error)
	}
	if resp.Data == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	if resp.Pending {
		c.Set("X-Pending", "true")
	}
	return c.Status(okStatus).JSON(resp.Data)
}

func badGameID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
		Error:   "invalid game ID format",
		Code:    core.ErrCodeInvalidRequest,
		Details: "game ID must be a valid UUID",
	})
}

// validatedBody returns the body stored by validationMiddleware.
func validatedBody[T any](c *fiber.Ctx) (T, error) {
	var zero T
	if validated, ok := c.Locals("validated").(bool); !ok || !validated {
		return zero, c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation bypass detected",
			Code:  core.ErrCodeInternalError,
		})
	}
	body, ok := c.Locals("validatedBody").(*T)
	if !ok || body == nil {
		return zero, c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation data missing",
			Code:  core.ErrCodeInternalError,
		})
	}
	return *body, nil
}

// Health check endpoint
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"time":    time.Now().Unix(),
		"storage": h.svc.GetStorageHealth(),
	})
}

// CreateGame creates a new game with specified player types
func (h *HTTPHandler) CreateGame(c *fiber.Ctx) error {
	req, err := validatedBody[core.CreateGameRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewCreateGameCommand(req))
	return h.respond(c, resp, fiber.StatusCreated)
}

// GetGame returns the game state. With wait=true it long-polls until the
// ply differs from moveCount.
func (h *HTTPHandler) GetGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}

	if c.Query("wait", "false") == "true" {
		ply, err := strconv.Atoi(c.Query("moveCount", "-1"))
		if err != nil {
			ply = -1
		}
		// Bounded by the registry timeout; fasthttp gives no per-request
		// disconnect signal.
		notify, err := h.svc.WaitForMove(c.UserContext(), gameID, ply)
		if err == nil {
			<-notify
		}
	}

	resp := h.proc.Execute(c.UserContext(), processor.NewGetGameCommand(gameID))
	return h.respond(c, resp, fiber.StatusOK)
}

// DeleteGame removes a game from memory
func (h *HTTPHandler) DeleteGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewDeleteGameCommand(gameID))
	return h.respond(c, resp, fiber.StatusNoContent)
}

// MakeMove submits a human move
func (h *HTTPHandler) MakeMove(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}
	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewMakeMoveCommand(gameID, req))
	return h.respond(c, resp, fiber.StatusOK)
}

// AutoMove queues an automatic move for the side to move
func (h *HTTPHandler) AutoMove(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewAutoMoveCommand(gameID))
	return h.respond(c, resp, fiber.StatusAccepted)
}

// LegalMoves lists legal moves, optionally from one square
func (h *HTTPHandler) LegalMoves(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewLegalMovesCommand(gameID, c.Query("from")))
	return h.respond(c, resp, fiber.StatusOK)
}

// Natures narrows and returns the candidate natures of the piece on a square
func (h *HTTPHandler) Natures(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewNaturesCommand(gameID, c.Params("square")))
	return h.respond(c, resp, fiber.StatusOK)
}

// Outcome evaluates whether the game is over
func (h *HTTPHandler) Outcome(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewOutcomeCommand(gameID))
	return h.respond(c, resp, fiber.StatusOK)
}

// GetBoard returns ASCII representation of the board
func (h *HTTPHandler) GetBoard(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return badGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewGetBoardCommand(gameID, c.Query("mode")))
	return h.respond(c, resp, fiber.StatusOK)
}
