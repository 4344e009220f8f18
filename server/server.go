// Package server exposes the chat pipeline over HTTP with Fiber. Pipeline
// outcomes, refusals and apologies included, are 200s; only malformed
// requests and duplicate user ids are client errors.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

type Config struct {
	Port               string        `default:"8080"`
	Environment        string        `default:"development"`
	CorsAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" split_words:"true" default:"*"`
	ReadTimeout        time.Duration `split_words:"true" default:"15s"`
	WriteTimeout       time.Duration `split_words:"true" default:"120s"`
}

// ChatPipeline is the server's view of the query flow.
type ChatPipeline interface {
	Handle(ctx context.Context, text, userID string) contractx.FinalResponse
}

type Server struct {
	app      *fiber.App
	cfg      Config
	pipeline ChatPipeline
	accounts contractx.AccountStore
	validate *validator.Validate
	log      zerolog.Logger
}

func New(cfg Config, pipeline ChatPipeline, accounts contractx.AccountStore) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("%w: chat pipeline is required", contractx.ErrValidation)
	}
	if accounts == nil {
		return nil, fmt.Errorf("%w: account store is required", contractx.ErrValidation)
	}

	app := fiber.New(fiber.Config{
		AppName:      "paylane-agent-swarm",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	s := &Server{
		app:      app,
		cfg:      cfg,
		pipeline: pipeline,
		accounts: accounts,
		validate: validator.New(),
		log:      logx.Component("server"),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Post("/chat", s.handleChat)
	s.app.Post("/users", s.handleCreateUser)
}

// Run blocks until the listener stops.
func (s *Server) Run() error {
	s.log.Info().Str("port", s.cfg.Port).Str("environment", s.cfg.Environment).Msg("http server starting")
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber instance for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,min=1"`
	UserID  string `json:"user_id" validate:"required,min=1"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":      "healthy",
		"environment": s.cfg.Environment,
	})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	req.Message = strings.TrimSpace(req.Message)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "message and user_id are required"})
	}

	resp := s.pipeline.Handle(c.UserContext(), req.Message, req.UserID)
	return c.Status(fiber.StatusOK).JSON(resp)
}

type CreateUserRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name" validate:"required,min=1"`
	Email  string `json:"email" validate:"omitempty,email"`
	Plan   string `json:"plan"`
}

func (s *Server) handleCreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "name is required"})
	}

	if req.UserID == "" {
		req.UserID = uuid.NewString()[:8]
	}
	plan := req.Plan
	if plan == "" {
		plan = "basic"
	}

	acc := &contractx.Account{
		UserID:  req.UserID,
		Name:    req.Name,
		Email:   req.Email,
		Status:  "active",
		Plan:    plan,
		Balance: 0,
	}
	if err := s.accounts.CreateAccount(c.UserContext(), acc); err != nil {
		if errors.Is(err, contractx.ErrDuplicate) {
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: fmt.Sprintf("user %s already exists", req.UserID)})
		}
		s.log.Error().Err(err).Str("user_id", req.UserID).Msg("create user failed")
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "could not create user"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user_id": acc.UserID,
		"name":    acc.Name,
		"status":  acc.Status,
		"plan":    acc.Plan,
		"balance": acc.Balance,
	})
}
