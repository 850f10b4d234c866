package stub

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Its-donkey/compass-auth/internal/config"
	"github.com/Its-donkey/compass-auth/logging"
)

// Server wires the stub handlers onto a fiber app.
type Server struct {
	app    *fiber.App
	users  *UserStore
	tokens *TokenIssuer
	logger *logging.Logger
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// New builds the stub backend from cfg.
func New(cfg config.StubConfig, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		users:  NewUserStore(cfg.BcryptCost),
		tokens: NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL),
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "compass-auth-stub",
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(s.requestLogger)
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + logging.RequestIDHeader,
		AllowMethods:  "GET,POST,OPTIONS",
		ExposeHeaders: logging.RequestIDHeader,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	auth := app.Group("/api/auth")
	auth.Post("/signup", s.signup)
	auth.Post("/login", s.login)
	auth.Post("/logout", s.requireToken, s.logout)

	app.Get("/oauth2/authorization/:provider", s.oauthRedirect)

	s.app = app
	return s
}

// App exposes the fiber app for Listen and app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Users exposes the account store.
func (s *Server) Users() *UserStore {
	return s.users
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	requestID := strings.TrimSpace(c.Get(logging.RequestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(logging.RequestIDHeader, requestID)
	c.Locals("requestID", requestID)

	start := time.Now()
	err := c.Next()
	if err != nil {
		// Run the error handler now so the logged status is the final one.
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}

	status := c.Response().StatusCode()
	log := s.logger.WithRequestID(requestID).WithCategory("stub").WithFields(map[string]any{
		"method":      c.Method(),
		"path":        c.Path(),
		"status":      status,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if status >= 500 {
		log.Error("request failed", err)
	} else {
		log.Info("request handled")
	}
	return nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(errorResponse{Message: msg})
}

func writeError(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(errorResponse{Message: msg})
}

// POST /api/auth/signup
func (s *Server) signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := s.users.Create(req.Email, req.Password, req.Nickname)
	switch {
	case errors.Is(err, ErrEmailTaken):
		return writeError(c, fiber.StatusConflict, ErrEmailTaken.Error())
	case err != nil:
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(userResponse{
		ID:       user.ID,
		Email:    user.Email,
		Nickname: user.Nickname,
	})
}

// POST /api/auth/login
func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, ErrInvalidCredentials.Error())
	}

	access, refresh, err := s.tokens.Issue(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.accessTTL.Seconds()),
	})
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return writeError(c, fiber.StatusUnauthorized, "authorization header is required")
	}
	claims, err := s.tokens.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, err.Error())
	}
	c.Locals("claims", claims)
	return c.Next()
}

// POST /api/auth/logout
func (s *Server) logout(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*jwt.RegisteredClaims)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, ErrInvalidToken.Error())
	}
	s.tokens.Revoke(claims)
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /oauth2/authorization/:provider
func (s *Server) oauthRedirect(c *fiber.Ctx) error {
	provider := strings.ToLower(c.Params("provider"))
	return writeError(c, fiber.StatusNotImplemented, provider+" login is not available in the development backend")
}
