package transport

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kgr0831/relay/internal/auth"
	"github.com/kgr0831/relay/internal/config"
	"github.com/kgr0831/relay/internal/metrics"
)

// Server wraps the fiber app, grounded on the teacher's internal/server/server.go
// (App construction, SetupMiddleware, SetupRoutes, signal-driven Start/Shutdown).
type Server struct {
	app        *fiber.App
	cfg        *config.Config
	logger     zerolog.Logger
	registry   *Registry
	metrics    *metrics.Handle
	auth       *auth.Manager
	sttFactory func(lang string, sampleRate int32) SpeakerSTT
}

// New builds a Server with every route wired. sttFactory may be nil,
// meaning every speaker connection is expected to submit ready-made
// transcript frames instead of raw PCM for server-side recognition;
// otherwise it builds one Recognizer per connection (a Recognizer carries
// per-connection root/version state and cannot be shared).
func New(cfg *config.Config, registry *Registry, m *metrics.Handle,
	sttFactory func(lang string, sampleRate int32) SpeakerSTT, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:           "relay",
		ServerHeader:      "relay",
		StrictRouting:     true,
		CaseSensitive:     true,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:      app,
		cfg:      cfg,
		logger:   log,
		registry: registry,
		metrics:  m,
		auth:       auth.NewManager(cfg.JWTSigningKey),
		sttFactory: sttFactory,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	s.app.Use(cors.New())
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	s.app.Get("/ws/speaker/:room", s.wsGate("speaker"), websocket.New(
		func(c *websocket.Conn) { s.handleSpeaker(c) },
		websocket.Config{ReadBufferSize: 1 << 16, WriteBufferSize: 1 << 16},
	))

	s.app.Get("/ws/listen/:room", s.wsGate("listener"), websocket.New(
		func(c *websocket.Conn) { s.handleListener(c) },
		websocket.Config{ReadBufferSize: 1 << 14, WriteBufferSize: 1 << 14},
	))
}

// wsGate rejects non-upgrade requests and, once the signing key is
// configured, unauthenticated ones; it resolves claims and hands them to
// the handler through Locals, which gofiber/contrib/websocket copies onto
// the Conn. Grounded on the teacher's /ws upgrade-check middleware in
// internal/server/server.go.
func (s *Server) wsGate(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		claims, err := s.resolveClaims(c, role)
		if err != nil {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}

// resolveClaims verifies the "token" query parameter against the configured
// signing key, or — in open (no-key) mode — builds claims straight from
// query parameters for local development.
func (s *Server) resolveClaims(c *fiber.Ctx, role string) (*auth.Claims, error) {
	if !s.auth.Open() {
		claims, err := s.auth.Verify(c.Query("token"))
		if err != nil {
			return nil, err
		}
		if claims.Role != role {
			return nil, fiber.ErrForbidden
		}
		return claims, nil
	}
	return &auth.Claims{
		RoomID:        c.Params("room"),
		Role:          role,
		Lang:          c.Query("lang"),
		ParticipantID: c.Query("participant_id", c.IP()),
	}, nil
}

// Start listens until a SIGINT/SIGTERM triggers a graceful shutdown,
// mirroring the teacher's signal-handling goroutine in server.go's Start.
func (s *Server) Start() error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		s.logger.Info().Msg("shutdown signal received")
		s.registry.ShutdownAll()
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			s.logger.Error().Err(err).Msg("fiber shutdown error")
		}
	}()

	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown stops the app outside of the signal-driven path.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
