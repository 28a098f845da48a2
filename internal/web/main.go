// Package web wires the Fiber application: middleware, handler registration
// and graceful shutdown.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	fiberlogger "github.com/CompliTrack/CompliTrack/internal/logger/adapter/fiber"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/admin/roleprofile"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/admin/user"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/audit"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/completion"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/dashboard"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/document"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/login"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/logout"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/module"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/rolechange"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/shift"
)

// CheckAlivePath is the liveness probe path.
const CheckAlivePath = "/checkalive"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "CompliTrack",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	// access log middleware
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
	}))

	// session auth middleware
	app.Use(AuthMiddleware)

	// Initialize auth service
	authService := auth.NewService(db)

	// init web service
	service := &Service{
		cfg:         cfg,
		App:         app,
		db:          db,
		authService: authService,
	}

	service.alive.Store(true)

	// liveness probe for load balancers
	app.Get(CheckAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
		}

		return c.SendString("OK")
	})

	// Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// init handlers (they register their own routes with permission checks)
	if err := login.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	if err := logout.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init logout handler")
	}

	rolechange.Handler.Init(app, cfg, db, authService)
	completion.Handler.Init(app, cfg, db, authService)
	dashboard.Handler.Init(app, cfg, db, authService)
	user.Handler.Init(app, cfg, db, authService)
	roleprofile.Handler.Init(app, cfg, db, authService)
	document.Handler.Init(app, cfg, db, authService)
	module.Handler.Init(app, cfg, db, authService)
	shift.Handler.Init(app, cfg, db, authService)
	audit.Handler.Init(app, cfg, db, authService)

	return service
}
