// Package daemon boots the application: logging, database, session storage
// and the web service.
package daemon

import (
	"fmt"

	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/db/dsn"
	"github.com/CompliTrack/CompliTrack/internal/db/models"
	"github.com/CompliTrack/CompliTrack/internal/logger"
	"github.com/CompliTrack/CompliTrack/internal/web"
	"github.com/CompliTrack/CompliTrack/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	dbDriver := gormpostgres.Open(dsn.Create(cfg))

	db, err := gorm.Open(dbDriver, &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.Department{},
		&models.RoleAssignment{},
		&models.UserAssignment{},
		&models.UserTrainingCompletion{},
		&models.UserRoleChangeLog{},
		&models.TrainingLog{},
		&models.TrainingModule{},
		&models.Document{},
		&models.ModuleDocument{},
		&models.Shift{},
		&models.ShiftAssignment{},
		&models.Audit{},
		&models.Issue{},
	); err != nil {
		panic("failed to migrate database")
	}

	seed(cfg, db)

	// Initialize fiber session store
	sessionStorage := sessionpostgres.New(sessionpostgres.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		Username: cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
		Table:    "sessions",
		SSLMode:  cfg.DB.SSLMode,
	})

	session.Init(sessionStorage)

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db),
	}
}
