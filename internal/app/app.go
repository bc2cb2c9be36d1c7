package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/config"
	"github.com/Caqil/iprofit-admin-sub003/internal/db"
	adminapi "github.com/Caqil/iprofit-admin-sub003/internal/http/api/admin"
	"github.com/Caqil/iprofit-admin-sub003/internal/mailer"
	"github.com/Caqil/iprofit-admin-sub003/internal/notify"
	"github.com/Caqil/iprofit-admin-sub003/internal/ratelimit"
	internalsettings "github.com/Caqil/iprofit-admin-sub003/internal/settings"
)

// sweepInterval is how often the quota store drops expired entries.
const sweepInterval = time.Minute

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the admin API server with database-backed components and
// runs it until the context is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if !initialized {
		log.Warn("no admin account exists; run with -setup to create one")
	}

	if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil {
		return fmt.Errorf("load settings snapshot: %w", errRefresh)
	}
	settingsWatcher := internalsettings.NewWatcher(conn, internalsettings.DefaultPollInterval)
	settingsWatcher.Start()
	defer settingsWatcher.Stop()

	jwtConfig, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	smtpConfig, errSMTP := config.LoadSMTPConfig(configPath)
	if errSMTP != nil {
		return errSMTP
	}

	var sender mailer.Sender
	if smtpConfig.Enabled() {
		sender = mailer.New(smtpConfig)
	} else {
		log.Info("smtp not configured; email notifications will be recorded as failed")
	}

	// Quota state lives in one shared store so every limiter class is
	// swept by the same background pass.
	store := ratelimit.NewMemoryStore()
	store.StartSweep(sweepInterval)
	defer store.StopSweep()

	remote := ratelimit.NewManager(ratelimit.LoadSettingsConfig, nil, nil)
	limits, errLimits := ratelimit.NewSet(store, remote)
	if errLimits != nil {
		return errLimits
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	adminapi.RegisterAdminRoutes(engine, conn, adminapi.Deps{
		JWT:        jwtConfig,
		Limits:     limits,
		Dispatcher: notify.NewDispatcher(conn, sender),
		Audit:      audit.NewRecorder(conn),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("admin api listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	log.Info("admin api stopped")
	return nil
}
