package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/Caqil/iprofit-admin-sub003/internal/app"
	"github.com/Caqil/iprofit-admin-sub003/internal/config"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and starts setup, migration or the server.
func run(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 8318, "server port")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")

	setup := fs.Bool("setup", false, "run first-time setup and exit")
	dbType := fs.String("db-type", "postgres", "setup: database type (postgres or sqlite)")
	dbHost := fs.String("db-host", "", "setup: database host")
	dbPort := fs.Int("db-port", 5432, "setup: database port")
	dbUser := fs.String("db-user", "", "setup: database username")
	dbPassword := fs.String("db-password", "", "setup: database password")
	dbName := fs.String("db-name", "", "setup: database name")
	dbPath := fs.String("db-path", "", "setup: sqlite database file")
	siteName := fs.String("site-name", "", "setup: site display name")
	adminUser := fs.String("admin-user", "", "setup: first admin username")
	adminPassword := fs.String("admin-password", "", "setup: first admin password")

	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(*cfgPath)
	}
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)

	if *setup {
		return app.RunSetup(configPath, app.SetupRequest{
			DatabaseType:     *dbType,
			DatabaseHost:     *dbHost,
			DatabasePort:     *dbPort,
			DatabaseUser:     *dbUser,
			DatabasePassword: *dbPassword,
			DatabaseName:     *dbName,
			DatabasePath:     *dbPath,
			SiteName:         *siteName,
			AdminUsername:    *adminUser,
			AdminPassword:    *adminPassword,
		}, *port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		return app.Migrate(ctx, appCfg)
	}
	return app.RunServer(ctx, appCfg, *port)
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
