package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/db"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"github.com/Caqil/iprofit-admin-sub003/internal/security"
	internalsettings "github.com/Caqil/iprofit-admin-sub003/internal/settings"
)

// SetupRequest contains parameters for initial system setup.
type SetupRequest struct {
	DatabaseType     string // "postgres" or "sqlite".
	DatabaseHost     string
	DatabasePort     int
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabasePath     string
	DatabaseSSLMode  string
	SiteName         string
	AdminUsername    string
	AdminPassword    string
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "iprofit.db"

// BuildDSN builds a database DSN from the setup request.
func BuildDSN(req SetupRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "postgres":
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			req.DatabasePort,
			req.DatabaseName,
			sslMode,
		), nil
	case "sqlite":
		return buildSQLiteDSN(req.DatabasePath), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// buildSQLiteDSN constructs a SQLite DSN with default parameters.
func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_foreign_keys=on",
		"_synchronous=NORMAL",
	}, "&")
}

// validateSetupRequest normalizes and validates setup input data.
func validateSetupRequest(req *SetupRequest) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = "postgres"
	}
	req.DatabaseType = dbType

	switch dbType {
	case "postgres":
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return fmt.Errorf("database host is required")
		}
		if req.DatabasePort <= 0 {
			return fmt.Errorf("invalid database port")
		}
		if strings.TrimSpace(req.DatabaseUser) == "" {
			return fmt.Errorf("database username is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return fmt.Errorf("database name is required")
		}
		if strings.TrimSpace(req.DatabasePassword) == "" {
			return fmt.Errorf("database password is required")
		}
	case "sqlite":
		if strings.TrimSpace(req.DatabasePath) == "" {
			req.DatabasePath = defaultSQLitePath
		}
	default:
		return fmt.Errorf("unsupported database type")
	}

	if strings.TrimSpace(req.AdminUsername) == "" {
		return fmt.Errorf("admin username is required")
	}
	if strings.TrimSpace(req.AdminPassword) == "" {
		return fmt.Errorf("admin password is required")
	}
	req.SiteName = strings.TrimSpace(req.SiteName)
	if req.SiteName == "" {
		req.SiteName = internalsettings.DefaultSiteName
	}
	return nil
}

// TestDatabaseConnection validates that the DSN can connect and ping.
func TestDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	defer func() {
		if errClose := sqlDB.Close(); errClose != nil {
			log.Errorf("sql db close error: %v", errClose)
		}
	}()
	return sqlDB.Ping()
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host        string  `yaml:"host"`
	Port        int     `yaml:"port"`
	DatabaseDSN string  `yaml:"database-dsn"`
	Debug       bool    `yaml:"debug"`
	JWT         jwtCfg  `yaml:"jwt"`
	SMTP        smtpCfg `yaml:"smtp"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

// smtpCfg holds SMTP settings for the generated config file.
type smtpCfg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() string {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "change-me-to-a-secure-random-string"
	}
	return secret
}

// WriteConfigFile writes the initial config file to disk.
func WriteConfigFile(configPath string, dsn string, port int) error {
	cfg := configFile{
		Host:        "",
		Port:        port,
		DatabaseDSN: dsn,
		Debug:       false,
		JWT: jwtCfg{
			Secret: generateJWTSecret(),
			Expiry: "24h",
		},
		SMTP: smtpCfg{Port: 587},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}
	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}
	return nil
}

// HasAdminInitialized reports whether the system has at least one admin account.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.Admin{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// CreateAdminUserWithConn creates the first admin account and seeds the
// default settings rows. The first admin gets the super role.
func CreateAdminUserWithConn(conn *gorm.DB, username, password, siteName string) error {
	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}

	admin := models.Admin{
		Username: strings.TrimSpace(username),
		Password: hashed,
		Role:     models.AdminRoleSuper,
		Active:   true,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}

	seeds := map[string]any{
		internalsettings.SiteNameKey:            siteName,
		internalsettings.ReferralBonusKey:       internalsettings.DefaultReferralBonus,
		internalsettings.ReferralProfitShareKey: internalsettings.DefaultReferralProfitShare,
	}
	for key, value := range seeds {
		raw, errMarshal := json.Marshal(value)
		if errMarshal != nil {
			return fmt.Errorf("marshal setting %s: %w", key, errMarshal)
		}
		var existing models.Setting
		if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
			continue
		}
		setting := models.Setting{Key: key, Value: models.SettingValue(raw)}
		if errCreate := conn.Create(&setting).Error; errCreate != nil {
			return fmt.Errorf("seed setting %s: %w", key, errCreate)
		}
	}
	return nil
}

// RunSetup validates the request, writes the config file and seeds the
// first admin account. It refuses to run against an initialized system.
func RunSetup(configPath string, req SetupRequest, port int) error {
	if errValidate := validateSetupRequest(&req); errValidate != nil {
		return errValidate
	}

	dsn, errDSN := BuildDSN(req)
	if errDSN != nil {
		return errDSN
	}
	if errPing := TestDatabaseConnection(dsn); errPing != nil {
		return errPing
	}

	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if initialized {
		return fmt.Errorf("system already initialized")
	}

	if errSeed := CreateAdminUserWithConn(conn, req.AdminUsername, req.AdminPassword, req.SiteName); errSeed != nil {
		return errSeed
	}
	if errWrite := WriteConfigFile(configPath, dsn, port); errWrite != nil {
		return errWrite
	}

	log.WithField("admin", req.AdminUsername).Info("setup completed")
	return nil
}
