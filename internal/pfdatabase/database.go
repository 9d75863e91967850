package pfdatabase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"portfolio/internal/gormzerologger"
	"portfolio/internal/models/pfanalytics"
	"portfolio/internal/models/pfcontacts"
	"portfolio/internal/pfconfig"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var ErrNotConfigured = errors.New("database not configured")

const connMaxIdleTime = 30 * time.Second

// Open ouvre la base décrite par la configuration, règle le pool et migre
// les tables. Sans base configurée elle retourne ErrNotConfigured.
func Open(cfg pfconfig.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Db {
	case "":
		return nil, ErrNotConfigured
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "mysql":
		dialector = mysql.Open(mysqlDSN(cfg.Dsn, cfg.ConnectTimeout))
	case "postgres":
		dialector = postgres.Open(postgresDSN(cfg.Dsn, cfg.ConnectTimeout))
	default:
		return nil, fmt.Errorf("le type de database doit etre sqlite, mysql ou postgres")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormzerologger.New(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("ouverture database %s: %w", cfg.Db, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = pfconfig.DefaultMaxOpenConns
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Info().Str("db", cfg.Db).Int("max_open_conns", maxOpen).Msg("database ready")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&pfcontacts.Contact{}, &pfanalytics.PageView{}, &pfanalytics.Visitor{}); err != nil {
		return fmt.Errorf("migration database: %w", err)
	}
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return ErrNotConfigured
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// postgresDSN ajoute connect_timeout et sslmode s'ils manquent. Le ssl est
// désactivé seulement pour une base locale.
func postgresDSN(dsn string, timeout time.Duration) string {
	seconds := strconv.Itoa(timeoutSeconds(timeout))
	local := isLocalHost(dsn)

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		if q.Get("connect_timeout") == "" {
			q.Set("connect_timeout", seconds)
		}
		if q.Get("sslmode") == "" {
			q.Set("sslmode", sslMode(local))
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	// format clé=valeur
	if !strings.Contains(dsn, "connect_timeout=") {
		dsn += " connect_timeout=" + seconds
	}
	if !strings.Contains(dsn, "sslmode=") {
		dsn += " sslmode=" + sslMode(local)
	}
	return strings.TrimSpace(dsn)
}

func mysqlDSN(dsn string, timeout time.Duration) string {
	if strings.Contains(dsn, "timeout=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "timeout=" + strconv.Itoa(timeoutSeconds(timeout)) + "s"
}

func timeoutSeconds(timeout time.Duration) int {
	if timeout <= 0 {
		timeout = pfconfig.DefaultConnectTimeout
	}
	s := int(timeout.Round(time.Second) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func sslMode(local bool) string {
	if local {
		return "disable"
	}
	return "require"
}

func isLocalHost(dsn string) bool {
	return strings.Contains(dsn, "localhost") || strings.Contains(dsn, "127.0.0.1")
}
