package pfconfig

import (
	"fmt"
	"log/syslog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/andskur/argon2-hashing"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Production      bool            `yaml:"production"`
	Listen          ListenConfig    `yaml:"listen"`
	TrustedProxies  []string        `yaml:"trustedproxies"`
	TrustedPlatform string          `yaml:"trustedplatform"`
	Database        DatabaseConfig  `yaml:"database"`
	Contacts        ContactsConfig  `yaml:"contacts"`
	Admin           AdminConfig     `yaml:"admin"`
	Geo             GeoConfig       `yaml:"geo"`
	Analytics       AnalyticsConfig `yaml:"analytics"`
	StaticPath      string          `yaml:"staticpath"`
	Logger          LoggerConfig    `yaml:"logger"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
	Metrics string `yaml:"metrics"`
}

// DatabaseConfig décrit la base relationnelle, Db vide = pas de base
type DatabaseConfig struct {
	Db             string        `yaml:"db"`
	Dsn            string        `yaml:"dsn"`
	Path           string        `yaml:"path"`
	MaxOpenConns   int           `yaml:"maxopenconns"`
	ConnectTimeout time.Duration `yaml:"connecttimeout"`
}

type ContactsConfig struct {
	File string `yaml:"file"`
}

// AdminConfig contient le secret partagé des endpoints admin.
// Pass est hashé en argon2 dans Hash au premier lancement.
type AdminConfig struct {
	Pass string `yaml:"pass"`
	Hash string `yaml:"hash"`
}

type GeoConfig struct {
	Provider string        `yaml:"provider"`
	Url      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	Path     string        `yaml:"path"`
}

type AnalyticsConfig struct {
	Redis  RedisConfig `yaml:"redis"`
	Digest string      `yaml:"digest"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

const (
	DefaultGeoUrl         = "https://ipapi.co/%s/json/"
	DefaultGeoTimeout     = 2 * time.Second
	DefaultMaxOpenConns   = 10
	DefaultConnectTimeout = 2 * time.Second
	DefaultContactsFile   = "data/contacts.json"
)

func CreateExampleConfig(filename string) (string, error) {
	example := &Config{
		Production: false,
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
		},
		Database: DatabaseConfig{
			Db:             "sqlite",
			Path:           "./portfolio.db",
			MaxOpenConns:   DefaultMaxOpenConns,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Contacts: ContactsConfig{
			File: DefaultContactsFile,
		},
		Admin: AdminConfig{
			Pass: "admin1234",
		},
		Geo: GeoConfig{
			Provider: "http",
			Url:      DefaultGeoUrl,
			Timeout:  DefaultGeoTimeout,
		},
		Analytics: AnalyticsConfig{
			Digest: "0 7 * * *",
		},
		StaticPath: "./static",
		Logger: LoggerConfig{
			Level: "info",
		},
	}

	if filename == "/etc/" {
		example.Production = true
		example.Listen.Website = "127.0.0.1:8000"
		example.Listen.Metrics = "127.0.0.1:9090"
		example.Database.Path = "/var/lib/portfolio/sqlite.db"
		example.Contacts.File = "/var/lib/portfolio/contacts.json"
		example.StaticPath = "/var/lib/portfolio/static"
		example.Logger.File = LoggerFileConfig{
			Enable:     true,
			Path:       "/var/log/portfolio/portfolio.log",
			MaxSize:    100,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   true,
		}
		filename = "/etc/portfolio/config.yaml"
	}

	return filename, WriteConfigYaml(filename, example)
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0600)
}

// Charger la configuration YAML
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %w", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %w", err)
	}

	return &config, nil
}

// Load lit le fichier, applique le .env et les variables d'environnement,
// valide le tout et hash le secret admin si besoin.
func Load(configFile string) (*Config, error) {
	conf, err := LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("erreur chargement config: %w", err)
	}

	// le fichier admin.pass est réécrit avant les overrides pour ne pas persister l'environnement
	if conf.Admin.Pass != "" {
		if len(conf.Admin.Pass) < 8 {
			return nil, fmt.Errorf("le mot de passe admin doit contenir au moins 8 caractères")
		}
		hash, err := HashSecret(conf.Admin.Pass)
		if err != nil {
			return nil, err
		}
		conf.Admin.Hash = hash
		conf.Admin.Pass = ""
		if err := WriteConfigYaml(configFile, conf); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("erreur lecture .env: %w", err)
	}
	if err := ApplyEnv(conf, os.Getenv); err != nil {
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	conf.applyDefaults()

	return conf, nil
}

// ApplyEnv surcharge la configuration avec DATABASE_URL, ADMIN_PASSWORD et PORT
func ApplyEnv(conf *Config, getenv func(string) string) error {
	if dsn := getenv("DATABASE_URL"); dsn != "" {
		db, normalized, err := ParseDatabaseURL(dsn)
		if err != nil {
			return err
		}
		conf.Database.Db = db
		switch db {
		case "sqlite":
			conf.Database.Path = normalized
		default:
			conf.Database.Dsn = normalized
		}
	}

	if secret := getenv("ADMIN_PASSWORD"); secret != "" {
		hash, err := HashSecret(secret)
		if err != nil {
			return err
		}
		conf.Admin.Hash = hash
	}

	if port := getenv("PORT"); port != "" {
		host, _, err := net.SplitHostPort(conf.Listen.Website)
		if err != nil {
			host = "0.0.0.0"
		}
		conf.Listen.Website = net.JoinHostPort(host, port)
	}

	return nil
}

// ParseDatabaseURL déduit le type de base depuis le schéma de l'url.
// Les dsn postgres sont gardés tels quels, mysql et sqlite sont convertis
// au format attendu par leur driver gorm.
func ParseDatabaseURL(raw string) (db string, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "postgres", raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return "sqlite", strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.HasPrefix(raw, "file:"):
		return "sqlite", raw, nil
	case strings.HasPrefix(raw, "mysql://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", fmt.Errorf("DATABASE_URL invalide: %w", err)
		}
		userinfo := ""
		if u.User != nil {
			userinfo = u.User.String() + "@"
		}
		dsn := fmt.Sprintf("%stcp(%s)%s?parseTime=true", userinfo, u.Host, u.Path)
		if u.RawQuery != "" {
			dsn += "&" + u.RawQuery
		}
		return "mysql", dsn, nil
	}
	return "", "", fmt.Errorf("DATABASE_URL: schéma non supporté")
}

func (conf *Config) Validate() error {
	switch conf.Database.Db {
	case "":
	case "sqlite":
		if conf.Database.Path == "" {
			return fmt.Errorf("database.path ne peut pas être vide")
		}
	case "mysql", "postgres":
		if conf.Database.Dsn == "" {
			return fmt.Errorf("database.dsn ne peut pas être vide")
		}
	default:
		return fmt.Errorf("le type de database doit etre sqlite, mysql ou postgres")
	}

	switch conf.Geo.Provider {
	case "", "none", "http":
	case "maxmind":
		if conf.Geo.Path == "" {
			return fmt.Errorf("geo.path ne peut pas être vide avec maxmind")
		}
	default:
		return fmt.Errorf("geo.provider doit etre http, maxmind ou none")
	}

	return nil
}

func (conf *Config) applyDefaults() {
	if conf.Listen.Website == "" {
		conf.Listen.Website = "localhost:8080"
	}
	if strings.HasPrefix(conf.Listen.Website, ":") {
		conf.Listen.Website = "localhost" + conf.Listen.Website
	}
	if conf.Database.MaxOpenConns <= 0 {
		conf.Database.MaxOpenConns = DefaultMaxOpenConns
	}
	if conf.Database.ConnectTimeout <= 0 {
		conf.Database.ConnectTimeout = DefaultConnectTimeout
	}
	if conf.Contacts.File == "" {
		conf.Contacts.File = DefaultContactsFile
	}
	if conf.Geo.Url == "" {
		conf.Geo.Url = DefaultGeoUrl
	}
	if conf.Geo.Timeout <= 0 {
		conf.Geo.Timeout = DefaultGeoTimeout
	}
}

// HashSecret hash le secret admin en argon2
func HashSecret(secret string) (string, error) {
	hash, err := argon2.GenerateFromPassword([]byte(secret), argon2.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("erreur hash argon2: %w", err)
	}
	return string(hash), nil
}

func CreateExample(shouldCreateExample bool, configFile string) {
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = "portfolio.yaml"
	}
	filename, err := CreateExampleConfig(filename)
	if err != nil {
		return fmt.Errorf("erreur création exemple: %w", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Println("⚠️  admin.pass sera automatiquement hash en argon2 dans admin.hash au premier lancement")
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("Portfolio version %s", version)
	logPrintf("Mode Production %v", config.Production)

	logPrintf("Database")
	switch config.Database.Db {
	case "sqlite":
		logPrintf("  • Type sqlite")
		logPrintf("  • Path %s", config.Database.Path)
	case "mysql", "postgres":
		logPrintf("  • Type %s", config.Database.Db)
		logPrintf("  • Pool %d connexions, timeout %s", config.Database.MaxOpenConns, config.Database.ConnectTimeout)
	default:
		logPrintf("  • Aucune base, contacts dans %s, analytics désactivé", config.Contacts.File)
	}

	if config.Admin.Hash != "" {
		logPrintf("Admin activé")
	} else {
		logPrintf("Admin désactivé, aucun secret configuré")
	}

	logPrintf("Géolocalisation %s", config.Geo.Provider)
	if config.Analytics.Redis.Addr != "" {
		logPrintf("  • Compteurs temps réel redis %s", config.Analytics.Redis.Addr)
	}
	if config.Analytics.Digest != "" {
		logPrintf("  • Digest quotidien %q", config.Analytics.Digest)
	}

	logPrintf("Logger en level %s", config.Logger.Level)
	if config.Logger.File.Enable {
		logPrintf("  Log en fichier activé")
		logPrintf("  • Path %s", config.Logger.File.Path)
		logPrintf("  • Max size %d", config.Logger.File.MaxSize)
		logPrintf("  • Max age %d", config.Logger.File.MaxAge)
		logPrintf("  • Max backup %d", config.Logger.File.MaxBackups)
	}
	if config.Logger.Syslog.Enable {
		logPrintf("  Log en syslog activé")
		logPrintf("  • Protocol %s", config.Logger.Syslog.Protocol)
		logPrintf("  • Address %s", config.Logger.Syslog.Address)
		logPrintf("  • Tag %s", config.Logger.Syslog.Tag)
	}
}

func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}
