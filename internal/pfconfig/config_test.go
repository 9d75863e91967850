package pfconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andskur/argon2-hashing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestCreateExampleConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "example.yaml")

	name, err := CreateExampleConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, filename, name)

	conf, err := LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", conf.Database.Db)
	assert.Equal(t, "admin1234", conf.Admin.Pass)
	assert.Equal(t, 2*time.Second, conf.Geo.Timeout)
	assert.Equal(t, DefaultGeoUrl, conf.Geo.Url)
}

func TestLoadHashesAdminPass(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.yaml")
	_, err := CreateExampleConfig(filename)
	require.NoError(t, err)

	conf, err := Load(filename)
	require.NoError(t, err)
	assert.Empty(t, conf.Admin.Pass)
	require.NotEmpty(t, conf.Admin.Hash)
	assert.NoError(t, argon2.CompareHashAndPassword([]byte(conf.Admin.Hash), []byte("admin1234")))

	// le fichier a été réécrit sans le mot de passe en clair
	reloaded, err := LoadConfig(filename)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Admin.Pass)
	assert.Equal(t, conf.Admin.Hash, reloaded.Admin.Hash)
}

func TestLoadRejectsShortAdminPass(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteConfigYaml(filename, &Config{Admin: AdminConfig{Pass: "short"}}))

	_, err := Load(filename)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("listen:\n  website: \":9000\"\n"), 0600))

	conf, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", conf.Listen.Website)
	assert.Equal(t, DefaultMaxOpenConns, conf.Database.MaxOpenConns)
	assert.Equal(t, DefaultConnectTimeout, conf.Database.ConnectTimeout)
	assert.Equal(t, DefaultContactsFile, conf.Contacts.File)
	assert.Equal(t, DefaultGeoTimeout, conf.Geo.Timeout)
	assert.Empty(t, conf.Database.Db)
}

func TestApplyEnv(t *testing.T) {
	conf := &Config{Listen: ListenConfig{Website: "127.0.0.1:8080"}}

	err := ApplyEnv(conf, envFrom(map[string]string{
		"DATABASE_URL":   "postgres://user:pw@db.example.com:5432/portfolio",
		"ADMIN_PASSWORD": "s3cret-value",
		"PORT":           "3000",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgres", conf.Database.Db)
	assert.Equal(t, "postgres://user:pw@db.example.com:5432/portfolio", conf.Database.Dsn)
	assert.Equal(t, "127.0.0.1:3000", conf.Listen.Website)
	assert.NoError(t, argon2.CompareHashAndPassword([]byte(conf.Admin.Hash), []byte("s3cret-value")))
}

func TestApplyEnvEmpty(t *testing.T) {
	conf := &Config{Database: DatabaseConfig{Db: "sqlite", Path: "x.db"}}
	require.NoError(t, ApplyEnv(conf, envFrom(nil)))
	assert.Equal(t, "sqlite", conf.Database.Db)
	assert.Empty(t, conf.Admin.Hash)
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		raw  string
		db   string
		dsn  string
		fail bool
	}{
		{raw: "postgresql://u@localhost/p", db: "postgres", dsn: "postgresql://u@localhost/p"},
		{raw: "mysql://u:pw@localhost:3306/p", db: "mysql", dsn: "u:pw@tcp(localhost:3306)/p?parseTime=true"},
		{raw: "mysql://u@h/p?charset=utf8mb4", db: "mysql", dsn: "u@tcp(h)/p?parseTime=true&charset=utf8mb4"},
		{raw: "sqlite://data/p.db", db: "sqlite", dsn: "data/p.db"},
		{raw: "file:p.db?cache=shared", db: "sqlite", dsn: "file:p.db?cache=shared"},
		{raw: "redis://localhost", fail: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			db, dsn, err := ParseDatabaseURL(tt.raw)
			if tt.fail {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.db, db)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Database: DatabaseConfig{Db: "sqlite"}}).Validate())
	assert.Error(t, (&Config{Database: DatabaseConfig{Db: "postgres"}}).Validate())
	assert.Error(t, (&Config{Database: DatabaseConfig{Db: "oracle", Dsn: "x"}}).Validate())
	assert.Error(t, (&Config{Geo: GeoConfig{Provider: "maxmind"}}).Validate())
	assert.Error(t, (&Config{Geo: GeoConfig{Provider: "carrier-pigeon"}}).Validate())
	assert.NoError(t, (&Config{Geo: GeoConfig{Provider: "maxmind", Path: "geo.mmdb"}}).Validate())
}
