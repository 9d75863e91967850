package pfdatabase

import (
	"context"
	"path/filepath"
	"portfolio/internal/pfconfig"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNotConfigured(t *testing.T) {
	db, err := Open(pfconfig.DatabaseConfig{}, "silent")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, db)

	assert.ErrorIs(t, Ping(context.Background(), nil), ErrNotConfigured)
	assert.NoError(t, Close(nil))
}

func TestOpenUnknownType(t *testing.T) {
	_, err := Open(pfconfig.DatabaseConfig{Db: "oracle"}, "silent")
	assert.Error(t, err)
}

func TestOpenSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.db")
	db, err := Open(pfconfig.DatabaseConfig{Db: "sqlite", Path: path, MaxOpenConns: 3}, "silent")
	require.NoError(t, err)
	defer Close(db)

	assert.NoError(t, Ping(context.Background(), db))
	for _, table := range []string{"contacts", "page_views", "visitors"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestPostgresDSN(t *testing.T) {
	assert.Equal(t,
		"postgres://u:p@localhost:5432/db?connect_timeout=2&sslmode=disable",
		postgresDSN("postgres://u:p@localhost:5432/db", 2*time.Second))

	assert.Equal(t,
		"postgres://u:p@db.example.com/db?connect_timeout=5&sslmode=require",
		postgresDSN("postgres://u:p@db.example.com/db?connect_timeout=5", 2*time.Second))

	assert.Equal(t,
		"postgres://u@db.example.com/db?connect_timeout=2&sslmode=verify-full",
		postgresDSN("postgres://u@db.example.com/db?sslmode=verify-full", 2*time.Second))

	assert.Equal(t,
		"host=127.0.0.1 user=u dbname=db connect_timeout=2 sslmode=disable",
		postgresDSN("host=127.0.0.1 user=u dbname=db", 2*time.Second))
}

func TestMysqlDSN(t *testing.T) {
	assert.Equal(t, "u:p@tcp(h)/db?parseTime=true&timeout=2s", mysqlDSN("u:p@tcp(h)/db?parseTime=true", 2*time.Second))
	assert.Equal(t, "u:p@tcp(h)/db?timeout=2s", mysqlDSN("u:p@tcp(h)/db", 0))
	assert.Equal(t, "u:p@tcp(h)/db?timeout=9s", mysqlDSN("u:p@tcp(h)/db?timeout=9s", 2*time.Second))
}
