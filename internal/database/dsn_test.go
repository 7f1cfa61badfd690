package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "penflow",
		Password: "secret",
		Name:     "penflow",
		Host:     "db.internal",
		Port:     3307,
	})
	require.NoError(t, err)
	require.Equal(t, "penflow:secret@tcp(db.internal:3307)/penflow?charset=utf8mb4&loc=Local&parseTime=True", dsn)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{User: "penflow"})
	require.Error(t, err)
}

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "penflow", Name: "penflow"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=penflow dbname=penflow sslmode=disable", dsn)
}

func TestBuildPostgresDSNOverridesSSLMode(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:    "penflow",
		Name:    "penflow",
		Options: map[string]string{"sslmode": "require"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=penflow dbname=penflow sslmode=require", dsn)
}

func TestBuildDSNOverrideWins(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://override"})
	require.NoError(t, err)
	require.Equal(t, "postgres://override", dsn)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	require.NoError(t, sqlDB.Close())
}
