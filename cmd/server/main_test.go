package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/penflowhq/penflow/internal/app"
)

func TestConvertDatabaseConfigDefaultsToSQLite(t *testing.T) {
	cfg := &app.Config{}

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "sqlite", dbCfg.Driver)
}

func TestConvertDatabaseConfigPostgres(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = "PostgreSQL"
	cfg.Database.Postgres = app.DBAuthConfig{
		Host:     " db.example.com ",
		Port:     5433,
		Database: "penflow",
		Username: "penflow",
		Password: "secret",
		Options:  map[string]string{"sslmode": "verify-full"},
	}

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.example.com", dbCfg.Host)
	require.Equal(t, 5433, dbCfg.Port)
	require.Equal(t, "penflow", dbCfg.Name)
	require.Equal(t, "penflow", dbCfg.User)
	require.Equal(t, "secret", dbCfg.Password)
	require.Equal(t, map[string]string{"sslmode": "verify-full"}, dbCfg.Options)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig("/definitely/not/here")
	require.Error(t, err)
}
