package database

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"storefront/internal/config"
)

func TestNewPool_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		errMatch string
	}{
		{
			name: "Port out of range",
			cfg: config.DatabaseConfig{
				Host: "localhost", Port: 99999, User: "u", Database: "d", MaxConnections: 1, MinConnections: 1,
			},
			errMatch: "failed to parse database config",
		},
		{
			name: "Cannot connect to database",
			cfg: config.DatabaseConfig{
				Host: "invalid-host", Port: 5432, User: "u", Password: "p", Database: "d", MaxConnections: 1,
			},
			errMatch: "failed to ping database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			pool, err := NewPool(ctx, tt.cfg, zerolog.Nop())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMatch)
			assert.Nil(t, pool)
		})
	}
}

func TestNewPool_Success(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	defer func() { _ = pgContainer.Terminate(ctx) }()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "postgres",
		Password:        "postgres",
		Database:        "storefront",
		MaxConnections:  4,
		MinConnections:  1,
		MaxConnLifetime: 300,
	}

	pool, err := NewPool(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	assert.NoError(t, pool.Ping(ctx))
	assert.Equal(t, int32(4), pool.Config().MaxConns)
	assert.Equal(t, 5*time.Minute, pool.Config().MaxConnLifetime)
}
