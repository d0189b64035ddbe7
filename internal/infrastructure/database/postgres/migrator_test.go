//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/postgres"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/postgres/repositories"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
)

// startPostgres runs postgres:16-alpine and returns its connection settings.
func startPostgres(t *testing.T) postgres.PostgresConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "matsel",
			"POSTGRES_PASSWORD": "matsel",
			"POSTGRES_DB":       "matsel",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return postgres.PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "matsel",
		Username: "matsel",
		Password: "matsel",
	}
}

func TestMigrations_UpStatusRollback(t *testing.T) {
	cfg := startPostgres(t)
	dbURL := postgres.BuildDSN(cfg)

	// The server may accept connections slightly before it accepts logins.
	require.Eventually(t, func() bool {
		return postgres.RunMigrations(dbURL, "") == nil
	}, 30*time.Second, 500*time.Millisecond)

	require.NoError(t, postgres.RunMigrations(dbURL, ""), "second run is a no-op")

	version, dirty, err := postgres.MigrationStatus(dbURL, "")
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	require.NoError(t, postgres.RollbackMigration(dbURL, "", 1))
	version, _, err = postgres.MigrationStatus(dbURL, "")
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	assert.Error(t, postgres.RollbackMigration(dbURL, "", 0))
}

func TestMaterialRepo_RoundTrip(t *testing.T) {
	for _, driver := range []string{postgres.DriverPQ, postgres.DriverPGX} {
		t.Run(driver, func(t *testing.T) {
			cfg := startPostgres(t)
			cfg.Driver = driver
			dbURL := postgres.BuildDSN(cfg)
			require.Eventually(t, func() bool {
				return postgres.RunMigrations(dbURL, "") == nil
			}, 30*time.Second, 500*time.Millisecond)

			log := logging.NewNopLogger()
			conn, err := postgres.NewConnection(cfg, log)
			require.NoError(t, err)
			defer conn.Close()

			repo := repositories.NewPostgresMaterialRepo(conn, log)
			ctx := context.Background()

			recs := []material.Record{
				material.NewRecord("a", "Steel SAE 1020", "annealed").
					With(material.PropTensileStrength, 395).
					With(material.PropDensity, 7860).
					WithAuxiliary(material.ColBrinell, 111),
				material.NewRecord("b", "Steel SAE 1040", "").
					With(material.PropYieldStrength, 414),
			}
			require.NoError(t, repo.ReplaceAll(ctx, recs))

			got, err := repo.LoadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, recs, got)

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, repo.ReplaceAll(ctx, recs[:1]))
			n, err = repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			// Native pgx pool sees the same rows.
			pool, err := pgxpool.New(ctx, dbURL)
			require.NoError(t, err)
			defer pool.Close()
			var name string
			require.NoError(t, pool.QueryRow(ctx, "SELECT name FROM materials WHERE position = 0").Scan(&name))
			assert.Equal(t, "Steel SAE 1020", name)
		})
	}
}
