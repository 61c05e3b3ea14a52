//go:build database

package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// exerciseBackend runs the storage commands end to end against one backend.
func exerciseBackend(t *testing.T, backend, connStr string) {
	repo := newGitRepo(t, 3)
	env := []string{
		"PTS_CACHE_BACKEND=" + backend,
		"PTS_CACHE_DB_CONNECT=" + connStr,
		"PTS_HISTORY_BACKEND=" + backend,
		"PTS_HISTORY_DB_CONNECT=" + connStr,
	}

	_, err := runPTS(t, repo, env, "cache", "clear")
	require.NoError(t, err)
	_, err = runPTS(t, repo, env, "history", "clear")
	require.NoError(t, err)

	out, err := runPTS(t, repo, env, "history", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated")

	dataset := filepath.Join(repo, "dataset.csv")
	_, err = runPTS(t, repo, env, "collect", "--output", "csv", "--output-file", dataset)
	require.NoError(t, err)

	// Second pass is served from the commit cache
	_, err = runPTS(t, repo, env, "collect", "--output", "csv", "--output-file", dataset)
	require.NoError(t, err)

	out, err = runPTS(t, repo, env, "cache", "status")
	require.NoError(t, err)
	assert.Contains(t, out, backend)

	_, err = runPTS(t, repo, env, "predict", "--commit", "HEAD")
	require.NoError(t, err)

	out, err = runPTS(t, repo, env, "history", "status")
	require.NoError(t, err)
	assert.Contains(t, out, backend)
}

// TestPTSWithMySQL tests the pts CLI with a MySQL backend.
func TestPTSWithMySQL(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "pts",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	exerciseBackend(t, "mysql", fmt.Sprintf("root:secret123@tcp(%s:%s)/pts?parseTime=true", host, port.Port()))
}

// TestPTSWithPostgres tests the pts CLI with a PostgreSQL backend.
func TestPTSWithPostgres(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	exerciseBackend(t, "postgresql", fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port()))
}
