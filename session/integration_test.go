//go:build integration

package session_test

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Konsultn-Engineering/txscope/connector"
	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/session"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

func startPostgres(t *testing.T) connector.Config {
	t.Helper()
	skipIfNoDocker(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "txscope",
				"POSTGRES_PASSWORD": "txscope",
				"POSTGRES_DB":       "txscope",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return connector.Config{
		Host:     host,
		Port:     p,
		Database: "txscope",
		Username: "txscope",
		Password: "txscope",
		SSLMode:  "disable",
		Retry:    &connector.RetryConfig{MaxRetries: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Backoff: 2},
	}
}

func TestPostgresSavepointsAndTracking(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	r := connector.NewRegistry()
	pool, err := connector.Connect(ctx, r, "main", cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	m := session.NewManager(r)
	require.NoError(t, m.Transaction(ctx, "main", func(ctx context.Context, tx database.Tx) error {
		_, err := session.Exec(ctx, "CREATE TABLE items (id serial PRIMARY KEY, name text NOT NULL)")
		return err
	}))

	failed := errors.New("discard")
	var tracker *session.Tracker
	err = m.Transaction(ctx, "main", func(ctx context.Context, tx database.Tx) error {
		tracker, _ = session.CurrentTracker(ctx)
		if _, err := session.Exec(ctx, "INSERT INTO items (name) VALUES ($1)", "kept"); err != nil {
			return err
		}
		err := m.Transaction(ctx, "main", func(ctx context.Context, tx database.Tx) error {
			if _, err := session.Exec(ctx, "INSERT INTO items (name) VALUES ($1)", "discarded"); err != nil {
				return err
			}
			return failed
		})
		assert.ErrorIs(t, err, failed)
		return nil
	}, session.WithQueryTracking())
	require.NoError(t, err)
	require.NotNil(t, tracker)
	assert.Equal(t, 2, tracker.Count())

	names, err := session.Transactional(m, "main", func(ctx context.Context, tx database.Tx) ([]string, error) {
		rows, err := session.FetchAll(ctx, "SELECT name FROM items ORDER BY id")
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(rows))
		for _, row := range rows {
			out = append(out, row["name"].(string))
		}
		return out, nil
	})(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, names)

	stats := connector.Stats(pool)
	assert.Equal(t, 0, stats.InUse)
	assert.Greater(t, stats.MaxOpen, 0)
}
