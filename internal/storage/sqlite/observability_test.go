package sqlite

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/aanand-mishra/users-api/internal/config"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func setupObservedStore(t *testing.T, slow time.Duration) (*SQLite, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := &config.Config{StoragePath: filepath.Join(t.TempDir(), "users.db")}
	store, err := New(cfg,
		WithLogger(logger),
		WithTracer(tracenoop.NewTracerProvider().Tracer("test")),
		WithMeter(metricnoop.NewMeterProvider().Meter("test")),
		WithSlowQueryThreshold(slow),
	)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, &buf
}

func TestSlowQueryIsLogged(t *testing.T) {
	store, buf := setupObservedStore(t, time.Nanosecond)
	sess := acquire(t, store)

	_, err := sess.GetAllUsers(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "operation=GetAllUsers")
}

func TestNotFoundIsNotLoggedAsFailure(t *testing.T) {
	store, buf := setupObservedStore(t, time.Hour)
	sess := acquire(t, store)

	_, err := sess.GetUserByID(context.Background(), 404)
	require.ErrorIs(t, err, storage.ErrNotFound)

	assert.NotContains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "query executed")
}

func TestFailedQueryIsLogged(t *testing.T) {
	store, buf := setupObservedStore(t, time.Hour)
	_, err := store.Seed(context.Background())
	require.NoError(t, err)
	sess := acquire(t, store)

	_, err = store.db.Exec("DROP TABLE user_address")
	require.NoError(t, err)

	_, err = sess.GetAllAddresses(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, buf.String(), "query failed")
}
