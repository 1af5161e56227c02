package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/bilan-portal/internal/config"
	"github.com/diewo77/bilan-portal/internal/db"
	"github.com/diewo77/bilan-portal/internal/queue"
)

func testDB(t *testing.T) (*gorm.DB, config.DatabaseConfig) {
	t.Helper()
	dcfg := config.DatabaseConfig{Driver: "sqlite", Path: "file:" + t.Name() + "?mode=memory&cache=shared"}
	conn, err := db.Connect(dcfg, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(conn, dcfg, false, zap.NewNop()))
	return conn, dcfg
}

func TestNewAppWithoutRedis(t *testing.T) {
	conn, dcfg := testDB(t)
	app, err := NewApp(context.Background(), &config.Config{Database: dcfg}, conn, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, queue.LogPublisher{}, app.Imports.Publisher)
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewAppWithRedis(t *testing.T) {
	conn, dcfg := testDB(t)
	mr := miniredis.RunT(t)
	cfg := &config.Config{Database: dcfg, Redis: config.RedisConfig{URL: "redis://" + mr.Addr() + "/0", Queue: "test:imports"}}

	app, err := NewApp(context.Background(), cfg, conn, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	rp, ok := app.Imports.Publisher.(*queue.RedisPublisher)
	require.True(t, ok)
	assert.Equal(t, "test:imports", rp.QueueName())
}

func TestNewAppRedisUnreachable(t *testing.T) {
	conn, dcfg := testDB(t)
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewApp(context.Background(), &config.Config{Database: dcfg, Redis: config.RedisConfig{URL: "redis://" + addr}}, conn, zap.NewNop())
	assert.Error(t, err)
}

func TestNewAppBadRedisURL(t *testing.T) {
	conn, dcfg := testDB(t)
	_, err := NewApp(context.Background(), &config.Config{Database: dcfg, Redis: config.RedisConfig{URL: "http://nope"}}, conn, zap.NewNop())
	assert.ErrorContains(t, err, "REDIS_URL")
}
