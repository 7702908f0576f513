package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/tallybot/tally-platform/pkg/mqtt"
	"github.com/tallybot/tally-platform/pkg/postgres"
	"github.com/tallybot/tally-platform/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeMQTT struct {
	connected bool
}

func (f *fakeMQTT) Connect(ctx context.Context) error { return nil }
func (f *fakeMQTT) Disconnect()                       {}
func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	return nil
}
func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return nil
}
func (f *fakeMQTT) IsConnected() bool { return f.connected }

type fakeRedis struct {
	pingErr error
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	return "", redis.ErrKeyNotFound
}
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
func (f *fakeRedis) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeRedis) Close() error                   { return nil }

type fakePostgres struct {
	connected bool
}

func (f *fakePostgres) Connect(ctx context.Context) error { return nil }
func (f *fakePostgres) Disconnect() error                 { return nil }
func (f *fakePostgres) DB() *sql.DB                       { return nil }
func (f *fakePostgres) HealthCheck(ctx context.Context) (*postgres.HealthStatus, error) {
	status := &postgres.HealthStatus{Connected: f.connected, Timestamp: time.Now()}
	if !f.connected {
		status.Error = "not connected"
	}
	return status, nil
}

func serve(t *testing.T, handler http.HandlerFunc, path string) (*HealthResponse, int) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return &response, rec.Code
}

func TestLivenessIgnoresDependencies(t *testing.T) {
	// Liveness answers ok even with every backend down
	checker := NewChecker(&fakeMQTT{}, &fakeRedis{pingErr: fmt.Errorf("down")},
		&fakePostgres{}, testLogger())

	response, code := serve(t, checker.HandlerFunc(), "/health")
	if code != http.StatusOK {
		t.Errorf("Liveness status code = %d, want %d", code, http.StatusOK)
	}
	if response.Status != "ok" {
		t.Errorf("Liveness status = %q, want ok", response.Status)
	}
	if response.Services != nil {
		t.Error("Liveness response reports services")
	}
}

func TestDetailedHealthyWhenAllConnected(t *testing.T) {
	checker := NewChecker(&fakeMQTT{connected: true}, &fakeRedis{},
		&fakePostgres{connected: true}, testLogger())

	response, code := serve(t, checker.DetailedHandlerFunc(), "/health/details")
	if code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", code, http.StatusOK)
	}
	if response.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", response.Status)
	}
	if response.Services == nil || response.Services.Postgres != "connected" {
		t.Errorf("Services = %+v, want all connected", response.Services)
	}
}

func TestDetailedDegradedWhenRedisDown(t *testing.T) {
	checker := NewChecker(&fakeMQTT{connected: true}, &fakeRedis{pingErr: fmt.Errorf("connection refused")},
		&fakePostgres{connected: true}, testLogger())

	response, code := serve(t, checker.DetailedHandlerFunc(), "/health/details")
	if code != http.StatusServiceUnavailable {
		t.Errorf("Status code = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if response.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", response.Status)
	}
	if response.Services.Redis != "disconnected" {
		t.Errorf("Redis status = %q, want disconnected", response.Services.Redis)
	}
}

func TestDetailedDegradedWhenPostgresDown(t *testing.T) {
	checker := NewChecker(&fakeMQTT{connected: true}, &fakeRedis{},
		&fakePostgres{connected: false}, testLogger())

	response, code := serve(t, checker.DetailedHandlerFunc(), "/health/details")
	if code != http.StatusServiceUnavailable {
		t.Errorf("Status code = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if response.Services.Postgres != "disconnected" {
		t.Errorf("Postgres status = %q, want disconnected", response.Services.Postgres)
	}
}
