//go:build integration

package rediscodes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/safar/hive-store/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	s, err := Connect(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Failed to close redis client: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	return s
}

func TestPutAndTake(t *testing.T) {
	s := setupRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)

	got, err := s.TakeCode(ctx, "+21633333333")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.PutCode(ctx, models.VerificationCode{Phone: "+21633333333", Code: "123456", ExpiresAt: expires}))

	got, err = s.TakeCode(ctx, "+21633333333")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "123456", got.Code)
	assert.True(t, got.ExpiresAt.Equal(expires))

	got, err = s.TakeCode(ctx, "+21633333333")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpiredCodeIsRetained(t *testing.T) {
	s := setupRedis(t)
	ctx := context.Background()
	expired := time.Now().Add(-time.Minute).UTC()

	require.NoError(t, s.PutCode(ctx, models.VerificationCode{Phone: "+21644444444", Code: "654321", ExpiresAt: expired}))

	ttl, err := s.client.TTL(ctx, keyPrefix+"+21644444444").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)

	got, err := s.TakeCode(ctx, "+21644444444")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Expired(time.Now()))
}
