package status

import (
	"context"
	"ms-checkin/internal/models"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestRedis starts an in-memory Redis for the store.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisStorePutAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, "test:")
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 15, 0, 0, time.UTC)

	res, err := store.Put(ctx, map[string]models.StatusEntry{"a-1": {Checked: true, At: at, By: "door-2"}})
	require.NoError(t, err)
	assert.Equal(t, StoredInRedis, res.StoredIn)
	assert.Empty(t, res.FilePath)

	assert.Equal(t, "true", mr.HGet("test:A-1", "checked"))
	assert.Equal(t, "door-2", mr.HGet("test:A-1", "by"))

	e, ok, err := store.Get(ctx, "A-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, e.Checked)
	assert.True(t, at.Equal(e.At))

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStorePutOnlyTouchesGivenKeys(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, "test:")
	ctx := context.Background()

	_, err := store.Put(ctx, map[string]models.StatusEntry{
		"A-1": {Checked: true, At: time.Now()},
		"B-2": {Checked: true, At: time.Now()},
	})
	require.NoError(t, err)
	_, err = store.Put(ctx, map[string]models.StatusEntry{"B-2": {Checked: false, At: time.Now()}})
	require.NoError(t, err)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all["A-1"].Checked)
	assert.False(t, all["B-2"].Checked)
}

func TestRedisStoreAllEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, "")

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRedisStoreBackendDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, "test:")
	mr.Close()

	_, err := store.Put(context.Background(), map[string]models.StatusEntry{"A-1": {Checked: true}})
	assert.Error(t, err)
}

// TestRedisStoreIntegration runs the store against a real Redis container.
func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Redis container unavailable: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	store := NewRedisStore(client, "it:")
	_, err = store.Put(ctx, map[string]models.StatusEntry{
		"CONF-AAAA00001": {Checked: true, At: time.Now(), By: "it"},
		"CONF-BBBB00002": {Checked: false, At: time.Now()},
	})
	require.NoError(t, err)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, all["CONF-AAAA00001"].Checked)
}
