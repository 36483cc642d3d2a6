//go:build integration

package lock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/telcoassist-server/internal/lock"
	"github.com/dtroode/telcoassist-server/internal/model"
	"github.com/dtroode/telcoassist-server/internal/testutil"
)

var client *redis.Client

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		panic(err)
	}
	client = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})

	code := m.Run()
	_ = client.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRedisLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := lock.NewRedisLocker(client, 5*time.Second, 100*time.Millisecond, testutil.MakeNoopLogger())

	release, err := l.Acquire(ctx, "S1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "S1")
	assert.ErrorIs(t, err, model.ErrLockHeld)

	other, err := l.Acquire(ctx, "S2")
	require.NoError(t, err)
	other()

	release()
	release2, err := l.Acquire(ctx, "S1")
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ExpiredHolderDoesNotReleaseNewLock(t *testing.T) {
	ctx := context.Background()
	short := lock.NewRedisLocker(client, 100*time.Millisecond, 0, testutil.MakeNoopLogger())

	stale, err := short.Acquire(ctx, "S3")
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	fresh, err := lock.NewRedisLocker(client, 5*time.Second, 0, testutil.MakeNoopLogger()).Acquire(ctx, "S3")
	require.NoError(t, err)

	stale()
	_, err = short.Acquire(ctx, "S3")
	assert.ErrorIs(t, err, model.ErrLockHeld)
	fresh()
}
