package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce      sync.Once
	redisContainer *RedisContainer
	redisError     error
)

// RedisContainer wraps a testcontainers Redis instance.
type RedisContainer struct {
	container testcontainers.Container
	host      string
	port      string
}

// StartRedis starts a shared Redis container for the test run.
// Skips unless TALLY_TEST_DOCKER is set.
func StartRedis(t *testing.T) *RedisContainer {
	t.Helper()
	RequireDocker(t)

	redisOnce.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor: wait.ForAll(
					wait.ForListeningPort("6379/tcp"),
					wait.ForLog("Ready to accept connections"),
				).WithDeadline(30 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			redisError = fmt.Errorf("start Redis container: %w", err)
			return
		}

		host, port, err := containerEndpoint(ctx, container, "6379/tcp")
		if err != nil {
			container.Terminate(ctx)
			redisError = fmt.Errorf("Redis endpoint: %w", err)
			return
		}

		redisContainer = &RedisContainer{container: container, host: host, port: port}
	})

	if redisError != nil {
		t.Fatalf("Redis container failed: %v", redisError)
	}

	return redisContainer
}

// Address returns host:port for go-redis.
func (c *RedisContainer) Address() string {
	return fmt.Sprintf("%s:%s", c.host, c.port)
}

// Cleanup terminates the container.
func (c *RedisContainer) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}
