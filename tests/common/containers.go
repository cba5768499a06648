// Package common provides shared test infrastructure
package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// DockerEnvVar enables tests that start containers
const DockerEnvVar = "TALLY_TEST_DOCKER"

// RequireDocker skips t unless container tests were enabled
func RequireDocker(t *testing.T) {
	t.Helper()
	if ok, _ := strconv.ParseBool(os.Getenv(DockerEnvVar)); !ok {
		t.Skipf("set %s=true to run container tests", DockerEnvVar)
	}
}

// containerEndpoint resolves the host and mapped port of a started container
func containerEndpoint(ctx context.Context, c testcontainers.Container, port nat.Port) (string, string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", "", fmt.Errorf("get host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", "", fmt.Errorf("get port %s: %w", port, err)
	}
	return host, mapped.Port(), nil
}
