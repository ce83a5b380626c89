//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/zipgrid/build"
)

// --- Container Setup ---

// service is a container shared across all tests in the package.
type service struct {
	once sync.Once
	addr string
	err  error
}

var (
	registrySvc service
	redisSvc    service
	minioSvc    service
)

const (
	minioUser     = "zipgrid"
	minioPassword = "zipgrid-secret"
)

func skipWithoutDocker(tb testing.TB) {
	tb.Helper()
	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}
}

func (s *service) get(tb testing.TB, req testcontainers.ContainerRequest, port string) string {
	tb.Helper()
	skipWithoutDocker(tb)

	s.once.Do(func() {
		s.addr, s.err = startContainer(context.Background(), req, port)
	})
	if s.err != nil {
		tb.Fatalf("start %s container: %v", req.Image, s.err)
	}
	return s.addr
}

// startContainer starts req and returns the host:port address of port.
// Cleanup is handled by the testcontainers reaper.
func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", fmt.Errorf("resolve port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

func getRegistry(tb testing.TB) string {
	tb.Helper()
	return registrySvc.get(tb, testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}, "5000/tcp")
}

func getRedis(tb testing.TB) string {
	tb.Helper()
	return redisSvc.get(tb, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379/tcp")
}

func getMinio(tb testing.TB) string {
	tb.Helper()
	return minioSvc.get(tb, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStatusCodeMatcher(isOKStatus),
	}, "9000/tcp")
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Test Data Helpers ---

// testRef generates a unique reference for a test to avoid collisions.
func testRef(registryAddr, testName string) string {
	return fmt.Sprintf("%s/test/%s:latest", registryAddr, testName)
}

// records is a small dataset spanning several shards.
var records = []build.Record{
	{Code: "94110", City: "SAN FRANCISCO", Pop: 870000, I: 12, J: 40},
	{Code: "94114", City: "SAN FRANCISCO", Pop: 870000, I: 12, J: 41},
	{Code: "94601", City: "OAKLAND", Pop: 430000, I: 13, J: 40},
	{Code: "10001", City: "NEW YORK", Pop: 8400000, I: 80, J: 20},
	{Code: "10002", City: "NEW YORK", Pop: 8400000, I: 80, J: 21},
	{Code: "60601", City: "CHICAGO", Pop: 2700000, I: 55, J: 30},
}

// buildDataset writes the shard tree for records to a temporary directory.
func buildDataset(tb testing.TB) string {
	tb.Helper()
	dir := tb.TempDir()
	_, err := build.Write(context.Background(), build.DirSink{Dir: dir}, records)
	require.NoError(tb, err)
	return dir
}
