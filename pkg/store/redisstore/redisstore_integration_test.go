//go:build integration

package redisstore

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wilhg/qreplay/pkg/store/storetest"
)

func TestRedisConformance(t *testing.T) {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skip: cannot start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	addr, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	st, err := Open(ctx, addr, WithPrefix("qreplay-test"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	storetest.Run(t, "redis-", st)
}
