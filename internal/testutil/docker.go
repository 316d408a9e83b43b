package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

const (
	// DockerTestsEnv opts in to tests that start real containers.
	DockerTestsEnv = "SPELLBOOK_DOCKER_TESTS"

	// CleanupLabel marks containers created by a test; its value is the
	// test name.
	CleanupLabel = "spellbook-test"
)

// TestingT is the part of testing.T the Docker helpers need.
type TestingT interface {
	Name() string
	Cleanup(func())
	Logf(format string, args ...any)
	Skipf(format string, args ...any)
	Helper()
}

// DockerClient returns a Docker client and removes the test's labelled
// containers when it ends. The test is skipped unless SPELLBOOK_DOCKER_TESTS
// is set and the daemon answers a ping.
func DockerClient(t TestingT) *client.Client {
	t.Helper()

	if os.Getenv(DockerTestsEnv) == "" {
		t.Skipf("set %s=1 to run Docker integration tests", DockerTestsEnv)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("failed to create docker client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skipf("docker is not running: %v", err)
	}

	t.Cleanup(func() {
		removeLabelled(t, cli)
		cli.Close()
	})
	return cli
}

// UniqueContainerName returns spellbook-test-<prefix>-<test>-<random>.
func UniqueContainerName(t TestingT, prefix string) string {
	t.Helper()
	return strings.Join([]string{"spellbook-test", prefix, containerSafe(t.Name()), randHex(4)}, "-")
}

// ContainerLabels returns the labels DockerClient cleans up by.
func ContainerLabels(t TestingT) map[string]string {
	return map[string]string{CleanupLabel: t.Name()}
}

func removeLabelled(t TestingT, cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := filters.NewArgs(filters.Arg("label", CleanupLabel+"="+t.Name()))
	list, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		t.Logf("cleanup: list containers: %v", err)
		return
	}

	for _, c := range list {
		name := c.ID[:12]
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			t.Logf("cleanup: remove %s: %v", name, err)
			continue
		}
		t.Logf("cleanup: removed %s", name)
	}
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// containerSafe keeps letters and digits, turns separators into dashes and
// caps the result at 30 bytes.
func containerSafe(name string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '/', r == '_', r == '-':
			return '-'
		}
		return -1
	}, name)
	if len(out) > 30 {
		out = out[:30]
	}
	return out
}
