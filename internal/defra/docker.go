package defra

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	DefaultImage         = "sourcenetwork/defradb:latest"
	DefaultContainerName = "spellbook-defra"
	ContainerNamePrefix  = "spellbook-defra-"
	DefaultPort          = "9181"
	ContainerPort        = "9181/tcp"
	DataDir              = "/data"
	Label                = "spellbook-defra"
	HomeLabel            = "spellbook.home"

	DefaultReadyTimeout = 30 * time.Second
)

var (
	// ErrContainerNotFound is returned by operations that need an existing container.
	ErrContainerNotFound = errors.New("defra container not found")
	// ErrContainerMismatch is returned when a container with our name exists
	// but was created with a different port or data directory.
	ErrContainerMismatch = errors.New("defra container does not match configuration")
)

// GenerateContainerName derives a container name from a home directory so
// two spellbook homes on one host never share a node.
func GenerateContainerName(homePath string) string {
	sum := sha256.Sum256([]byte(homePath))
	return ContainerNamePrefix + hex.EncodeToString(sum[:])[:8]
}

// ContainerStatus represents the state of the DefraDB container.
type ContainerStatus string

const (
	StatusRunning   ContainerStatus = "running"
	StatusStopped   ContainerStatus = "stopped"
	StatusNotFound  ContainerStatus = "not_found"
	StatusUnhealthy ContainerStatus = "unhealthy"
	StatusStarting  ContainerStatus = "starting"
)

// statusFromState maps a Docker container state (and health, when the
// container reports one) to a ContainerStatus.
func statusFromState(state, health string) ContainerStatus {
	switch state {
	case "running":
		if health == "unhealthy" {
			return StatusUnhealthy
		}
		return StatusRunning
	case "exited", "dead":
		return StatusStopped
	case "created", "restarting":
		return StatusStarting
	case "":
		return StatusNotFound
	}
	return ContainerStatus(state)
}

// DockerManager manages the DefraDB Docker container lifecycle.
type DockerManager struct {
	cli           *client.Client
	containerName string
	imageName     string
	dataPath      string // host path for data persistence (~/.spellbook/defradb)
	hostPort      string
	readyTimeout  time.Duration
	labels        map[string]string
}

// DockerConfig holds configuration for the Docker manager.
type DockerConfig struct {
	ContainerName string
	HomePath      string // used to derive ContainerName when that is empty
	Image         string
	DataPath      string
	HostPort      string
	ReadyTimeout  time.Duration
	Labels        map[string]string // extra labels, e.g. for test cleanup
}

// NewDockerManager creates a new Docker manager for DefraDB.
func NewDockerManager(cfg DockerConfig) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if cfg.ContainerName == "" {
		if cfg.HomePath != "" {
			cfg.ContainerName = GenerateContainerName(cfg.HomePath)
		} else {
			cfg.ContainerName = DefaultContainerName
		}
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.HostPort == "" {
		cfg.HostPort = DefaultPort
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}

	return &DockerManager{
		cli:           cli,
		containerName: cfg.ContainerName,
		imageName:     cfg.Image,
		dataPath:      cfg.DataPath,
		hostPort:      cfg.HostPort,
		readyTimeout:  cfg.ReadyTimeout,
		labels:        containerLabels(cfg),
	}, nil
}

func containerLabels(cfg DockerConfig) map[string]string {
	labels := map[string]string{Label: "true"}
	if cfg.HomePath != "" {
		labels[HomeLabel] = cfg.HomePath
	}
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	return labels
}

// ContainerName returns the name of the managed container.
func (m *DockerManager) ContainerName() string {
	return m.containerName
}

// ReadyTimeout is how long Start waits for the API to answer.
func (m *DockerManager) ReadyTimeout() time.Duration {
	return m.readyTimeout
}

// Close closes the Docker client.
func (m *DockerManager) Close() error {
	return m.cli.Close()
}

// URL returns the DefraDB API URL.
func (m *DockerManager) URL() string {
	return "http://127.0.0.1:" + m.hostPort
}

// containerRef is the container we manage as last seen by Docker.
type containerRef struct {
	id     string
	status ContainerStatus
}

func (m *DockerManager) lookup(ctx context.Context) (containerRef, error) {
	args := filters.NewArgs(filters.Arg("name", "^/"+m.containerName+"$"))
	list, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return containerRef{}, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(list) == 0 {
		return containerRef{status: StatusNotFound}, nil
	}

	c := list[0]
	var health string
	if c.State == "running" {
		// Only inspect reports health; the list summary does not.
		if info, err := m.cli.ContainerInspect(ctx, c.ID); err == nil && info.State != nil && info.State.Health != nil {
			health = info.State.Health.Status
		}
	}
	return containerRef{id: c.ID, status: statusFromState(c.State, health)}, nil
}

// Status returns the current status of the DefraDB container.
func (m *DockerManager) Status(ctx context.Context) (ContainerStatus, error) {
	ref, err := m.lookup(ctx)
	return ref.status, err
}

// Start creates, starts or reuses the DefraDB container and waits until its
// API answers. A container that already exists must match our port and data
// directory, otherwise ErrContainerMismatch is returned.
func (m *DockerManager) Start(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	ref, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	if ref.status == StatusNotFound {
		return m.create(ctx)
	}

	if err := m.ValidateExisting(ctx); err != nil {
		return err
	}
	switch ref.status {
	case StatusRunning, StatusUnhealthy, StatusStarting:
		return m.WaitReady(ctx, m.readyTimeout)
	case StatusStopped:
		if err := m.cli.ContainerStart(ctx, ref.id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
		return m.WaitReady(ctx, m.readyTimeout)
	}
	return fmt.Errorf("container in unexpected state: %s", ref.status)
}

// Stop stops the DefraDB container. Data is kept.
func (m *DockerManager) Stop(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	if ref.status == StatusNotFound || ref.status == StatusStopped {
		return nil
	}

	timeout := 10
	if err := m.cli.ContainerStop(ctx, ref.id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove stops and removes the DefraDB container. The bind-mounted data
// directory is left on disk.
func (m *DockerManager) Remove(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	if ref.status == StatusNotFound {
		return nil
	}

	if err := m.cli.ContainerRemove(ctx, ref.id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Logs returns the last tail lines of container output.
func (m *DockerManager) Logs(ctx context.Context, tail string) (string, error) {
	ref, err := m.lookup(ctx)
	if err != nil {
		return "", err
	}
	if ref.status == StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrContainerNotFound, m.containerName)
	}

	rc, err := m.cli.ContainerLogs(ctx, ref.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return string(out), nil
}

// ValidateExisting checks that an existing container publishes our host port
// and mounts our data directory. A missing container is valid.
func (m *DockerManager) ValidateExisting(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	if ref.status == StatusNotFound {
		return nil
	}

	info, err := m.cli.ContainerInspect(ctx, ref.id)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}

	var boundPort string
	if info.HostConfig != nil {
		if bindings := info.HostConfig.PortBindings[nat.Port(ContainerPort)]; len(bindings) > 0 {
			boundPort = bindings[0].HostPort
		}
	}
	if boundPort != m.hostPort {
		return fmt.Errorf("%w: bound to port %q, want %q", ErrContainerMismatch, boundPort, m.hostPort)
	}

	if m.dataPath == "" {
		return nil
	}
	for _, mnt := range info.Mounts {
		if mnt.Destination != DataDir {
			continue
		}
		if mnt.Source != m.dataPath {
			return fmt.Errorf("%w: mounts %s, want %s", ErrContainerMismatch, mnt.Source, m.dataPath)
		}
		return nil
	}
	return fmt.Errorf("%w: no mount for %s", ErrContainerMismatch, DataDir)
}

// WaitReady polls the DefraDB health check once a second until it passes,
// the timeout elapses or ctx is done.
func (m *DockerManager) WaitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := NewClient(m.URL())
	return retry.Do(
		func() error { return c.HealthCheck(ctx) },
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// startArgs is the defradb command line run inside the container.
func startArgs() []string {
	return []string{
		"start",
		"--no-keyring",
		"--url", "0.0.0.0:" + DefaultPort,
		"--store", "badger",
		"--rootdir", DataDir,
	}
}

// create pulls the image if needed, then creates and starts a new container.
func (m *DockerManager) create(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}

	cfg := &container.Config{
		Image:        m.imageName,
		Cmd:          startArgs(),
		Labels:       m.labels,
		ExposedPorts: nat.PortSet{nat.Port(ContainerPort): struct{}{}},
		Healthcheck: &container.HealthConfig{
			Test:        []string{"CMD", "curl", "-sf", "http://localhost:" + DefaultPort + "/health-check"},
			Interval:    2 * time.Second,
			Timeout:     5 * time.Second,
			Retries:     10,
			StartPeriod: 5 * time.Second,
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(ContainerPort): {{HostIP: "127.0.0.1", HostPort: m.hostPort}},
		},
	}
	if m.dataPath != "" {
		hostCfg.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: m.dataPath, Target: DataDir}}
	}

	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, m.containerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}

	return m.WaitReady(ctx, m.readyTimeout)
}

// ensureImage pulls the DefraDB image if it is not present locally.
func (m *DockerManager) ensureImage(ctx context.Context) error {
	if _, err := m.cli.ImageInspect(ctx, m.imageName); err == nil {
		return nil
	}

	rc, err := m.cli.ImagePull(ctx, m.imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", m.imageName, err)
	}
	defer rc.Close()

	// The pull completes only once the progress stream is drained.
	_, err = io.Copy(io.Discard, rc)
	return err
}
