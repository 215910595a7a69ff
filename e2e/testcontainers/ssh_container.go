package testcontainers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// Credentials baked into the test container.
	User     = "testuser"
	Password = "password"

	image   = "lscr.io/linuxserver/openssh-server:latest"
	sshPort = "2222/tcp"
)

// SSHContainer represents an SSH server container for end-to-end tests.
type SSHContainer struct {
	Container testcontainers.Container
	Host      string
	Port      int
}

// StartSSHContainer starts an sshd container with password auth enabled.
func StartSSHContainer(ctx context.Context) (*SSHContainer, error) {
	return StartSSHContainerWithKey(ctx, "")
}

// StartSSHContainerWithKey additionally installs an authorized public key
// (OpenSSH wire format) for the test user.
func StartSSHContainerWithKey(ctx context.Context, authorizedKey string) (*SSHContainer, error) {
	env := map[string]string{
		"PUID":            "1000",
		"PGID":            "1000",
		"USER_NAME":       User,
		"USER_PASSWORD":   Password,
		"PASSWORD_ACCESS": "true",
	}
	if authorizedKey != "" {
		env["PUBLIC_KEY"] = authorizedKey
	}

	req := testcontainers.ContainerRequest{
		Image:        image,
		Env:          env,
		ExposedPorts: []string{sshPort},
		WaitingFor:   wait.ForListeningPort(sshPort).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, sshPort)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %v", err)
	}

	return &SSHContainer{
		Container: container,
		Host:      host,
		Port:      mappedPort.Int(),
	}, nil
}

// Stop stops the SSH server container.
func (c *SSHContainer) Stop(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
