package platform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by NewRemote when the corresponding field is zero.
const (
	DefaultSSHPort        = 22
	DefaultCommandTimeout = 5 * time.Second
	DefaultDialTimeout    = 10 * time.Second
)

// RemoteConfig specifies connection parameters for a remote host.
type RemoteConfig struct {
	// Host is the hostname or IP address of the remote system.
	Host string

	// Port is the SSH port (default: 22).
	Port int

	// User is the SSH username.
	User string

	// AuthMethod specifies how to authenticate.
	AuthMethod AuthMethod

	// KnownHostsPath is the known_hosts file used to verify the host key.
	// Defaults to ~/.ssh/known_hosts.
	KnownHostsPath string

	// InsecureIgnoreHostKey skips host key verification. Only meant for
	// throwaway test hosts.
	InsecureIgnoreHostKey bool

	// CommandTimeout bounds every remote read (default: 5s).
	CommandTimeout time.Duration

	// DialTimeout bounds the TCP connect and SSH handshake (default: 10s).
	DialTimeout time.Duration
}

// AuthMethod defines SSH authentication methods.
type AuthMethod interface {
	isAuthMethod()
}

// PasswordAuth authenticates using a password.
type PasswordAuth struct {
	Password string
}

func (PasswordAuth) isAuthMethod() {}

// KeyAuth authenticates using an SSH private key.
type KeyAuth struct {
	PrivateKeyPath string
	Passphrase     string // optional, for encrypted keys
}

func (KeyAuth) isAuthMethod() {}

// AgentAuth authenticates using the SSH agent.
type AgentAuth struct{}

func (AgentAuth) isAuthMethod() {}

// Address returns host:port.
func (c RemoteConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

func (c RemoteConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.AuthMethod == nil {
		return fmt.Errorf("authentication method is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func (c RemoteConfig) withDefaults() RemoteConfig {
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	return c
}

// ParseTarget splits "user@host[:port]" into its parts. A missing port is
// returned as 0.
func ParseTarget(target string) (user, host string, port int, err error) {
	user, hostPort, ok := strings.Cut(target, "@")
	if !ok || user == "" || hostPort == "" {
		return "", "", 0, fmt.Errorf("invalid target %q: expected user@host[:port]", target)
	}
	host = hostPort
	if h, p, found := strings.Cut(hostPort, ":"); found {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid port in target %q", target)
		}
		host = h
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("invalid target %q: empty host", target)
	}
	return user, host, port, nil
}
