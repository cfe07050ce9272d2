package platform

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// exitError mimics *ssh.ExitError.
type exitError int

func (e exitError) Error() string   { return fmt.Sprintf("Process exited with status %d", int(e)) }
func (e exitError) ExitStatus() int { return int(e) }

// fakeRunner answers commands from a table instead of a live SSH session.
type fakeRunner struct {
	mu       sync.Mutex
	results  map[string]string
	errors   map[string]error
	commands []string
	closed   bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: make(map[string]string),
		errors:  make(map[string]error),
	}
}

func (f *fakeRunner) setFile(name, content string) {
	f.results[openScript(name)] = "f\n" + content
}

func (f *fakeRunner) setDir(name, listing string) {
	f.results[openScript(name)] = "d\n" + listing
}

func (f *fakeRunner) setError(name string, err error) {
	f.errors[openScript(name)] = err
}

func (f *fakeRunner) run(ctx context.Context, cmd string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errors[cmd]; ok {
		return nil, fmt.Errorf("command failed: %w", err)
	}
	if out, ok := f.results[cmd]; ok {
		return []byte(out), nil
	}
	return nil, fmt.Errorf("command failed: %w", exitError(exitNotExist))
}

func (f *fakeRunner) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestRemote(t *testing.T, runner *fakeRunner) *remoteFS {
	t.Helper()
	r := newRemoteFS(context.Background(), runner, "ssh:test@host:22", testr.New(t))
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRemoteReadFile(t *testing.T) {
	runner := newFakeRunner()
	runner.setFile("proc/meminfo", "MemTotal: 100 kB\nMemFree: 25 kB\n")
	r := newTestRemote(t, runner)

	data, err := r.ReadFile("proc/meminfo")
	require.NoError(t, err)
	assert.Equal(t, "MemTotal: 100 kB\nMemFree: 25 kB\n", string(data))

	data, err = fs.ReadFile(r, "proc/meminfo")
	require.NoError(t, err)
	assert.Len(t, data, 32)
}

func TestRemoteOpenFile(t *testing.T) {
	runner := newFakeRunner()
	runner.setFile("proc/1/cmdline", "/sbin/init\x00splash\x00")
	r := newTestRemote(t, runner)

	f, err := r.Open("proc/1/cmdline")
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "cmdline", info.Name())
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(18), info.Size())

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "/sbin/init\x00splash\x00", string(data))
}

func TestRemoteReadDir(t *testing.T) {
	runner := newFakeRunner()
	runner.setDir("proc", "d 42\nf uptime\nl self\nd 1\nbroken\nd \n")
	r := newTestRemote(t, runner)

	entries, err := fs.ReadDir(r, "proc")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"1", "42", "self", "uptime"}, names)
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, fs.ModeSymlink, entries[2].Type())
	assert.False(t, entries[3].IsDir())
}

func TestRemoteOpenDir(t *testing.T) {
	runner := newFakeRunner()
	runner.setDir("proc", "d 1\nd 2\nd 3\n")
	r := newTestRemote(t, runner)

	f, err := r.Open("proc")
	require.NoError(t, err)
	dir, ok := f.(fs.ReadDirFile)
	require.True(t, ok)

	first, err := dir.ReadDir(2)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	rest, err := dir.ReadDir(2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	_, err = dir.ReadDir(2)
	assert.ErrorIs(t, err, io.EOF)

	_, err = f.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestRemoteErrors(t *testing.T) {
	runner := newFakeRunner()
	runner.setError("proc/1/environ", exitError(exitPermission))
	runner.setError("proc/stat", errors.New("connection reset"))
	runner.setFile("proc", "")
	runner.setDir("proc/1", "f stat\n")
	r := newTestRemote(t, runner)

	_, err := r.ReadFile("proc/999/stat")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = r.ReadFile("proc/1/environ")
	assert.ErrorIs(t, err, fs.ErrPermission)

	_, err = r.ReadFile("proc/stat")
	var pathErr *fs.PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "proc/stat", pathErr.Path)
	assert.NotErrorIs(t, err, fs.ErrNotExist)

	_, err = r.ReadFile("proc/1")
	assert.Error(t, err, "reading a directory")

	_, err = r.ReadDir("proc")
	assert.Error(t, err, "listing a file")

	_, err = r.Open("/etc/passwd")
	assert.ErrorIs(t, err, fs.ErrInvalid)
	_, err = r.Open("proc/../etc/shadow")
	assert.ErrorIs(t, err, fs.ErrInvalid)
}

func TestRemoteMalformedResponse(t *testing.T) {
	runner := newFakeRunner()
	runner.results[openScript("proc/version")] = "Linux version 6.1"
	r := newTestRemote(t, runner)

	_, err := r.ReadFile("proc/version")
	assert.ErrorContains(t, err, "malformed")
}

func TestRemoteClose(t *testing.T) {
	runner := newFakeRunner()
	runner.setFile("proc/uptime", "1.0 2.0\n")
	r := newRemoteFS(context.Background(), runner, "ssh:test@host:22", testr.New(t))

	require.NoError(t, r.Close())
	assert.True(t, runner.closed)

	_, err := r.ReadFile("proc/uptime")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteCheckLinux(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		wantErr string
	}{
		{name: "linux", output: "Linux\n"},
		{name: "darwin", output: "Darwin\n", wantErr: "unsupported remote OS: Darwin"},
		{name: "uname fails", err: exitError(127), wantErr: "failed to detect remote OS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			if tt.err != nil {
				runner.errors["uname -s"] = tt.err
			} else {
				runner.results["uname -s"] = tt.output
			}
			err := newTestRemote(t, runner).checkLinux()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestOpenScriptQuotesPath(t *testing.T) {
	script := openScript("tmp/it's; rm -rf")

	assert.Contains(t, script, `'/tmp/it'\''s; rm -rf'`)
	assert.NotContains(t, script, "/tmp/it's")
	assert.Contains(t, openScript("."), "[ -d / ]")
}

func TestNewRemoteValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  RemoteConfig
		wantErr string
	}{
		{
			name:    "missing host",
			config:  RemoteConfig{User: "testuser", AuthMethod: PasswordAuth{Password: "testpass"}},
			wantErr: "host is required",
		},
		{
			name:    "missing user",
			config:  RemoteConfig{Host: "example.com", AuthMethod: PasswordAuth{Password: "testpass"}},
			wantErr: "user is required",
		},
		{
			name:    "missing auth method",
			config:  RemoteConfig{Host: "example.com", User: "testuser"},
			wantErr: "authentication method is required",
		},
		{
			name:    "bad port",
			config:  RemoteConfig{Host: "example.com", User: "testuser", Port: 70000, AuthMethod: AgentAuth{}},
			wantErr: "invalid port",
		},
		{
			name: "unreadable key",
			config: RemoteConfig{
				Host:       "example.com",
				User:       "testuser",
				AuthMethod: KeyAuth{PrivateKeyPath: "/nonexistent/id_ed25519"},
			},
			wantErr: "failed to read private key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRemote(context.Background(), tt.config, testr.New(t))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuildSSHConfig(t *testing.T) {
	t.Run("password with insecure host keys", func(t *testing.T) {
		cfg, err := buildSSHConfig(RemoteConfig{
			User:                  "admin",
			AuthMethod:            PasswordAuth{Password: "secret"},
			InsecureIgnoreHostKey: true,
			DialTimeout:           DefaultDialTimeout,
		})
		require.NoError(t, err)
		assert.Equal(t, "admin", cfg.User)
		assert.Len(t, cfg.Auth, 1)
		assert.Equal(t, DefaultDialTimeout, cfg.Timeout)
	})

	t.Run("agent without socket", func(t *testing.T) {
		t.Setenv("SSH_AUTH_SOCK", "")
		_, err := buildSSHConfig(RemoteConfig{User: "admin", AuthMethod: AgentAuth{}})
		assert.ErrorContains(t, err, "SSH_AUTH_SOCK not set")
	})

	t.Run("key file", func(t *testing.T) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		block, err := ssh.MarshalPrivateKey(priv, "")
		require.NoError(t, err)
		keyPath := filepath.Join(t.TempDir(), "id_ed25519")
		require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

		cfg, err := buildSSHConfig(RemoteConfig{
			User:                  "admin",
			AuthMethod:            KeyAuth{PrivateKeyPath: keyPath},
			InsecureIgnoreHostKey: true,
		})
		require.NoError(t, err)
		assert.Len(t, cfg.Auth, 1)
	})

	t.Run("garbage key file", func(t *testing.T) {
		keyPath := filepath.Join(t.TempDir(), "id_rsa")
		require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0o600))

		_, err := buildSSHConfig(RemoteConfig{User: "admin", AuthMethod: KeyAuth{PrivateKeyPath: keyPath}})
		assert.ErrorContains(t, err, "failed to parse private key")
	})
}

func TestHostKeyCallback(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize("example.com:22")}, sshPub)
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

	cb, err := hostKeyCallback(RemoteConfig{KnownHostsPath: path})
	require.NoError(t, err)
	require.NotNil(t, cb)

	_, err = hostKeyCallback(RemoteConfig{KnownHostsPath: "/nonexistent/path/known_hosts"})
	assert.ErrorContains(t, err, "failed to load known_hosts")

	cb, err = hostKeyCallback(RemoteConfig{InsecureIgnoreHostKey: true, KnownHostsPath: "/nonexistent"})
	require.NoError(t, err)
	assert.NotNil(t, cb)
}
