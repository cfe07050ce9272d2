package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Exit codes the open script uses to report a missing or unreadable path.
const (
	exitNotExist   = 44
	exitPermission = 45
)

// commandRunner executes a shell command on the remote host and returns its
// standard output.
type commandRunner interface {
	run(ctx context.Context, cmd string) ([]byte, error)
	close() error
}

// remoteFS is an fs.FS backed by shell commands run over SSH. Every Open is
// one round trip: the whole file, or the whole directory listing, is
// transferred and then served from memory.
type remoteFS struct {
	runner commandRunner
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	log    logr.Logger
}

var (
	_ fs.ReadFileFS = (*remoteFS)(nil)
	_ fs.ReadDirFS  = (*remoteFS)(nil)
)

// NewRemote connects to a Linux host over SSH and returns a Source that reads
// its files with cat and find. Cancelling ctx aborts in-flight reads.
func NewRemote(ctx context.Context, config RemoteConfig, log logr.Logger) (Source, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	sshConfig, err := buildSSHConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	addr := config.Address()
	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	runner := &sshRunner{client: client, timeout: config.CommandTimeout}
	fsys := newRemoteFS(ctx, runner, fmt.Sprintf("ssh:%s@%s", config.User, addr), log)

	if err := fsys.checkLinux(); err != nil {
		fsys.Close()
		return nil, err
	}
	fsys.log.V(1).Info("connected to remote host")
	return fsys, nil
}

func newRemoteFS(ctx context.Context, runner commandRunner, name string, log logr.Logger) *remoteFS {
	ctx, cancel := context.WithCancel(ctx)
	return &remoteFS{
		runner: runner,
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		log:    log.WithValues("source", name),
	}
}

func (r *remoteFS) Name() string {
	return r.name
}

func (r *remoteFS) Close() error {
	r.cancel()
	return r.runner.close()
}

// checkLinux makes sure the host has a procfs layout the readers understand.
func (r *remoteFS) checkLinux() error {
	out, err := r.runner.run(r.ctx, "uname -s")
	if err != nil {
		return fmt.Errorf("failed to detect remote OS: %w", err)
	}
	if kernel := strings.TrimSpace(string(out)); !strings.EqualFold(kernel, "linux") {
		return fmt.Errorf("unsupported remote OS: %s", kernel)
	}
	return nil
}

// Open implements fs.FS.
func (r *remoteFS) Open(name string) (fs.File, error) {
	isDir, payload, err := r.fetch("open", name)
	if err != nil {
		return nil, err
	}
	info := fileInfo{name: baseName(name), size: int64(len(payload)), dir: isDir}
	if isDir {
		return &memDir{info: info, entries: parseListing(payload)}, nil
	}
	return &memFile{info: info, Reader: bytes.NewReader(payload)}, nil
}

// ReadFile implements fs.ReadFileFS.
func (r *remoteFS) ReadFile(name string) ([]byte, error) {
	isDir, payload, err := r.fetch("read", name)
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}
	return payload, nil
}

// ReadDir implements fs.ReadDirFS.
func (r *remoteFS) ReadDir(name string) ([]fs.DirEntry, error) {
	isDir, payload, err := r.fetch("readdir", name)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}
	return parseListing(payload), nil
}

// fetch runs the open script for name. The first output line is "d" or "f";
// the rest is the directory listing or the file contents.
func (r *remoteFS) fetch(op, name string) (bool, []byte, error) {
	if !fs.ValidPath(name) {
		return false, nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}

	out, err := r.runner.run(r.ctx, openScript(name))
	if err != nil {
		r.log.V(2).Info("remote read failed", "path", name, "error", err.Error())
		return false, nil, &fs.PathError{Op: op, Path: name, Err: classify(err)}
	}

	tag, payload, ok := bytes.Cut(out, []byte{'\n'})
	if !ok || len(tag) != 1 || (tag[0] != 'd' && tag[0] != 'f') {
		return false, nil, &fs.PathError{Op: op, Path: name, Err: errors.New("malformed remote response")}
	}
	return tag[0] == 'd', payload, nil
}

func openScript(name string) string {
	p := shellEscape("/" + name)
	if name == "." {
		p = "/"
	}
	return fmt.Sprintf(
		"if [ -d %[1]s ]; then echo d; find %[1]s -mindepth 1 -maxdepth 1 -printf '%%y %%f\\n'; "+
			"elif [ -r %[1]s ]; then echo f; cat -- %[1]s; "+
			"elif [ -e %[1]s ]; then exit %[2]d; else exit %[3]d; fi",
		p, exitPermission, exitNotExist)
}

// classify maps the script's exit status onto the fs sentinel errors.
func classify(err error) error {
	var exit interface{ ExitStatus() int }
	if errors.As(err, &exit) {
		switch exit.ExitStatus() {
		case exitNotExist:
			return fs.ErrNotExist
		case exitPermission:
			return fs.ErrPermission
		}
	}
	return err
}

// parseListing decodes find's "%y %f" lines, sorted by name.
func parseListing(payload []byte) []fs.DirEntry {
	var entries []fs.DirEntry
	sc := bufio.NewScanner(bytes.NewReader(payload))
	for sc.Scan() {
		kind, name, ok := strings.Cut(sc.Text(), " ")
		if !ok || len(kind) != 1 || name == "" || strings.Contains(name, "/") {
			continue
		}
		entries = append(entries, dirEntry{fileInfo{name: name, dir: kind == "d", link: kind == "l"}})
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })
	return entries
}

func baseName(name string) string {
	if name == "." {
		return "/"
	}
	return name[strings.LastIndexByte(name, '/')+1:]
}

// sshRunner runs commands in fresh sessions on a shared client.
type sshRunner struct {
	client  *ssh.Client
	timeout time.Duration
}

func (s *sshRunner) run(ctx context.Context, cmd string) ([]byte, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), nil
	case <-timer.C:
		_ = session.Signal(ssh.SIGKILL)
		return nil, fmt.Errorf("command timed out after %v", s.timeout)
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	}
}

func (s *sshRunner) close() error {
	return s.client.Close()
}

func buildSSHConfig(config RemoteConfig) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	switch auth := config.AuthMethod.(type) {
	case PasswordAuth:
		authMethods = append(authMethods, ssh.Password(auth.Password))
	case KeyAuth:
		key, err := os.ReadFile(auth.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		var signer ssh.Signer
		if auth.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(auth.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	case AgentAuth:
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
		}
		// Defer the agent connection until the handshake asks for keys.
		authMethods = append(authMethods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			agentConn, err := net.Dial("unix", socket)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to SSH agent: %w", err)
			}
			defer agentConn.Close()
			return agent.NewClient(agentConn).Signers()
		}))
	default:
		return nil, fmt.Errorf("unsupported auth method type: %T", auth)
	}

	hostKeys, err := hostKeyCallback(config)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            config.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeys,
		Timeout:         config.DialTimeout,
	}, nil
}

func hostKeyCallback(config RemoteConfig) (ssh.HostKeyCallback, error) {
	if config.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := config.KnownHostsPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", path, err)
	}
	return cb, nil
}

// fileInfo describes a remote file. Mode bits and times are not transferred.
type fileInfo struct {
	name string
	size int64
	dir  bool
	link bool
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return fi.dir }
func (fi fileInfo) Sys() any           { return nil }

func (fi fileInfo) Mode() fs.FileMode {
	switch {
	case fi.dir:
		return fs.ModeDir | 0o555
	case fi.link:
		return fs.ModeSymlink | 0o777
	default:
		return 0o444
	}
}

type dirEntry struct {
	info fileInfo
}

func (d dirEntry) Name() string               { return d.info.name }
func (d dirEntry) IsDir() bool                { return d.info.dir }
func (d dirEntry) Type() fs.FileMode          { return d.info.Mode().Type() }
func (d dirEntry) Info() (fs.FileInfo, error) { return d.info, nil }

type memFile struct {
	*bytes.Reader
	info fileInfo
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memFile) Close() error               { return nil }

type memDir struct {
	info    fileInfo
	entries []fs.DirEntry
	offset  int
}

func (d *memDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *memDir) Close() error               { return nil }

func (d *memDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: errors.New("is a directory")}
}

func (d *memDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return rest[:n], nil
}
