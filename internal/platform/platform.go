package platform

import (
	"io/fs"
	"os"
)

// Source is a read-only view of a host's root file system.
type Source interface {
	fs.FS

	// Name identifies the host for logs, e.g. "local:/" or "ssh:admin@db1:22".
	Name() string

	// Close releases any connection held by the source.
	Close() error
}

// localSource serves files from a directory on this machine.
type localSource struct {
	fs.FS
	root string
}

// NewLocal returns a Source rooted at root, normally "/". A different root
// lets the readers inspect a container's or a chroot's /proc.
func NewLocal(root string) Source {
	if root == "" {
		root = "/"
	}
	return &localSource{FS: os.DirFS(root), root: root}
}

func (s *localSource) Name() string {
	return "local:" + s.root
}

func (s *localSource) Close() error {
	return nil
}

// ReadDir forwards to the wrapped os.DirFS so fs.ReadDir keeps its fast path.
func (s *localSource) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(s.FS, name)
}
