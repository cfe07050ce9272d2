// Package platform provides the file systems go-procstat reads metrics from.
//
// Every reader in internal/monitor works against an io/fs.FS rooted at the
// host's "/". This package supplies two implementations of that view.
//
// # Local
//
// NewLocal wraps os.DirFS. Pointing it at a directory other than "/" lets the
// readers inspect a container root or a captured copy of /proc:
//
//	src := platform.NewLocal("/")
//	defer src.Close()
//
// # Remote
//
// NewRemote connects to a Linux host over SSH and serves each Open with a
// single shell command (cat for files, find for directories). Nothing needs
// to be installed on the target:
//
//	src, err := platform.NewRemote(ctx, platform.RemoteConfig{
//	    Host:       "db1.example.com",
//	    User:       "monitor",
//	    AuthMethod: platform.KeyAuth{PrivateKeyPath: "/home/me/.ssh/id_ed25519"},
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
// Host keys are verified against ~/.ssh/known_hosts unless KnownHostsPath
// names another file or InsecureIgnoreHostKey is set.
//
// Missing paths are reported as fs.ErrNotExist and unreadable ones as
// fs.ErrPermission, so callers handle local and remote failures alike.
package platform
