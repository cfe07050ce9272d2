// Package procstat provides the public API for reading Linux process and
// system metrics from procfs.
//
// # Basic Usage
//
// Read the local host:
//
//	m, err := procstat.New(ctx, procstat.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//
//	snap, err := m.Snapshot(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(snap.System.OSName, snap.System.MemoryUtilization)
//
// # Sources
//
// A Monitor reads from exactly one source:
//
//   - Options.FS: any [io/fs.FS] rooted at "/" (tests, captured trees)
//   - Options.Remote: a Linux host reached over SSH
//   - Options.Root: a local directory, "/" by default
//
// [NewFromConfig] fills Options from a Lua configuration file and can watch
// that file for changes with [Monitor.WatchConfig].
//
// # Readings
//
// Every metric is best-effort. Values that could not be read carry
// Valid=false rather than an error, so one vanished process or one missing
// file never fails a whole snapshot. Errors are returned only for problems
// with the source itself or for a cancelled context.
//
// All Monitor methods are safe for concurrent use.
package procstat
