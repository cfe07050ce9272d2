// Command procstat prints system and per-process metrics read from a Linux
// /proc tree: the local host, a directory holding a copy of one, or a remote
// host over SSH.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/opd-ai/go-procstat/internal/config"
	"github.com/opd-ai/go-procstat/internal/profiling"
	"github.com/opd-ai/go-procstat/pkg/procstat"
)

// Version is the current version of procstat.
// This default value can be overridden at build time using:
//
//	go build -ldflags "-X main.Version=x.y.z"
var Version = "0.1.0-dev"

// passwordEnv holds the SSH password; it is never taken from a flag.
const passwordEnv = "PROCSTAT_SSH_PASSWORD"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	configPath  string
	version     bool
	root        string
	remote      string
	sshKey      string
	knownHosts  string
	insecure    bool
	workers     int
	interval    time.Duration
	count       int
	json        bool
	sortBy      string
	top         int
	logLevel    string
	logFormat   string
	verbosity   int
	metricsAddr string
	cpuProfile  string
	memProfile  string

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("procstat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "c", "", "Path to Lua configuration file")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")
	fs.StringVar(&f.root, "root", "", "Directory standing in for / (default \"/\")")
	fs.StringVar(&f.remote, "remote", "", "Read a remote host over SSH: user@host[:port]")
	fs.StringVar(&f.sshKey, "ssh-key", "", "Private key for -remote; without it the SSH agent or $"+passwordEnv+" is used")
	fs.StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file for -remote (default ~/.ssh/known_hosts)")
	fs.BoolVar(&f.insecure, "insecure-ignore-host-key", false, "Skip host key verification for -remote")
	fs.IntVar(&f.workers, "workers", config.DefaultWorkers, "Processes read concurrently")
	fs.DurationVar(&f.interval, "interval", 0, "Sample repeatedly at this interval (0 samples once)")
	fs.IntVar(&f.count, "count", 0, "Stop after this many samples (0 runs until interrupted)")
	fs.BoolVar(&f.json, "json", false, "Print one JSON document per sample")
	fs.StringVar(&f.sortBy, "sort", "pid", "Process order: pid, cpu, ram or uptime")
	fs.IntVar(&f.top, "top", 0, "Print only the first N processes (0 prints all)")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", config.DefaultLogFormat, "Log format: console or json")
	fs.IntVar(&f.verbosity, "v", 0, "Log verbosity; 1 reports degraded reads")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve expvar metrics on this address, e.g. localhost:6060")
	fs.StringVar(&f.cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	fs.StringVar(&f.memProfile, "memprofile", "", "Write memory profile to file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	if f.configPath != "" {
		for _, name := range []string{"root", "remote", "ssh-key", "known-hosts", "insecure-ignore-host-key", "workers"} {
			if f.set[name] {
				return nil, fmt.Errorf("-%s cannot be combined with -c; set it in the configuration file", name)
			}
		}
	}
	return f, nil
}

// flagConfig builds the configuration used when no -c file is given.
func (f *flags) flagConfig() *config.Config {
	cfg := config.DefaultConfig()
	if f.root != "" {
		cfg.Source.Root = f.root
	}
	if f.remote != "" {
		r := &cfg.Source.Remote
		r.Target = f.remote
		r.KnownHostsPath = f.knownHosts
		r.InsecureIgnoreHostKey = f.insecure
		switch pw := os.Getenv(passwordEnv); {
		case f.sshKey != "":
			r.KeyFile = f.sshKey
		case pw != "":
			r.Password = pw
		default:
			r.UseAgent = true
		}
	}
	cfg.Sampling.Workers = f.workers
	cfg.Log.Level = f.logLevel
	cfg.Log.Format = f.logFormat
	return &cfg
}

// apply overrides s with every presentation flag given on the command line.
func (f *flags) apply(s procstat.Settings) (procstat.Settings, error) {
	if f.set["interval"] {
		s.Interval = f.interval
	}
	if f.set["count"] {
		s.Count = f.count
	}
	if f.set["json"] {
		s.JSON = f.json
	}
	if f.set["sort"] {
		key, err := config.ParseSortKey(f.sortBy)
		if err != nil {
			return s, err
		}
		s.SortBy = key
	}
	if f.set["top"] {
		s.Top = f.top
	}
	if f.set["log-level"] {
		s.LogLevel = f.logLevel
	}
	if f.set["log-format"] {
		s.LogFormat = f.logFormat
	}
	if s.Interval < 0 || s.Count < 0 || s.Top < 0 {
		return s, errors.New("-interval, -count and -top must not be negative")
	}
	return s, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "procstat: %v\n", err)
		return 2
	}
	if f.version {
		fmt.Fprintf(stdout, "procstat version %s\n", Version)
		return 0
	}

	// The logger is needed before the monitor exists, so a -c file is read
	// once up front for its log settings.
	cfg := f.flagConfig()
	if f.configPath != "" {
		if cfg, err = config.LoadFile(f.configPath); err != nil {
			fmt.Fprintf(stderr, "procstat: %v\n", err)
			return 1
		}
	} else if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "procstat: %v\n", err)
		return 2
	}
	logLevel, logFormat := cfg.Log.Level, cfg.Log.Format
	if f.set["log-level"] {
		logLevel = f.logLevel
	}
	if f.set["log-format"] {
		logFormat = f.logFormat
	}
	log, syncLog, err := procstat.NewLogger(procstat.LoggerOptions{
		Level:     logLevel,
		Format:    logFormat,
		Verbosity: f.verbosity,
		Output:    stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "procstat: %v\n", err)
		return 2
	}
	defer syncLog()

	prof := profiling.New(profiling.Config{CPUProfilePath: f.cpuProfile, MemProfilePath: f.memProfile})
	if f.cpuProfile != "" || f.memProfile != "" {
		if err := prof.Start(); err != nil {
			log.Error(err, "failed to start profiling")
			return 1
		}
		defer func() {
			if err := prof.Stop(); err != nil {
				log.Error(err, "failed to stop profiling")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := openMonitor(ctx, f, cfg, log)
	if err != nil {
		log.Error(err, "failed to open source")
		return 1
	}
	defer m.Close()

	if f.metricsAddr != "" {
		shutdown, err := serveMetrics(f.metricsAddr, m.Metrics(), log)
		if err != nil {
			log.Error(err, "failed to serve metrics", "addr", f.metricsAddr)
			return 1
		}
		defer shutdown()
	}

	settings := func() (procstat.Settings, error) {
		s := m.Settings()
		if f.configPath == "" {
			s = procstat.Settings{SortBy: procstat.SortByPID}
		}
		return f.apply(s)
	}
	s, err := settings()
	if err != nil {
		fmt.Fprintf(stderr, "procstat: %v\n", err)
		return 2
	}

	if f.configPath != "" && s.Interval > 0 {
		if err := m.WatchConfig(); err != nil {
			log.Error(err, "config watch unavailable; send SIGHUP to reload")
		}
		go reloadOnHangup(ctx, m, log)
	}

	if err := sample(ctx, m, settings, stdout); err != nil {
		log.Error(err, "sampling failed")
		return 1
	}
	return 0
}

func openMonitor(ctx context.Context, f *flags, cfg *config.Config, log logr.Logger) (*procstat.Monitor, error) {
	if f.configPath != "" {
		return procstat.NewFromConfig(ctx, f.configPath, procstat.Options{Logger: log})
	}
	return procstat.New(ctx, procstat.Options{
		Root:    cfg.Source.Root,
		Remote:  cfg.Source.Remote,
		Workers: cfg.Sampling.Workers,
		Logger:  log,
	})
}

func reloadOnHangup(ctx context.Context, m *procstat.Monitor, log logr.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			log.Info("received SIGHUP, reloading configuration")
			if err := m.ReloadConfig(); err != nil {
				log.Error(err, "reload failed")
			}
		}
	}
}

// sample takes snapshots until the count is reached, ctx is cancelled, or,
// with no interval, after the first one. Settings are re-read each round so
// a reloaded configuration takes effect on the next sample.
func sample(ctx context.Context, m *procstat.Monitor, settings func() (procstat.Settings, error), w io.Writer) error {
	var prev procstat.Reading[procstat.CPUSample]
	for n := 1; ; n++ {
		s, err := settings()
		if err != nil {
			return err
		}
		snap, err := m.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := write(w, snap, prev, s); err != nil {
			return err
		}
		prev = snap.System.CPU

		if s.Interval <= 0 || (s.Count > 0 && n >= s.Count) {
			return nil
		}
		timer := time.NewTimer(s.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func serveMetrics(addr string, metrics *procstat.Metrics, log logr.Logger) (func(), error) {
	metrics.RegisterExpvar()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server stopped")
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
