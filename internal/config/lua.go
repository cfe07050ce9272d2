package config

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/arnodel/golua/lib"
	rt "github.com/arnodel/golua/runtime"
)

// LuaConfigParser parses Lua configuration files. It executes the script in a
// sandboxed Golua runtime and extracts values from the procstat.config table.
type LuaConfigParser struct {
	runtime *rt.Runtime
	cleanup func()
	mu      sync.Mutex
}

// NewLuaConfigParser creates a LuaConfigParser whose print output is
// discarded.
func NewLuaConfigParser() *LuaConfigParser {
	return NewLuaConfigParserWithOutput(io.Discard)
}

// NewLuaConfigParserWithOutput creates a LuaConfigParser that sends Lua print
// output to stdout.
func NewLuaConfigParserWithOutput(stdout io.Writer) *LuaConfigParser {
	if stdout == nil {
		stdout = io.Discard
	}

	runtime := rt.New(stdout)
	cleanup := lib.LoadAll(runtime)

	return &LuaConfigParser{
		runtime: runtime,
		cleanup: cleanup,
	}
}

// Parse executes content and returns the configuration it assigns. Keys the
// script does not set keep their DefaultConfig values.
func (p *LuaConfigParser) Parse(content []byte) (cfg *Config, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// golua panics when a hard limit is exceeded.
	defer func() {
		if r := recover(); r != nil {
			cfg, err = nil, fmt.Errorf("failed to execute Lua configuration: %v", r)
		}
	}()

	p.initGlobal()

	closure, err := p.runtime.CompileAndLoadLuaChunk(
		"config",
		content,
		rt.TableValue(p.runtime.GlobalEnv()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile Lua configuration: %w", err)
	}

	ctx := rt.RuntimeContextDef{
		HardLimits: rt.RuntimeResources{
			Cpu:    10_000_000,
			Memory: 50 * 1024 * 1024, // 50 MB
		},
	}
	p.runtime.PushContext(ctx)
	defer p.runtime.PopContext()

	if _, err = rt.Call1(p.runtime.MainThread(), rt.FunctionValue(closure)); err != nil {
		return nil, fmt.Errorf("failed to execute Lua configuration: %w", err)
	}

	return p.extractConfig()
}

// initGlobal resets the procstat global so a reused parser starts clean.
func (p *LuaConfigParser) initGlobal() {
	procstat := rt.NewTable()
	procstat.Set(rt.StringValue("config"), rt.TableValue(rt.NewTable()))
	p.runtime.GlobalEnv().Set(rt.StringValue("procstat"), rt.TableValue(procstat))
}

func (p *LuaConfigParser) extractConfig() (*Config, error) {
	cfg := DefaultConfig()

	globalVal := p.runtime.GlobalEnv().Get(rt.StringValue("procstat"))
	if globalVal == rt.NilValue {
		return &cfg, nil
	}
	global, ok := globalVal.TryTable()
	if !ok {
		return nil, fmt.Errorf("procstat is not a table")
	}

	configVal := global.Get(rt.StringValue("config"))
	if configVal == rt.NilValue {
		return &cfg, nil
	}
	table, ok := configVal.TryTable()
	if !ok {
		return nil, fmt.Errorf("procstat.config is not a table")
	}

	if err := extractConfigTable(&cfg, table); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func extractConfigTable(cfg *Config, table *rt.Table) error {
	// Source
	if val := getTableString(table, "root"); val != nil {
		cfg.Source.Root = *val
	}
	if val := getTableString(table, "remote"); val != nil {
		cfg.Source.Remote.Target = *val
	}
	if val := getTableString(table, "ssh_key"); val != nil {
		cfg.Source.Remote.KeyFile = *val
	}
	if val := getTableString(table, "ssh_key_passphrase"); val != nil {
		cfg.Source.Remote.Passphrase = *val
	}
	if val := getTableString(table, "ssh_password"); val != nil {
		cfg.Source.Remote.Password = *val
	}
	if val := getTableBool(table, "ssh_agent"); val != nil {
		cfg.Source.Remote.UseAgent = *val
	}
	if val := getTableString(table, "known_hosts"); val != nil {
		cfg.Source.Remote.KnownHostsPath = *val
	}
	if val := getTableBool(table, "insecure_ignore_host_key"); val != nil {
		cfg.Source.Remote.InsecureIgnoreHostKey = *val
	}
	if val := getTableFloat(table, "command_timeout"); val != nil {
		cfg.Source.Remote.CommandTimeout = seconds(*val)
	}

	// Paths
	if val := getTableString(table, "proc_path"); val != nil {
		cfg.Paths.Proc = *val
	}
	if val := getTableString(table, "os_release_path"); val != nil {
		cfg.Paths.OSRelease = *val
	}
	if val := getTableString(table, "passwd_path"); val != nil {
		cfg.Paths.Passwd = *val
	}

	// Sampling
	if val := getTableFloat(table, "update_interval"); val != nil {
		cfg.Sampling.Interval = seconds(*val)
	}
	if val := getTableInt(table, "count"); val != nil {
		cfg.Sampling.Count = *val
	}
	if val := getTableInt(table, "workers"); val != nil {
		cfg.Sampling.Workers = *val
	}
	if val := getTableInt(table, "clock_ticks"); val != nil {
		cfg.Sampling.ClockTicks = int64(*val)
	}

	// Output
	if val := getTableString(table, "output"); val != nil {
		f, err := ParseOutputFormat(*val)
		if err != nil {
			return fmt.Errorf("invalid output: %w", err)
		}
		cfg.Output.Format = f
	}
	if val := getTableString(table, "sort_by"); val != nil {
		k, err := ParseSortKey(*val)
		if err != nil {
			return fmt.Errorf("invalid sort_by: %w", err)
		}
		cfg.Output.SortBy = k
	}
	if val := getTableInt(table, "top"); val != nil {
		cfg.Output.Top = *val
	}

	// Logging
	if val := getTableString(table, "log_level"); val != nil {
		cfg.Log.Level = *val
	}
	if val := getTableString(table, "log_format"); val != nil {
		cfg.Log.Format = *val
	}

	return nil
}

// Close releases resources associated with the parser's Lua runtime.
func (p *LuaConfigParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cleanup != nil {
		p.cleanup()
		p.cleanup = nil
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// getTableBool retrieves a boolean value from a Lua table.
// Returns nil if the key doesn't exist or is not a boolean.
func getTableBool(table *rt.Table, key string) *bool {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if b, ok := val.TryBool(); ok {
		return &b
	}

	// "yes"/"no" strings are accepted too.
	if s, ok := val.TryString(); ok {
		b := parseBool(s)
		return &b
	}

	return nil
}

// getTableString retrieves a string value from a Lua table.
// Returns nil if the key doesn't exist or is not a string.
func getTableString(table *rt.Table, key string) *string {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if s, ok := val.TryString(); ok {
		return &s
	}

	return nil
}

// getTableFloat retrieves a float64 value from a Lua table.
// Returns nil if the key doesn't exist or is not a number.
func getTableFloat(table *rt.Table, key string) *float64 {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if n, ok := val.TryFloat(); ok {
		return &n
	}
	if n, ok := val.TryInt(); ok {
		f := float64(n)
		return &f
	}

	return nil
}

// getTableInt retrieves an int value from a Lua table, truncating floats.
// Returns nil if the key doesn't exist or is not a number.
func getTableInt(table *rt.Table, key string) *int {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if n, ok := val.TryInt(); ok {
		i := int(n)
		return &i
	}
	if f, ok := val.TryFloat(); ok {
		i := int(f)
		return &i
	}

	return nil
}

// parseBool parses a boolean value from common string representations.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true
	default:
		return false
	}
}
