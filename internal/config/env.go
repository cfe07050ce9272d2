package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches environment variable references in configuration values.
// Supports formats:
//   - ${VAR_NAME} - standard shell-like format
//   - ${VAR_NAME:-default} - with default value if unset or empty
//   - $VAR_NAME - simple format (word characters only)
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// ExpandEnv expands environment variable references in a string.
// Unset variables without a default expand to the empty string.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if name, def, ok := strings.Cut(inner, ":-"); ok {
				if val := os.Getenv(name); val != "" {
					return val
				}
				return def
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}

// ExpandEnvConfig expands ${VAR} and $VAR references in every path-like
// setting: the source root and remote fields, and the procfs path overrides.
// Passwords and passphrases are left untouched.
func ExpandEnvConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	for _, s := range []*string{
		&cfg.Source.Root,
		&cfg.Source.Remote.Target,
		&cfg.Source.Remote.KeyFile,
		&cfg.Source.Remote.KnownHostsPath,
		&cfg.Paths.Proc,
		&cfg.Paths.OSRelease,
		&cfg.Paths.Passwd,
	} {
		*s = ExpandEnv(*s)
	}
}
