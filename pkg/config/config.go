package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/warptools/sedar/pkg/tracing"
	"github.com/warptools/sedar/sdapi"
)

// DefaultTimeout applies when SEDAR_TIMEOUT is unset.
const DefaultTimeout = 30 * time.Second

// Config is everything a client needs to talk to one server.
type Config struct {
	BaseURL    string        // Server root, without a trailing slash.
	Timeout    time.Duration // Per request; 0 disables the limit.
	CookieFile string        // Empty keeps cookies in memory only.
	RateLimit  float64       // Requests per second; 0 means unlimited.
	WorkDir    string        // Relative upload paths resolve against this.
	Trace      tracing.ProviderConfig
}

// FromEnvironment reloads the process state and builds a Config from it.
//
// Errors:
//
//   - sedar-error-initialization -- the environment could not be read
//   - sedar-error-serialization -- error copying state
//   - sedar-error-invalid -- a variable holds an unusable value
func FromEnvironment() (Config, error) {
	if err := ReloadGlobalState(); err != nil {
		return Config{}, err
	}
	state, err := NewState()
	if err != nil {
		return Config{}, err
	}
	return Load(state)
}

// Load builds a Config from state.
//
// Errors:
//
//   - sedar-error-invalid -- a variable holds an unusable value
func Load(state State) (Config, error) {
	cfg := Config{
		BaseURL:    BaseURL(state),
		CookieFile: CookieFile(state),
		WorkDir:    state.WorkingDirectory,
		Timeout:    DefaultTimeout,
	}
	if v, ok := state.Env[EnvSedarTimeout]; ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, sdapi.ErrorInvalid("SEDAR_TIMEOUT must be a non-negative duration",
				[2]string{"value", v})
		}
		cfg.Timeout = d
	}
	if v, ok := state.Env[EnvSedarRateLimit]; ok && v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			return Config{}, sdapi.ErrorInvalid("SEDAR_RATE_LIMIT must be a non-negative number",
				[2]string{"value", v})
		}
		cfg.RateLimit = r
	}
	trace, err := TraceConfig(state)
	if err != nil {
		return Config{}, err
	}
	cfg.Trace = trace
	return cfg, nil
}

func BaseURL(state State) string {
	return strings.TrimRight(state.Env[EnvSedarBaseUrl], "/")
}

// CookieFile resolves SEDAR_COOKIE_FILE against the working directory.
func CookieFile(state State) string {
	path, ok := state.Env[EnvSedarCookieFile]
	if !ok || path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") && state.HomeDirectory != "" {
		return filepath.Join(state.HomeDirectory, path[2:])
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(state.WorkingDirectory, path)
	}
	return path
}

// TraceConfig reads the tracing switches.
//
// Errors:
//
//   - sedar-error-invalid -- a boolean switch is not parseable
func TraceConfig(state State) (tracing.ProviderConfig, error) {
	var cfg tracing.ProviderConfig
	cfg.File = state.Env[EnvSedarTraceFile]
	var err error
	if cfg.HTTP, err = envBool(state, EnvSedarTraceHttp); err != nil {
		return cfg, err
	}
	if cfg.HTTPInsecure, err = envBool(state, EnvSedarTraceHttpInsecure); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envBool(state State, key string) (bool, error) {
	v, ok := state.Env[key]
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, sdapi.ErrorInvalid(key+" must be a boolean", [2]string{"value", v})
	}
	return b, nil
}
