package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/sedar/sdapi"
)

/*
	Env vars and the working directory can change while a process runs.
	They are read once into State, and everything else derives its settings
	from a State value rather than looking at the environment itself.
*/

type State struct {
	Env              map[string]string
	HomeDirectory    string
	WorkingDirectory string
}

var (
	globalm sync.RWMutex
	global  State
)

// ReloadGlobalState will fetch all values for internal state
// ReloadGlobalState will halt on the first error.
//
// Process environment wins over values from the dotenv file.
//
// Errors:
//
//   - sedar-error-initialization -- loading the value failed
func ReloadGlobalState() error {
	globalm.Lock()
	defer globalm.Unlock()
	loadFuncs := []func() error{
		loadWd,
		loadUserHome,
		loadEnv,
	}
	for _, loadFunc := range loadFuncs {
		if err := loadFunc(); err != nil {
			// Error Codes = sedar-error-initialization
			return err
		}
	}
	return nil
}

// NewState will create a copy of the global state.
// The returned state can be modified without affecting anything else.
// NewState is concurrent safe.
//
// Errors:
//
//   - sedar-error-serialization -- error copying data
func NewState() (State, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 256))
	enc := json.NewEncoder(buf)
	dec := json.NewDecoder(buf)
	var result State
	globalm.RLock()
	defer globalm.RUnlock()
	err := enc.Encode(global)
	if err != nil {
		return State{}, serum.Error(sdapi.ECodeSerialization, serum.WithCause(err))
	}
	err = dec.Decode(&result)
	if err != nil {
		return State{}, serum.Error(sdapi.ECodeSerialization, serum.WithCause(err))
	}
	return result, nil
}

// loadWd loads the working directory into the stored state
// NOT concurrent safe
//
// Errors:
//
//    - sedar-error-initialization -- when the working directory path cannot be found
func loadWd() error {
	cwd, err := os.Getwd()
	if err != nil {
		return serum.Error(sdapi.ECodeInitialization,
			serum.WithMessageLiteral("unable to get working directory"),
			serum.WithCause(err),
		)
	}
	global.WorkingDirectory = cwd
	return nil
}

// loadUserHome loads user home directory into the stored state.
// A missing home directory is not fatal; only the default cookie location depends on it.
// NOT concurrent safe
func loadUserHome() error {
	dir, err := os.UserHomeDir()
	if err != nil {
		global.HomeDirectory = ""
		return nil
	}
	global.HomeDirectory = dir
	return nil
}

// loadEnv reads the known keys from the dotenv file, then from the process environment.
// Requires loadWd to have run.
// NOT concurrent safe
//
// Errors:
//
//    - sedar-error-initialization -- when an explicitly named dotenv file cannot be read
func loadEnv() error {
	global.Env = make(map[string]string, len(envKeys))
	dotenv, explicit := os.LookupEnv(EnvSedarDotenv)
	if !explicit {
		dotenv = filepath.Join(global.WorkingDirectory, ".env")
	}
	fileEnv, err := readDotenv(dotenv, explicit)
	if err != nil {
		return err
	}
	for _, key := range envKeys {
		if v, ok := fileEnv[key]; ok {
			global.Env[key] = v
		}
		if v, ok := os.LookupEnv(key); ok {
			global.Env[key] = v
		}
	}
	return nil
}

// readDotenv parses a dotenv file. A missing default file yields an empty map.
//
// Errors:
//
//    - sedar-error-initialization -- the file cannot be parsed, or an explicit file is missing
func readDotenv(path string, explicit bool) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, serum.Error(sdapi.ECodeInitialization,
			serum.WithMessageTemplate("unable to read dotenv file {{path|q}}"),
			serum.WithDetail("path", path),
			serum.WithCause(err),
		)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, serum.Error(sdapi.ECodeInitialization,
			serum.WithMessageTemplate("unable to parse dotenv file {{path|q}}"),
			serum.WithDetail("path", path),
			serum.WithCause(err),
		)
	}
	return env, nil
}
