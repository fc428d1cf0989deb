package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/sedar/sdapi"
)

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name          string
		env           map[string]string
		expect        Config
		expectErrCode string
	}{
		{
			name:   "defaults",
			env:    map[string]string{},
			expect: Config{Timeout: DefaultTimeout, WorkDir: "/work"},
		},
		{
			name: "everything",
			env: map[string]string{
				EnvSedarBaseUrl:    "http://localhost:5000/",
				EnvSedarTimeout:    "5s",
				EnvSedarCookieFile: "cookies.json",
				EnvSedarRateLimit:  "2.5",
				EnvSedarTraceFile:  "/tmp/trace.json",
				EnvSedarTraceHttp:  "true",
			},
			expect: Config{
				BaseURL:    "http://localhost:5000",
				Timeout:    5 * time.Second,
				CookieFile: "/work/cookies.json",
				RateLimit:  2.5,
				WorkDir:    "/work",
			},
		},
		{
			name:          "bad timeout",
			env:           map[string]string{EnvSedarTimeout: "soon"},
			expectErrCode: sdapi.ECodeInvalid,
		},
		{
			name:          "negative rate",
			env:           map[string]string{EnvSedarRateLimit: "-1"},
			expectErrCode: sdapi.ECodeInvalid,
		},
		{
			name:          "bad bool",
			env:           map[string]string{EnvSedarTraceHttp: "sometimes"},
			expectErrCode: sdapi.ECodeInvalid,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			state := State{Env: tc.env, WorkingDirectory: "/work", HomeDirectory: "/home/u"}
			cfg, err := Load(state)
			qt.Assert(t, serum.Code(err), qt.Equals, tc.expectErrCode)
			if err != nil {
				return
			}
			qt.Check(t, cfg.BaseURL, qt.Equals, tc.expect.BaseURL)
			qt.Check(t, cfg.Timeout, qt.Equals, tc.expect.Timeout)
			qt.Check(t, cfg.CookieFile, qt.Equals, tc.expect.CookieFile)
			qt.Check(t, cfg.RateLimit, qt.Equals, tc.expect.RateLimit)
			qt.Check(t, cfg.WorkDir, qt.Equals, tc.expect.WorkDir)
		})
	}
}

func TestCookieFileHome(t *testing.T) {
	state := State{
		Env:           map[string]string{EnvSedarCookieFile: "~/.sedar/cookies"},
		HomeDirectory: "/home/u",
	}
	qt.Check(t, CookieFile(state), qt.Equals, "/home/u/.sedar/cookies")
}

func TestDotenvUnderProcessEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, "sedar.env")
	err := os.WriteFile(dotenv, []byte("SEDAR_BASE_URL=http://from-file\nSEDAR_TIMEOUT=7s\n"), 0644)
	qt.Assert(t, err, qt.IsNil)

	t.Setenv(EnvSedarDotenv, dotenv)
	t.Setenv(EnvSedarTimeout, "9s")

	cfg, err := FromEnvironment()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, cfg.BaseURL, qt.Equals, "http://from-file")
	qt.Check(t, cfg.Timeout, qt.Equals, 9*time.Second)
}

func TestDotenvExplicitMissing(t *testing.T) {
	t.Setenv(EnvSedarDotenv, filepath.Join(t.TempDir(), "absent.env"))
	_, err := FromEnvironment()
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeInitialization)
}
