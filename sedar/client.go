/*
Package sedar is a client for the SEDAR data lake.

A Client owns one session with one server. Every resource the server exposes
is reached from it as a handle: a snapshot of the resource taken when the
handle was built. Handles are never refreshed in place; operations that change
a resource return a new handle built from the server's state afterwards.

A Client is not safe for concurrent use. Use one Client per logical session.
*/
package sedar

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/warpfork/go-fsx"
	"github.com/warpfork/go-fsx/osfs"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/warptools/sedar/pkg/config"
	"github.com/warptools/sedar/pkg/healthcheck"
	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/render"
	"github.com/warptools/sedar/pkg/tracing"
	"github.com/warptools/sedar/pkg/transport"
	"github.com/warptools/sedar/sdapi"
)

type Client struct {
	tr       *transport.Transport
	fsys     fsx.FS
	workDir  string
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

type options struct {
	httpClient *http.Client
	fsys       fsx.FS
}

type Option func(*options)

// WithHTTPClient replaces the default HTTP client. Its cookie jar and timeout are overwritten.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithFS sets the filesystem uploads and definition files are read from.
// It must be rooted at "/"; paths are resolved against the configured working directory.
func WithFS(fsys fsx.FS) Option {
	return func(o *options) { o.fsys = fsys }
}

// New creates a client for the server named in cfg. No request is sent.
//
// Errors:
//
//    - sedar-error-invalid -- the base URL is unusable
//    - sedar-error-initialization -- the cookie jar or a trace exporter could not be set up
func New(cfg config.Config, opts ...Option) (*Client, error) {
	o := options{fsys: osfs.DirFS("/")}
	for _, opt := range opts {
		opt(&o)
	}
	tr, err := transport.New(transport.Config{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		CookieFile: cfg.CookieFile,
		RateLimit:  cfg.RateLimit,
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, err
	}
	provider, err := tracing.NewProvider(context.Background(), cfg.Trace)
	if err != nil {
		return nil, err
	}
	c := &Client{
		tr:       tr,
		fsys:     o.fsys,
		workDir:  cfg.WorkDir,
		provider: provider,
	}
	if provider != nil {
		c.tracer = provider.Tracer(tracing.ServiceName)
	}
	return c, nil
}

// Transport exposes the session's transport for endpoints this package does not wrap.
func (c *Client) Transport() *transport.Transport { return c.tr }

// Close persists the session cookies and flushes traces.
//
// Errors:
//
//    - sedar-error-io -- the cookie file could not be written
//    - sedar-error-internal -- the trace provider failed to shut down
func (c *Client) Close(ctx context.Context) error {
	if err := c.tr.SaveSession(); err != nil {
		return err
	}
	if c.provider != nil {
		if err := c.provider.Shutdown(ctx); err != nil {
			return sdapi.ErrorInternal("shutting down tracing", err)
		}
	}
	return nil
}

// ctx attaches the client's tracer, if tracing is on.
func (c *Client) ctx(ctx context.Context) context.Context {
	if c.tracer == nil {
		return ctx
	}
	return tracing.SetTracer(ctx, c.tracer)
}

// Login authenticates the session and returns the logged in user.
// A component health check runs right after; dead components are logged, not fatal.
//
// Errors:
//
//    - sedar-error-request-failed -- the server rejected the login
//    - sedar-error-resource-fetch -- the user record could not be fetched
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	ctx = c.ctx(ctx)
	ctx, span := tracing.Start(ctx, "sedar.login")
	defer span.End()
	log := logging.Ctx(ctx)

	_, err := c.tr.Post(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		err = sdapi.ErrorRequestFailed("login", err)
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	c.tr.SetPrincipal(email)
	log.Info("", "Login successful")
	if err := c.tr.SaveSession(); err != nil {
		log.Warn("", "session cookies not saved: %s", err)
	}
	if _, err := c.ComponentHealth(ctx); err != nil {
		log.Warn("", "component health check failed: %s", err)
	}
	return c.User(ctx, email)
}

// Logout ends the session and forgets its cookies.
// It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-request-failed -- the server rejected the logout
func (c *Client) Logout(ctx context.Context) (bool, error) {
	ctx = c.ctx(ctx)
	if _, err := c.tr.Post(ctx, "/api/auth/logout", nil); err != nil {
		return false, sdapi.ErrorRequestFailed("logout", err)
	}
	c.tr.ClearSession()
	if err := c.tr.SaveSession(); err != nil {
		logging.Ctx(ctx).Warn("", "session cookies not saved: %s", err)
	}
	logging.Ctx(ctx).Info("", "Logout successful")
	return true, nil
}

// Stats fetches the data lake's item counts.
//
// Errors:
//
//    - sedar-error-request-failed -- the stats could not be fetched
//    - sedar-error-serialization -- the response has an unexpected shape
func (c *Client) Stats(ctx context.Context) (sdapi.Stats, error) {
	var stats sdapi.Stats
	res, err := c.tr.Get(c.ctx(ctx), "/api/stats/", nil)
	if err != nil {
		return stats, sdapi.ErrorRequestFailed("fetching data lake stats", err)
	}
	return stats, res.Decode(&stats)
}

// PrintStats fetches the stats and writes them as a table to the logger's output.
//
// Errors:
//
//    - sedar-error-request-failed -- the stats could not be fetched
//    - sedar-error-serialization -- the response has an unexpected shape
func (c *Client) PrintStats(ctx context.Context) (sdapi.Stats, error) {
	stats, err := c.Stats(ctx)
	if err != nil {
		return stats, err
	}
	var buf strings.Builder
	if err := render.StatsTable(&buf, stats); err != nil {
		return stats, err
	}
	logging.Ctx(ctx).OutRaw(buf.String())
	return stats, nil
}

// ComponentHealth asks the server which of its main components are alive.
// Each dead component is logged as a warning.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the response has an unexpected shape
func (c *Client) ComponentHealth(ctx context.Context) (sdapi.Health, error) {
	return c.health(ctx, "/api/alive", "main")
}

// HiveHealth is ComponentHealth for the Hive components.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the response has an unexpected shape
func (c *Client) HiveHealth(ctx context.Context) (sdapi.Health, error) {
	return c.health(ctx, "/api/alive-hive", "Hive")
}

func (c *Client) health(ctx context.Context, path, group string) (sdapi.Health, error) {
	ctx = c.ctx(ctx)
	var health sdapi.Health
	res, err := c.tr.Get(ctx, path, nil)
	if err != nil {
		return health, sdapi.ErrorRequestFailed("checking "+group+" component health", err)
	}
	if err := res.Decode(&health); err != nil {
		return health, err
	}
	log := logging.Ctx(ctx)
	dead := health.Dead()
	if len(dead) == 0 {
		log.Info("", "Component Check complete: All %s components are alive.", group)
	}
	for _, comp := range dead {
		log.Warn("", "Component %s is not alive.", comp.Name)
	}
	return health, nil
}

// HealthCheck runs both liveness listings as a report.
// Failures end up in the report rather than in an error.
func (c *Client) HealthCheck(ctx context.Context) *healthcheck.HealthCheck {
	hc := &healthcheck.HealthCheck{Runners: []healthcheck.Runner{
		&healthcheck.Endpoint{Name: "components", Fetch: c.ComponentHealth},
		&healthcheck.Endpoint{Name: "hive", Fetch: c.HiveHealth},
	}}
	hc.Run(c.ctx(ctx))
	return hc
}

// ComponentReport is a report with one line per main component.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the response has an unexpected shape
func (c *Client) ComponentReport(ctx context.Context) (*healthcheck.HealthCheck, error) {
	health, err := c.ComponentHealth(ctx)
	if err != nil {
		return nil, err
	}
	hc := &healthcheck.HealthCheck{Runners: healthcheck.Components(health)}
	hc.Run(c.ctx(ctx))
	return hc, nil
}

// AccessLogs returns the server's access log as decoded JSON.
//
// Errors:
//
//    - sedar-error-request-failed -- no logs could be fetched
func (c *Client) AccessLogs(ctx context.Context) (interface{}, error) {
	return c.logs(ctx, "/api/logs/access", "access")
}

// ErrorLogs returns the server's error log as decoded JSON.
//
// Errors:
//
//    - sedar-error-request-failed -- no logs could be fetched
func (c *Client) ErrorLogs(ctx context.Context) (interface{}, error) {
	return c.logs(ctx, "/api/logs/error", "error")
}

// DownloadAccessLogs writes the access log to path, creating parent directories.
// JSON logs are written as JSON; anything else is written byte for byte.
//
// Errors:
//
//    - sedar-error-request-failed -- no logs could be fetched
//    - sedar-error-io -- the file could not be written
func (c *Client) DownloadAccessLogs(ctx context.Context, path string) error {
	return c.downloadLogs(ctx, "/api/logs/access", "access", path)
}

// DownloadErrorLogs is DownloadAccessLogs for the error log.
//
// Errors:
//
//    - sedar-error-request-failed -- no logs could be fetched
//    - sedar-error-io -- the file could not be written
func (c *Client) DownloadErrorLogs(ctx context.Context, path string) error {
	return c.downloadLogs(ctx, "/api/logs/error", "error", path)
}

func (c *Client) logs(ctx context.Context, path, kind string) (interface{}, error) {
	res, err := c.tr.Get(c.ctx(ctx), path, nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("fetching "+kind+" logs", err)
	}
	if !res.IsJSON() {
		return res.Raw, nil
	}
	return res.JSON, nil
}

func (c *Client) downloadLogs(ctx context.Context, endpoint, kind, path string) error {
	logs, err := c.logs(ctx, endpoint, kind)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(path) && c.workDir != "" {
		path = filepath.Join(c.workDir, path)
	}
	// Plain-text logs are written as received; JSON logs are re-encoded.
	b, isRaw := logs.([]byte)
	if !isRaw {
		b, err = json.Marshal(logs)
		if err != nil {
			return sdapi.ErrorSerialization("encoding "+kind+" logs", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return sdapi.ErrorIo("creating log directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return sdapi.ErrorIo("writing "+kind+" logs", path, err)
	}
	logging.Ctx(ctx).Info("", "The %s logs were downloaded successfully.", kind)
	return nil
}

// MLflowParameters lists every parameter name logged by any MLflow run.
//
// Errors:
//
//    - sedar-error-request-failed -- the parameters could not be fetched
//    - sedar-error-serialization -- the response is not a list of names
func (c *Client) MLflowParameters(ctx context.Context) ([]string, error) {
	return c.names(ctx, "/api/v1/mlflow/getParameters", "MLflow parameters")
}

// MLflowMetrics lists every metric name logged by any MLflow run.
//
// Errors:
//
//    - sedar-error-request-failed -- the metrics could not be fetched
//    - sedar-error-serialization -- the response is not a list of names
func (c *Client) MLflowMetrics(ctx context.Context) ([]string, error) {
	return c.names(ctx, "/api/v1/mlflow/getMetrics", "MLflow metrics")
}

func (c *Client) names(ctx context.Context, path, what string) ([]string, error) {
	res, err := c.tr.Get(c.ctx(ctx), path, nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("fetching "+what, err)
	}
	var names []string
	if err := res.Decode(&names); err != nil {
		return nil, err
	}
	return names, nil
}

// CheckJupyterHubContainers asks the server to check the JupyterHub containers.
// It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-request-failed -- the check could not be run
func (c *Client) CheckJupyterHubContainers(ctx context.Context) (bool, error) {
	if _, err := c.tr.Get(c.ctx(ctx), "/api/v1/jupyterhub/checkContainers", nil); err != nil {
		return false, sdapi.ErrorRequestFailed("checking JupyterHub containers", err)
	}
	return true, nil
}
