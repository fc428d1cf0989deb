package config

const (
	// EnvSedarBaseUrl is the root URL of the SEDAR server, e.g. http://localhost:5000
	EnvSedarBaseUrl = "SEDAR_BASE_URL"
	// EnvSedarTimeout bounds every request; a Go duration string such as "30s"
	EnvSedarTimeout = "SEDAR_TIMEOUT"
	// EnvSedarCookieFile persists the session cookies across processes when set
	EnvSedarCookieFile = "SEDAR_COOKIE_FILE"
	// EnvSedarRateLimit caps requests per second issued by one client; unset or 0 means unlimited
	EnvSedarRateLimit = "SEDAR_RATE_LIMIT"
	// EnvSedarTraceFile writes pretty-printed spans to this file
	EnvSedarTraceFile = "SEDAR_TRACE_FILE"
	// EnvSedarTraceHttp enables OTLP/HTTP span export when set to a true value
	EnvSedarTraceHttp = "SEDAR_TRACE_HTTP"
	// EnvSedarTraceHttpInsecure disables TLS for OTLP/HTTP export
	EnvSedarTraceHttpInsecure = "SEDAR_TRACE_HTTP_INSECURE"
	// EnvSedarDotenv names a dotenv file to read before the process environment.
	// Defaults to ".env" in the working directory if that file exists.
	EnvSedarDotenv = "SEDAR_DOTENV"
)

// NOTE: keep this up to date or the config loader won't load them
var envKeys = []string{
	EnvSedarBaseUrl,
	EnvSedarTimeout,
	EnvSedarCookieFile,
	EnvSedarRateLimit,
	EnvSedarTraceFile,
	EnvSedarTraceHttp,
	EnvSedarTraceHttpInsecure,
	EnvSedarDotenv,
}
