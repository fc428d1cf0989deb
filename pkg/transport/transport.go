package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	cookiejar "github.com/juju/persistent-cookiejar"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/tracing"
	"github.com/warptools/sedar/pkg/upload"
	"github.com/warptools/sedar/sdapi"
)

const logTag = "transport"

// Config is what New needs to build a Transport.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	CookieFile string       // Cookies are persisted here on SaveSession when set.
	RateLimit  float64      // Requests per second; 0 means unlimited.
	HTTPClient *http.Client // Optional; its Jar and Timeout are replaced.
}

// Transport performs every HTTP call of one session.
// It is not safe for concurrent use; one logical session owns one Transport.
type Transport struct {
	baseURL   string
	client    *http.Client
	jar       *cookiejar.Jar
	limiter   *rate.Limiter
	sessionID string
	principal string
	persist   bool
}

// New creates a transport with a fresh session id.
//
// Errors:
//
//    - sedar-error-invalid -- the base URL is empty or not absolute
//    - sedar-error-initialization -- the cookie jar could not be loaded
func New(cfg Config) (*Transport, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, sdapi.ErrorInvalid("base URL must be an absolute http(s) URL",
			[2]string{"baseURL", cfg.BaseURL})
	}
	jar, err := cookiejar.New(&cookiejar.Options{
		Filename:  cfg.CookieFile,
		NoPersist: cfg.CookieFile == "",
	})
	if err != nil {
		return nil, sdapi.ErrorInitialization("loading cookie jar", err)
	}
	client := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		client = &c
	}
	client.Jar = jar
	client.Timeout = cfg.Timeout

	t := &Transport{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    client,
		jar:       jar,
		sessionID: uuid.New().String(),
		persist:   cfg.CookieFile != "",
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return t, nil
}

func (t *Transport) BaseURL() string { return t.baseURL }

// SessionID correlates multi-step workflows on the server; it is fixed for the Transport's lifetime.
func (t *Transport) SessionID() string { return t.sessionID }

// Principal is the email of the logged in user, or "" when logged out.
func (t *Transport) Principal() string { return t.principal }

func (t *Transport) SetPrincipal(email string) { t.principal = email }

// ClearSession forgets the principal and every cookie.
func (t *Transport) ClearSession() {
	t.principal = ""
	t.jar.RemoveAll()
}

// SaveSession writes the cookies to the configured cookie file.
// Without a cookie file it does nothing.
//
// Errors:
//
//    - sedar-error-io -- the cookie file could not be written
func (t *Transport) SaveSession() error {
	if !t.persist {
		return nil
	}
	if err := t.jar.Save(); err != nil {
		return sdapi.ErrorIo("saving session cookies", "", err)
	}
	return nil
}

// Request is one call against the server.
// JSON and Files are mutually exclusive; Form is only sent alongside Files.
type Request struct {
	Method string
	Path   string
	Query  interface{} // url.Values, or a struct with `url` tags
	JSON   interface{}
	Form   map[string]string
	Files  *upload.Bundle
}

// Result is the decoded response of a successful request.
// JSON holds the decoded body when it parsed as JSON; Raw always holds the bytes.
// Numbers in JSON are json.Number so they survive a round trip unchanged.
type Result struct {
	Status int
	JSON   interface{}
	Raw    []byte
	isJSON bool
}

func (r Result) IsJSON() bool { return r.isJSON }

// Object returns the body as a JSON object.
//
// Errors:
//
//    - sedar-error-serialization -- the body is not a JSON object
func (r Result) Object() (map[string]interface{}, error) {
	m, ok := r.JSON.(map[string]interface{})
	if !r.isJSON || !ok {
		return nil, sdapi.ErrorSerialization("expected a JSON object", errors.New(describe(r)))
	}
	return m, nil
}

// List returns the body as a JSON array.
//
// Errors:
//
//    - sedar-error-serialization -- the body is not a JSON array
func (r Result) List() ([]interface{}, error) {
	l, ok := r.JSON.([]interface{})
	if !r.isJSON || !ok {
		return nil, sdapi.ErrorSerialization("expected a JSON array", errors.New(describe(r)))
	}
	return l, nil
}

// Decode converts the JSON body into a typed value.
//
// Errors:
//
//    - sedar-error-serialization -- the body is not JSON or does not fit into
func (r Result) Decode(into interface{}) error {
	if !r.isJSON {
		return sdapi.ErrorSerialization("expected JSON", errors.New(describe(r)))
	}
	return sdapi.DecodeInto(r.JSON, into)
}

func describe(r Result) string {
	const max = 64
	s := string(r.Raw)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return "got " + strconv.Quote(s)
}

func (t *Transport) Get(ctx context.Context, path string, q interface{}) (Result, error) {
	return t.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: q})
}

func (t *Transport) Post(ctx context.Context, path string, body interface{}) (Result, error) {
	return t.Do(ctx, Request{Method: http.MethodPost, Path: path, JSON: body})
}

func (t *Transport) Put(ctx context.Context, path string, body interface{}) (Result, error) {
	return t.Do(ctx, Request{Method: http.MethodPut, Path: path, JSON: body})
}

func (t *Transport) Patch(ctx context.Context, path string, body interface{}) (Result, error) {
	return t.Do(ctx, Request{Method: http.MethodPatch, Path: path, JSON: body})
}

func (t *Transport) Delete(ctx context.Context, path string) (Result, error) {
	return t.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Do sends req and decodes the response.
// There are no retries. A 2xx body that is not JSON comes back as raw bytes, not as an error.
// DELETE bodies are never decoded.
//
// Errors:
//
//    - sedar-error-invalid -- the request mixes JSON and files, or cannot be encoded
//    - sedar-error-connection -- the server could not be reached
//    - sedar-error-http-status -- the server answered with a non-2xx status
//    - sedar-error-io -- an upload file could not be read, or the body could not be read
func (t *Transport) Do(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracing.Start(ctx, "sedar."+req.Method)
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrKeySedarMethod, req.Method),
		attribute.String(tracing.AttrKeySedarPath, req.Path),
		attribute.String(tracing.AttrKeySedarSessionId, t.sessionID),
		attribute.Bool(tracing.AttrKeySedarMultipart, req.Files != nil),
	)
	res, err := t.do(ctx, req)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return res, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrKeySedarStatus, res.Status))
	return res, nil
}

func (t *Transport) do(ctx context.Context, req Request) (Result, error) {
	logger := logging.Ctx(ctx)

	httpReq, err := t.build(ctx, req)
	if err != nil {
		logger.Error(logTag, "request %s %s not sent: %s", req.Method, req.Path, err)
		return Result{}, err
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return Result{}, sdapi.ErrorConnection(req.Method, httpReq.URL.String(), err)
		}
	}

	logger.Debug(logTag, "%s %s", req.Method, httpReq.URL.String())
	resp, err := t.client.Do(httpReq)
	if err != nil {
		logger.Error(logTag, "failed to connect to the server: %s", err)
		return Result{}, sdapi.ErrorConnection(req.Method, httpReq.URL.String(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, sdapi.ErrorIo("reading response body", req.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error(logTag, "%s %s failed: %s\nserver response:\n%s",
			req.Method, req.Path, resp.Status, body)
		return Result{}, sdapi.ErrorHttpStatus(req.Method, req.Path, resp.StatusCode, body)
	}

	res := Result{Status: resp.StatusCode, Raw: body}
	if req.Method == http.MethodDelete {
		return res, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err == nil && !dec.More() {
		res.JSON = v
		res.isJSON = true
	}
	return res, nil
}

// build assembles the http.Request, encoding the body as JSON or as a multipart form.
func (t *Transport) build(ctx context.Context, req Request) (*http.Request, error) {
	if req.JSON != nil && req.Files != nil {
		return nil, sdapi.ErrorInvalid("a request cannot carry both a JSON body and files",
			[2]string{"path", req.Path})
	}
	u := t.baseURL + req.Path
	if req.Query != nil {
		values, err := encodeQuery(req.Query)
		if err != nil {
			return nil, err
		}
		if q := values.Encode(); q != "" {
			u += "?" + q
		}
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Files != nil:
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		for _, k := range sortedKeys(req.Form) {
			if err := mw.WriteField(k, req.Form[k]); err != nil {
				return nil, sdapi.ErrorIo("writing multipart form", "", err)
			}
		}
		if err := req.Files.WriteTo(mw); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, sdapi.ErrorIo("writing multipart form", "", err)
		}
		body = buf
		contentType = mw.FormDataContentType()
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, sdapi.ErrorInvalid("request body is not JSON encodable",
				[2]string{"path", req.Path}, [2]string{"cause", err.Error()})
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, sdapi.ErrorInvalid("request cannot be built",
			[2]string{"url", u}, [2]string{"cause", err.Error()})
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

// encodeQuery accepts url.Values or anything go-querystring can encode.
func encodeQuery(q interface{}) (url.Values, error) {
	if v, ok := q.(url.Values); ok {
		return v, nil
	}
	v, err := query.Values(q)
	if err != nil {
		return nil, sdapi.ErrorInvalid("query parameters cannot be encoded",
			[2]string{"cause", err.Error()})
	}
	return v, nil
}
