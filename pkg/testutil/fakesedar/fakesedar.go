/*
Package fakesedar is an in-process stand-in for a SEDAR server.

It stores JSON records by path and answers GET, PUT, PATCH and DELETE against
them the way the real server does for plain resources. Anything else, and any
behavior a test wants to pin down, is scripted with Respond. Every request is
recorded so tests can assert on exactly what the client sent.
*/
package fakesedar

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/warpfork/go-testmark"

	"github.com/warptools/sedar/pkg/testutil/nettest"
	"github.com/warptools/sedar/pkg/transport"
)

const sessionCookie = "session"

// File is one uploaded file of a multipart request.
type File struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Call is one request as the server saw it.
type Call struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
	Form        map[string][]string
	Files       map[string]File
}

// JSON decodes the request body; it returns nil for non-JSON bodies.
func (c Call) JSON() map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(c.Body, &m); err != nil {
		return nil
	}
	return m
}

// Responder scripts the answer to one method and path.
// A []byte body is written verbatim, anything else is JSON encoded.
type Responder func(c Call) (status int, body interface{})

type Server struct {
	t   testing.TB
	srv *httptest.Server
	pl  *nettest.PipeListener

	mu         sync.Mutex
	records    map[string]interface{}
	responders map[string]Responder
	calls      []Call

	// Password is accepted for any email on login.
	Password string
	// RequireSession rejects requests without a session cookie, except login.
	RequireSession bool
}

// New starts a fake server that shuts down with the test.
func New(t testing.TB) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		t:          t,
		pl:         nettest.NewPipeListener(ctx),
		records:    map[string]interface{}{},
		responders: map[string]Responder{},
		Password:   "secret",
	}
	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.logout).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/wiki/{language}", s.wikiUpdate).Methods(http.MethodPut)
	r.PathPrefix("/").HandlerFunc(s.generic)

	s.srv = httptest.NewUnstartedServer(s.record(r))
	s.srv.Listener.Close()
	s.srv.Listener = s.pl
	s.srv.Start()
	t.Cleanup(func() {
		s.srv.Close()
		cancel()
	})
	return s
}

// Config returns a transport configuration that reaches this server.
func (s *Server) Config() transport.Config {
	return transport.Config{
		BaseURL:    s.srv.URL,
		HTTPClient: s.pl.HTTPClient(),
	}
}

func (s *Server) URL() string { return s.srv.URL }

// Set stores v as the record at path.
func (s *Server) Set(path string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[path] = v
}

// SetJSON stores the decoded body as the record at path.
func (s *Server) SetJSON(path string, body string) {
	s.t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		s.t.Fatalf("fixture for %s is not JSON: %s", path, err)
	}
	s.Set(path, v)
}

// Record returns the record stored at path.
func (s *Server) Record(path string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[path]
	return v, ok
}

// Respond scripts the answer for method and path, taking precedence over stored records.
func (s *Server) Respond(method, path string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method+" "+path] = r
}

// Fail makes method and path answer with status.
func (s *Server) Fail(method, path string, status int) {
	s.Respond(method, path, func(Call) (int, interface{}) {
		return status, map[string]string{"error": http.StatusText(status)}
	})
}

// Calls returns every recorded request in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo filters Calls by method and path.
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// LoadFixtures reads a testmark file and stores every hunk as a record.
// The hunk name is the record path without its leading slash.
func (s *Server) LoadFixtures(filename string) {
	s.t.Helper()
	doc, err := testmark.ReadFile(filename)
	if err != nil {
		s.t.Fatalf("reading fixtures %s: %s", filename, err)
	}
	for _, hunk := range doc.DataHunks {
		s.SetJSON("/"+hunk.Name, string(hunk.Body))
	}
}

// record captures the request before routing.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		c := Call{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.Query(),
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
		}
		if mt, _, _ := mime.ParseMediaType(c.ContentType); mt == "multipart/form-data" {
			r.Body = io.NopCloser(bytes.NewReader(body))
			if err := r.ParseMultipartForm(32 << 20); err == nil {
				c.Form = r.MultipartForm.Value
				c.Files = map[string]File{}
				for field, headers := range r.MultipartForm.File {
					f, err := headers[0].Open()
					if err != nil {
						continue
					}
					b, _ := io.ReadAll(f)
					f.Close()
					c.Files[field] = File{
						Filename:    headers[0].Filename,
						ContentType: headers[0].Header.Get("Content-Type"),
						Body:        b,
					}
				}
			}
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.calls = append(s.calls, c)
		responder := s.responders[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if s.RequireSession && r.URL.Path != "/api/auth/login" {
			if _, err := r.Cookie(sessionCookie); err != nil {
				write(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
				return
			}
		}
		if responder != nil {
			status, out := responder(c)
			write(w, status, out)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func write(w http.ResponseWriter, status int, body interface{}) {
	switch b := body.(type) {
	case nil:
		w.WriteHeader(status)
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(status)
		w.Write(b)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(b)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		write(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if creds.Password != s.Password {
		write(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: uuid.New().String(), Path: "/"})
	write(w, http.StatusOK, map[string]string{"email": creds.Email})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	write(w, http.StatusOK, map[string]string{})
}

// wikiUpdate stores the markdown and, like the real server, answers without echoing it.
func (s *Server) wikiUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Markdown *string `json:"markdown"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Markdown == nil {
		write(w, http.StatusBadRequest, map[string]string{"error": "markdown required"})
		return
	}
	language := mux.Vars(r)["language"]
	s.Set("/api/v1/wiki/"+language, map[string]interface{}{"markdown": *body.Markdown})
	write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) generic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	s.mu.Lock()
	rec, ok := s.records[path]
	s.mu.Unlock()
	if !ok {
		write(w, http.StatusNotFound, map[string]string{"error": "no such resource: " + path})
		return
	}

	switch r.Method {
	case http.MethodGet:
		write(w, http.StatusOK, rec)
	case http.MethodPatch:
		write(w, http.StatusOK, rec)
	case http.MethodDelete:
		s.mu.Lock()
		delete(s.records, path)
		s.mu.Unlock()
		write(w, http.StatusOK, nil)
	case http.MethodPut:
		obj, isObj := rec.(map[string]interface{})
		var patch map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || !isObj {
			write(w, http.StatusBadRequest, map[string]string{"error": "expected a JSON object"})
			return
		}
		updated := make(map[string]interface{}, len(obj)+len(patch))
		for k, v := range obj {
			updated[k] = v
		}
		for k, v := range patch {
			updated[k] = v
		}
		s.Set(path, updated)
		write(w, http.StatusOK, updated)
	default:
		write(w, http.StatusMethodNotAllowed, map[string]string{"error": strings.ToLower(r.Method) + " not supported here"})
	}
}
