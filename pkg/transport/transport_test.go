package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"
	"github.com/warpfork/go-fsx/osfs"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/upload"
	"github.com/warptools/sedar/sdapi"
)

func NewLogBuffers(t *testing.T, ctx context.Context) (context.Context, *bytes.Buffer) {
	stderr := &bytes.Buffer{}
	logger := logging.NewLogger(&bytes.Buffer{}, stderr, false, false, true)
	t.Cleanup(func() {
		t.Logf("flush stderr:\n%s", stderr.String())
	})
	return logger.WithContext(ctx), stderr
}

type recorded struct {
	method      string
	path        string
	query       url.Values
	contentType string
	body        []byte
}

func newServer(t *testing.T, handler http.HandlerFunc) (*Transport, *[]recorded) {
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{r.Method, r.URL.Path, r.URL.Query(), r.Header.Get("Content-Type"), body})
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	tr, err := New(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	qt.Assert(t, err, qt.IsNil)
	return tr, &calls
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "localhost:5000", "/api"} {
		_, err := New(Config{BaseURL: base})
		qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeInvalid, qt.Commentf("%q", base))
	}
}

func TestSessionID(t *testing.T) {
	a, err := New(Config{BaseURL: "http://sedar.test"})
	qt.Assert(t, err, qt.IsNil)
	b, err := New(Config{BaseURL: "http://sedar.test"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, a.SessionID(), qt.HasLen, 36)
	qt.Check(t, a.SessionID(), qt.Not(qt.Equals), b.SessionID())
}

func TestDecoding(t *testing.T) {
	ctx, _ := NewLogBuffers(t, context.Background())
	tr, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Write([]byte(`{"id":"w1","count":12345678901234567890}`))
		case "/list":
			w.Write([]byte(`[1,2]`))
		case "/binary":
			w.Write([]byte("PK\x03\x04 not json"))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		}
	})

	res, err := tr.Get(ctx, "/json", nil)
	qt.Assert(t, err, qt.IsNil)
	obj, err := res.Object()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, obj["id"], qt.Equals, "w1")
	qt.Check(t, obj["count"], qt.Equals, json.Number("12345678901234567890"))

	res, err = tr.Get(ctx, "/list", nil)
	qt.Assert(t, err, qt.IsNil)
	l, err := res.List()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, l, qt.HasLen, 2)
	_, err = res.Object()
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeSerialization)

	res, err = tr.Get(ctx, "/binary", nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, res.IsJSON(), qt.IsFalse)
	qt.Check(t, string(res.Raw), qt.Equals, "PK\x03\x04 not json")

	res, err = tr.Get(ctx, "/empty", nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, res.IsJSON(), qt.IsFalse)
	qt.Check(t, res.Raw, qt.HasLen, 0)
}

func TestDeleteNeverDecodes(t *testing.T) {
	ctx, _ := NewLogBuffers(t, context.Background())
	tr, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"deleted":true}`))
	})
	res, err := tr.Delete(ctx, "/api/v1/workspaces/w1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, res.IsJSON(), qt.IsFalse)
	qt.Check(t, string(res.Raw), qt.Equals, `{"deleted":true}`)
	qt.Check(t, (*calls)[0].method, qt.Equals, http.MethodDelete)
}

func TestFailures(t *testing.T) {
	ctx, stderr := NewLogBuffers(t, context.Background())
	tr, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workspace not found", http.StatusNotFound)
	})

	_, err := tr.Get(ctx, "/api/v1/workspaces/nope", nil)
	qt.Assert(t, serum.Code(err), qt.Equals, sdapi.ECodeHttpStatus)
	qt.Check(t, sdapi.IsAbsent(err), qt.IsTrue)
	details := map[string]string{}
	for _, d := range serum.Details(err) {
		details[d[0]] = d[1]
	}
	qt.Check(t, details["status"], qt.Equals, "404")
	qt.Check(t, details["body"], qt.Equals, "workspace not found\n")
	qt.Check(t, stderr.String(), qt.Contains, "workspace not found")

	dead, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	qt.Assert(t, err, qt.IsNil)
	_, err = dead.Get(ctx, "/api/alive", nil)
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeConnection)
	qt.Check(t, sdapi.IsAbsent(err), qt.IsTrue)
}

type datasetQuery struct {
	GetUnpublished bool `url:"get_unpublished"`
}

func TestQueryAndJSONBody(t *testing.T) {
	ctx, _ := NewLogBuffers(t, context.Background())
	tr, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := tr.Get(ctx, "/api/v1/workspaces/w1/datasets", datasetQuery{GetUnpublished: true})
	qt.Assert(t, err, qt.IsNil)
	_, err = tr.Put(ctx, "/api/v1/workspaces/w1", map[string]interface{}{"title": "T"})
	qt.Assert(t, err, qt.IsNil)

	qt.Assert(t, *calls, qt.HasLen, 2)
	qt.Check(t, (*calls)[0].query.Get("get_unpublished"), qt.Equals, "true")
	qt.Check(t, (*calls)[1].contentType, qt.Equals, "application/json")
	qt.Check(t, string((*calls)[1].body), qt.JSONEquals, map[string]interface{}{"title": "T"})
}

func TestMultipart(t *testing.T) {
	ctx, _ := NewLogBuffers(t, context.Background())
	var form map[string][]string
	var fileHeader string
	var fileBody string
	tr, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		qt.Check(t, r.ParseMultipartForm(1<<20), qt.IsNil)
		form = r.MultipartForm.Value
		fh := r.MultipartForm.File["data"][0]
		fileHeader = fh.Header.Get("Content-Type")
		f, _ := fh.Open()
		b, _ := io.ReadAll(f)
		fileBody = string(b)
		w.Write([]byte(`{"id":"d1"}`))
	})

	dir := t.TempDir()
	qt.Assert(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte("a,b\n"), 0644), qt.IsNil)
	bundle, err := upload.Open(osfs.DirFS(dir), upload.Single("data.csv"))
	qt.Assert(t, err, qt.IsNil)
	defer bundle.Close()

	res, err := tr.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/v1/workspaces/w1/datasets/create",
		Form:   map[string]string{"title": "Untitled", "datasource_definition": "{}"},
		Files:  bundle,
	})
	qt.Assert(t, err, qt.IsNil)
	obj, _ := res.Object()
	qt.Check(t, obj["id"], qt.Equals, "d1")
	qt.Check(t, form["title"], qt.DeepEquals, []string{"Untitled"})
	qt.Check(t, fileHeader, qt.Equals, "text/csv")
	qt.Check(t, fileBody, qt.Equals, "a,b\n")
}

func TestJSONAndFilesExclusive(t *testing.T) {
	ctx, _ := NewLogBuffers(t, context.Background())
	tr, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := tr.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/x",
		JSON:   map[string]string{},
		Files:  &upload.Bundle{},
	})
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeInvalid)
	qt.Check(t, *calls, qt.HasLen, 0)
}

func TestSessionCookies(t *testing.T) {
	ctx, _ := NewLogBuffers(t, context.Background())
	var sawCookie string
	tr, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cr3t", Path: "/"})
		}
		if c, err := r.Cookie("session"); err == nil {
			sawCookie = c.Value
		} else {
			sawCookie = ""
		}
		w.Write([]byte(`{}`))
	})

	_, err := tr.Post(ctx, "/api/auth/login", map[string]string{"email": "a@b"})
	qt.Assert(t, err, qt.IsNil)
	tr.SetPrincipal("a@b")
	_, err = tr.Get(ctx, "/api/v1/users/a@b", nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, sawCookie, qt.Equals, "s3cr3t")

	tr.ClearSession()
	qt.Check(t, tr.Principal(), qt.Equals, "")
	_, err = tr.Get(ctx, "/api/v1/users/a@b", nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, sawCookie, qt.Equals, "")
}
