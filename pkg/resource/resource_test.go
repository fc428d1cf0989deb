package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/testutil/fakesedar"
	"github.com/warptools/sedar/pkg/transport"
	"github.com/warptools/sedar/sdapi"
)

var tagKind = Kind[sdapi.TagRecord]{
	Name:   "tag",
	Path:   Templated("/api/v1/workspaces/{}/tags/{}"),
	Fields: []string{"title", "annotation"},
	Decode: func(content map[string]interface{}) (sdapi.TagRecord, error) {
		var rec sdapi.TagRecord
		return rec, sdapi.DecodeInto(content, &rec)
	},
}

func setup(t *testing.T) (context.Context, *fakesedar.Server, *transport.Transport) {
	stderr := &bytes.Buffer{}
	t.Cleanup(func() { t.Logf("flush stderr:\n%s", stderr.String()) })
	ctx := logging.NewLogger(&bytes.Buffer{}, stderr, false, false, true).WithContext(context.Background())

	srv := fakesedar.New(t)
	tr, err := transport.New(srv.Config())
	qt.Assert(t, err, qt.IsNil)
	return ctx, srv, tr
}

func TestTemplated(t *testing.T) {
	path := Templated("/api/v1/workspaces/{}/files/{}")
	qt.Check(t, path([]string{"w1", "d/2"}), qt.Equals, "/api/v1/workspaces/w1/files/d%2F2")
}

func TestMergePayload(t *testing.T) {
	current := map[string]interface{}{"title": "old", "annotation": "a", "id": "t1"}
	fields := []string{"title", "annotation", "description"}

	t.Run("no changes keeps current values", func(t *testing.T) {
		got := MergePayload(current, fields, nil)
		qt.Check(t, got, qt.DeepEquals, map[string]interface{}{
			"title": "old", "annotation": "a", "description": nil,
		})
	})
	t.Run("supplied values overwrite", func(t *testing.T) {
		got := MergePayload(current, fields, Changes{
			"title":      sdapi.Some("new"),
			"annotation": sdapi.Optional[string]{},
		})
		qt.Check(t, got["title"], qt.Equals, "new")
		qt.Check(t, got["annotation"], qt.Equals, "a")
	})
	t.Run("null clears", func(t *testing.T) {
		got := MergePayload(current, fields, Changes{"annotation": sdapi.Null[string]()})
		qt.Check(t, got["annotation"], qt.IsNil)
		_, present := got["annotation"]
		qt.Check(t, present, qt.IsTrue)
	})
	t.Run("unaccepted fields are dropped", func(t *testing.T) {
		got := MergePayload(current, fields, Changes{"id": sdapi.Some("t2")})
		_, present := got["id"]
		qt.Check(t, present, qt.IsFalse)
	})
}

func TestFetch(t *testing.T) {
	ctx, srv, tr := setup(t)
	srv.SetJSON("/api/v1/workspaces/w1/tags/t1", `{"id":"t1","title":"raw","annotation":"x"}`)

	r, err := Fetch(ctx, tr, tagKind, "w1", "t1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, r.ID(), qt.Equals, "t1")
	qt.Check(t, r.IDs(), qt.DeepEquals, []string{"w1", "t1"})
	qt.Check(t, r.Value.Title, qt.Equals, "raw")

	// Content hands out copies.
	r.Content()["title"] = "mutated"
	qt.Check(t, r.Content()["title"], qt.Equals, "raw")

	again, err := Fetch(ctx, tr, tagKind, "w1", "t1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, again.Content(), qt.DeepEquals, r.Content())
}

func TestFetchAbsent(t *testing.T) {
	ctx, srv, tr := setup(t)

	_, err := Fetch(ctx, tr, tagKind, "w1", "missing")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceFetch)

	srv.Respond(http.MethodGet, "/api/v1/workspaces/w1/tags/list", func(fakesedar.Call) (int, interface{}) {
		return http.StatusOK, []interface{}{"not", "an", "object"}
	})
	_, err = Fetch(ctx, tr, tagKind, "w1", "list")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeSerialization)
}

func TestUpdate(t *testing.T) {
	ctx, srv, tr := setup(t)
	srv.SetJSON("/api/v1/workspaces/w1/tags/t1", `{"id":"t1","title":"raw","annotation":"x"}`)

	got, err := Update(ctx, tr, tagKind, Changes{"title": sdapi.Some("cooked")}, "w1", "t1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got["title"], qt.Equals, "cooked")
	qt.Check(t, got["annotation"], qt.Equals, "x")

	puts := srv.CallsTo(http.MethodPut, "/api/v1/workspaces/w1/tags/t1")
	qt.Assert(t, puts, qt.HasLen, 1)
	qt.Check(t, puts[0].JSON(), qt.DeepEquals, map[string]interface{}{
		"title": "cooked", "annotation": "x",
	})
	// The fetch comes first.
	calls := srv.Calls()
	qt.Check(t, calls[0].Method, qt.Equals, http.MethodGet)
}

func TestUpdateNonObjectResponse(t *testing.T) {
	ctx, srv, tr := setup(t)
	srv.SetJSON("/api/v1/workspaces/w1/tags/t1", `{"id":"t1","title":"raw","annotation":"x"}`)
	srv.Respond(http.MethodPut, "/api/v1/workspaces/w1/tags/t1", func(fakesedar.Call) (int, interface{}) {
		return http.StatusOK, []byte("ok")
	})

	got, err := Update(ctx, tr, tagKind, Changes{"annotation": sdapi.Null[string]()}, "w1", "t1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got, qt.DeepEquals, map[string]interface{}{"title": "raw", "annotation": nil})
}

func TestUpdateFailures(t *testing.T) {
	ctx, srv, tr := setup(t)

	_, err := Update(ctx, tr, tagKind, nil, "w1", "gone")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceFetch)
	qt.Check(t, srv.CallsTo(http.MethodPut, "/api/v1/workspaces/w1/tags/gone"), qt.HasLen, 0)

	srv.SetJSON("/api/v1/workspaces/w1/tags/t1", `{"id":"t1","title":"raw"}`)
	srv.Fail(http.MethodPut, "/api/v1/workspaces/w1/tags/t1", http.StatusForbidden)
	_, err = Update(ctx, tr, tagKind, Changes{"title": sdapi.Some("x")}, "w1", "t1")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceUpdate)
}

func TestPatch(t *testing.T) {
	ctx, srv, tr := setup(t)
	srv.SetJSON("/api/v1/workspaces/w1/tags/t1", `{"id":"t1"}`)

	res, err := Patch(ctx, tr, tagKind, map[string]interface{}{"title": "p"}, "w1", "t1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, res.Status, qt.Equals, http.StatusOK)
	patches := srv.CallsTo(http.MethodPatch, "/api/v1/workspaces/w1/tags/t1")
	qt.Assert(t, patches, qt.HasLen, 1)
	qt.Check(t, patches[0].JSON(), qt.DeepEquals, map[string]interface{}{"title": "p"})

	_, err = Patch(ctx, tr, tagKind, nil, "w1", "nope")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceUpdate)
}

func TestDelete(t *testing.T) {
	ctx, srv, tr := setup(t)
	srv.SetJSON("/api/v1/workspaces/w1/tags/t1", `{"id":"t1"}`)

	ok, err := Delete(ctx, tr, tagKind, "w1", "t1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)
	_, stored := srv.Record("/api/v1/workspaces/w1/tags/t1")
	qt.Check(t, stored, qt.IsFalse)

	ok, err = Delete(ctx, tr, tagKind, "w1", "t1")
	qt.Check(t, ok, qt.IsFalse)
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceDelete)
}

func TestNewDecodeFailure(t *testing.T) {
	_, err := New(tagKind, map[string]interface{}{"title": json.Number("5")}, "w1", "t1")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeSerialization)
}
