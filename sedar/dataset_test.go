package sedar

import (
	"net/http"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/sedar/pkg/testutil/fakesedar"
	"github.com/warptools/sedar/pkg/upload"
	"github.com/warptools/sedar/sdapi"
)

func workspace(t *testing.T, f *fixture) *Workspace {
	t.Helper()
	w, err := f.client.Workspace(f.ctx, "w1")
	qt.Assert(t, err, qt.IsNil)
	return w
}

func dataset(t *testing.T, f *fixture) *Dataset {
	t.Helper()
	d, err := workspace(t, f).Dataset(f.ctx, "d1")
	qt.Assert(t, err, qt.IsNil)
	return d
}

func TestDatasets(t *testing.T) {
	f := newFixture(t)
	w := workspace(t, f)
	f.srv.SetJSON("/api/v1/workspaces/w1/datasets", `[{"id": "d1", "title": "Sensors"}, {"id": "d2", "title": "Drafts"}]`)

	all, err := w.Datasets(f.ctx, true)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, all, qt.HasLen, 2)
	qt.Check(t, all[1].IDs(), qt.DeepEquals, []string{"w1", "d2"})
	qt.Check(t, all[1].Title, qt.Equals, "Drafts")
	calls := f.srv.CallsTo(http.MethodGet, "/api/v1/workspaces/w1/datasets")
	qt.Check(t, calls[0].Query.Get("get_unpublished"), qt.Equals, "true")
	qt.Check(t, calls[0].JSON(), qt.DeepEquals, map[string]interface{}{"get_unpublished": true})

	d, err := w.Dataset(f.ctx, "d1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d.WorkspaceID(), qt.Equals, "w1")
	qt.Check(t, d.Author, qt.Equals, "ada")
	qt.Check(t, d.notebookDatasetRef(), qt.Equals, "d1!_!seperator!_!Sensors!_!seperator!_!2")

	f.srv.SetJSON("/api/v1/workspaces/w1/favorites", `{"id": "d1"}`)
	_, err = w.FavoriteDatasets(f.ctx)
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeSerialization)
}

func TestDefinitionFromFile(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "def.json", `{"name": "Sensors", "read_type": "SOURCE_FILE"}`)
	f.writeFile(t, "broken.json", `[1, 2`)

	def, err := f.client.DefinitionFromFile("def.json")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, def.Title(), qt.Equals, "Sensors")
	qt.Check(t, Definition{}.Title(), qt.Equals, "Untitled")

	_, err = f.client.DefinitionFromFile("missing.json")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeFileMissing)
	_, err = f.client.DefinitionFromFile("broken.json")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeSerialization)
}

func TestCreateDataset(t *testing.T) {
	f := newFixture(t)
	w := workspace(t, f)
	f.writeFile(t, "readings.csv", "t,v\n1,20.5\n")
	f.srv.Respond(http.MethodPost, "/api/v1/workspaces/w1/datasets/create", func(fakesedar.Call) (int, interface{}) {
		return http.StatusCreated, map[string]string{"id": "d1"}
	})

	t.Run("uploads files with the definition", func(t *testing.T) {
		d, err := w.CreateDataset(f.ctx, Definition{"read_type": "SOURCE_FILE"}, upload.Single("readings.csv"))
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, d.ID(), qt.Equals, "d1")

		calls := f.srv.CallsTo(http.MethodPost, "/api/v1/workspaces/w1/datasets/create")
		qt.Assert(t, calls, qt.HasLen, 1)
		c := calls[0]
		qt.Check(t, strings.HasPrefix(c.ContentType, "multipart/form-data"), qt.IsTrue)
		qt.Check(t, c.Form["title"], qt.DeepEquals, []string{"Untitled"})
		qt.Check(t, c.Form["datasource_definition"], qt.DeepEquals, []string{`{"read_type":"SOURCE_FILE"}`})
		qt.Check(t, c.Files["readings"], qt.DeepEquals, fakesedar.File{
			Filename:    "readings.csv",
			ContentType: "text/csv",
			Body:        []byte("t,v\n1,20.5\n"),
		})
	})

	t.Run("missing file sends nothing", func(t *testing.T) {
		f.srv.ResetCalls()
		_, err := w.CreateDataset(f.ctx, Definition{"name": "x"}, upload.Mapping(map[string]string{
			"readings": "readings.csv",
			"other":    "nope.csv",
		}))
		qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeFileMissing)
		qt.Check(t, f.srv.CallsTo(http.MethodPost, "/api/v1/workspaces/w1/datasets/create"), qt.HasLen, 0)
	})

	t.Run("server refuses", func(t *testing.T) {
		f.srv.Fail(http.MethodPost, "/api/v1/workspaces/w1/datasets/create", http.StatusInternalServerError)
		_, err := w.CreateDataset(f.ctx, Definition{}, upload.Single("readings.csv"))
		qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeRequestFailed)
	})
}

func TestSearchDatasets(t *testing.T) {
	f := newFixture(t)
	w := workspace(t, f)
	const path = "/api/v1/workspaces/w1/search"
	f.srv.Respond(http.MethodPost, path, func(fakesedar.Call) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"datasets": []map[string]string{{"id": "d1", "title": "Sensors"}},
		}
	})

	found, err := w.SearchDatasets(f.ctx, "sens", sdapi.SearchParams{"limit": "50", "colour": "red"}, false)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, found, qt.HasLen, 1)
	qt.Check(t, found[0].Title, qt.Equals, "Sensors")
	qt.Check(t, f.stderr.String(), qt.Contains, `Unknown search parameter "colour" is ignored.`)

	body := f.srv.CallsTo(http.MethodPost, path)[0].JSON()
	qt.Check(t, body["query"], qt.Equals, "sens")
	qt.Check(t, body["limit"], qt.Equals, "50")
	qt.Check(t, body["with_auto_wildcard"], qt.Equals, true)
	qt.Check(t, body["tags"], qt.DeepEquals, []interface{}{})
	_, sent := body["colour"]
	qt.Check(t, sent, qt.IsFalse)
	qt.Check(t, body, qt.HasLen, len(sdapi.SearchParamKeys))

	f.srv.Fail(http.MethodPost, path, http.StatusBadGateway)
	_, err = w.SearchDatasets(f.ctx, "sens", nil, false)
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeRequestFailed)
	found, err = w.SearchDatasets(f.ctx, "sens", nil, true)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, found, qt.HasLen, 0)
}

func TestDatasetUpdateAndActions(t *testing.T) {
	f := newFixture(t)
	d := dataset(t, f)

	updated, err := d.Update(f.ctx, DatasetUpdate{License: sdapi.Some("MIT"), Author: sdapi.Null[string]()})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, updated.Author, qt.Equals, "")
	qt.Check(t, updated.Content()["license"], qt.Equals, "MIT")
	qt.Check(t, f.srv.CallsTo(http.MethodPut, "/api/v1/workspaces/w1/datasets/d1")[0].JSON(), qt.DeepEquals,
		map[string]interface{}{
			"title":       "Sensors",
			"description": "raw readings",
			"author":      nil,
			"license":     "MIT",
			"language":    "en",
		})

	for _, suffix := range []string{"/run-ingestion", "/publish"} {
		f.srv.Respond(http.MethodPost, "/api/v1/workspaces/w1/datasets/d1"+suffix, func(fakesedar.Call) (int, interface{}) {
			return http.StatusOK, nil
		})
	}
	ok, err := d.Ingest(f.ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)
	ok, err = d.Publish(f.ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)

	f.srv.Respond(http.MethodGet, "/api/v1/workspaces/w1/datasets/d1/logs", func(fakesedar.Call) (int, interface{}) {
		return http.StatusOK, []byte("ingestion finished\n")
	})
	logs, err := d.Logs(f.ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, logs, qt.DeepEquals, []byte("ingestion finished\n"))

	ok, err = updated.Delete(f.ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)
	_, err = d.Update(f.ctx, DatasetUpdate{})
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceFetch)
}

func TestEntities(t *testing.T) {
	f := newFixture(t)
	d := dataset(t, f)
	f.srv.SetJSON("/api/v1/workspaces/w1/datasets/d1/entities",
		`{"entities": [{"id": "e1", "internalname": "sensors_csv", "countOfRows": 1200}]}`)

	all, err := d.Entities(f.ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, all, qt.HasLen, 1)
	qt.Check(t, all[0].IDs(), qt.DeepEquals, []string{"w1", "d1", "e1"})
	qt.Check(t, all[0].CountOfRows, qt.Equals, int64(1200))

	e, err := d.Entity(f.ctx, "e1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, e.DisplayName, qt.Equals, "Sensors")

	updated, err := e.Update(f.ctx, EntityUpdate{Description: sdapi.Some("one row per reading")})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, updated.Description, qt.Equals, "one row per reading")
	qt.Check(t, updated.CountOfRows, qt.Equals, int64(1200))
}

func TestEntityAnnotations(t *testing.T) {
	f := newFixture(t)
	e, err := dataset(t, f).Entity(f.ctx, "e1")
	qt.Assert(t, err, qt.IsNil)
	const path = "/api/v1/workspaces/w1/datasets/d1/entities/e1"

	_, err = e.AddAnnotation(f.ctx, sdapi.Annotation{
		Text:  "Temperature",
		Value: "http://example.org/onto#Temperature",
		Graph: "o1",
	}, sdapi.Some("air temperature"), sdapi.Optional[string]{})
	qt.Assert(t, err, qt.IsNil)

	ok, err := e.RemoveAnnotation(f.ctx, "a7")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)

	patches := f.srv.CallsTo(http.MethodPatch, path)
	qt.Assert(t, patches, qt.HasLen, 2)
	qt.Check(t, patches[0].JSON(), qt.DeepEquals, map[string]interface{}{
		"description":   "air temperature",
		"key":           nil,
		"annotation_id": nil,
		"annotation":    "http://example.org/onto#Temperature",
		"ontology_id":   "o1",
	})
	qt.Check(t, patches[1].JSON(), qt.DeepEquals, map[string]interface{}{
		"description":   nil,
		"key":           nil,
		"annotation_id": "a7",
		"annotation":    nil,
		"ontology_id":   nil,
	})

	f.srv.Fail(http.MethodPatch, path, http.StatusForbidden)
	_, err = e.RemoveAnnotation(f.ctx, "a7")
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceUpdate)
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	d := dataset(t, f)
	const path = "/api/v1/workspaces/w1/datasets/d1/tags"
	f.srv.Respond(http.MethodPost, path, func(c fakesedar.Call) (int, interface{}) {
		body := c.JSON()
		body["id"] = "t2"
		f.srv.Set(path+"/t2", body)
		return http.StatusCreated, body
	})

	tag, err := d.AddTag(f.ctx, "humidity", sdapi.Optional[string]{}, sdapi.Optional[string]{})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, tag.Title, qt.Equals, "humidity")
	qt.Check(t, tag.IDs(), qt.DeepEquals, []string{"w1", "d1", "t2"})
	qt.Check(t, f.srv.CallsTo(http.MethodPost, path)[0].JSON(), qt.DeepEquals, map[string]interface{}{
		"title":       "humidity",
		"ontology_id": nil,
		"annotation":  nil,
	})

	old, err := d.Tag(f.ctx, "t1")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, old.Annotation, qt.Equals, "http://example.org/onto#Temperature")
	ok, err := old.Delete(f.ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)
	_, err = old.Delete(f.ctx)
	qt.Check(t, serum.Code(err), qt.Equals, sdapi.ECodeResourceDelete)
}
