package sedar

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/pkg/tracing"
	"github.com/warptools/sedar/pkg/transport"
	"github.com/warptools/sedar/pkg/upload"
	"github.com/warptools/sedar/sdapi"
)

// Dataset is a snapshot of one dataset inside a workspace.
type Dataset struct {
	*resource.Resource[sdapi.DatasetRecord]
	c *Client

	Title       string
	Description string
	Author      string
}

func (c *Client) newDataset(r *resource.Resource[sdapi.DatasetRecord]) *Dataset {
	return &Dataset{
		Resource:    r,
		c:           c,
		Title:       r.Value.Title,
		Description: r.Value.Description,
		Author:      r.Value.Author,
	}
}

func (d *Dataset) WorkspaceID() string { return d.IDs()[0] }

func (d *Dataset) path(suffix string) string {
	return datasetKind.Path(d.IDs()) + suffix
}

// datasets turns a listing into handles scoped to workspace wid.
func (c *Client) datasets(wid string, res transport.Result, key string) ([]*Dataset, error) {
	records, err := objects(res, key)
	if err != nil {
		return nil, err
	}
	out := make([]*Dataset, 0, len(records))
	for _, rec := range records {
		id, err := requireID(rec, "id", "dataset listing")
		if err != nil {
			return nil, err
		}
		r, err := resource.New(datasetKind, rec, wid, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c.newDataset(r))
	}
	return out, nil
}

// The flag is sent in both the query and a JSON body; the server reads the body.
type datasetsQuery struct {
	GetUnpublished bool `url:"get_unpublished" json:"get_unpublished"`
}

// Datasets lists the workspace's datasets; getUnpublished includes the ones not yet published.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (w *Workspace) Datasets(ctx context.Context, getUnpublished bool) ([]*Dataset, error) {
	q := datasetsQuery{GetUnpublished: getUnpublished}
	res, err := w.c.tr.Do(w.c.ctx(ctx), transport.Request{
		Method: http.MethodGet,
		Path:   w.path("/datasets"),
		Query:  q,
		JSON:   q,
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing datasets", err)
	}
	return w.c.datasets(w.ID(), res, "")
}

// FavoriteDatasets lists the datasets the logged in user marked as favorite.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (w *Workspace) FavoriteDatasets(ctx context.Context) ([]*Dataset, error) {
	res, err := w.c.tr.Get(w.c.ctx(ctx), w.path("/favorites"), nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing favorite datasets", err)
	}
	return w.c.datasets(w.ID(), res, "")
}

// Dataset fetches one dataset of the workspace.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the dataset could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (w *Workspace) Dataset(ctx context.Context, id string) (*Dataset, error) {
	r, err := resource.Fetch(w.c.ctx(ctx), w.c.tr, datasetKind, w.ID(), id)
	if err != nil {
		return nil, err
	}
	return w.c.newDataset(r), nil
}

// Definition is a datasource definition: how the server reads and ingests a dataset's files.
type Definition map[string]interface{}

// DefinitionFromFile reads a datasource definition from a JSON file.
//
// Errors:
//
//    - sedar-error-file-missing -- the file does not exist
//    - sedar-error-io -- the file could not be read
//    - sedar-error-serialization -- the file is not a JSON object
func (c *Client) DefinitionFromFile(path string) (Definition, error) {
	p := upload.FSPath(c.workDir, path)
	b, err := fs.ReadFile(c.fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sdapi.ErrorFileMissing(path)
		}
		return nil, sdapi.ErrorIo("reading datasource definition", path, err)
	}
	var def Definition
	if err := json.Unmarshal(b, &def); err != nil {
		return nil, sdapi.ErrorSerialization("decoding datasource definition "+path, err)
	}
	return def, nil
}

// Title is the definition's name, or "Untitled".
func (d Definition) Title() string {
	if name, ok := d["name"].(string); ok && name != "" {
		return name
	}
	return "Untitled"
}

// CreateDataset uploads files together with a datasource definition and returns the new dataset.
// Every file is checked before any is opened, and all are closed once the request returns.
//
// Errors:
//
//    - sedar-error-file-missing -- an upload path does not name a file; nothing was sent
//    - sedar-error-invalid -- no files were given, or two share a field name
//    - sedar-error-io -- a file could not be read
//    - sedar-error-request-failed -- the server refused to create the dataset
//    - sedar-error-serialization -- the response does not name the new dataset
//    - sedar-error-resource-fetch -- the new dataset could not be fetched
func (w *Workspace) CreateDataset(ctx context.Context, def Definition, files upload.Files) (*Dataset, error) {
	ctx = w.c.ctx(ctx)
	ctx, span := tracing.Start(ctx, "sedar.create-dataset")
	defer span.End()
	log := logging.Ctx(ctx)

	defJSON, err := json.Marshal(def)
	if err != nil {
		return nil, sdapi.ErrorSerialization("encoding datasource definition", err)
	}
	bundle, err := upload.Open(w.c.fsys, files.Resolve(w.c.workDir))
	if err != nil {
		log.Error("", "dataset upload not sent: %s", err)
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	defer bundle.Close()

	res, err := w.c.tr.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   w.path("/datasets/create"),
		Form: map[string]string{
			"title":                 def.Title(),
			"datasource_definition": string(defJSON),
		},
		Files: bundle,
	})
	if err != nil {
		err = sdapi.ErrorRequestFailed("creating dataset", err)
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	obj, err := res.Object()
	if err != nil {
		return nil, err
	}
	id, err := requireID(obj, "id", "dataset creation")
	if err != nil {
		return nil, err
	}
	log.Info("", "The dataset was created successfully.")
	return w.Dataset(ctx, id)
}

// SearchDatasets runs an advanced search. params overlay the default search settings;
// unknown keys are warned about and dropped. With ignoreErrors a failed search
// is logged and yields an empty result instead of an error.
//
// Errors:
//
//    - sedar-error-request-failed -- the search failed and ignoreErrors is false
//    - sedar-error-serialization -- the result has an unexpected shape
func (w *Workspace) SearchDatasets(ctx context.Context, query string, params sdapi.SearchParams, ignoreErrors bool) ([]*Dataset, error) {
	ctx = w.c.ctx(ctx)
	log := logging.Ctx(ctx)
	payload := sdapi.DefaultSearchPayload(query)
	for _, k := range sdapi.ApplySearchParams(payload, params) {
		log.Warn("", "Unknown search parameter %q is ignored.", k)
	}
	res, err := w.c.tr.Post(ctx, w.path("/search"), payload)
	if err != nil {
		if ignoreErrors {
			log.Warn("", "Dataset search failed, returning no results: %s", err)
			return []*Dataset{}, nil
		}
		return nil, sdapi.ErrorRequestFailed("searching datasets", err)
	}
	return w.c.datasets(w.ID(), res, "datasets")
}

type DatasetUpdate struct {
	Title       sdapi.Optional[string]
	Description sdapi.Optional[string]
	Author      sdapi.Optional[string]
	License     sdapi.Optional[string]
	Language    sdapi.Optional[string]
}

// Update changes the dataset's metadata and returns a handle on the result.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the dataset could not be fetched before or after
//    - sedar-error-resource-update -- the server rejected the update
//    - sedar-error-serialization -- a response has an unexpected shape
func (d *Dataset) Update(ctx context.Context, upd DatasetUpdate) (*Dataset, error) {
	ctx = d.c.ctx(ctx)
	got, err := resource.Update(ctx, d.c.tr, datasetKind, resource.Changes{
		"title":       upd.Title,
		"description": upd.Description,
		"author":      upd.Author,
		"license":     upd.License,
		"language":    upd.Language,
	}, d.IDs()...)
	if err != nil {
		return nil, err
	}
	id, ok := idOf(got, "id")
	if !ok {
		id = d.ID()
	}
	r, err := resource.Fetch(ctx, d.c.tr, datasetKind, d.WorkspaceID(), id)
	if err != nil {
		return nil, err
	}
	return d.c.newDataset(r), nil
}

// Delete removes the dataset. It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-resource-delete -- the server did not delete the dataset
func (d *Dataset) Delete(ctx context.Context) (bool, error) {
	return resource.Delete(d.c.ctx(ctx), d.c.tr, datasetKind, d.IDs()...)
}

// Entities lists the dataset's entities.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (d *Dataset) Entities(ctx context.Context) ([]*Entity, error) {
	res, err := d.c.tr.Get(d.c.ctx(ctx), d.path("/entities"), nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing entities", err)
	}
	records, err := objects(res, "entities")
	if err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, len(records))
	for _, rec := range records {
		id, err := requireID(rec, "id", "entity listing")
		if err != nil {
			return nil, err
		}
		r, err := resource.New(entityKind, rec, d.WorkspaceID(), d.ID(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, d.c.newEntity(r))
	}
	return out, nil
}

// Entity fetches one entity of the dataset.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the entity could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (d *Dataset) Entity(ctx context.Context, id string) (*Entity, error) {
	r, err := resource.Fetch(d.c.ctx(ctx), d.c.tr, entityKind, d.WorkspaceID(), d.ID(), id)
	if err != nil {
		return nil, err
	}
	return d.c.newEntity(r), nil
}

// Tags lists the dataset's tags.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (d *Dataset) Tags(ctx context.Context) ([]*Tag, error) {
	res, err := d.c.tr.Get(d.c.ctx(ctx), d.path("/tags"), nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing tags", err)
	}
	records, err := objects(res, "")
	if err != nil {
		return nil, err
	}
	out := make([]*Tag, 0, len(records))
	for _, rec := range records {
		id, err := requireID(rec, "id", "tag listing")
		if err != nil {
			return nil, err
		}
		r, err := resource.New(tagKind, rec, d.WorkspaceID(), d.ID(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, d.c.newTag(r))
	}
	return out, nil
}

// Tag fetches one tag of the dataset.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the tag could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (d *Dataset) Tag(ctx context.Context, id string) (*Tag, error) {
	r, err := resource.Fetch(d.c.ctx(ctx), d.c.tr, tagKind, d.WorkspaceID(), d.ID(), id)
	if err != nil {
		return nil, err
	}
	return d.c.newTag(r), nil
}

// AddTag tags the dataset, optionally linking the tag to an ontology term.
//
// Errors:
//
//    - sedar-error-request-failed -- the server refused the tag
//    - sedar-error-serialization -- the response does not name the new tag
//    - sedar-error-resource-fetch -- the new tag could not be fetched
func (d *Dataset) AddTag(ctx context.Context, title string, ontologyID, annotation sdapi.Optional[string]) (*Tag, error) {
	ctx = d.c.ctx(ctx)
	res, err := d.c.tr.Post(ctx, d.path("/tags"), map[string]interface{}{
		"title":       title,
		"ontology_id": ontologyID.OrNil(),
		"annotation":  annotation.OrNil(),
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("adding tag "+title, err)
	}
	obj, err := res.Object()
	if err != nil {
		return nil, err
	}
	id, err := requireID(obj, "id", "tag creation")
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info("", "The tag %q was added successfully.", title)
	return d.Tag(ctx, id)
}

// Ingest starts ingestion of the dataset's current revision.
// It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-request-failed -- the server did not start the ingestion
func (d *Dataset) Ingest(ctx context.Context) (bool, error) {
	return d.action(ctx, "/run-ingestion", "starting ingestion")
}

// Publish makes the dataset visible to the whole workspace.
// It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-request-failed -- the server did not publish the dataset
func (d *Dataset) Publish(ctx context.Context) (bool, error) {
	return d.action(ctx, "/publish", "publishing dataset")
}

func (d *Dataset) action(ctx context.Context, suffix, what string) (bool, error) {
	ctx = d.c.ctx(ctx)
	if _, err := d.c.tr.Post(ctx, d.path(suffix), nil); err != nil {
		return false, sdapi.ErrorRequestFailed(what+" "+d.ID(), err)
	}
	logging.Ctx(ctx).Info("", "Dataset %s: %s succeeded.", d.ID(), what)
	return true, nil
}

// Logs returns the dataset's ingestion logs as decoded JSON.
//
// Errors:
//
//    - sedar-error-request-failed -- the logs could not be fetched
func (d *Dataset) Logs(ctx context.Context) (interface{}, error) {
	res, err := d.c.tr.Get(d.c.ctx(ctx), d.path("/logs"), nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("fetching dataset logs", err)
	}
	if !res.IsJSON() {
		return res.Raw, nil
	}
	return res.JSON, nil
}

// notebookDatasetRef is how the notebook generator expects a dataset reference.
func (d *Dataset) notebookDatasetRef() string {
	const sep = "!_!seperator!_!"
	revision := ""
	if rev := d.Value.Datasource.CurrentRevision; rev != nil {
		switch v := rev.(type) {
		case string:
			revision = v
		default:
			b, _ := json.Marshal(v)
			revision = string(b)
		}
	}
	return d.ID() + sep + d.Title + sep + revision
}
