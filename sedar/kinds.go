package sedar

import (
	"encoding/json"
	"fmt"

	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/pkg/transport"
	"github.com/warptools/sedar/sdapi"
)

func decoder[T any]() func(map[string]interface{}) (T, error) {
	return func(content map[string]interface{}) (T, error) {
		var v T
		err := sdapi.DecodeInto(content, &v)
		return v, err
	}
}

var (
	userKind = resource.Kind[sdapi.UserRecord]{
		Name:   "user",
		Path:   resource.Templated("/api/v1/users/{}"),
		Fields: []string{"email", "new_email", "firstname", "lastname", "username", "is_admin"},
		Decode: decoder[sdapi.UserRecord](),
	}
	workspaceKind = resource.Kind[sdapi.WorkspaceRecord]{
		Name:   "workspace",
		Path:   resource.Templated("/api/v1/workspaces/{}"),
		Fields: []string{"title", "description"},
		Decode: decoder[sdapi.WorkspaceRecord](),
	}
	datasetKind = resource.Kind[sdapi.DatasetRecord]{
		Name:   "dataset",
		Path:   resource.Templated("/api/v1/workspaces/{}/datasets/{}"),
		Fields: []string{"title", "description", "author", "license", "language"},
		Decode: decoder[sdapi.DatasetRecord](),
	}
	entityKind = resource.Kind[sdapi.EntityRecord]{
		Name:   "entity",
		Path:   resource.Templated("/api/v1/workspaces/{}/datasets/{}/entities/{}"),
		Fields: []string{"name", "description"},
		Decode: decoder[sdapi.EntityRecord](),
	}
	tagKind = resource.Kind[sdapi.TagRecord]{
		Name:   "tag",
		Path:   resource.Templated("/api/v1/workspaces/{}/datasets/{}/tags/{}"),
		Decode: decoder[sdapi.TagRecord](),
	}
	ontologyKind = resource.Kind[sdapi.OntologyRecord]{
		Name:   "ontology",
		Path:   resource.Templated("/api/v1/workspaces/{}/ontologies/{}"),
		Fields: []string{"title", "description"},
		Decode: decoder[sdapi.OntologyRecord](),
	}
	wikiKind = resource.Kind[wikiRecord]{
		Name:   "wiki",
		Path:   resource.Templated("/api/v1/wiki/{}"),
		Fields: []string{"markdown"},
		Decode: decoder[wikiRecord](),
	}

	// MLflow records are only ever built from listings, so these kinds have no Path.
	experimentKind = resource.Kind[sdapi.ExperimentRecord]{
		Name:   "experiment",
		Decode: decoder[sdapi.ExperimentRecord](),
	}
	runKind = resource.Kind[sdapi.RunRecord]{
		Name:   "run",
		Decode: decoder[sdapi.RunRecord](),
	}
	modelKind = resource.Kind[sdapi.ModelRecord]{
		Name:   "registered model",
		Decode: decoder[sdapi.ModelRecord](),
	}
)

type wikiRecord struct {
	Markdown string `json:"markdown"`
}

// idOf reads an identifier out of a record; the server sends both strings and numbers.
func idOf(content map[string]interface{}, key string) (string, bool) {
	switch v := content[key].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	case float64:
		return fmt.Sprint(v), true
	}
	return "", false
}

// requireID is idOf for responses that must name the resource they created or changed.
//
// Errors:
//
//    - sedar-error-serialization -- the record has no usable identifier
func requireID(content map[string]interface{}, key, what string) (string, error) {
	id, ok := idOf(content, key)
	if !ok {
		return "", sdapi.ErrorSerialization(what+" response carries no "+key, fmt.Errorf("got %v", content))
	}
	return id, nil
}

// objects reads a listing: a JSON array of objects, optionally wrapped in an object under key.
//
// Errors:
//
//    - sedar-error-serialization -- the response is not such a listing
func objects(res transport.Result, key string) ([]map[string]interface{}, error) {
	list, ok := res.JSON.([]interface{})
	if !ok && key != "" {
		if obj, isObj := res.JSON.(map[string]interface{}); isObj {
			if inner, present := obj[key]; present {
				if inner == nil {
					return nil, nil
				}
				list, ok = inner.([]interface{})
			}
		}
	}
	if !ok || !res.IsJSON() {
		return nil, sdapi.ErrorSerialization("expected a listing", fmt.Errorf("got %q", truncate(res.Raw)))
	}
	out := make([]map[string]interface{}, 0, len(list))
	for i, v := range list {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, sdapi.ErrorSerialization(fmt.Sprintf("listing entry %d is not an object", i), fmt.Errorf("got %v", v))
		}
		out = append(out, m)
	}
	return out, nil
}

func truncate(b []byte) string {
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}
	return string(b)
}
