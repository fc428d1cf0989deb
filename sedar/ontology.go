package sedar

import (
	"context"
	"net/http"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/pkg/transport"
	"github.com/warptools/sedar/pkg/upload"
	"github.com/warptools/sedar/sdapi"
)

// Ontology is a snapshot of one ontology uploaded to a workspace.
type Ontology struct {
	*resource.Resource[sdapi.OntologyRecord]
	c *Client

	Title       string
	Description string
}

func (c *Client) newOntology(r *resource.Resource[sdapi.OntologyRecord]) *Ontology {
	return &Ontology{
		Resource:    r,
		c:           c,
		Title:       r.Value.Title,
		Description: r.Value.Description,
	}
}

func (o *Ontology) WorkspaceID() string { return o.IDs()[0] }

// Ontologies lists the workspace's ontologies.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (w *Workspace) Ontologies(ctx context.Context) ([]*Ontology, error) {
	res, err := w.c.tr.Get(w.c.ctx(ctx), w.path("/ontologies"), nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing ontologies", err)
	}
	records, err := objects(res, "")
	if err != nil {
		return nil, err
	}
	out := make([]*Ontology, 0, len(records))
	for _, rec := range records {
		id, err := requireID(rec, "id", "ontology listing")
		if err != nil {
			return nil, err
		}
		r, err := resource.New(ontologyKind, rec, w.ID(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, w.c.newOntology(r))
	}
	return out, nil
}

// Ontology fetches one ontology of the workspace.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the ontology could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (w *Workspace) Ontology(ctx context.Context, id string) (*Ontology, error) {
	r, err := resource.Fetch(w.c.ctx(ctx), w.c.tr, ontologyKind, w.ID(), id)
	if err != nil {
		return nil, err
	}
	return w.c.newOntology(r), nil
}

// CreateOntology uploads an ontology file (RDF/XML, Turtle, N-Triples, ...) and returns it.
// The file is closed once the request returns.
//
// Errors:
//
//    - sedar-error-file-missing -- path does not name a file; nothing was sent
//    - sedar-error-io -- the file could not be read
//    - sedar-error-request-failed -- the server refused the ontology
//    - sedar-error-serialization -- the response does not name the new ontology
//    - sedar-error-resource-fetch -- the new ontology could not be fetched
func (w *Workspace) CreateOntology(ctx context.Context, title, description, path string) (*Ontology, error) {
	ctx = w.c.ctx(ctx)
	bundle, err := upload.Open(w.c.fsys, upload.Named("file", path).Resolve(w.c.workDir))
	if err != nil {
		logging.Ctx(ctx).Error("", "ontology upload not sent: %s", err)
		return nil, err
	}
	defer bundle.Close()

	res, err := w.c.tr.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   w.path("/ontologies"),
		Form: map[string]string{
			"title":       title,
			"description": description,
		},
		Files: bundle,
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("creating ontology "+title, err)
	}
	obj, err := res.Object()
	if err != nil {
		return nil, err
	}
	id, err := requireID(obj, "id", "ontology creation")
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info("", "The ontology %q was created successfully.", title)
	return w.Ontology(ctx, id)
}

// OntologyQuery is a search over the workspace's ontologies.
// With IsQuery the Query is a complete SPARQL query; otherwise it is a keyword.
// GraphName limits the search to one ontology.
// The server reads the query from a JSON body, even though the request is a GET.
type OntologyQuery struct {
	Query     string `json:"querystring"`
	GraphName string `json:"graph_name,omitempty"`
	IsQuery   bool   `json:"is_query"`
}

// OntologySearch holds a search answer. Triples is filled when the answer is a
// SPARQL result set over subject, predicate and object; Result always holds the raw answer.
type OntologySearch struct {
	Triples []sdapi.Triple
	Result  transport.Result
}

// SearchOntologies searches the workspace's ontologies.
//
// Errors:
//
//    - sedar-error-request-failed -- the search failed
func (w *Workspace) SearchOntologies(ctx context.Context, q OntologyQuery) (*OntologySearch, error) {
	res, err := w.c.tr.Do(w.c.ctx(ctx), transport.Request{
		Method: http.MethodGet,
		Path:   w.path("/ontologies/search"),
		JSON:   q,
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("searching ontologies", err)
	}
	return &OntologySearch{Triples: triples(res.JSON), Result: res}, nil
}

// triples reads SPARQL JSON results whose variables are s, p and o (or subject, predicate, object).
func triples(v interface{}) []sdapi.Triple {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	results, ok := obj["results"].(map[string]interface{})
	if !ok {
		return nil
	}
	bindings, ok := results["bindings"].([]interface{})
	if !ok {
		return nil
	}
	value := func(b map[string]interface{}, names ...string) string {
		for _, n := range names {
			if cell, ok := b[n].(map[string]interface{}); ok {
				if s, ok := cell["value"].(string); ok {
					return s
				}
			}
		}
		return ""
	}
	out := make([]sdapi.Triple, 0, len(bindings))
	for _, raw := range bindings {
		b, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, sdapi.Triple{
			Subject:   value(b, "s", "subject"),
			Predicate: value(b, "p", "predicate"),
			Object:    value(b, "o", "object"),
		})
	}
	return out
}

type completionQuery struct {
	SearchTerm string `json:"search_term"`
}

// AnnotationCompletion suggests ontology terms starting with term.
//
// Errors:
//
//    - sedar-error-request-failed -- the lookup failed
//    - sedar-error-serialization -- the answer has an unexpected shape
func (w *Workspace) AnnotationCompletion(ctx context.Context, term string) ([]sdapi.Annotation, error) {
	res, err := w.c.tr.Do(w.c.ctx(ctx), transport.Request{
		Method: http.MethodGet,
		Path:   w.path("/ontologies/completion"),
		JSON:   completionQuery{SearchTerm: term},
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("completing annotation "+term, err)
	}
	var out []sdapi.Annotation
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

type OntologyUpdate struct {
	Title       sdapi.Optional[string]
	Description sdapi.Optional[string]
}

// Update changes the ontology's metadata and returns a handle on the result.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the ontology could not be fetched before or after
//    - sedar-error-resource-update -- the server rejected the update
//    - sedar-error-serialization -- a response has an unexpected shape
func (o *Ontology) Update(ctx context.Context, upd OntologyUpdate) (*Ontology, error) {
	ctx = o.c.ctx(ctx)
	got, err := resource.Update(ctx, o.c.tr, ontologyKind, resource.Changes{
		"title":       upd.Title,
		"description": upd.Description,
	}, o.IDs()...)
	if err != nil {
		return nil, err
	}
	id, ok := idOf(got, "id")
	if !ok {
		id = o.ID()
	}
	r, err := resource.Fetch(ctx, o.c.tr, ontologyKind, o.WorkspaceID(), id)
	if err != nil {
		return nil, err
	}
	return o.c.newOntology(r), nil
}

// Delete removes the ontology. It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-resource-delete -- the server did not delete the ontology
func (o *Ontology) Delete(ctx context.Context) (bool, error) {
	return resource.Delete(o.c.ctx(ctx), o.c.tr, ontologyKind, o.IDs()...)
}

// Download returns the ontology file as uploaded.
//
// Errors:
//
//    - sedar-error-request-failed -- the file could not be fetched
func (o *Ontology) Download(ctx context.Context) ([]byte, error) {
	res, err := o.c.tr.Get(o.c.ctx(ctx), ontologyKind.Path(o.IDs())+"/download", nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("downloading ontology "+o.ID(), err)
	}
	return res.Raw, nil
}
