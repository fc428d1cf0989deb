package sedar

import (
	"context"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/sdapi"
)

// Entity is a snapshot of one entity (a table or file) of a dataset.
type Entity struct {
	*resource.Resource[sdapi.EntityRecord]
	c *Client

	InternalName string
	DisplayName  string
	Description  string
	CountOfRows  int64
}

func (c *Client) newEntity(r *resource.Resource[sdapi.EntityRecord]) *Entity {
	rows, _ := r.Value.CountOfRows.Int64()
	return &Entity{
		Resource:     r,
		c:            c,
		InternalName: r.Value.InternalName,
		DisplayName:  r.Value.DisplayName,
		Description:  r.Value.Description,
		CountOfRows:  rows,
	}
}

type EntityUpdate struct {
	Name        sdapi.Optional[string]
	Description sdapi.Optional[string]
}

// Update changes the entity and returns a handle on the result.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the entity could not be fetched before or after
//    - sedar-error-resource-update -- the server rejected the update
//    - sedar-error-serialization -- a response has an unexpected shape
func (e *Entity) Update(ctx context.Context, upd EntityUpdate) (*Entity, error) {
	ctx = e.c.ctx(ctx)
	got, err := resource.Update(ctx, e.c.tr, entityKind, resource.Changes{
		"name":        upd.Name,
		"description": upd.Description,
	}, e.IDs()...)
	if err != nil {
		return nil, err
	}
	id, ok := idOf(got, "id")
	if !ok {
		id = e.ID()
	}
	ids := e.IDs()
	r, err := resource.Fetch(ctx, e.c.tr, entityKind, ids[0], ids[1], id)
	if err != nil {
		return nil, err
	}
	return e.c.newEntity(r), nil
}

// AddAnnotation links the entity to an ontology term.
// description and key are optional; unsupplied they are sent as null.
// It returns the server's answer.
//
// Errors:
//
//    - sedar-error-resource-update -- the server rejected the annotation
func (e *Entity) AddAnnotation(ctx context.Context, a sdapi.Annotation, description, key sdapi.Optional[string]) (interface{}, error) {
	ctx = e.c.ctx(ctx)
	res, err := resource.Patch(ctx, e.c.tr, entityKind, map[string]interface{}{
		"description":   description.OrNil(),
		"key":           key.OrNil(),
		"annotation_id": nil,
		"annotation":    a.Value,
		"ontology_id":   a.Graph,
	}, e.IDs()...)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info("", "The annotation %q was added to entity %s.", a.Value, e.ID())
	if !res.IsJSON() {
		return res.Raw, nil
	}
	return res.JSON, nil
}

// RemoveAnnotation unlinks one of the entity's annotations, identified by the
// id of the link itself. It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-resource-update -- the server rejected the removal
func (e *Entity) RemoveAnnotation(ctx context.Context, annotationID string) (bool, error) {
	ctx = e.c.ctx(ctx)
	_, err := resource.Patch(ctx, e.c.tr, entityKind, map[string]interface{}{
		"description":   nil,
		"key":           nil,
		"annotation_id": annotationID,
		"annotation":    nil,
		"ontology_id":   nil,
	}, e.IDs()...)
	if err != nil {
		return false, err
	}
	logging.Ctx(ctx).Info("", "The annotation %s was removed from entity %s.", annotationID, e.ID())
	return true, nil
}
