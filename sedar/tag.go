package sedar

import (
	"context"

	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/sdapi"
)

// Tag is a snapshot of one tag on a dataset. Tags cannot be edited, only deleted.
type Tag struct {
	*resource.Resource[sdapi.TagRecord]
	c *Client

	Title      string
	Annotation string
}

func (c *Client) newTag(r *resource.Resource[sdapi.TagRecord]) *Tag {
	return &Tag{
		Resource:   r,
		c:          c,
		Title:      r.Value.Title,
		Annotation: r.Value.Annotation,
	}
}

// Delete removes the tag. It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-resource-delete -- the server did not delete the tag
func (t *Tag) Delete(ctx context.Context) (bool, error) {
	return resource.Delete(t.c.ctx(ctx), t.c.tr, tagKind, t.IDs()...)
}
