/*
Package resource is the generic half of every SEDAR handle.

A Kind describes one resource type: where it lives, which fields the server
accepts on update, and how its JSON becomes a typed record. Fetch, Update and
Delete implement the three operations every handle shares on top of a Kind.
*/
package resource

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/tracing"
	"github.com/warptools/sedar/pkg/transport"
	"github.com/warptools/sedar/sdapi"
)

// Kind configures the shared operations for one resource type.
type Kind[T any] struct {
	Name   string                    // Human readable, used in messages.
	Path   func(ids []string) string // Canonical path from the identifier chain, outermost first.
	Fields []string                  // Accepted by the server on update.
	Decode func(content map[string]interface{}) (T, error)
}

// Resource is a snapshot of one server-side record.
// It is never refreshed; mutations produce a new Resource.
type Resource[T any] struct {
	ids     []string
	content map[string]interface{}
	Value   T
}

// IDs returns the identifier chain, outermost first.
func (r *Resource[T]) IDs() []string { return append([]string(nil), r.ids...) }

// ID is the innermost identifier.
func (r *Resource[T]) ID() string { return r.ids[len(r.ids)-1] }

// Content returns a copy of the JSON snapshot.
func (r *Resource[T]) Content() map[string]interface{} { return clone(r.content) }

// Templated builds a Path func from a template with one "{}" per identifier.
// Identifiers are path-escaped.
func Templated(tmpl string) func(ids []string) string {
	return func(ids []string) string {
		out := tmpl
		for _, id := range ids {
			out = strings.Replace(out, "{}", url.PathEscape(id), 1)
		}
		return out
	}
}

// New wraps an already fetched record, e.g. an element of a listing.
//
// Errors:
//
//    - sedar-error-serialization -- the decoder rejected content
func New[T any](kind Kind[T], content map[string]interface{}, ids ...string) (*Resource[T], error) {
	v, err := kind.Decode(content)
	if err != nil {
		return nil, err
	}
	return &Resource[T]{ids: append([]string(nil), ids...), content: content, Value: v}, nil
}

// Fetch constructs a Resource with a single GET of its canonical path.
// A Resource never exists for a record the server did not return.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the GET failed; the transport error is the cause
//    - sedar-error-serialization -- the response is not an object or does not decode
func Fetch[T any](ctx context.Context, tr *transport.Transport, kind Kind[T], ids ...string) (*Resource[T], error) {
	path := kind.Path(ids)
	ctx, span := tracing.Start(ctx, "sedar.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrKeySedarResource, kind.Name),
		attribute.String(tracing.AttrKeySedarResourceId, strings.Join(ids, "/")),
	)

	res, err := tr.Get(ctx, path, nil)
	if err != nil {
		err = sdapi.ErrorResourceFetch(kind.Name, path, err)
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	content, err := res.Object()
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	r, err := New(kind, content, ids...)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	return r, nil
}

// Changes maps accepted field names to caller-supplied values.
// Unsupplied optionals are simply ignored.
type Changes map[string]sdapi.Field

// MergePayload builds the full update body: every accepted field starts at its
// current value (nil if the record lacks it) and supplied changes overwrite it.
// Changes for fields outside the accepted list are dropped.
func MergePayload(current map[string]interface{}, fields []string, changes Changes) map[string]interface{} {
	payload := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		payload[f] = current[f]
	}
	for f, change := range changes {
		if change == nil {
			continue
		}
		if _, accepted := payload[f]; !accepted {
			continue
		}
		if v, ok := change.Supplied(); ok {
			payload[f] = v
		}
	}
	return payload
}

// Update performs a read-modify-write: fetch the current record, merge changes
// onto its accepted fields, and PUT the complete payload.
// It returns the server's answer to the PUT.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the current record could not be fetched
//    - sedar-error-serialization -- a response is not a JSON object
//    - sedar-error-resource-update -- the PUT failed; the transport error is the cause
func Update[T any](ctx context.Context, tr *transport.Transport, kind Kind[T], changes Changes, ids ...string) (map[string]interface{}, error) {
	ctx, span := tracing.Start(ctx, "sedar.update")
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrKeySedarResource, kind.Name),
		attribute.String(tracing.AttrKeySedarResourceId, strings.Join(ids, "/")),
	)

	current, err := Fetch(ctx, tr, kind, ids...)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	path := kind.Path(ids)
	payload := MergePayload(current.content, kind.Fields, changes)
	res, err := tr.Put(ctx, path, payload)
	if err != nil {
		err = sdapi.ErrorResourceUpdate(kind.Name, path, err)
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	logging.Ctx(ctx).Info("", "The %s was updated successfully.", kind.Name)
	return responseObject(res, payload)
}

// Patch sends payload as-is with PATCH, for the few endpoints that take partial bodies.
//
// Errors:
//
//    - sedar-error-resource-update -- the PATCH failed; the transport error is the cause
func Patch[T any](ctx context.Context, tr *transport.Transport, kind Kind[T], payload map[string]interface{}, ids ...string) (transport.Result, error) {
	path := kind.Path(ids)
	res, err := tr.Patch(ctx, path, payload)
	if err != nil {
		return transport.Result{}, sdapi.ErrorResourceUpdate(kind.Name, path, err)
	}
	return res, nil
}

// Delete issues a DELETE on the canonical path.
// Any successful response counts; the body is not inspected.
// It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-resource-delete -- the DELETE failed; the transport error is the cause
func Delete[T any](ctx context.Context, tr *transport.Transport, kind Kind[T], ids ...string) (bool, error) {
	path := kind.Path(ids)
	if _, err := tr.Delete(ctx, path); err != nil {
		return false, sdapi.ErrorResourceDelete(kind.Name, path, err)
	}
	logging.Ctx(ctx).Info("", "The %s was deleted successfully.", kind.Name)
	return true, nil
}

// responseObject returns the JSON object of res.
// Some endpoints answer a PUT with an empty or non-object body; then the sent payload stands in.
func responseObject(res transport.Result, sent map[string]interface{}) (map[string]interface{}, error) {
	if obj, ok := res.JSON.(map[string]interface{}); ok && res.IsJSON() {
		return obj, nil
	}
	return clone(sent), nil
}

func clone(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
