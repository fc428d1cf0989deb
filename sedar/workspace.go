package sedar

import (
	"context"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/sdapi"
)

// Workspace is a snapshot of one workspace.
// Datasets, ontologies and experiments are reached through it.
type Workspace struct {
	*resource.Resource[sdapi.WorkspaceRecord]
	c *Client

	Title       string
	Description string
}

func (c *Client) newWorkspace(r *resource.Resource[sdapi.WorkspaceRecord]) *Workspace {
	return &Workspace{
		Resource:    r,
		c:           c,
		Title:       r.Value.Title,
		Description: r.Value.Description,
	}
}

// Workspaces lists every workspace the session can see.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (c *Client) Workspaces(ctx context.Context) ([]*Workspace, error) {
	res, err := c.tr.Get(c.ctx(ctx), "/api/v1/workspaces/", nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing workspaces", err)
	}
	records, err := objects(res, "")
	if err != nil {
		return nil, err
	}
	out := make([]*Workspace, 0, len(records))
	for _, rec := range records {
		id, err := requireID(rec, "id", "workspace listing")
		if err != nil {
			return nil, err
		}
		r, err := resource.New(workspaceKind, rec, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c.newWorkspace(r))
	}
	return out, nil
}

// Workspace fetches one workspace.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the workspace could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (c *Client) Workspace(ctx context.Context, id string) (*Workspace, error) {
	r, err := resource.Fetch(c.ctx(ctx), c.tr, workspaceKind, id)
	if err != nil {
		return nil, err
	}
	return c.newWorkspace(r), nil
}

// CreateWorkspace creates a workspace and returns it.
//
// Errors:
//
//    - sedar-error-request-failed -- the server refused to create the workspace
//    - sedar-error-serialization -- the response does not name the new workspace
//    - sedar-error-resource-fetch -- the new workspace could not be fetched
func (c *Client) CreateWorkspace(ctx context.Context, title, description string) (*Workspace, error) {
	ctx = c.ctx(ctx)
	res, err := c.tr.Post(ctx, "/api/v1/workspaces/", map[string]string{
		"title":       title,
		"description": description,
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("creating workspace", err)
	}
	obj, err := res.Object()
	if err != nil {
		return nil, err
	}
	id, err := requireID(obj, "id", "workspace creation")
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info("", "Workspace was created successfully.")
	return c.Workspace(ctx, id)
}

type WorkspaceUpdate struct {
	Title       sdapi.Optional[string]
	Description sdapi.Optional[string]
}

// Update changes the workspace and returns a handle on the result.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the workspace could not be fetched before or after
//    - sedar-error-resource-update -- the server rejected the update
//    - sedar-error-serialization -- a response has an unexpected shape
func (w *Workspace) Update(ctx context.Context, upd WorkspaceUpdate) (*Workspace, error) {
	ctx = w.c.ctx(ctx)
	got, err := resource.Update(ctx, w.c.tr, workspaceKind, resource.Changes{
		"title":       upd.Title,
		"description": upd.Description,
	}, w.ID())
	if err != nil {
		return nil, err
	}
	id, ok := idOf(got, "id")
	if !ok {
		id = w.ID()
	}
	return w.c.Workspace(ctx, id)
}

// Delete removes the workspace. It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-resource-delete -- the server did not delete the workspace
func (w *Workspace) Delete(ctx context.Context) (bool, error) {
	return resource.Delete(w.c.ctx(ctx), w.c.tr, workspaceKind, w.ID())
}

func (w *Workspace) path(suffix string) string {
	return workspaceKind.Path([]string{w.ID()}) + suffix
}

// Users lists the workspace's members as user handles, each fetched by email.
//
// Errors:
//
//    - sedar-error-request-failed -- the member listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
//    - sedar-error-resource-fetch -- a member could not be fetched
func (w *Workspace) Users(ctx context.Context) ([]*User, error) {
	ctx = w.c.ctx(ctx)
	res, err := w.c.tr.Get(ctx, w.path("/users"), nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing workspace users", err)
	}
	records, err := objects(res, "")
	if err != nil {
		return nil, err
	}
	out := make([]*User, 0, len(records))
	for _, rec := range records {
		email, err := requireID(rec, "email", "workspace user listing")
		if err != nil {
			return nil, err
		}
		u, err := w.c.User(ctx, email)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// PermissionUpdate grants, changes or revokes a user's access to a workspace.
// Add false removes the user. Unsupplied permissions are sent as null.
type PermissionUpdate struct {
	Add       sdapi.Optional[bool]
	CanRead   sdapi.Optional[bool]
	CanWrite  sdapi.Optional[bool]
	CanDelete sdapi.Optional[bool]
}

// SetUserPermissions applies upd for the user with the given email.
//
// Errors:
//
//    - sedar-error-request-failed -- the server rejected the change
func (w *Workspace) SetUserPermissions(ctx context.Context, email string, upd PermissionUpdate) error {
	ctx = w.c.ctx(ctx)
	_, err := w.c.tr.Put(ctx, w.path("/users"), map[string]interface{}{
		"email":      email,
		"add":        upd.Add.OrNil(),
		"can_read":   upd.CanRead.OrNil(),
		"can_write":  upd.CanWrite.OrNil(),
		"can_delete": upd.CanDelete.OrNil(),
	})
	if err != nil {
		return sdapi.ErrorRequestFailed("setting workspace permissions for "+email, err)
	}
	logging.Ctx(ctx).Info("", "The permissions of %s were updated successfully.", email)
	return nil
}
