package sedar

import (
	"context"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/sdapi"
)

// User is a snapshot of one user account. Users are identified by email.
type User struct {
	*resource.Resource[sdapi.UserRecord]
	c *Client

	Email     string
	Firstname string
	Lastname  string
	Username  string
	IsAdmin   bool
}

func (c *Client) newUser(r *resource.Resource[sdapi.UserRecord]) *User {
	return &User{
		Resource:  r,
		c:         c,
		Email:     r.ID(),
		Firstname: r.Value.Firstname,
		Lastname:  r.Value.Lastname,
		Username:  r.Value.Username,
		IsAdmin:   r.Value.IsAdmin,
	}
}

// User fetches the user with the given email.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the user could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (c *Client) User(ctx context.Context, email string) (*User, error) {
	r, err := resource.Fetch(c.ctx(ctx), c.tr, userKind, email)
	if err != nil {
		return nil, err
	}
	return c.newUser(r), nil
}

// CurrentUser fetches the logged in user.
//
// Errors:
//
//    - sedar-error-invalid -- nobody is logged in
//    - sedar-error-resource-fetch -- the user could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	principal := c.tr.Principal()
	if principal == "" {
		return nil, sdapi.ErrorInvalid("not logged in")
	}
	kind := userKind
	kind.Path = resource.Templated("/api/v1/users/current/{}")
	r, err := resource.Fetch(c.ctx(ctx), c.tr, kind, principal)
	if err != nil {
		return nil, err
	}
	return c.newUser(r), nil
}

// NewUser is the body of a user creation.
type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
}

// CreateUser creates an account and returns it.
//
// Errors:
//
//    - sedar-error-request-failed -- the server refused to create the user
//    - sedar-error-serialization -- the response does not name the new user
//    - sedar-error-resource-fetch -- the new user could not be fetched
func (c *Client) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	ctx = c.ctx(ctx)
	res, err := c.tr.Post(ctx, "/api/v1/users/", u)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("creating user "+u.Email, err)
	}
	obj, err := res.Object()
	if err != nil {
		return nil, err
	}
	email, err := requireID(obj, "email", "user creation")
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info("", "The user %s was created successfully.", u.Email)
	return c.User(ctx, email)
}

// UserUpdate lists the user fields to change. Unsupplied fields keep their value.
// NewEmail renames the account.
type UserUpdate struct {
	NewEmail  sdapi.Optional[string]
	Firstname sdapi.Optional[string]
	Lastname  sdapi.Optional[string]
	Username  sdapi.Optional[string]
	IsAdmin   sdapi.Optional[bool]
}

func (u UserUpdate) changes() resource.Changes {
	return resource.Changes{
		"new_email": u.NewEmail,
		"firstname": u.Firstname,
		"lastname":  u.Lastname,
		"username":  u.Username,
		"is_admin":  u.IsAdmin,
	}
}

// Update changes the account and returns a handle on the updated user.
// The new handle is looked up by the email the server answers with.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the user could not be fetched before or after
//    - sedar-error-resource-update -- the server rejected the update
//    - sedar-error-serialization -- a response has an unexpected shape
func (u *User) Update(ctx context.Context, upd UserUpdate) (*User, error) {
	ctx = u.c.ctx(ctx)
	got, err := resource.Update(ctx, u.c.tr, userKind, upd.changes(), u.ID())
	if err != nil {
		return nil, err
	}
	email, ok := idOf(got, "email")
	if !ok {
		email = u.ID()
		if v, supplied := upd.NewEmail.Get(); supplied {
			email = v
		}
	}
	return u.c.User(ctx, email)
}

// Delete removes the account. It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-resource-delete -- the server did not delete the user
func (u *User) Delete(ctx context.Context) (bool, error) {
	return resource.Delete(u.c.ctx(ctx), u.c.tr, userKind, u.ID())
}
