package sedar

import (
	"context"
	"io"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/render"
	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/sdapi"
)

// Wiki is the markdown of the wiki in one language.
type Wiki struct {
	*resource.Resource[wikiRecord]
	c *Client

	Language string
	Markdown string
}

// Wiki fetches the wiki for language, e.g. "en" or "de".
//
// Errors:
//
//    - sedar-error-resource-fetch -- the wiki could not be fetched
//    - sedar-error-serialization -- the record has an unexpected shape
func (c *Client) Wiki(ctx context.Context, language string) (*Wiki, error) {
	ctx = c.ctx(ctx)
	r, err := resource.Fetch(ctx, c.tr, wikiKind, language)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info("", "The wiki was retrieved successfully.")
	return &Wiki{Resource: r, c: c, Language: language, Markdown: r.Value.Markdown}, nil
}

// Update replaces the wiki's markdown and returns the wiki as stored afterwards.
//
// Errors:
//
//    - sedar-error-resource-fetch -- the wiki could not be fetched before or after
//    - sedar-error-resource-update -- the server rejected the update
func (w *Wiki) Update(ctx context.Context, markdown string) (*Wiki, error) {
	ctx = w.c.ctx(ctx)
	_, err := resource.Update(ctx, w.c.tr, wikiKind, resource.Changes{
		"markdown": sdapi.Some(markdown),
	}, w.Language)
	if err != nil {
		return nil, err
	}
	return w.c.Wiki(ctx, w.Language)
}

// HTML renders the markdown as an HTML fragment.
//
// Errors:
//
//    - sedar-error-serialization -- the markdown could not be converted
func (w *Wiki) HTML() ([]byte, error) {
	return render.HTML([]byte(w.Markdown))
}

// Render writes the markdown to wr formatted for a terminal.
//
// Errors:
//
//    - sedar-error-serialization -- the markdown could not be rendered
//    - sedar-error-io -- writing to wr failed
func (w *Wiki) Render(wr io.Writer) error {
	return render.Terminal([]byte(w.Markdown), wr)
}
