/*
Package render turns server content into something a person can read:
wiki markdown as HTML or as styled terminal text, and the stats listing as a table.
*/
package render

import (
	"bytes"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/term"

	"github.com/warptools/sedar/sdapi"
)

const (
	DefaultWidth = 80
	minWidth     = 60
)

// HTML converts wiki markdown to an HTML fragment.
// Raw HTML in the source is dropped.
//
// Errors:
//
//    - sedar-error-serialization -- the markdown could not be converted
func HTML(markdown []byte) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	var buf bytes.Buffer
	if err := md.Convert(markdown, &buf); err != nil {
		return nil, sdapi.ErrorSerialization("rendering markdown", err)
	}
	return buf.Bytes(), nil
}

// Terminal writes markdown to wr styled for a terminal.
//
// When wr is a terminal its width is used for wrapping and colors are on;
// otherwise the output is plain ASCII wrapped at DefaultWidth.
//
// Errors:
//
//    - sedar-error-serialization -- the markdown could not be rendered
//    - sedar-error-io -- writing to wr failed
func Terminal(markdown []byte, wr io.Writer) error {
	width, tty := DefaultWidth, false
	if fd, ok := wr.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(fd.Fd())) {
		tty = true
		if w, _, err := term.GetSize(int(fd.Fd())); err == nil && w > 0 {
			width = w
			if width < minWidth {
				width = minWidth
			}
		}
	}
	style := glamour.ASCIIStyleConfig
	if tty {
		style = terminalStyle()
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return sdapi.ErrorInternal("building terminal renderer", err)
	}
	out, err := r.Render(string(markdown))
	if err != nil {
		return sdapi.ErrorSerialization("rendering markdown", err)
	}
	if _, err := io.WriteString(wr, out); err != nil {
		return sdapi.ErrorIo("writing rendered markdown", "", err)
	}
	return nil
}

func terminalStyle() ansi.StyleConfig {
	style := glamour.DarkStyleConfig
	stringPtr := func(s string) *string { return &s }
	uintPtr := func(u uint) *uint { return &u }
	style.Document.Margin = uintPtr(0)
	style.Paragraph.Margin = uintPtr(2)
	style.Code.Prefix = "`"
	style.Code.Suffix = "`"
	style.CodeBlock.Margin = uintPtr(4)
	style.H2.Color = stringPtr("135")
	style.H3.Color = stringPtr("67")
	return style
}
