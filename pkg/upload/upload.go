package upload

import (
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/textproto"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warpfork/go-fsx"

	"github.com/warptools/sedar/sdapi"
)

// Files describes which local files go into one upload.
// Build it with Single, Mapping or Named.
type Files struct {
	paths []string
	field string // fixed field name, only used by Named
}

// Single uploads one file; its field name is the file name without extension.
func Single(path string) Files {
	return Files{paths: []string{path}}
}

// Mapping uploads several files. Field names derive from each file's name;
// the keys only make the intent readable at the call site.
func Mapping(m map[string]string) Files {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	f := Files{paths: make([]string, 0, len(m))}
	for _, k := range keys {
		f.paths = append(f.paths, m[k])
	}
	return f
}

// Named uploads one file under a fixed field name.
func Named(field, path string) Files {
	return Files{paths: []string{path}, field: field}
}

func (f Files) IsZero() bool { return len(f.paths) == 0 }

// Paths lists the local paths in upload order.
func (f Files) Paths() []string {
	return append([]string(nil), f.paths...)
}

// Resolve maps every path through FSPath so the files can be opened from an fs rooted at "/".
func (f Files) Resolve(workDir string) Files {
	out := Files{paths: make([]string, 0, len(f.paths)), field: f.field}
	for _, p := range f.paths {
		out.paths = append(out.paths, FSPath(workDir, p))
	}
	return out
}

// Part is one opened file of a Bundle.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Path        string
	file        fs.File
}

func (p Part) Reader() io.Reader { return p.file }

// Bundle holds the open files of one upload.
// Close must be called once the request has been sent, whatever its outcome.
type Bundle struct {
	parts []Part
}

// FSPath turns a local path into a path for an fs rooted at "/".
// Relative paths are taken relative to workDir.
func FSPath(workDir, p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(workDir, p)
	}
	p = filepath.ToSlash(filepath.Clean(p))
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// Open validates every path of files and then opens them all.
// No file is opened unless every path names an existing regular file.
// If opening fails halfway, the files opened so far are closed again.
//
// Errors:
//
//    - sedar-error-invalid -- files is empty, or two files share a field name
//    - sedar-error-file-missing -- a path does not name a regular file
//    - sedar-error-io -- a file exists but could not be opened
func Open(fsys fsx.FS, files Files) (*Bundle, error) {
	if files.IsZero() {
		return nil, sdapi.ErrorInvalid("no files given for upload")
	}
	seen := make(map[string]string, len(files.paths))
	parts := make([]Part, 0, len(files.paths))
	for _, p := range files.paths {
		isFile, _ := fsx.IsPathFile(fsys, p)
		if !isFile {
			return nil, sdapi.ErrorFileMissing(p)
		}
		name := path.Base(p)
		field := files.field
		if field == "" {
			field = FieldName(name)
		}
		if other, dup := seen[field]; dup {
			return nil, sdapi.ErrorInvalid("two upload files share a field name",
				[2]string{"field", field},
				[2]string{"first", other},
				[2]string{"second", p},
			)
		}
		seen[field] = p
		parts = append(parts, Part{
			Field:       field,
			Filename:    name,
			ContentType: ContentType(name),
			Path:        p,
		})
	}

	b := &Bundle{parts: parts[:0]}
	for _, part := range parts {
		f, err := fsys.Open(part.Path)
		if err != nil {
			b.Close()
			return nil, sdapi.ErrorIo("opening upload file", part.Path, err)
		}
		part.file = f
		b.parts = append(b.parts, part)
	}
	return b, nil
}

// Parts returns the opened parts in upload order.
func (b *Bundle) Parts() []Part {
	return append([]Part(nil), b.parts...)
}

// Close closes every file in the bundle and reports the first failure.
// Calling it more than once is harmless.
//
// Errors:
//
//    - sedar-error-io -- a file failed to close
func (b *Bundle) Close() error {
	if b == nil {
		return nil
	}
	var first error
	for i := range b.parts {
		if b.parts[i].file == nil {
			continue
		}
		if err := b.parts[i].file.Close(); err != nil && first == nil {
			first = sdapi.ErrorIo("closing upload file", b.parts[i].Path, err)
		}
		b.parts[i].file = nil
	}
	return first
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// WriteTo writes every part into mw.
// Parts with an unknown content type are sent without a Content-Type header.
//
// Errors:
//
//    - sedar-error-io -- reading a file or writing the form failed
func (b *Bundle) WriteTo(mw *multipart.Writer) error {
	for _, part := range b.parts {
		if part.file == nil {
			return sdapi.ErrorIo("writing multipart form", part.Path, fs.ErrClosed)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(part.Field), quoteEscaper.Replace(part.Filename)))
		if part.ContentType != "" {
			h.Set("Content-Type", part.ContentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			return sdapi.ErrorIo("writing multipart form", part.Path, err)
		}
		if _, err := io.Copy(w, part.file); err != nil {
			return sdapi.ErrorIo("reading upload file", part.Path, err)
		}
	}
	return nil
}
