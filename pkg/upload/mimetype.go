package upload

import (
	"path"
	"strings"
)

// contentTypes maps file extensions to the content type sent with a multipart part.
var contentTypes = map[string]string{
	// text and documents
	".txt":  "text/plain",
	".csv":  "text/csv",
	".log":  "text/plain",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	// ontologies
	".rdf":    "application/rdf+xml",
	".ttl":    "text/turtle",
	".nt":     "application/n-triples",
	".n3":     "text/n3",
	".jsonld": "application/ld+json",
	".owl":    "application/owl+xml",

	// databases
	".sql":   "application/sql",
	".db":    "application/x-sqlite3",
	".mdb":   "application/vnd.ms-access",
	".accdb": "application/vnd.ms-access",

	// images
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".ico":  "image/vnd.microsoft.icon",
	".webp": "image/webp",

	// audio and video
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",

	// archives
	".zip": "application/zip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
	".tar": "application/x-tar",
	".gz":  "application/gzip",

	// parquet has no registered type
	".parquet":  "application/octet-stream",
	".avro":     "avro/binary",
	".protobuf": "application/x-protobuf",
}

// ContentType looks up the content type for name by its extension.
// Unknown extensions, and names without one, yield "".
// The lookup is case sensitive.
func ContentType(name string) string {
	_, ext := splitExt(path.Base(name))
	return contentTypes[ext]
}

// FieldName is the base name of name with its extension removed.
func FieldName(name string) string {
	stem, _ := splitExt(path.Base(name))
	return stem
}

// splitExt splits base at its last dot.
// Leading dots belong to the stem, so ".env" has no extension.
func splitExt(base string) (stem, ext string) {
	trimmed := strings.TrimLeft(base, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 {
		return base, ""
	}
	i += len(base) - len(trimmed)
	return base[:i], base[i:]
}
