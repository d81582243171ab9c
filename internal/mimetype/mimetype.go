// Package mimetype is a small extension-to-content-type lookup table.
//
// It intentionally does not sniff file contents: the router always knows
// the on-disk extension of whatever it is about to serve, so a flat table
// is all the spec calls for.
package mimetype

import "strings"

var table = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".ttf":  "font/ttf",
}

// Default is returned for unrecognized or missing extensions.
const Default = "application/octet-stream"

// ForPath returns the content type for a file path based on its extension.
// Lookups are case-insensitive; the extension includes the leading dot.
func ForPath(path string) string {
	ext := extOf(path)
	if ct, ok := table[strings.ToLower(ext)]; ok {
		return ct
	}
	return Default
}

func extOf(path string) string {
	dot := strings.LastIndexByte(path, '.')
	slash := strings.LastIndexByte(path, '/')
	if dot <= slash {
		return ""
	}
	return path[dot:]
}
