package utils

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/vfaronov/httpheader"
)

// DetermineFilenameFromHeaders resolves a filename from Content-Disposition,
// URL query parameters, or the URL path — used by metadata-only probes
// (HEAD, Range: bytes=0-0) where no response body is ever read.
func DetermineFilenameFromHeaders(rawurl string, header http.Header) string {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return "download.bin"
	}

	var candidate string
	if _, name, err := httpheader.ContentDisposition(header); err == nil && name != "" {
		candidate = name
	}
	if candidate == "" {
		q := parsed.Query()
		if name := q.Get("filename"); name != "" {
			candidate = name
		} else if name := q.Get("file"); name != "" {
			candidate = name
		}
	}
	if candidate == "" {
		candidate = filepath.Base(parsed.Path)
	}

	filename := sanitizeFilename(candidate)
	if filename == "" || filename == "." || filename == "/" {
		return "download.bin"
	}
	return filename
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." {
		return name
	}
	if name == "/" || name == "\\" {
		return "_"
	}
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, "*", "_")
	name = strings.ReplaceAll(name, "?", "_")
	name = strings.ReplaceAll(name, "\"", "_")
	name = strings.ReplaceAll(name, "<", "_")
	name = strings.ReplaceAll(name, ">", "_")
	name = strings.ReplaceAll(name, "|", "_")
	return name
}
