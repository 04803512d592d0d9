// Package hostenv exposes the few facts about the host process that the
// protocol handshake needs: the process identifier and conversion between
// filesystem paths and file URIs.
package hostenv

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ProcessID returns the identifier of the host process. Language servers use
// it to watch for an exiting parent.
func ProcessID() int {
	return os.Getpid()
}

// PathToURI converts an absolute filesystem path to a file:// URI.
func PathToURI(path string) string {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		// Windows drive paths ("C:/...") need a leading slash in the URI.
		path = "/" + path
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// URIToPath converts a file:// URI back to a filesystem path. Non-file URIs
// are returned unchanged.
func URIToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	path := u.Path
	// Strip the synthetic leading slash in front of a drive letter.
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}
