package job

import (
	"net/url"
	"strings"
)

// DefaultHostBase is prepended to owner/name references.
const DefaultHostBase = "https://github.com"

// NormalizeURL turns user input into the URL sent to the backend. Input
// without an http(s) scheme is taken as an owner/name pair on hostBase.
func NormalizeURL(ref, hostBase string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrEmptyReference
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return ref, nil
	}
	if hostBase == "" {
		hostBase = DefaultHostBase
	}
	return strings.TrimRight(hostBase, "/") + "/" + strings.TrimLeft(ref, "/"), nil
}
