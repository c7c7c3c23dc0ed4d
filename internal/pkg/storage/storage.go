package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound indicates missing object
var ErrNotFound = errors.New("object not found")

// Options for object store initialization
type Options struct {
	URL          string
	Secure       bool
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// hostAndScheme splits http(s)://host:port into host:port and secure flag
func hostAndScheme(urlStr string, secure bool) (string, bool, error) {
	if urlStr == "" {
		return "", false, fmt.Errorf("no storage url")
	}
	if !strings.Contains(urlStr, "://") {
		return urlStr, secure, nil
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", false, fmt.Errorf("can't parse url '%s': %w", urlStr, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("no host in url '%s'", urlStr)
	}
	return u.Host, u.Scheme == "https", nil
}
