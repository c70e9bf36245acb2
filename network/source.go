package network

import (
	"context"
	"encoding/base64"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Source loads scene markup by reference.
type Source struct {
	client *Client
}

// NewSource creates a Source. A nil client is created on first HTTP use.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// Fetch returns the bytes behind ref, which is a plain path, a file: URL, a
// data: URL or an http(s) URL.
func (s *Source) Fetch(ctx context.Context, ref string) ([]byte, error) {
	scheme := ""
	if i := strings.Index(ref, ":"); i > 1 {
		scheme = strings.ToLower(ref[:i])
	}

	switch scheme {
	case "data":
		return decodeDataURL(ref)
	case "http", "https":
		if s.client == nil {
			c, err := NewClient()
			if err != nil {
				return nil, err
			}
			s.client = c
		}
		return s.client.Get(ctx, ref)
	case "file":
		u, err := url.Parse(ref)
		if err != nil {
			return nil, errors.Wrap(err, "invalid file URL")
		}
		return readFile(u.Path)
	case "":
		return readFile(ref)
	default:
		return nil, errors.Errorf("unsupported scheme %q", scheme)
	}
}

// IsLocal reports whether ref names a file on disk, and returns its path.
func IsLocal(ref string) (string, bool) {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "file:"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", false
		}
		return u.Path, true
	case strings.HasPrefix(lower, "data:"), strings.HasPrefix(lower, "http:"), strings.HasPrefix(lower, "https:"):
		return "", false
	}
	return ref, true
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening scene")
	}
	return data, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>. The media type
// is not checked.
func decodeDataURL(ref string) ([]byte, error) {
	content := ref[len("data:"):]
	comma := strings.Index(content, ",")
	if comma == -1 {
		return nil, errors.New("invalid data URL: missing comma")
	}
	meta, data := content[:comma], content[comma+1:]

	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode base64 data")
		}
		return decoded, nil
	}
	decoded, err := url.PathUnescape(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to URL-decode data")
	}
	return []byte(decoded), nil
}
