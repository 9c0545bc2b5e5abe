// Package uri parses the ida:// and disas:// references handed to the client
// by the desktop URL handler.
package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/danmuck/heimdallr-client/internal/artifact"
)

var ErrInvalidURI = errors.New("uri: invalid reference")

var schemes = map[string]bool{"ida": true, "disas": true}

// HostType is the only "type" value that keeps the name constraint.
const HostType = "ida"

// Request is a parsed reference.
type Request struct {
	Scheme string
	Ref    artifact.Reference
	Offset string
	View   string
	Size   string
	Type   string
}

// Parse validates raw and extracts the resolution inputs. A fully escaped
// reference ("ida%3A%2F%2F...") is unescaped once before parsing.
func Parse(raw string) (Request, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Request{}, fmt.Errorf("%w: empty reference", ErrInvalidURI)
	}
	if !strings.Contains(raw, "://") {
		unescaped, err := url.PathUnescape(raw)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
		}
		raw = unescaped
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Request{}, fmt.Errorf("%w: missing scheme separator", ErrInvalidURI)
	}
	scheme = strings.ToLower(scheme)
	if !schemes[scheme] {
		return Request{}, fmt.Errorf("%w: unexpected scheme %q", ErrInvalidURI, scheme)
	}

	authority, rawQuery, ok := strings.Cut(rest, "?")
	if !ok || strings.TrimSpace(rawQuery) == "" {
		return Request{}, fmt.Errorf("%w: reference has no query", ErrInvalidURI)
	}
	authority = strings.TrimRight(authority, "/")
	name, err := url.PathUnescape(authority)
	if err != nil {
		return Request{}, fmt.Errorf("%w: name: %v", ErrInvalidURI, err)
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Request{}, fmt.Errorf("%w: query: %v", ErrInvalidURI, err)
	}

	req := Request{
		Scheme: scheme,
		Ref:    artifact.Reference{Name: name, Hash: strings.TrimSpace(query.Get("hash"))},
		Offset: strings.TrimSpace(query.Get("offset")),
		View:   query.Get("view"),
		Size:   query.Get("size"),
		Type:   query.Get("type"),
	}
	if query.Has("type") && req.Type != HostType {
		req.Ref.Name = ""
	}
	if req.Ref.Hash == "" {
		return Request{}, fmt.Errorf("%w: missing hash", ErrInvalidURI)
	}
	if req.Offset == "" {
		return Request{}, fmt.Errorf("%w: missing offset", ErrInvalidURI)
	}
	return req, nil
}
