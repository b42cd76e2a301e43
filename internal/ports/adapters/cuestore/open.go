package cuestore

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/lipsync/internal/ports"
)

// connectTimeout bounds connecting to a networked store, so an unresponsive
// host costs a render at most this long before it falls back to no caching.
var connectTimeout = 5 * time.Second

// Open returns the store named by rawURL. An empty URL means a filesystem
// store in defaultDir.
//
//	file:///var/cache/lipsync    filesystem directory
//	sqlite:///var/cache/cues.db  SQLite database file (sqlite://cues.db is relative)
//	redis://host:6379/0          Redis (rediss:// for TLS)
//	postgres://user@host/db      Postgres
//	none                         caching disabled
func Open(ctx context.Context, rawURL, defaultDir string) (ports.CueStore, error) {
	kind, target, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "none":
		return Nop{}, nil
	case "file":
		if target == "" {
			target = defaultDir
		}
		return NewFS(target)
	case "sqlite":
		return NewSQLite(ctx, target)
	case "redis":
		return NewRedis(ctx, target)
	case "postgres":
		return NewPostgres(ctx, target)
	}
	return nil, fmt.Errorf("unsupported cache url %q", rawURL)
}

// ParseURL validates a cache URL and returns the backend kind and the
// backend-specific target (a path or the connection URL itself).
func ParseURL(rawURL string) (kind, target string, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "file", "", nil
	}
	if rawURL == "none" {
		return "none", "", nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid cache url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "file", "sqlite":
		if u.RawQuery != "" || u.Fragment != "" {
			return "", "", fmt.Errorf("invalid cache url %q: query and fragment are not allowed", rawURL)
		}
		p := filepath.FromSlash(u.Host + u.Path)
		if p == "" {
			return "", "", fmt.Errorf("invalid cache url %q: path is required", rawURL)
		}
		return scheme, p, nil
	case "redis", "rediss":
		if u.Host == "" {
			return "", "", fmt.Errorf("invalid cache url %q: host is required", rawURL)
		}
		return "redis", rawURL, nil
	case "postgres", "postgresql":
		if u.Host == "" {
			return "", "", fmt.Errorf("invalid cache url %q: host is required", rawURL)
		}
		return "postgres", rawURL, nil
	case "":
		return "", "", fmt.Errorf("invalid cache url %q: scheme is required", rawURL)
	}
	return "", "", fmt.Errorf("invalid cache url %q: unsupported scheme %q", rawURL, scheme)
}

var (
	_ ports.CueStore = (*FS)(nil)
	_ ports.CueStore = (*SQLite)(nil)
	_ ports.CueStore = (*Redis)(nil)
	_ ports.CueStore = (*Postgres)(nil)
	_ ports.CueStore = Nop{}
)
