// Package resolver maps request paths to files under a document root.
//
// Resolution is a fixed pipeline: normalize the raw request target,
// guard the joined filesystem path against escaping the root, then apply
// the lookup policy (index files for directories, .html → .htm fallback
// for files). The guard is never skipped; no resolved file may lie
// outside the root.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound means no file matched after all fallbacks.
	ErrNotFound = errors.New("no matching file")
	// ErrPathEscape means the candidate path resolved outside the root.
	ErrPathEscape = errors.New("path escapes document root")
)

// Target is the outcome of a successful resolution, computed fresh per
// request and discarded after the response.
type Target struct {
	// File is the absolute path of the file to serve.
	File string
	// Redirect is set when the request named an existing directory
	// without a trailing slash; the caller should redirect to the
	// slash-terminated form of the path the client actually used.
	Redirect bool
}

// Resolver resolves request paths against one immutable root/prefix
// pair. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	root   string // canonical absolute document root
	prefix string // mount prefix in "/name" form, or ""
}

// New canonicalizes root (it must exist) and returns a Resolver serving
// it under prefix as well as unprefixed.
func New(root, prefix string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", root, err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("document root %s: %w", abs, err)
	}
	return &Resolver{root: canon, prefix: prefix}, nil
}

// Root returns the canonical document root.
func (r *Resolver) Root() string { return r.root }

// Normalize turns a raw request target into a root-relative path
// beginning with "/": query and fragment are stripped, the remainder is
// percent-decoded, and the mount prefix (if present) is removed. Targets
// without the prefix pass through unchanged, so the same tree answers on
// both mounts.
func (r *Resolver) Normalize(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if dec, err := url.PathUnescape(raw); err == nil {
		raw = dec
	}
	if r.prefix != "" {
		switch {
		case raw == r.prefix, raw == r.prefix+"/":
			raw = "/"
		case strings.HasPrefix(raw, r.prefix+"/"):
			raw = strings.TrimPrefix(raw, r.prefix)
		}
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return raw
}

// Resolve maps a normalized path to a Target. A path that is empty or
// ends in "/" is a directory request answered by index.html, then
// index.htm. Anything else is a file request; a missing .html file
// retries as .htm (never the reverse). Matching is case-sensitive.
func (r *Resolver) Resolve(normalized string) (Target, error) {
	abs, err := r.guard(normalized)
	if err != nil {
		return Target{}, err
	}

	if normalized == "/" || strings.HasSuffix(normalized, "/") {
		return r.resolveIndex(abs)
	}

	st, err := os.Stat(abs)
	if err == nil {
		if st.IsDir() {
			// Slashless directory URL: redirecting keeps the page's
			// relative links working, serving index bytes here would not.
			return Target{Redirect: true}, nil
		}
		if st.Mode().IsRegular() {
			return Target{File: abs}, nil
		}
		return Target{}, ErrNotFound
	}
	if strings.HasSuffix(normalized, ".html") {
		alt := strings.TrimSuffix(abs, ".html") + ".htm"
		if isRegular(alt) {
			return Target{File: alt}, nil
		}
	}
	return Target{}, ErrNotFound
}

func (r *Resolver) resolveIndex(dir string) (Target, error) {
	for _, name := range []string{"index.html", "index.htm"} {
		cand := filepath.Join(dir, name)
		if isRegular(cand) {
			return Target{File: cand}, nil
		}
	}
	return Target{}, ErrNotFound
}

// guard joins the normalized path onto the root and verifies the
// canonical result (".." and symlinks resolved) is the root or a
// descendant of it. Containment is checked per path component, not by
// string prefix, so /docsx never passes for a root of /docs.
func (r *Resolver) guard(normalized string) (string, error) {
	cand := filepath.Join(r.root, filepath.FromSlash(strings.TrimPrefix(normalized, "/")))
	canon, err := canonicalize(cand)
	if err != nil {
		return "", ErrPathEscape
	}
	if !within(r.root, canon) {
		return "", ErrPathEscape
	}
	return canon, nil
}

// canonicalize resolves symlinks on the deepest existing ancestor of p
// so that not-yet-found paths (the common 404 case) still canonicalize.
func canonicalize(p string) (string, error) {
	suffix := ""
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(p), suffix)
		p = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isRegular(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}
