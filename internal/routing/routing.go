// Package routing implements spec.md 4.D (path & location resolver) and
// 4.E (virtual-host selector). Both are pure, side-effect-free functions
// over the immutable config tree, as the spec requires ("idempotent and
// pure").
package routing

import (
	"errors"
	"strings"

	"github.com/webserv/webserv/internal/config"
)

// ErrBadTarget is returned for a target that fails the basic shape
// checks (empty, missing leading "/") — spec.md's BadTarget/400 class.
var ErrBadTarget = errors.New("routing: request-target is malformed")

// ErrPathTraversal is returned when the target contains "..". Callers
// decide whether that is a 400 (outside a filesystem context) or 403
// (inside one) per spec.md §7.
var ErrPathTraversal = errors.New("routing: request-target contains '..'")

// FindLocation returns the location in server whose Path is the longest
// string-prefix match of target, or nil. This is a thin wrapper over
// config.Server.FindLocation that first strips any "?query" from target,
// so callers only need to import one package for routing concerns.
func FindLocation(server *config.Server, target string) *config.Location {
	return server.FindLocation(stripQuery(target))
}

func stripQuery(target string) string {
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		return target[:idx]
	}
	return target
}

// ResolveFSPath maps a request target to an absolute-ish filesystem path
// under the server or location root, per spec.md 4.D: strip ?query,
// reject empty/non-"/"-prefixed targets, reject any ".." occurrence,
// choose location.Root if set else server.Root, strip the location's
// path prefix from the target, and join root+suffix with exactly one
// "/" at the seam.
func ResolveFSPath(server *config.Server, loc *config.Location, target string) (string, error) {
	clean := stripQuery(target)
	if clean == "" || clean[0] != '/' {
		return "", ErrBadTarget
	}
	if strings.Contains(clean, "..") {
		return "", ErrPathTraversal
	}

	root := server.Root
	prefix := ""
	if loc != nil {
		root = loc.EffectiveRoot(server.Root)
		prefix = loc.Path
	}

	suffix := clean
	if prefix != "" && prefix != "/" && strings.HasPrefix(clean, prefix) {
		suffix = clean[len(prefix):]
	}
	if suffix == "" {
		suffix = "/"
	}

	return joinRootAndSuffix(root, suffix), nil
}

// joinRootAndSuffix concatenates root and suffix with exactly one "/" at
// the join, regardless of whether either side already has one.
func joinRootAndSuffix(root, suffix string) string {
	root = strings.TrimSuffix(root, "/")
	if !strings.HasPrefix(suffix, "/") {
		suffix = "/" + suffix
	}
	return root + suffix
}

// SelectServer implements spec.md 4.E: read Host:, strip any ":port",
// lowercase, and return the first candidate whose Host matches. If none
// match (or hostHeader is empty), defaultServer is returned unchanged.
func SelectServer(candidates []*config.Server, defaultServer *config.Server, hostHeader string) *config.Server {
	name := normalizeHost(hostHeader)
	if name == "" {
		return defaultServer
	}
	for _, s := range candidates {
		if s.Host != "" && s.Host == name {
			return s
		}
	}
	return defaultServer
}

func normalizeHost(hostHeader string) string {
	h := strings.ToLower(strings.TrimSpace(hostHeader))
	if idx := strings.LastIndexByte(h, ':'); idx >= 0 {
		h = h[:idx]
	}
	return h
}
