package handler

import (
	"fmt"
	"os"
	"strings"

	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
	"github.com/webserv/webserv/internal/mimetype"
)

// errorResponse builds the response for any non-2xx outcome, per
// spec.md §7: always Connection: close; serve the server's configured
// error_page for this code if it resolves safely under root, otherwise a
// plain-text "<code> <reason>" body. opts let callers add extra headers
// (e.g. Allow:) without a combinatorial explosion of helper functions.
// RespondError exposes errorResponse for callers outside the package
// (the event loop needs it for parse-time failures that never reach
// Handle, e.g. a malformed request line or an oversized body).
func (rt *Router) RespondError(server *config.Server, code int) *http1.Response {
	return rt.errorResponse(server, code)
}

func (rt *Router) errorResponse(server *config.Server, code int, opts ...responseOpt) *http1.Response {
	reason := http1.ReasonPhrase(code)

	if server != nil {
		if page, ok := server.ErrorPages[code]; ok && !strings.Contains(page, "..") {
			path := joinRoot(server.Root, page)
			if data, err := os.ReadFile(path); err == nil {
				resp := http1.NewResponse(code, data)
				resp.Set("Content-Type", mimetype.ForPath(path))
				resp.Set("Connection", "close")
				for _, opt := range opts {
					opt(resp)
				}
				return resp
			}
		}
	}

	body := []byte(fmt.Sprintf("%d %s", code, reason))
	resp := http1.NewResponse(code, body)
	resp.Set("Content-Type", "text/plain")
	resp.Set("Connection", "close")
	for _, opt := range opts {
		opt(resp)
	}
	return resp
}

func joinRoot(root, suffix string) string {
	root = strings.TrimSuffix(root, "/")
	if !strings.HasPrefix(suffix, "/") {
		suffix = "/" + suffix
	}
	return root + suffix
}

// redirectResponse builds the 3xx response for a location's redirect
// directive: the configured code, a canonical reason phrase, a
// Location: header, and a short HTML body.
func (rt *Router) redirectResponse(r *config.Redirect) *http1.Response {
	reason := http1.ReasonPhrase(r.Code)
	body := fmt.Sprintf("<html><head><title>%d %s</title></head><body><h1>%d %s</h1><p>Redirecting to <a href=\"%s\">%s</a></p></body></html>",
		r.Code, reason, r.Code, reason, r.URL, r.URL)
	resp := http1.NewResponse(r.Code, []byte(body))
	resp.Reason = reason
	resp.Set("Location", r.URL)
	resp.Set("Content-Type", "text/html")
	return resp
}
