package handler

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
	"github.com/webserv/webserv/internal/routing"
)

// handlePost implements spec.md 4.F's POST branch: CGI takes priority
// over upload_store, which takes priority over the plain-echo fallback.
func (rt *Router) handlePost(server *config.Server, loc *config.Location, req *http1.Request, target string, body []byte) *http1.Response {
	fsPath, err := routing.ResolveFSPath(server, loc, req.Target)
	if err != nil {
		if errors.Is(err, routing.ErrBadTarget) {
			return rt.errorResponse(server, 400)
		}
		return rt.errorResponse(server, 403)
	}

	if loc != nil && loc.CGI != nil && strings.HasSuffix(fsPath, loc.CGI.Extension) {
		if _, statErr := os.Stat(fsPath); statErr != nil {
			return rt.errorResponse(server, 404)
		}
		return rt.runCGI(server, loc, req, fsPath, body)
	}

	if loc != nil && loc.UploadStore != "" {
		return rt.handleUpload(server, loc, target, body)
	}

	text := fmt.Sprintf("You sent a POST request to %s\n%d bytes received\n", target, len(body))
	resp := http1.NewResponse(200, []byte(text))
	resp.Set("Content-Type", "text/plain")
	return resp
}

func (rt *Router) handleUpload(server *config.Server, loc *config.Location, target string, body []byte) *http1.Response {
	filename := strings.TrimPrefix(target, loc.Path)
	filename = strings.TrimPrefix(filename, "/")
	if filename == "" || strings.Contains(filename, "/") || strings.Contains(filename, "..") {
		return rt.errorResponse(server, 403)
	}

	dest := joinRoot(loc.UploadStore, filename)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return rt.errorResponse(server, 500)
	}

	text := fmt.Sprintf("Uploaded %s (%d bytes)\n", filename, len(body))
	resp := http1.NewResponse(201, []byte(text))
	resp.Set("Content-Type", "text/plain")
	return resp
}
