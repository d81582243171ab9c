package handler

import (
	"errors"
	"os"

	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
	"github.com/webserv/webserv/internal/routing"
)

// handleDelete implements spec.md 4.F's DELETE branch: the target must
// resolve to an existing, readable file under root; removing it yields
// 200, a missing file 404, and a failed unlink 500.
func (rt *Router) handleDelete(server *config.Server, loc *config.Location, target string) *http1.Response {
	fsPath, err := routing.ResolveFSPath(server, loc, target)
	if err != nil {
		if errors.Is(err, routing.ErrBadTarget) {
			return rt.errorResponse(server, 400)
		}
		return rt.errorResponse(server, 403)
	}

	f, openErr := os.Open(fsPath)
	if openErr != nil {
		return rt.errorResponse(server, 404)
	}
	info, statErr := f.Stat()
	f.Close()
	if statErr != nil || info.IsDir() {
		return rt.errorResponse(server, 404)
	}

	if err := os.Remove(fsPath); err != nil {
		return rt.errorResponse(server, 500)
	}

	resp := http1.NewResponse(200, []byte("Deleted\n"))
	resp.Set("Content-Type", "text/plain")
	return resp
}
