package handler

import (
	"errors"
	"os"
	"strings"

	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
	"github.com/webserv/webserv/internal/mimetype"
	"github.com/webserv/webserv/internal/routing"
)

func (rt *Router) handleGet(server *config.Server, loc *config.Location, req *http1.Request, target string) *http1.Response {
	fsPath, err := routing.ResolveFSPath(server, loc, req.Target)
	if err != nil {
		if errors.Is(err, routing.ErrBadTarget) {
			return rt.errorResponse(server, 400)
		}
		return rt.errorResponse(server, 403)
	}

	info, statErr := os.Stat(fsPath)

	if statErr == nil && info.IsDir() {
		return rt.serveDirectory(server, loc, fsPath, target)
	}

	if loc != nil && loc.CGI != nil && strings.HasSuffix(fsPath, loc.CGI.Extension) {
		if statErr != nil {
			return rt.errorResponse(server, 404)
		}
		return rt.runCGI(server, loc, req, fsPath, nil)
	}

	data, err := os.ReadFile(fsPath)
	if err != nil {
		return rt.errorResponse(server, 404)
	}
	resp := http1.NewResponse(200, data)
	resp.Set("Content-Type", mimetype.ForPath(fsPath))
	return resp
}

func (rt *Router) serveDirectory(server *config.Server, loc *config.Location, fsPath, urlPath string) *http1.Response {
	indexName := server.Index
	if loc != nil {
		indexName = loc.EffectiveIndex(server.Index)
	}

	if indexName != "" {
		indexPath := joinDirAndName(fsPath, indexName)
		if data, err := os.ReadFile(indexPath); err == nil {
			resp := http1.NewResponse(200, data)
			resp.Set("Content-Type", mimetype.ForPath(indexPath))
			return resp
		}
	}

	autoindex := server.Autoindex
	if loc != nil {
		autoindex = loc.EffectiveAutoindex(server.Autoindex)
	}
	if !autoindex {
		return rt.errorResponse(server, 403)
	}
	return rt.autoindexResponse(server, fsPath, urlPath)
}

func joinDirAndName(dir, name string) string {
	dir = strings.TrimSuffix(dir, "/")
	name = strings.TrimPrefix(name, "/")
	return dir + "/" + name
}
