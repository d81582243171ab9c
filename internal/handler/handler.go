// Package handler implements spec.md 4.F: the request router. It picks
// a location, enforces method restrictions, and dispatches to the
// GET/POST/DELETE handlers, falling back to a well-formed error response
// for every failure mode (spec.md §7).
package handler

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/webserv/webserv/internal/cgi"
	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
	"github.com/webserv/webserv/internal/routing"
)

// Router dispatches parsed requests to their handlers.
type Router struct {
	Log logrus.FieldLogger
}

// New returns a Router that logs through log.
func New(log logrus.FieldLogger) *Router {
	return &Router{Log: log}
}

// Handle produces a complete response for req against server. body is
// the already fully-decoded request body (Content-Length or chunked,
// the caller has already resolved which).
func (rt *Router) Handle(server *config.Server, req *http1.Request, body []byte) *http1.Response {
	method := config.Method(req.Method)
	switch method {
	case config.MethodGET, config.MethodPOST, config.MethodDELETE:
	default:
		return rt.errorResponse(server, 405, withAllow(allowHeader(config.AllMethods)))
	}

	target := req.Path()
	loc := routing.FindLocation(server, req.Target)

	if loc != nil && !loc.HasMethod(method) {
		var allowed []config.Method
		for _, m := range config.AllMethods {
			if loc.HasMethod(m) {
				allowed = append(allowed, m)
			}
		}
		return rt.errorResponse(server, 405, withAllow(allowHeader(allowed)))
	}

	if loc != nil && loc.Redirect != nil {
		return rt.redirectResponse(loc.Redirect)
	}

	switch method {
	case config.MethodGET:
		return rt.handleGet(server, loc, req, target)
	case config.MethodPOST:
		return rt.handlePost(server, loc, req, target, body)
	case config.MethodDELETE:
		return rt.handleDelete(server, loc, target)
	}
	return rt.errorResponse(server, 500)
}

func allowHeader(methods []config.Method) string {
	s := ""
	for i, m := range methods {
		if i > 0 {
			s += ", "
		}
		s += string(m)
	}
	return s
}

type responseOpt func(*http1.Response)

func withAllow(value string) responseOpt {
	return func(r *http1.Response) { r.Set("Allow", value) }
}

func (rt *Router) runCGI(server *config.Server, loc *config.Location, req *http1.Request, scriptPath string, body []byte) *http1.Response {
	cgiReq := &cgi.Request{
		Method:      req.Method,
		Target:      req.Target,
		Host:        req.Headers.Get("host"),
		ContentType: req.Headers.Get("content-type"),
		Body:        body,
	}
	result, err := cgi.Execute(cgiReq, server, loc, scriptPath, rt.Log)
	if err != nil {
		rt.Log.WithError(err).WithField("script", scriptPath).Warn("cgi execution failed")
		return rt.errorResponse(server, 500)
	}

	resp := http1.NewResponse(result.Code, result.Body)
	resp.Reason = result.Reason
	hasContentType := false
	for _, h := range result.Headers {
		resp.Set(h.Name, h.Value)
		if strings.EqualFold(h.Name, "Content-Type") {
			hasContentType = true
		}
	}
	if !hasContentType {
		resp.Set("Content-Type", "text/html")
	}
	return resp
}
