package handler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newReq(method, target string, headers map[string]string) *http1.Request {
	h := http1.NewHeader()
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http1.Request{Method: method, Target: target, Version: "HTTP/1.1", Headers: h}
}

func TestHandleGetServesIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hi"), 0o644))

	server := &config.Server{Host: "x", Port: 80, Root: root, Index: "index.html"}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("GET", "/", map[string]string{"host": "x"}), nil)
	require.Equal(t, 200, resp.Code)
	require.Equal(t, "hi", string(resp.Body))
	require.Equal(t, "text/html", headerValue(resp, "Content-Type"))
}

func TestHandleGetMissingIs404(t *testing.T) {
	root := t.TempDir()
	server := &config.Server{Host: "x", Port: 80, Root: root, Index: "index.html"}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("GET", "/missing", nil), nil)
	require.Equal(t, 404, resp.Code)
}

func TestHandleGetAutoindexListsDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	server := &config.Server{Host: "x", Port: 80, Root: root, Autoindex: true}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("GET", "/", nil), nil)
	require.Equal(t, 200, resp.Code)
	require.Contains(t, string(resp.Body), `href="/a.txt"`)
	require.Contains(t, string(resp.Body), `href="/sub/"`)
}

func TestHandleGetAutoindexOffIs403(t *testing.T) {
	root := t.TempDir()
	server := &config.Server{Host: "x", Port: 80, Root: root, Autoindex: false}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("GET", "/", nil), nil)
	require.Equal(t, 403, resp.Code)
}

func TestHandlePostUploadWritesFile(t *testing.T) {
	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	require.NoError(t, os.Mkdir(uploads, 0o755))

	server := &config.Server{Host: "x", Port: 80, Root: root}
	server.Locations = []*config.Location{{Path: "/up", UploadStore: uploads}}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("POST", "/up/foo.txt", map[string]string{"content-length": "5"}), []byte("hello"))
	require.Equal(t, 201, resp.Code)

	data, err := os.ReadFile(filepath.Join(uploads, "foo.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestHandlePostUploadRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	server := &config.Server{Host: "x", Port: 80, Root: root}
	server.Locations = []*config.Location{{Path: "/up", UploadStore: root}}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("POST", "/up/../escape.txt", nil), []byte("x"))
	require.Equal(t, 403, resp.Code)
}

func TestHandlePostUploadRejectsNestedPath(t *testing.T) {
	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	require.NoError(t, os.Mkdir(uploads, 0o755))

	server := &config.Server{Host: "x", Port: 80, Root: root}
	server.Locations = []*config.Location{{Path: "/up", UploadStore: uploads}}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("POST", "/up/sub/foo.txt", nil), []byte("x"))
	require.Equal(t, 403, resp.Code)

	_, err := os.Stat(filepath.Join(uploads, "foo.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestHandlePostEchoesWithoutUploadStore(t *testing.T) {
	root := t.TempDir()
	server := &config.Server{Host: "x", Port: 80, Root: root}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("POST", "/anything", nil), []byte("abc"))
	require.Equal(t, 200, resp.Code)
	require.Contains(t, string(resp.Body), "/anything")
}

func TestHandleDeleteRemovesFileThenReturns404(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), []byte("x"), 0o644))

	server := &config.Server{Host: "x", Port: 80, Root: root}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("DELETE", "/file", nil), nil)
	require.Equal(t, 200, resp.Code)
	_, err := os.Stat(filepath.Join(root, "file"))
	require.True(t, os.IsNotExist(err))

	resp = rt.Handle(server, newReq("DELETE", "/file", nil), nil)
	require.Equal(t, 404, resp.Code)
}

func TestHandleMethodNotAllowedOnLocation(t *testing.T) {
	root := t.TempDir()
	server := &config.Server{Host: "x", Port: 80, Root: root}
	server.Locations = []*config.Location{{Path: "/ro", AllowedMethods: []config.Method{config.MethodGET}}}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("DELETE", "/ro/thing", nil), nil)
	require.Equal(t, 405, resp.Code)
	require.Equal(t, "GET", headerValue(resp, "Allow"))
}

func TestHandleUnrecognizedMethodIs405WithFullAllow(t *testing.T) {
	root := t.TempDir()
	server := &config.Server{Host: "x", Port: 80, Root: root}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("PUT", "/", nil), nil)
	require.Equal(t, 405, resp.Code)
	require.Equal(t, "GET, POST, DELETE", headerValue(resp, "Allow"))
}

func TestHandleLocationRedirect(t *testing.T) {
	root := t.TempDir()
	server := &config.Server{Host: "x", Port: 80, Root: root}
	server.Locations = []*config.Location{{Path: "/old", Redirect: &config.Redirect{Code: 301, URL: "/new"}}}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("GET", "/old", nil), nil)
	require.Equal(t, 301, resp.Code)
	require.Equal(t, "/new", headerValue(resp, "Location"))
}

func TestHandleCGIRoutesThroughLocation(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.sh"),
		[]byte("#!/bin/sh\nprintf 'Content-Type: text/plain\\r\\n\\r\\nok'\n"), 0o755))

	server := &config.Server{Host: "x", Port: 80, Root: root}
	server.Locations = []*config.Location{{
		Path: "/cgi",
		Root: root,
		CGI:  &config.CGIBinding{Extension: ".sh", InterpreterPath: "/bin/sh"},
	}}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("GET", "/cgi/hello.sh?x=1", map[string]string{"host": "x"}), nil)
	require.Equal(t, 200, resp.Code)
	require.Equal(t, "ok", string(resp.Body))
	require.Equal(t, "text/plain", headerValue(resp, "Content-Type"))
}

func TestErrorResponseServesConfiguredErrorPage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "404.html"), []byte("not here"), 0o644))

	server := &config.Server{Host: "x", Port: 80, Root: root, ErrorPages: map[int]string{404: "404.html"}}
	rt := New(testLogger())

	resp := rt.Handle(server, newReq("GET", "/missing", nil), nil)
	require.Equal(t, 404, resp.Code)
	require.Equal(t, "not here", string(resp.Body))
	require.Equal(t, "close", headerValue(resp, "Connection"))
}

func headerValue(resp *http1.Response, name string) string {
	for _, h := range resp.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}
