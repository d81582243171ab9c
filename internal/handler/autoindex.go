package handler

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
)

// autoindexResponse generates a directory listing for a location with
// autoindex on, per spec.md 4.F. Entries are sorted by name; "." and
// ".." are never listed. Each href is the request's URL path joined
// with the entry name through exactly one slash.
func (rt *Router) autoindexResponse(server *config.Server, fsPath, urlPath string) *http1.Response {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		return rt.errorResponse(server, 500)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	base := urlPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>Index of %s</title></head><body>", html.EscapeString(base))
	fmt.Fprintf(&b, "<h1>Index of %s</h1><ul>", html.EscapeString(base))
	for _, e := range entries {
		name := e.Name()
		href := base + name
		if e.IsDir() {
			href += "/"
			name += "/"
		}
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>", html.EscapeString(href), html.EscapeString(name))
	}
	b.WriteString("</ul></body></html>")

	resp := http1.NewResponse(200, []byte(b.String()))
	resp.Set("Content-Type", "text/html")
	return resp
}
