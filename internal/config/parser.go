package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseError reports the line a config directive failed on.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: line %d: %s", e.Line, e.Message)
}

// Load reads and parses the configuration file at path, returning the
// fully-resolved, immutable Root. Parse failures here are fatal at
// startup per spec.md §7.
func Load(path string) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse tokenizes and builds a Root from r. Exposed separately from Load
// so tests can parse an in-memory config without touching the filesystem.
func Parse(r io.Reader) (*Root, error) {
	toks, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	p := &tokenParser{toks: toks}
	root := &Root{}
	for !p.atEnd() {
		word, line := p.next()
		switch word {
		case "server":
			srv, err := p.parseServer(line)
			if err != nil {
				return nil, err
			}
			root.Servers = append(root.Servers, srv)
		default:
			return nil, &ParseError{line, fmt.Sprintf("unexpected top-level directive %q", word)}
		}
	}
	if len(root.Servers) == 0 {
		return nil, &ParseError{0, "no server blocks defined"}
	}
	return root, nil
}

// token is one whitespace-separated word, or one of "{" / "}" / ";",
// tagged with its source line for error messages.
type token struct {
	text string
	line int
}

func tokenize(r io.Reader) ([]token, error) {
	var toks []token
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		for _, word := range splitDirectiveLine(line) {
			toks = append(toks, token{word, lineNo})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return toks, nil
}

// splitDirectiveLine splits a line into words, keeping "{", "}" and a
// trailing ";" as their own tokens even when glued to an adjacent word
// (e.g. "root ./www;" -> ["root", "./www", ";"]).
func splitDirectiveLine(line string) []string {
	var words []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			words = append(words, buf.String())
			buf.Reset()
		}
	}
	for _, r := range line {
		switch r {
		case ' ', '\t', '\r':
			flush()
		case '{', '}', ';':
			flush()
			words = append(words, string(r))
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return words
}

type tokenParser struct {
	toks []token
	pos  int
}

func (p *tokenParser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *tokenParser) next() (string, int) {
	t := p.toks[p.pos]
	p.pos++
	return t.text, t.line
}

func (p *tokenParser) peek() string {
	if p.atEnd() {
		return ""
	}
	return p.toks[p.pos].text
}

func (p *tokenParser) line() int {
	if p.atEnd() {
		if len(p.toks) == 0 {
			return 0
		}
		return p.toks[len(p.toks)-1].line
	}
	return p.toks[p.pos].line
}

func (p *tokenParser) expect(text string) error {
	if p.atEnd() || p.toks[p.pos].text != text {
		return &ParseError{p.line(), fmt.Sprintf("expected %q", text)}
	}
	p.pos++
	return nil
}

// directiveArgs consumes words up to (and including) the terminating
// ";", returning the words before it.
func (p *tokenParser) directiveArgs() ([]string, int, error) {
	line := p.line()
	var args []string
	for {
		if p.atEnd() {
			return nil, line, &ParseError{line, "unterminated directive (missing ';')"}
		}
		word, _ := p.next()
		if word == ";" {
			return args, line, nil
		}
		if word == "{" || word == "}" {
			return nil, line, &ParseError{line, "unexpected block delimiter inside directive"}
		}
		args = append(args, word)
	}
}

func (p *tokenParser) parseServer(startLine int) (*Server, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	srv := &Server{
		ErrorPages: map[int]string{},
	}
	for {
		if p.atEnd() {
			return nil, &ParseError{startLine, "unterminated server block"}
		}
		if p.peek() == "}" {
			p.next()
			break
		}
		word, line := p.next()
		switch word {
		case "location":
			path, lline, err := p.locationPath()
			if err != nil {
				return nil, err
			}
			loc, err := p.parseLocation(lline, path)
			if err != nil {
				return nil, err
			}
			srv.Locations = append(srv.Locations, loc)
			continue
		}
		args, dline, err := p.directiveArgs()
		if err != nil {
			return nil, err
		}
		if err := applyServerDirective(srv, word, args, dline); err != nil {
			return nil, err
		}
		_ = line
	}
	if srv.Port == 0 {
		return nil, &ParseError{startLine, "server block missing 'listen' directive"}
	}
	srv.Host = strings.ToLower(srv.Host)
	return srv, nil
}

// locationPath reads the path argument that follows the `location`
// keyword, up to the opening "{".
func (p *tokenParser) locationPath() (string, int, error) {
	line := p.line()
	if p.atEnd() || p.toks[p.pos].text == "{" {
		return "", line, &ParseError{line, "location directive missing path"}
	}
	path, _ := p.next()
	return path, line, nil
}

func (p *tokenParser) parseLocation(startLine int, path string) (*Location, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	loc := &Location{Path: path}
	for {
		if p.atEnd() {
			return nil, &ParseError{startLine, "unterminated location block"}
		}
		if p.peek() == "}" {
			p.next()
			break
		}
		word, _ := p.next()
		args, dline, err := p.directiveArgs()
		if err != nil {
			return nil, err
		}
		if err := applyLocationDirective(loc, word, args, dline); err != nil {
			return nil, err
		}
	}
	if err := validateLocationPath(loc.Path, startLine); err != nil {
		return nil, err
	}
	return loc, nil
}

func validateLocationPath(path string, line int) error {
	if path == "" || path[0] != '/' {
		return &ParseError{line, fmt.Sprintf("location path %q must begin with '/'", path)}
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		return &ParseError{line, fmt.Sprintf("location path %q must not have a trailing '/'", path)}
	}
	return nil
}

func applyServerDirective(srv *Server, name string, args []string, line int) error {
	switch name {
	case "listen":
		if len(args) != 1 {
			return &ParseError{line, "listen takes exactly one argument"}
		}
		host, port, err := splitHostPort(args[0])
		if err != nil {
			return &ParseError{line, err.Error()}
		}
		srv.Port = port
		if host != "" {
			// Mirrors original_source/src/Config.cpp's single `server.host`
			// field: listen's host seeds the vhost name too, so `listen
			// example.com:8080;` alone is enough to match a Host: header.
			// A later explicit `host` directive overwrites this.
			srv.Host = host
		}
	case "host":
		if len(args) != 1 {
			return &ParseError{line, "host takes exactly one argument"}
		}
		srv.Host = args[0]
	case "root":
		if len(args) != 1 {
			return &ParseError{line, "root takes exactly one argument"}
		}
		srv.Root = args[0]
	case "index":
		if len(args) != 1 {
			return &ParseError{line, "index takes exactly one argument"}
		}
		srv.Index = args[0]
	case "error_page":
		if len(args) != 2 {
			return &ParseError{line, "error_page takes exactly two arguments"}
		}
		code, err := strconv.Atoi(args[0])
		if err != nil || code < 100 || code > 599 {
			return &ParseError{line, fmt.Sprintf("invalid error_page status code %q", args[0])}
		}
		srv.ErrorPages[code] = args[1]
	case "client_max_body_size":
		if len(args) != 1 {
			return &ParseError{line, "client_max_body_size takes exactly one argument"}
		}
		size, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || size < 0 {
			return &ParseError{line, fmt.Sprintf("invalid client_max_body_size %q", args[0])}
		}
		srv.ClientMaxBodySize = size
	case "autoindex":
		on, err := parseOnOff(args, line)
		if err != nil {
			return err
		}
		srv.Autoindex = on
	default:
		return &ParseError{line, fmt.Sprintf("unknown server directive %q", name)}
	}
	return nil
}

func applyLocationDirective(loc *Location, name string, args []string, line int) error {
	switch name {
	case "root":
		if len(args) != 1 {
			return &ParseError{line, "root takes exactly one argument"}
		}
		loc.Root = args[0]
	case "index":
		if len(args) != 1 {
			return &ParseError{line, "index takes exactly one argument"}
		}
		loc.Index = args[0]
	case "methods":
		if len(args) == 0 {
			return &ParseError{line, "methods requires at least one method"}
		}
		for _, m := range args {
			method := Method(strings.ToUpper(m))
			switch method {
			case MethodGET, MethodPOST, MethodDELETE:
				loc.AllowedMethods = append(loc.AllowedMethods, method)
			default:
				return &ParseError{line, fmt.Sprintf("unsupported method %q", m)}
			}
		}
	case "autoindex":
		on, err := parseOnOff(args, line)
		if err != nil {
			return err
		}
		if on {
			loc.Autoindex = AutoindexOn
		} else {
			loc.Autoindex = AutoindexOff
		}
	case "redirect":
		code := 302
		var url string
		switch len(args) {
		case 1:
			url = args[0]
		case 2:
			c, err := strconv.Atoi(args[0])
			if err != nil || c < 300 || c > 399 {
				return &ParseError{line, fmt.Sprintf("invalid redirect code %q", args[0])}
			}
			code, url = c, args[1]
		default:
			return &ParseError{line, "redirect takes [code] <url>"}
		}
		loc.Redirect = &Redirect{Code: code, URL: url}
	case "upload_store":
		if len(args) != 1 {
			return &ParseError{line, "upload_store takes exactly one argument"}
		}
		loc.UploadStore = args[0]
	case "cgi":
		if len(args) != 2 {
			return &ParseError{line, "cgi takes exactly two arguments: <.ext> <interpreter>"}
		}
		if !strings.HasPrefix(args[0], ".") {
			return &ParseError{line, fmt.Sprintf("cgi extension %q must begin with '.'", args[0])}
		}
		loc.CGI = &CGIBinding{Extension: args[0], InterpreterPath: args[1]}
	default:
		return &ParseError{line, fmt.Sprintf("unknown location directive %q", name)}
	}
	return nil
}

func parseOnOff(args []string, line int) (bool, error) {
	if len(args) != 1 {
		return false, &ParseError{line, "expected exactly one of 'on'/'off'"}
	}
	switch args[0] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, &ParseError{line, fmt.Sprintf("expected 'on' or 'off', got %q", args[0])}
	}
}

// splitHostPort parses either "<port>" or "<host>:<port>" as accepted by
// the `listen` directive.
func splitHostPort(s string) (host string, port int, err error) {
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		host = s[:idx]
		p, perr := strconv.Atoi(s[idx+1:])
		if perr != nil {
			return "", 0, fmt.Errorf("invalid listen port in %q", s)
		}
		port = p
	} else {
		p, perr := strconv.Atoi(s)
		if perr != nil {
			return "", 0, fmt.Errorf("invalid listen value %q", s)
		}
		port = p
	}
	if port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("listen port %d out of range", port)
	}
	return host, port, nil
}
