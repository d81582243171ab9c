package http1

import (
	"fmt"
	"strconv"
	"strings"
)

// ServerBanner is sent as the Server: header on every response that does
// not already set one, per spec.md 4.C.
const ServerBanner = "webserv/0.1"

// HeaderField is one insertion-ordered response header. Response uses a
// slice of these rather than a map because spec.md 4.C requires
// preserving "insertion order" for user headers — something a map
// cannot do.
type HeaderField struct {
	Name  string
	Value string
}

// Response is a status line, an ordered header list, and a body, ready
// to be serialized by Bytes(). It never chunk-encodes the body (spec.md
// 4.C: "No chunked encoding on the response side").
type Response struct {
	Code    int
	Reason  string
	Headers []HeaderField
	Body    []byte
}

// NewResponse returns a Response with the canonical reason phrase for
// code already filled in.
func NewResponse(code int, body []byte) *Response {
	return &Response{Code: code, Reason: ReasonPhrase(code), Body: body}
}

// Set appends a header in insertion order. Callers are responsible for
// not adding the same header twice if they want HasHeader-based
// defaulting (Server/Content-Length) below to take effect.
func (r *Response) Set(name, value string) {
	r.Headers = append(r.Headers, HeaderField{name, value})
}

// HasHeader reports whether name (case-insensitive) was already set.
func (r *Response) HasHeader(name string) bool {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// Bytes serializes the response: "HTTP/1.1 <code> <reason>\r\n", user
// headers in insertion order, then a Server: header if absent, then
// Content-Length if absent, then the blank line, then the body.
func (r *Response) Bytes() []byte {
	var b strings.Builder
	b.Grow(128 + len(r.Body))

	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Code, r.Reason)
	for _, h := range r.Headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	if !r.HasHeader("Server") {
		b.WriteString("Server: ")
		b.WriteString(ServerBanner)
		b.WriteString("\r\n")
	}
	if !r.HasHeader("Content-Length") {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body)))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out
}

// reasonPhrases covers the status codes this engine actually produces;
// ReasonPhrase falls back to "Unknown Status" for anything else (e.g. a
// CGI script inventing its own code via a Status: header).
var reasonPhrases = map[int]string{
	100: "Continue",
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	504: "Gateway Timeout",
}

// ReasonPhrase returns the canonical reason phrase for code, or a
// generic placeholder if this engine has no specific phrase for it.
func ReasonPhrase(code int) string {
	if phrase, ok := reasonPhrases[code]; ok {
		return phrase
	}
	return "Unknown Status"
}
