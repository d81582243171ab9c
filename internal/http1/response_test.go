package http1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseBytesDefaultsServerAndLength(t *testing.T) {
	r := NewResponse(200, []byte("hi"))
	r.Set("Content-Type", "text/plain")
	out := string(r.Bytes())

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "Content-Type: text/plain\r\n")
	assert.Contains(t, out, "Server: webserv/0.1\r\n")
	assert.Contains(t, out, "Content-Length: 2\r\n")
	assert.Equal(t, 1, strings.Count(out, "\r\n\r\n"))
	assert.True(t, strings.HasSuffix(out, "hi"))
}

func TestResponseBytesRespectsExplicitHeaders(t *testing.T) {
	r := NewResponse(204, nil)
	r.Set("Content-Length", "0")
	r.Set("Server", "custom/1.0")
	out := string(r.Bytes())

	assert.Equal(t, 1, strings.Count(out, "Server:"))
	assert.Equal(t, 1, strings.Count(out, "Content-Length:"))
}
