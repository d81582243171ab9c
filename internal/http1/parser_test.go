package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeadBasic(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\nleftover"
	req, consumed, err := ParseHead([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Target)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "example.com", req.Headers.Get("host"))
	assert.Equal(t, len(raw)-len("leftover"), consumed)
}

func TestParseHeadNeedsMore(t *testing.T) {
	_, _, err := ParseHead([]byte("GET / HTTP/1.1\r\nHost: x\r\n"))
	assert.ErrorIs(t, err, ErrNeedMore)
}

func TestParseHeadRejectsBadStartLine(t *testing.T) {
	cases := []string{
		"GET /only-two\r\n\r\n",
		"GET /a b c HTTP/1.1\r\n\r\n",
	}
	for _, c := range cases {
		_, _, err := ParseHead([]byte(c))
		assert.Error(t, err)
	}
}

func TestParseHeadRejectsUnknownVersion(t *testing.T) {
	_, _, err := ParseHead([]byte("GET / HTTP/2.0\r\nHost: x\r\n\r\n"))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestParseHeadRequiresHostOnHTTP11(t *testing.T) {
	_, _, err := ParseHead([]byte("GET / HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, ErrMissingHost)
}

func TestParseHeadAllowsMissingHostOnHTTP10(t *testing.T) {
	req, _, err := ParseHead([]byte("GET / HTTP/1.0\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.0", req.Version)
}

func TestParseHeadRejectsDuplicateHost(t *testing.T) {
	_, _, err := ParseHead([]byte("GET / HTTP/1.1\r\nHost: a\r\nHost: b\r\n\r\n"))
	assert.ErrorIs(t, err, ErrDuplicateHost)
}

func TestParseHeadRejectsLineFolding(t *testing.T) {
	_, _, err := ParseHead([]byte("GET / HTTP/1.1\r\nHost: a\r\n continuation\r\n\r\n"))
	assert.ErrorIs(t, err, ErrLineFolding)
}

func TestParseHeadRejectsMissingColon(t *testing.T) {
	_, _, err := ParseHead([]byte("GET / HTTP/1.1\r\nHost a\r\n\r\n"))
	assert.ErrorIs(t, err, ErrInvalidHeaderLine)
}

func TestParseHeadRejectsWhitespaceInName(t *testing.T) {
	_, _, err := ParseHead([]byte("GET / HTTP/1.1\r\nHost : a\r\n\r\n"))
	assert.ErrorIs(t, err, ErrHeaderWhitespace)
}

func TestRequestPathAndQuery(t *testing.T) {
	req := &Request{Target: "/cgi/hello.py?x=1"}
	assert.Equal(t, "/cgi/hello.py", req.Path())
	assert.Equal(t, "x=1", req.Query())
}
