package http1

import (
	"bytes"
	"strings"
)

const headerTerminator = "\r\n\r\n"

// ParseHead parses a start-line and header block out of buf. buf need
// not contain the full request: if the terminating blank line has not
// arrived yet, ParseHead returns ErrNeedMore and the caller should read
// more bytes and retry with the larger buffer (spec.md 4.A/4.H — the
// parser is stateless across calls, all state lives in the caller's
// read_buffer).
//
// On success it returns the parsed Request and the number of bytes of
// buf consumed (the length of the start-line + headers + terminating
// CRLFCRLF) so the caller can advance its buffer and hand the remainder
// to the body decoder. ParseHead never looks past the header terminator:
// it does not know about, and does not consume, the body.
func ParseHead(buf []byte) (*Request, int, error) {
	idx := bytes.Index(buf, []byte(headerTerminator))
	if idx < 0 {
		if len(buf) > MaxHeadBytes {
			return nil, 0, ErrHeadersTooLarge
		}
		return nil, 0, ErrNeedMore
	}
	consumed := idx + len(headerTerminator)
	head := string(buf[:idx])

	lines := strings.Split(head, "\r\n")
	req := &Request{Headers: NewHeader()}

	if err := parseStartLine(lines[0], req); err != nil {
		return nil, 0, err
	}

	if err := parseHeaderLines(lines[1:], req.Headers); err != nil {
		return nil, 0, err
	}

	if req.Version == "HTTP/1.1" && !req.Headers.Has("host") {
		return nil, 0, ErrMissingHost
	}

	return req, consumed, nil
}

// MaxHeadBytes bounds how large a start-line+header block is allowed to
// grow before ParseHead gives up waiting for a terminator and fails the
// request outright, rather than buffering an unbounded amount of data
// from a client that never sends one.
const MaxHeadBytes = 64 * 1024

func parseStartLine(line string, req *Request) error {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return ErrInvalidStartLine
	}
	method, target, version := parts[0], parts[1], parts[2]

	if method == "" || !isValidMethodToken(method) {
		return ErrInvalidMethod
	}
	if target == "" {
		return ErrInvalidTarget
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return ErrUnsupportedVersion
	}

	req.Method = method
	req.Target = target
	req.Version = version
	return nil
}

func isValidMethodToken(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

func parseHeaderLines(lines []string, headers Header) error {
	seenHost := false
	for _, line := range lines {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			return ErrLineFolding
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return ErrInvalidHeaderLine
		}
		name := line[:colon]
		value := strings.TrimLeft(line[colon+1:], " \t")

		if name == "" {
			return ErrEmptyHeaderName
		}
		if strings.ContainsAny(name, " \t") {
			return ErrHeaderWhitespace
		}

		if strings.EqualFold(name, "Host") {
			if seenHost {
				return ErrDuplicateHost
			}
			seenHost = true
		}

		headers.Set(name, value)
	}
	return nil
}
