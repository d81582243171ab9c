package http1

import "errors"

// Parser errors. Every one of these maps to a 400 response at the router
// layer (spec.md §7, ParseError taxonomy) — none of them is recoverable
// mid-parse, so the flat var-per-failure style below (rather than a rich
// error type) is enough: callers only need to distinguish "parse error"
// from "need more bytes".
var (
	ErrInvalidStartLine  = errors.New("http1: invalid request line")
	ErrInvalidMethod     = errors.New("http1: invalid or unrecognized HTTP method")
	ErrInvalidTarget     = errors.New("http1: invalid request-target")
	ErrUnsupportedVersion = errors.New("http1: unsupported HTTP version")
	ErrInvalidHeaderLine = errors.New("http1: malformed header line")
	ErrEmptyHeaderName   = errors.New("http1: empty header name")
	ErrHeaderWhitespace  = errors.New("http1: whitespace inside header name")
	ErrLineFolding       = errors.New("http1: obsolete line folding is not supported")
	ErrDuplicateHost     = errors.New("http1: duplicate Host header")
	ErrMissingHost       = errors.New("http1: HTTP/1.1 request missing Host header")
	ErrHeadersTooLarge   = errors.New("http1: request head exceeds the size limit")

	// ErrNeedMore is not a parse failure: it means the caller's buffer
	// does not yet contain a complete request line + header block and
	// more bytes must be read from the socket before parsing can make
	// further progress. (The chunked decoder reports the same situation
	// as ResultNeedMore instead.)
	ErrNeedMore = errors.New("http1: incomplete, need more data")
)

// Chunk decoder error values (spec.md 4.B). ChunkDecoder.Feed does not
// return these; it reports ResultInvalid / ResultTooLarge.
var (
	ErrChunkInvalid   = errors.New("http1: invalid chunk framing")
	ErrChunkTooLarge  = errors.New("http1: decoded body exceeds size limit")
)

// ErrBothLengthAndChunked names a request that carries both
// Content-Length and Transfer-Encoding: chunked (RFC 7230 §3.3.3
// smuggling protection). No function in this package returns it; the
// engine detects that case itself and answers 400.
var ErrBothLengthAndChunked = errors.New("http1: both Content-Length and Transfer-Encoding present")

// ErrInvalidContentLength names a malformed Content-Length value. No
// function in this package returns it; the engine validates the value
// itself and answers 400.
var ErrInvalidContentLength = errors.New("http1: invalid Content-Length")
