package engine

import (
	"strconv"
	"strings"

	"github.com/webserv/webserv/internal/conn"
	"github.com/webserv/webserv/internal/http1"
	"github.com/webserv/webserv/internal/routing"
	"golang.org/x/sys/unix"
)

// unlimitedBodyLimit is the limit handed to the chunked decoder when the
// server has no configured limit (client_max_body_size 0); it is large
// enough never to be reached.
const unlimitedBodyLimit = uint64(1) << 62

// handleRead services one readable client descriptor: a single recv(),
// then as much of the connection's state machine as the newly-arrived
// bytes allow (spec.md 4.H: on_readable appends, touches, and parses).
func (e *Engine) handleRead(i int) {
	fd := int(e.pollfds[i].Fd)
	c, ok := e.conns[fd]
	if !ok {
		e.closeConnAt(i)
		return
	}

	buf := make([]byte, readChunkBytes)
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		e.closeConnAt(i)
		return
	}
	if n == 0 {
		e.closeConnAt(i)
		return
	}

	c.Touch()
	c.AppendRead(buf[:n])
	e.advance(c)

	if c.Phase == conn.PhaseWriting {
		e.pollfds[i].Events |= unix.POLLOUT
	}
}

// handleWrite services one writable client descriptor: sends whatever
// of write_buffer remains, and closes the connection once it is fully
// flushed (spec.md 4.H: no keep-alive, one response per connection).
func (e *Engine) handleWrite(i int) {
	fd := int(e.pollfds[i].Fd)
	c, ok := e.conns[fd]
	if !ok || !c.WantWrite() {
		e.closeConnAt(i)
		return
	}

	n, err := unix.Write(fd, c.PendingWrite())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		e.closeConnAt(i)
		return
	}

	c.Touch()
	c.AdvanceWrite(n)
	if !c.WantWrite() {
		e.closeConnAt(i)
	}
}

// advance runs the connection's per-request state machine as far as the
// currently buffered bytes permit: parse the head, decide the body
// framing, accumulate the body, then dispatch to the router and queue
// its response. Any malformed input short-circuits straight to Writing
// with an error response (spec.md 4.F "State machine for a connection").
func (e *Engine) advance(c *conn.Conn) {
	for {
		switch c.Phase {
		case conn.PhaseReadingHeaders:
			if !e.advanceHeaders(c) {
				return
			}
		case conn.PhaseReadingBody:
			if !e.advanceBody(c) {
				return
			}
		default:
			return
		}
	}
}

func (e *Engine) advanceHeaders(c *conn.Conn) bool {
	req, consumed, err := http1.ParseHead(c.ReadBuf.B)
	if err != nil {
		if err == http1.ErrNeedMore {
			return false
		}
		e.queueError(c, 400)
		return false
	}
	c.ConsumeRead(consumed)
	c.Request = req

	candidates := e.serversByPort[c.Server.Port]
	c.Server = routing.SelectServer(candidates, c.Server, req.Headers.Get("host"))

	hasCL := req.Headers.Has("content-length")
	te := strings.ToLower(req.Headers.Get("transfer-encoding"))
	hasChunked := strings.Contains(te, "chunked")

	if hasCL && hasChunked {
		e.queueError(c, 400)
		return false
	}

	switch {
	case hasChunked:
		limit := unlimitedBodyLimit
		if c.Server.ClientMaxBodySize > 0 {
			limit = uint64(c.Server.ClientMaxBodySize)
		}
		c.Body = conn.BodyState{Kind: conn.BodyKindChunked, Chunk: http1.NewChunkDecoder(limit)}
	case hasCL:
		length, err := strconv.ParseInt(req.Headers.Get("content-length"), 10, 64)
		if err != nil || length < 0 {
			e.queueError(c, 400)
			return false
		}
		if c.Server.ClientMaxBodySize > 0 && length > c.Server.ClientMaxBodySize {
			e.queueError(c, 413)
			return false
		}
		c.Body = conn.BodyState{Kind: conn.BodyKindContentLength, ContentLength: length}
	default:
		c.Body = conn.BodyState{Kind: conn.BodyKindNone}
	}

	c.Phase = conn.PhaseReadingBody
	return true
}

func (e *Engine) advanceBody(c *conn.Conn) bool {
	switch c.Body.Kind {
	case conn.BodyKindChunked:
		result, consumed := c.Body.Chunk.Feed(c.ReadBuf.B)
		c.ConsumeRead(consumed)
		switch result {
		case http1.ResultNeedMore:
			return false
		case http1.ResultDone:
			c.Body.MarkChunkDone()
		case http1.ResultTooLarge:
			e.queueError(c, 413)
			return false
		default:
			e.queueError(c, 400)
			return false
		}
	case conn.BodyKindContentLength:
		need := c.Body.ContentLength - c.Body.Received
		if int64(len(c.ReadBuf.B)) < need {
			return false
		}
		c.Body.Received = c.Body.ContentLength
	}

	if !c.Body.Done() {
		return false
	}

	body := extractBody(c)
	c.Request.Body = body
	resp := e.router.Handle(c.Server, c.Request, body)
	c.QueueResponse(resp.Bytes())
	return false
}

func extractBody(c *conn.Conn) []byte {
	switch c.Body.Kind {
	case conn.BodyKindChunked:
		return c.Body.Chunk.Decoded()
	case conn.BodyKindContentLength:
		n := int(c.Body.ContentLength)
		body := make([]byte, n)
		copy(body, c.ReadBuf.B[:n])
		c.ConsumeRead(n)
		return body
	default:
		return nil
	}
}

func (e *Engine) queueError(c *conn.Conn, code int) {
	resp := e.router.RespondError(c.Server, code)
	c.QueueResponse(resp.Bytes())
}
