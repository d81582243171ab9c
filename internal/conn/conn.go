// Package conn implements the per-client connection state machine of
// spec.md 4.H/§3: buffers, phase, and body-mode tracking for one
// accepted socket. A Conn is owned exclusively by the event loop
// goroutine — nothing here takes a lock, by design (spec.md §5: "no
// locks are needed").
package conn

import (
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
)

// Phase is one of the four states a connection's single request/response
// cycle moves through. It only ever advances forward (spec.md §3
// invariant 5); there is no keep-alive loop-back.
type Phase int

const (
	PhaseReadingHeaders Phase = iota
	PhaseReadingBody
	PhaseWriting
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseReadingHeaders:
		return "reading-headers"
	case PhaseReadingBody:
		return "reading-body"
	case PhaseWriting:
		return "writing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// BodyKind distinguishes which of the two body-framing modes a request
// uses. Exactly one is active per request (spec.md §3 invariant 3).
type BodyKind int

const (
	BodyKindNone BodyKind = iota
	BodyKindContentLength
	BodyKindChunked
)

// BodyState tracks progress decoding the request body, whichever framing
// it uses.
type BodyState struct {
	Kind BodyKind

	// Content-Length framing.
	ContentLength int64
	Received      int64

	// Chunked framing.
	Chunk     *http1.ChunkDecoder
	chunkDone bool
}

// Done reports whether the body has been fully read for either framing.
func (b *BodyState) Done() bool {
	switch b.Kind {
	case BodyKindContentLength:
		return b.Received >= b.ContentLength
	case BodyKindChunked:
		return b.chunkDone
	default:
		return true
	}
}

// MarkChunkDone is set once the chunk decoder reports ResultDone; kept
// separate from Chunk because Chunk.Decoded() being non-empty does not
// by itself mean decoding finished.
func (b *BodyState) MarkChunkDone() { b.chunkDone = true }

// Conn is one accepted client connection.
type Conn struct {
	FD int

	// Server starts as the default server for the accepting listener's
	// port and is rebindable exactly once, when the Host: header is
	// read (spec.md §3: "reference ... initially chosen by listener
	// port, rebindable once the Host: header is seen").
	Server *config.Server

	Phase Phase

	ReadBuf  *bytebufferpool.ByteBuffer
	WriteBuf *bytebufferpool.ByteBuffer
	writeOff int

	Request *http1.Request
	Body    BodyState

	LastActivity time.Time
	RemoteAddr   string
}

// New returns a Conn ready to read from fd, attributed by default to
// defaultServer until/unless the Host header selects another.
func New(fd int, defaultServer *config.Server, remoteAddr string) *Conn {
	return &Conn{
		FD:           fd,
		Server:       defaultServer,
		Phase:        PhaseReadingHeaders,
		ReadBuf:      bytebufferpool.Get(),
		WriteBuf:     bytebufferpool.Get(),
		LastActivity: time.Now(),
		RemoteAddr:   remoteAddr,
	}
}

// Release returns the connection's buffers to the shared pool. Call
// exactly once, when the connection is being destroyed.
func (c *Conn) Release() {
	bytebufferpool.Put(c.ReadBuf)
	bytebufferpool.Put(c.WriteBuf)
}

// Touch records that a read or write just succeeded (spec.md §3:
// "last_activity: ... updated on every successful read or write").
func (c *Conn) Touch() {
	c.LastActivity = time.Now()
}

// IdleFor returns how long the connection has been idle as of now.
func (c *Conn) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastActivity)
}

// AppendRead adds freshly-read bytes to the read buffer.
func (c *Conn) AppendRead(data []byte) {
	c.ReadBuf.Write(data)
}

// ConsumeRead drops the first n bytes of the read buffer: they have been
// handed to the request parser or body decoder (spec.md §3 invariant 2:
// "read_buffer never contains bytes already handed to the request or
// decoded body").
func (c *Conn) ConsumeRead(n int) {
	remaining := c.ReadBuf.B[n:]
	c.ReadBuf.Reset()
	c.ReadBuf.Write(remaining)
}

// QueueResponse stores a fully-serialized response and transitions the
// connection to PhaseWriting. Per spec.md §3 invariant 4, the connection
// is interested in writable readiness exactly when WriteBuf is non-empty,
// which WantWrite reports.
func (c *Conn) QueueResponse(data []byte) {
	c.WriteBuf.Reset()
	c.WriteBuf.Write(data)
	c.writeOff = 0
	c.Phase = PhaseWriting
}

// WantWrite reports whether there is unsent response data.
func (c *Conn) WantWrite() bool {
	return c.writeOff < len(c.WriteBuf.B)
}

// PendingWrite returns the slice of WriteBuf not yet sent.
func (c *Conn) PendingWrite() []byte {
	return c.WriteBuf.B[c.writeOff:]
}

// AdvanceWrite records that n more bytes were successfully written.
func (c *Conn) AdvanceWrite(n int) {
	c.writeOff += n
}
