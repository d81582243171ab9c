package http1

import "bytes"

// FeedResult is the outcome of one ChunkDecoder.Feed call.
type FeedResult int

const (
	// ResultNeedMore means the buffer handed in does not yet contain a
	// complete chunk (or terminator); the caller should top up from the
	// socket and call Feed again with the grown buffer.
	ResultNeedMore FeedResult = iota
	// ResultDone means the terminating zero-size chunk (and any
	// trailers) has been consumed; Decoded() now holds the full body.
	ResultDone
	// ResultInvalid means the chunk framing was malformed.
	ResultInvalid
	// ResultTooLarge means the cumulative decoded size exceeded the
	// configured limit.
	ResultTooLarge
)

// ChunkDecoder incrementally decodes a Transfer-Encoding: chunked body
// (spec.md 4.B). All of its state lives in two fields, per the design
// note in spec.md §9: remaining (Some(n) / None, modeled here as
// remaining+haveRemaining) and the accumulated decoded buffer. The
// decoder never reads from a socket itself — the caller drains its
// buffer as bytes are consumed by Feed and tops it up independently,
// which is what makes the decoder restartable across non-blocking reads.
type ChunkDecoder struct {
	remaining     uint64
	haveRemaining bool // false == "awaiting a chunk-size line"

	decoded bytes.Buffer
	limit   uint64 // 0 == unlimited

	done bool
}

// NewChunkDecoder returns a decoder that fails with ResultTooLarge once
// the cumulative decoded size would exceed limit. limit == 0 means no
// limit, matching the "0 means unlimited" engine-internal convention
// described in spec.md §3/§9.
func NewChunkDecoder(limit uint64) *ChunkDecoder {
	return &ChunkDecoder{limit: limit}
}

// Decoded returns the bytes decoded so far. Valid to call at any point,
// including before ResultDone (e.g. to inspect partial progress), but
// only complete once Feed has returned ResultDone.
func (d *ChunkDecoder) Decoded() []byte {
	return d.decoded.Bytes()
}

// Feed advances the decoder using as much of buf as it can consume in
// one call, looping internally across chunk boundaries, and returns how
// many leading bytes of buf were consumed. The caller must drop those
// bytes from its buffer (e.g. buf = buf[consumed:]) before the next read.
func (d *ChunkDecoder) Feed(buf []byte) (FeedResult, int) {
	if d.done {
		return ResultDone, 0
	}

	total := 0
	for {
		if !d.haveRemaining {
			n, size, status := parseChunkSizeLine(buf[total:])
			switch status {
			case lineIncomplete:
				return ResultNeedMore, total
			case lineMalformed:
				return ResultInvalid, total
			}
			total += n

			if size == 0 {
				consumedTerm, result := d.consumeTerminator(buf[total:])
				if result == ResultNeedMore {
					// Leave the zero-size line in the caller's buffer so the
					// next Feed re-reads it together with the terminator.
					return ResultNeedMore, total - n
				}
				total += consumedTerm
				d.done = true
				return ResultDone, total
			}

			d.remaining = size
			d.haveRemaining = true
			continue
		}

		rest := buf[total:]
		take := d.remaining
		if take > uint64(len(rest)) {
			take = uint64(len(rest))
		}
		if take > 0 {
			d.decoded.Write(rest[:take])
			d.remaining -= take
			total += int(take)

			if d.limit > 0 && uint64(d.decoded.Len()) > d.limit {
				return ResultTooLarge, total
			}
		}

		if d.remaining > 0 {
			return ResultNeedMore, total
		}

		rest = buf[total:]
		if len(rest) < 2 {
			return ResultNeedMore, total
		}
		if rest[0] != '\r' || rest[1] != '\n' {
			return ResultInvalid, total
		}
		total += 2
		d.haveRemaining = false
	}
}

// lineStatus is the outcome of parseChunkSizeLine.
type lineStatus int

const (
	// lineOK means a complete, well-formed chunk-size line was parsed.
	lineOK lineStatus = iota
	// lineIncomplete means buf does not yet hold a full line; the caller
	// should wait for more bytes and try again.
	lineIncomplete
	// lineMalformed means a full line was found but its content is not a
	// valid chunk-size, e.g. empty or containing non-hex digits. This is
	// terminal: no amount of additional buffering fixes it.
	lineMalformed
)

// parseChunkSizeLine parses a "<hex>[;ext...]\r\n" line at the start of
// buf. Returns the number of bytes consumed, the parsed size, and the
// line's status. Mirrors the original's `iss >> std::hex >> chunkSize;
// if (!iss || !iss.eof()) return false;` — a complete but unparsable
// line is rejected immediately rather than waited on.
func parseChunkSizeLine(buf []byte) (consumed int, size uint64, status lineStatus) {
	crlf := bytes.Index(buf, []byte("\r\n"))
	if crlf < 0 {
		return 0, 0, lineIncomplete
	}
	line := buf[:crlf]
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	if len(line) == 0 {
		return 0, 0, lineMalformed
	}
	var v uint64
	for _, c := range line {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint64(c-'A') + 10
		default:
			return 0, 0, lineMalformed
		}
	}
	return crlf + 2, v, lineOK
}

// consumeTerminator consumes the bytes after a zero-size chunk line: an
// immediate "\r\n" when there are no trailers, or a trailer block ending
// in "\r\n\r\n" which is discarded.
func (d *ChunkDecoder) consumeTerminator(buf []byte) (int, FeedResult) {
	if len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n' {
		return 2, ResultDone
	}
	if idx := bytes.Index(buf, []byte("\r\n\r\n")); idx >= 0 {
		return idx + 4, ResultDone
	}
	return 0, ResultNeedMore
}
