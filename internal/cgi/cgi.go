// Package cgi implements spec.md 4.G: forking an interpreter for a CGI
// script, feeding it the request body on stdin, and parsing its stdout
// as an HTTP-ish response. Grounded on original_source/src/WebServer.cpp
// (fork/pipe/execve/poll sequence) translated to Go's os.Pipe +
// os.StartProcess (see DESIGN.md for why os/exec.Cmd was not used: this
// package needs its own independent, deadline-bounded poll loop over the
// child's stdout, the same shape the rest of the engine uses for
// sockets).
package cgi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/http1"
	"golang.org/x/sys/unix"
)

// Timeout is the hard deadline on draining a CGI script's stdout,
// matching original_source's CGI_TIMEOUT_SECONDS.
const Timeout = 30 * time.Second

// readChunk bounds a single read syscall on the output pipe.
const readChunk = 4096

// ErrFailed is wrapped by every CGI failure mode (fork/exec, timeout,
// abnormal exit, I/O error) — spec.md §7 converts all of them to a 500
// at the router, so callers only need to know "it failed", not why, to
// decide what to serve; the wrapped error is kept for logging.
var ErrFailed = errors.New("cgi: execution failed")

// Request bundles what the executor needs to know about the incoming
// request. decoded Body must already be fully decoded (no chunked
// framing) — the router guarantees this before calling Execute, making
// the "maybe still chunked" fallback in the original design unnecessary
// (see SPEC_FULL.md §9).
type Request struct {
	Method string
	Target string // raw target, including ?query
	Host   string
	ContentType string
	Body   []byte
}

// Result is what the script produced: a status, passthrough headers in
// the order the script sent them, and a body.
type Result struct {
	Code    int
	Reason  string
	Headers []http1.HeaderField
	Body    []byte
}

// Execute runs the interpreter bound to loc.CGI against scriptPath,
// streaming req.Body to its stdin (for POST) and collecting its stdout.
func Execute(req *Request, server *config.Server, loc *config.Location, scriptPath string, log logrus.FieldLogger) (*Result, error) {
	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrFailed, err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrFailed, err)
	}

	scriptDir := filepath.Dir(scriptPath)
	scriptName := filepath.Base(scriptPath)
	interpreter := loc.CGI.InterpreterPath

	proc, err := os.StartProcess(interpreter, []string{interpreter, scriptName}, &os.ProcAttr{
		Dir:   scriptDir,
		Env:   buildEnv(req, server, loc, scriptPath),
		Files: []*os.File{inR, outW, os.Stderr},
	})

	// Parent no longer needs the child's ends regardless of StartProcess
	// outcome.
	inR.Close()
	outW.Close()

	if err != nil {
		inW.Close()
		outR.Close()
		log.WithError(err).WithField("script", scriptPath).Warn("cgi: failed to start interpreter")
		return nil, fmt.Errorf("%w: start: %v", ErrFailed, err)
	}
	launched := time.Now()

	if req.Method == "POST" && len(req.Body) > 0 {
		if err := writeAll(inW, req.Body); err != nil {
			log.WithError(err).WithField("script", scriptPath).Warn("cgi: failed writing request body")
		}
	}
	inW.Close()

	raw, err := drainWithDeadline(outR, proc, launched, Timeout)
	outR.Close()
	if err != nil {
		log.WithError(err).WithField("script", scriptPath).Warn("cgi: draining stdout failed")
		return nil, err
	}

	state, err := proc.Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: wait: %v", ErrFailed, err)
	}
	if !state.Success() {
		log.WithField("script", scriptPath).WithField("exit", state.String()).Warn("cgi: interpreter exited abnormally")
		return nil, fmt.Errorf("%w: exit status %s", ErrFailed, state.String())
	}

	return parseOutput(raw), nil
}

func writeAll(f *os.File, data []byte) error {
	for len(data) > 0 {
		n, err := f.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// drainWithDeadline reads proc's stdout pipe to completion, polling the
// raw fd with a 30s budget measured from launch (spec.md 4.G.6). On
// timeout, on a poll/read error, or on a poll that keeps returning zero
// readiness with no progress, the child is killed unblockably and
// reaped before the executor reports failure.
func drainWithDeadline(r *os.File, proc *os.Process, launched time.Time, timeout time.Duration) ([]byte, error) {
	fd := int(r.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		killAndReap(proc)
		return nil, fmt.Errorf("%w: set nonblocking: %v", ErrFailed, err)
	}

	deadline := launched.Add(timeout)
	var out bytes.Buffer
	buf := make([]byte, readChunk)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			killAndReap(proc)
			return nil, fmt.Errorf("%w: timeout after %s", ErrFailed, timeout)
		}

		pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(pfds, int(remaining/time.Millisecond)+1)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			killAndReap(proc)
			return nil, fmt.Errorf("%w: poll: %v", ErrFailed, err)
		}
		if n == 0 {
			killAndReap(proc)
			return nil, fmt.Errorf("%w: timeout after %s", ErrFailed, timeout)
		}

		revents := pfds[0].Revents
		if revents&unix.POLLIN != 0 {
			nread, err := unix.Read(fd, buf)
			if err != nil {
				if err == unix.EINTR || err == unix.EAGAIN {
					continue
				}
				killAndReap(proc)
				return nil, fmt.Errorf("%w: read: %v", ErrFailed, err)
			}
			if nread == 0 {
				break // EOF
			}
			out.Write(buf[:nread])
			continue
		}
		if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			break
		}
	}

	return out.Bytes(), nil
}

func killAndReap(proc *os.Process) {
	_ = proc.Kill()
	_, _ = proc.Wait()
}

func buildEnv(req *Request, server *config.Server, loc *config.Location, scriptPath string) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=HTTP/1.1",
		"SERVER_SOFTWARE=webserv/0.1",
		"REQUEST_METHOD=" + req.Method,
		"QUERY_STRING=" + queryString(req.Target),
		"SCRIPT_FILENAME=" + scriptPath,
		"SCRIPT_NAME=" + scriptPath,
		"SERVER_NAME=" + server.Host,
		"SERVER_PORT=" + strconv.Itoa(server.Port),
	}
	if req.ContentType != "" {
		env = append(env, "CONTENT_TYPE="+req.ContentType)
	}
	if req.Method == "POST" {
		env = append(env, "CONTENT_LENGTH="+strconv.Itoa(len(req.Body)))
	}
	if req.Host != "" {
		env = append(env, "HTTP_HOST="+req.Host)
	}
	return env
}

func queryString(target string) string {
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		return target[idx+1:]
	}
	return ""
}

// parseOutput splits a CGI script's raw stdout on the first blank line
// (\r\n\r\n, falling back to \n\n) into headers and body, per spec.md
// 4.G.8. A Status header becomes the response status; everything else
// passes through unchanged, in the order the script sent it.
func parseOutput(raw []byte) *Result {
	sepLen := 4
	idx := bytes.Index(raw, []byte("\r\n\r\n"))
	if idx < 0 {
		sepLen = 2
		idx = bytes.Index(raw, []byte("\n\n"))
	}
	if idx < 0 {
		return &Result{Code: 200, Reason: http1.ReasonPhrase(200), Body: raw}
	}

	headBlock := string(raw[:idx])
	body := raw[idx+sepLen:]

	result := &Result{Code: 200, Reason: http1.ReasonPhrase(200), Body: body}

	for _, line := range splitLines(headBlock) {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])

		if strings.EqualFold(name, "Status") {
			code, reason := parseStatusHeader(value)
			result.Code = code
			result.Reason = reason
			continue
		}
		result.Headers = append(result.Headers, http1.HeaderField{Name: name, Value: value})
	}

	return result
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

func parseStatusHeader(value string) (int, string) {
	parts := strings.SplitN(value, " ", 2)
	code, err := strconv.Atoi(parts[0])
	if err != nil || code < 100 || code > 599 {
		return 200, http1.ReasonPhrase(200)
	}
	reason := http1.ReasonPhrase(code)
	if len(parts) == 2 && parts[1] != "" {
		reason = parts[1]
	}
	return code, reason
}
