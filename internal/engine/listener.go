// Package engine implements spec.md 4.I/4.J: the single-threaded,
// poll-driven event loop that owns every listening and client socket.
// Grounded directly on original_source/src/WebServer.cpp's
// initListeningSockets/run, translated from raw POSIX socket/poll calls
// to golang.org/x/sys/unix (the same low-level syscall surface the
// engine's CGI executor already polls on).
package engine

import (
	"fmt"

	"github.com/webserv/webserv/internal/config"
	"golang.org/x/sys/unix"
)

// listenBacklog matches original_source's listen(fd, 128).
const listenBacklog = 128

// listener is one bound, listening, non-blocking socket shared by every
// server{} block that declared the same port. Per spec.md 4.J, the
// first server{} declared for a port becomes that port's default.
type listener struct {
	fd            int
	port          int
	defaultServer *config.Server
}

// newListeners creates one socket per distinct port in root, in the
// order config.Root.Ports() reports them.
func newListeners(root *config.Root) ([]*listener, error) {
	var out []*listener
	for _, port := range root.Ports() {
		l, err := bindListener(port, root.DefaultServerForPort(port))
		if err != nil {
			for _, prior := range out {
				unix.Close(prior.fd)
			}
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func bindListener(port int, defaultServer *config.Server) (*listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("engine: socket() on port %d: %w", port, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("engine: setsockopt(SO_REUSEADDR) on port %d: %w", port, err)
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("engine: bind() on port %d: %w", port, err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("engine: listen() on port %d: %w", port, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("engine: set nonblocking on port %d: %w", port, err)
	}

	return &listener{fd: fd, port: port, defaultServer: defaultServer}, nil
}
