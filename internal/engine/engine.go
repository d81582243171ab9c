package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/webserv/webserv/internal/conn"
	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/handler"
	"golang.org/x/sys/unix"
)

// pollTimeoutMs and idleTimeout match spec.md 4.I exactly: a 1-second
// readiness wait and a 30-second idle eviction, both named constants in
// original_source (CLIENT_TIMEOUT_SECONDS = 30).
const (
	pollTimeoutMs  = 1000
	idleTimeout    = 30 * time.Second
	readChunkBytes = 4096
)

// Engine is the event loop: one goroutine, one poll(2)-equivalent
// descriptor set, zero locks (spec.md §5: "per-connection state is
// owned exclusively by the loop").
type Engine struct {
	log    logrus.FieldLogger
	router *handler.Router

	listeners     map[int]*config.Server     // listening fd -> default server for that port
	serversByPort map[int][]*config.Server // port -> every server declared on it, for Host selection
	conns         map[int]*conn.Conn         // client fd -> connection state

	poll    poller
	pollfds []unix.PollFd
}

// New builds an Engine with one listening socket per distinct port in
// root (spec.md 4.J).
func New(root *config.Root, router *handler.Router, log logrus.FieldLogger) (*Engine, error) {
	listeners, err := newListeners(root)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		log:           log,
		router:        router,
		listeners:     make(map[int]*config.Server, len(listeners)),
		serversByPort: make(map[int][]*config.Server, len(listeners)),
		conns:         make(map[int]*conn.Conn),
	}
	for _, l := range listeners {
		e.listeners[l.fd] = l.defaultServer
		e.serversByPort[l.port] = root.ServersOnPort(l.port)
		e.pollfds = append(e.pollfds, unix.PollFd{Fd: int32(l.fd), Events: unix.POLLIN})
		e.log.WithFields(logrus.Fields{"port": l.port, "fd": l.fd}).Info("listening")
	}
	return e, nil
}

// Run drives the loop until ctx is cancelled or poll() fails outright.
// Per spec.md 4.I: each iteration waits up to pollTimeoutMs, sweeps idle
// connections, then dispatches accepts, error/hangup closures, reads,
// and writes in that order.
func (e *Engine) Run(ctx context.Context) error {
	defer e.closeAll()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if len(e.pollfds) == 0 {
			continue
		}

		n, err := e.poll.wait(e.pollfds, pollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("engine: poll: %w", err)
		}
		if n == 0 {
			e.sweepIdle()
			continue
		}

		e.sweepIdle()
		e.dispatch()
	}
}

// sweepIdle evicts every client connection whose last activity is older
// than idleTimeout. Listening sockets are never swept (spec.md 4.I).
func (e *Engine) sweepIdle() {
	now := time.Now()
	for i := 0; i < len(e.pollfds); i++ {
		fd := int(e.pollfds[i].Fd)
		if _, isListener := e.listeners[fd]; isListener {
			continue
		}
		c, ok := e.conns[fd]
		if !ok {
			continue
		}
		if c.IdleFor(now) > idleTimeout {
			e.log.WithField("fd", fd).Debug("idle timeout, closing")
			e.closeConnAt(i)
			i--
		}
	}
}

// dispatch handles every descriptor with pending events this round.
// Index bookkeeping mirrors original_source's run(): swap-with-last
// removal means a handler that closes descriptor i must rewind i so the
// loop rechecks whatever got swapped into that slot.
func (e *Engine) dispatch() {
	for i := 0; i < len(e.pollfds); i++ {
		revents := e.pollfds[i].Revents
		if revents == 0 {
			continue
		}
		fd := int(e.pollfds[i].Fd)

		if server, ok := e.listeners[fd]; ok {
			if revents&unix.POLLIN != 0 {
				e.acceptAll(fd, server)
			}
			continue
		}

		if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			e.closeConnAt(i)
			i--
			continue
		}

		if i < len(e.pollfds) && e.pollfds[i].Revents&unix.POLLIN != 0 {
			e.handleRead(i)
			if i >= len(e.pollfds) || int(e.pollfds[i].Fd) != fd {
				i--
				continue
			}
		}

		if i < len(e.pollfds) && e.pollfds[i].Revents&unix.POLLOUT != 0 {
			e.handleWrite(i)
			if i >= len(e.pollfds) || int(e.pollfds[i].Fd) != fd {
				i--
			}
		}
	}
}

// acceptAll drains every pending connection on a listening socket, per
// original_source's handleNewConnection (accept() in a loop until it
// would block).
func (e *Engine) acceptAll(listenFd int, defaultServer *config.Server) {
	for {
		fd, sa, err := unix.Accept(listenFd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			e.log.WithError(err).Warn("accept() failed")
			return
		}

		if err := unix.SetNonblock(fd, true); err != nil {
			e.log.WithError(err).Warn("set nonblocking on accepted socket failed")
			unix.Close(fd)
			continue
		}

		c := conn.New(fd, defaultServer, formatSockaddr(sa))
		e.conns[fd] = c
		e.pollfds = append(e.pollfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		e.log.WithFields(logrus.Fields{"fd": fd, "remote": c.RemoteAddr}).Debug("accepted connection")
	}
}

func (e *Engine) closeConnAt(i int) {
	fd := int(e.pollfds[i].Fd)
	if c, ok := e.conns[fd]; ok {
		c.Release()
		delete(e.conns, fd)
	}
	unix.Close(fd)

	last := len(e.pollfds) - 1
	e.pollfds[i] = e.pollfds[last]
	e.pollfds = e.pollfds[:last]
}

func (e *Engine) closeAll() {
	for fd := range e.conns {
		unix.Close(fd)
	}
	for fd := range e.listeners {
		unix.Close(fd)
	}
	e.conns = make(map[int]*conn.Conn)
	e.pollfds = nil
}

func formatSockaddr(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3], addr.Port)
	default:
		return "unknown"
	}
}
