package engine

import "golang.org/x/sys/unix"

// poller wraps golang.org/x/sys/unix.Poll for the engine's multi-descriptor
// readiness wait (spec.md 4.I). It holds no state beyond what wait needs
// for its single syscall; the descriptor slice itself is owned and
// maintained by Engine, matching original_source/src/WebServer.cpp's
// single std::vector<pollfd> reused across iterations.
type poller struct{}

// wait blocks up to timeoutMs for any descriptor in fds to become ready,
// mutating fds[i].Revents in place exactly as unix.Poll does. It returns
// the number of ready descriptors.
func (poller) wait(fds []unix.PollFd, timeoutMs int) (int, error) {
	return unix.Poll(fds, timeoutMs)
}
