package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/handler"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// TestEngineServesGetRequestEndToEnd exercises the full accept/read/
// dispatch/write cycle over a real loopback socket: spec.md's first
// end-to-end scenario in §8.
func TestEngineServesGetRequestEndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hi"), 0o644))

	port := 18181
	src := fmt.Sprintf("server {\n listen %d;\n root %s;\n index index.html;\n}\n", port, root)
	cfg, err := config.Parse(strings.NewReader(src))
	require.NoError(t, err)

	rt := handler.New(testLogger())
	eng, err := New(cfg, rt, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	var conn net.Conn
	for attempt := 0; attempt < 20; attempt++ {
		conn, err = net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Contains(t, string(data), "200 OK")
	require.Contains(t, string(data), "hi")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}
}
