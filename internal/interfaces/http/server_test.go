package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/internal/testutil"
)

func TestServer_ServeAndStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	log := testutil.NewMockLogger()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := NewServer(ServerOptions{ShutdownTimeout: time.Second}, handler, log)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, srv.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, log.HasMessage("info", "HTTP server stopped"))
}

func TestNewServer_Defaults(t *testing.T) {
	srv := NewServer(ServerOptions{Port: 8080}, http.NotFoundHandler(), testutil.NewMockLogger())
	assert.Equal(t, ":8080", srv.Addr())
	assert.Equal(t, 15*time.Second, srv.srv.ReadTimeout)
	assert.Equal(t, 30*time.Second, srv.shutdownTimeout)
}
