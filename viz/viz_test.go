package viz_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lorsio/lors/viz"
)

func echoServer(t *testing.T, frames chan<- map[string]any) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestSinkSendsRegisterProgressClear(t *testing.T) {
	frames := make(chan map[string]any, 8)
	srv := echoServer(t, frames)
	defer srv.Close()

	sink := viz.Dial(context.Background(), wsURL(srv.URL), zaptest.NewLogger(t))
	defer sink.Close()

	sink.Register("sess-1", "file.bin", 8192, 2)
	sink.Progress("sess-1", "D1", 4096, 0)
	sink.Clear("sess-1")

	for _, want := range []string{"register", "progress", "clear"} {
		select {
		case frame := <-frames:
			require.Equal(t, want, frame["type"])
			require.Equal(t, "sess-1", frame["session_id"])
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q frame", want)
		}
	}
}

func TestSinkIsNoOpWithoutURL(t *testing.T) {
	sink := viz.Dial(context.Background(), "", zaptest.NewLogger(t))
	sink.Register("sess-1", "file.bin", 10, 1)
	sink.Progress("sess-1", "D1", 10, 0)
	sink.Clear("sess-1")
	sink.Close()
}

func TestSinkIsNoOpOnDialFailure(t *testing.T) {
	sink := viz.Dial(context.Background(), "ws://127.0.0.1:1/no-such-server", zaptest.NewLogger(t))
	sink.Register("sess-1", "file.bin", 10, 1)
	sink.Close()
}
